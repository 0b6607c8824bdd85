/*
Copyright 2025 Hare Krishna Rai

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package policies evaluates Rego policies against per-workflow analysis
// results, letting organizations layer their own rules on top of the
// built-in detections.
package policies

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
	"github.com/harekrishnarai/forkrisk/pkg/report"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Engine evaluates custom Rego policies.
type Engine struct {
	policyFiles []string
}

// NewEngine creates a policy engine over the given .rego files.
func NewEngine(policyFiles []string) *Engine {
	return &Engine{policyFiles: policyFiles}
}

// Evaluate runs every configured policy against a single workflow's
// analysis results and returns the deny messages.
func (e *Engine) Evaluate(ctx context.Context, wf report.WorkflowReport) ([]string, error) {
	var violations []string

	if len(e.policyFiles) == 0 {
		return violations, nil
	}

	input, err := prepareInput(wf)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy input: %w", err)
	}

	for _, policyFile := range e.policyFiles {
		fileViolations, err := e.evaluatePolicyFile(ctx, policyFile, input)
		if err != nil {
			return nil, ferrors.NewPolicyError("policy evaluation failed", err, policyFile)
		}
		violations = append(violations, fileViolations...)
	}

	return violations, nil
}

func (e *Engine) evaluatePolicyFile(ctx context.Context, policyFile string, input interface{}) ([]string, error) {
	policyContent, err := os.ReadFile(policyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	policyName := filepath.Base(policyFile)

	r := rego.New(
		rego.Query("data.forkrisk.deny[x]"),
		rego.Module(policyName, string(policyContent)),
		rego.Input(input),
	)

	rs, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	var violations []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			violations = append(violations, renderViolation(expr.Value)...)
		}
	}

	return violations, nil
}

// prepareInput converts a workflow report into the generic document OPA
// consumes. Round-tripping through JSON keeps the rego field names in sync
// with the report's wire format.
func prepareInput(wf report.WorkflowReport) (map[string]interface{}, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, err
	}

	var input map[string]interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return input, nil
}

// renderViolation flattens a deny result into human-readable messages.
// Policies may deny with a plain string or with a structured object.
func renderViolation(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []interface{}:
		var out []string
		for _, item := range v {
			out = append(out, renderViolation(item)...)
		}
		return out
	case map[string]interface{}:
		id, _ := v["id"].(string)
		description, _ := v["description"].(string)
		if description == "" {
			description, _ = v["msg"].(string)
		}
		if description == "" {
			description = "workflow violates a custom policy rule"
		}
		jobName, _ := v["job"].(string)

		var b strings.Builder
		if id != "" {
			b.WriteString(id)
			b.WriteString(": ")
		}
		b.WriteString(description)
		if jobName != "" {
			fmt.Fprintf(&b, " (job %q)", jobName)
		}
		return []string{b.String()}
	default:
		return nil
	}
}

// LoadPolicyFiles loads policy files from a directory or file
func LoadPolicyFiles(policyPath string) ([]string, error) {
	var policyFiles []string

	fileInfo, err := os.Stat(policyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access policy path: %w", err)
	}

	if fileInfo.IsDir() {
		err = filepath.Walk(policyPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(path) == ".rego" {
				policyFiles = append(policyFiles, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk policy directory: %w", err)
		}
	} else {
		if filepath.Ext(policyPath) == ".rego" {
			policyFiles = append(policyFiles, policyPath)
		} else {
			return nil, fmt.Errorf("policy file must have .rego extension")
		}
	}

	if len(policyFiles) == 0 {
		return nil, fmt.Errorf("no policy files found at %s", policyPath)
	}

	return policyFiles, nil
}

// CreateExamplePolicy creates an example policy file
func CreateExamplePolicy(filePath string) error {
	examplePolicy := `package forkrisk

import rego.v1

# Deny any workflow with a HIGH-confidence pwn-request candidate.
deny contains violation if {
    some job_name
    candidate := input.pwnRequest.candidates[job_name]
    candidate.confidence == "HIGH"

    violation := {
        "id": "POLICY_PWN_REQUEST",
        "description": "job checks out attacker-controlled code under a risky trigger",
        "severity": "HIGH",
        "job": job_name
    }
}

# Deny self-hosted runners on workflows with risky triggers.
deny contains violation if {
    some job in input.selfHosted
    count(input.pwnRequest.triggers) > 0

    violation := {
        "id": "POLICY_SELF_HOSTED_EXPOSED",
        "description": "self-hosted runner reachable from a fork-triggered workflow",
        "severity": "HIGH",
        "job": job.job_name
    }
}

# Deny injection candidates that expand directly into a command position.
deny contains violation if {
    some job_name
    job := input.injection.jobs[job_name]
    step := job.steps[_]
    step.severity == "HIGH"

    violation := {
        "id": "POLICY_SCRIPT_INJECTION",
        "description": "attacker-controlled context expands into a shell command",
        "severity": "HIGH",
        "job": job_name
    }
}`

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, []byte(examplePolicy), 0644); err != nil {
		return fmt.Errorf("failed to write example policy file: %w", err)
	}

	return nil
}
