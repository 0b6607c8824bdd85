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

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harekrishnarai/forkrisk/pkg/analysis"
	"github.com/harekrishnarai/forkrisk/pkg/constants"
)

func sampleWorkflows() []WorkflowReport {
	return []WorkflowReport{
		{
			Repository: "octo/repo",
			FileName:   "deploy.yml",
			PwnRequest: &analysis.PwnRequestResult{
				Candidates: map[string]*analysis.JobCheckout{
					"build": {
						Confidence: constants.ConfidenceHigh,
						Steps: []analysis.CheckoutObservation{
							{Ref: "${{ github.event.pull_request.head.ref }}", StepName: "step1"},
						},
					},
				},
				Triggers: []string{"pull_request_target"},
			},
			Injection: &analysis.InjectionResult{
				Jobs: map[string]*analysis.JobInjection{
					"reply": {
						Steps: map[string]*analysis.StepInjection{
							"step1": {
								Variables: []string{"github.event.comment.body"},
								Severity:  constants.ConfidenceHigh,
							},
						},
					},
				},
				Triggers: []string{"issue_comment"},
			},
			SelfHosted: []analysis.SelfHostedJob{
				{JobName: "build", Labels: []string{"self-hosted", "linux"}},
			},
		},
		{
			Repository: "octo/repo",
			FileName:   "ci.yml",
			PwnRequest: &analysis.PwnRequestResult{},
			Injection:  &analysis.InjectionResult{},
		},
	}
}

func sampleScanResult() ScanResult {
	workflows := sampleWorkflows()
	return ScanResult{
		Repository:     "octo/repo",
		ScanTime:       time.Now(),
		Duration:       time.Second,
		WorkflowsCount: len(workflows),
		Workflows:      workflows,
		Summary:        CalculateSummary(workflows),
	}
}

func TestCalculateSummary(t *testing.T) {
	summary := CalculateSummary(sampleWorkflows())

	if summary.PwnRequests != 1 {
		t.Errorf("PwnRequests = %d, want 1", summary.PwnRequests)
	}
	if summary.Injections != 1 {
		t.Errorf("Injections = %d, want 1", summary.Injections)
	}
	if summary.SelfHosted != 1 {
		t.Errorf("SelfHosted = %d, want 1", summary.SelfHosted)
	}
	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}
}

func TestHasFindings(t *testing.T) {
	workflows := sampleWorkflows()
	if !workflows[0].HasFindings() {
		t.Error("Expected findings in first workflow")
	}
	if workflows[1].HasFindings() {
		t.Error("Did not expect findings in second workflow")
	}

	violated := WorkflowReport{Violations: []string{"POLICY_X: denied"}}
	if !violated.HasFindings() {
		t.Error("Policy violations count as findings")
	}
}

func TestGenerateJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	gen := NewGenerator(sampleScanResult(), "json", false, path)
	if err := gen.Generate(); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	var decoded ScanResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}
	if decoded.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", decoded.Summary.Total)
	}
	if len(decoded.Workflows) != 2 {
		t.Errorf("Workflows = %d, want 2", len(decoded.Workflows))
	}
}

func TestGenerateMarkdownReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	gen := NewGenerator(sampleScanResult(), "markdown", false, path)
	if err := gen.Generate(); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	content := string(data)
	for _, want := range []string{"deploy.yml", "pull_request_target", "github.event.comment.body", "self-hosted"} {
		if !strings.Contains(content, want) {
			t.Errorf("Markdown report missing %q", want)
		}
	}
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	gen := NewGenerator(sampleScanResult(), "xml", false, "")
	if err := gen.Generate(); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
