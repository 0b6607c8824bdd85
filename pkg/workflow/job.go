package workflow

import (
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/expr"
)

// Job wraps one declared job: its steps, dependency edges, runner
// specification, deployment bindings and reusable-workflow reference.
// Instances are immutable after construction except for the one-time guard
// memoization.
type Job struct {
	Name  string
	Spec  *JobSpec
	Steps []*Step

	// Needs holds declared dependencies verbatim, duplicates preserved.
	Needs []string
	// Deployments holds normalized environment binding names.
	Deployments []string
	// Uses is the reusable-workflow reference, empty when absent.
	Uses string

	hasGate bool

	guard
}

// NewJob builds the wrapper for one job declaration. The gateActions list
// is forwarded to step classification, nil meaning the built-in allow-list.
func NewJob(name string, spec *JobSpec, evaluator *expr.Evaluator, gateActions []string) *Job {
	j := &Job{
		Name:        name,
		Spec:        spec,
		Needs:       spec.Needs.Values,
		Deployments: spec.Environment.Names,
		Uses:        spec.Uses,
		guard:       guard{raw: spec.If, evaluator: evaluator},
	}
	for i, stepSpec := range spec.Steps {
		step := NewStep(stepSpec, i, evaluator, gateActions)
		j.Steps = append(j.Steps, step)
		if step.IsGate {
			j.hasGate = true
		}
	}
	return j
}

// HasGate reports whether any contained step classifies as a gate.
func (j *Job) HasGate() bool {
	return j.hasGate
}

// Gated reports whether an external actor cannot reach this job's risky
// steps: a gate step exists, or the job's own guard is restrictive.
func (j *Job) Gated() bool {
	return j.hasGate || j.EvaluateGuard().Restrictive()
}

// Dependencies returns the declared needs list.
func (j *Job) Dependencies() []string {
	return j.Needs
}

// IsCaller reports whether the job calls a reusable workflow in the same
// repository (a ./ path reference).
func (j *Job) IsCaller() bool {
	return strings.HasPrefix(j.Uses, "./")
}

// IsExternalCaller reports whether the job calls a reusable workflow in
// another repository.
func (j *Job) IsExternalCaller() bool {
	return j.Uses != "" && !j.IsCaller()
}
