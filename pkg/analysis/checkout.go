package analysis

import (
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

// CheckoutObservation records one risky checkout step inside a job.
type CheckoutObservation struct {
	Ref      string `json:"ref"`
	IfCheck  string `json:"if_check"`
	StepName string `json:"step_name"`
}

// JobCheckout aggregates the checkout analysis of one job.
type JobCheckout struct {
	Confidence string                `json:"confidence"`
	Gated      bool                  `json:"gated"`
	IfCheck    string                `json:"if_check"`
	Steps      []CheckoutObservation `json:"steps"`
}

// PwnRequestResult maps job names to their checkout risk, plus the
// triggering events. An empty Candidates map means nothing was found.
type PwnRequestResult struct {
	Candidates map[string]*JobCheckout `json:"candidates,omitempty"`
	Triggers   []string                `json:"triggers,omitempty"`
}

// Empty reports whether the result carries no candidates.
func (r *PwnRequestResult) Empty() bool {
	return len(r.Candidates) == 0
}

// AnalyzeCheckouts scans every job for checkout steps whose ref can be
// mutated by an external actor between approval and execution. A checkout
// pinned to the pull-request head SHA (or to a SHA sourced from an
// environment variable) inside a gated job is immutable once the gate
// passed and is excluded. A sink step reachable after a recorded checkout
// escalates the job's confidence.
func (a *Analysis) AnalyzeCheckouts() map[string]*JobCheckout {
	results := make(map[string]*JobCheckout)

	for _, job := range a.jobs {
		jc := &JobCheckout{
			Confidence: constants.ConfidenceUnknown,
			IfCheck:    job.EvaluateGuard().String(),
		}
		bumpConfidence := false

		if job.IsCaller() {
			parts := strings.Split(job.Uses, "/")
			a.callees = append(a.callees, parts[len(parts)-1])
		} else if job.IsExternalCaller() {
			a.callees = append(a.callees, job.Uses)
		}

		if job.EvaluateGuard().Restrictive() {
			jc.Gated = true
		}

	steps:
		for _, step := range job.Steps {
			switch {
			case step.IsGate:
				// Gating is a job-level property; once established, later
				// checkouts in this job are unreachable by the adversary.
				jc.Gated = true
			case step.IsCheckout:
				if len(job.Dependencies()) > 0 {
					jc.Gated = a.BacktrackGate(job.Dependencies()...)
				}
				if jc.Gated && pinnedAfterGate(step.Metadata) {
					break steps
				}
				ann := step.EvaluateGuard()
				if ann.Verdict == workflow.GuardEvaluated {
					bumpConfidence = true
				} else if ann.Verdict == workflow.GuardRestricted {
					bumpConfidence = false
				}
				jc.Steps = append(jc.Steps, CheckoutObservation{
					Ref:      step.Metadata,
					IfCheck:  ann.String(),
					StepName: step.Name,
				})
			case len(jc.Steps) > 0 && step.IsSink:
				stepCheck := step.EvaluateGuard().String()
				switch {
				case strings.HasPrefix(jc.IfCheck, "EVALUATED"),
					bumpConfidence && jc.IfCheck == "",
					jc.IfCheck == "" && (stepCheck == "" || strings.HasPrefix(stepCheck, "EVALUATED")):
					jc.Confidence = constants.ConfidenceHigh
				default:
					jc.Confidence = constants.ConfidenceMedium
				}
			}
		}

		results[job.Name] = jc
	}

	return results
}

// pinnedAfterGate reports whether checkout ref metadata references the
// pull-request head SHA, or a SHA passed through an environment variable.
// Such a ref is immutable once a gate has passed, so no TOCTOU remains.
func pinnedAfterGate(ref string) bool {
	lower := strings.ToLower(ref)
	if strings.Contains(lower, "github.event.pull_request.head.sha") {
		return true
	}
	return strings.Contains(lower, "sha") && strings.Contains(lower, "env.")
}

// CheckPwnRequest packages every job with a non-empty checkout candidate
// list together with the triggering events. It returns an empty result
// when the workflow has no risky triggers and bypass is not set.
func (a *Analysis) CheckPwnRequest(bypass bool) *PwnRequestResult {
	result := &PwnRequestResult{}

	triggers := a.VulnerableTriggers("")
	if len(triggers) == 0 && !bypass {
		return result
	}

	for jobName, jc := range a.AnalyzeCheckouts() {
		if len(jc.Steps) == 0 {
			continue
		}
		if result.Candidates == nil {
			result.Candidates = make(map[string]*JobCheckout)
		}
		result.Candidates[jobName] = jc
	}
	if len(result.Candidates) > 0 {
		result.Triggers = triggers
	}
	return result
}
