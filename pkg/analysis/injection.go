package analysis

import (
	"github.com/harekrishnarai/forkrisk/pkg/constants"
	"github.com/harekrishnarai/forkrisk/pkg/shell"
	"github.com/harekrishnarai/forkrisk/pkg/workflow"
)

// StepInjection records the tainted tokens one step interpolates.
type StepInjection struct {
	Variables []string `json:"variables"`
	IfCheck   string   `json:"if_checks,omitempty"`
	// Severity grades the strongest shell placement any tainted expansion
	// reached: HIGH for command or bare-word position, MEDIUM for quoted.
	// Empty when the body is not parseable shell.
	Severity string `json:"severity,omitempty"`
}

// JobInjection aggregates the injection findings of one job.
type JobInjection struct {
	IfCheck string                    `json:"if_check"`
	Steps   map[string]*StepInjection `json:"steps"`
}

// InjectionResult maps job names to injection findings, plus the
// triggering events. An empty Jobs map means nothing was found.
type InjectionResult struct {
	Jobs     map[string]*JobInjection `json:"jobs,omitempty"`
	Triggers []string                 `json:"triggers,omitempty"`
}

// Empty reports whether the result carries no findings.
func (r *InjectionResult) Empty() bool {
	return len(r.Jobs) == 0
}

// CheckInjection scans script steps for context references an external
// actor can poison. A gate step halts analysis of its job: nothing after
// it is reachable without passing the gate. Tokens are filtered against
// the workflow-, job-, and step-scoped environment declarations, in that
// order; a token resolving to a literal value with no embedded expression
// marker is statically safe. A job whose dependencies are gated is skipped
// entirely. Returns an empty result when the workflow has no risky
// triggers and bypass is not set.
func (a *Analysis) CheckInjection(bypass bool) *InjectionResult {
	result := &InjectionResult{}

	triggers := a.VulnerableTriggers("")
	if len(triggers) == 0 && !bypass {
		return result
	}

	for _, job := range a.jobs {
		for _, step := range job.Steps {
			if step.IsGate {
				break
			}
			if !step.IsScript {
				continue
			}

			tokens := workflow.FilterTokens(step.Tokens())
			for _, env := range []map[string]interface{}{a.wf.Doc.Env, job.Spec.Env, step.Spec.Env} {
				tokens = filterEnvScope(tokens, env)
			}
			if len(tokens) == 0 {
				continue
			}

			severity := ""
			if step.Spec.Run != "" {
				tokens, severity = a.classifyShellPlacement(step.Spec.Run, tokens)
				if len(tokens) == 0 {
					continue
				}
			}

			if len(job.Dependencies()) > 0 && a.BacktrackGate(job.Dependencies()...) {
				break
			}

			if result.Jobs == nil {
				result.Jobs = make(map[string]*JobInjection)
			}
			entry, ok := result.Jobs[job.Name]
			if !ok {
				entry = &JobInjection{
					IfCheck: job.EvaluateGuard().String(),
					Steps:   make(map[string]*StepInjection),
				}
				result.Jobs[job.Name] = entry
			}
			si := &StepInjection{Variables: tokens, Severity: severity}
			if check := step.EvaluateGuard().String(); check != "" {
				si.IfCheck = check
			}
			entry.Steps[step.Name] = si
		}
	}

	if !result.Empty() {
		result.Triggers = triggers
	}
	return result
}

func filterEnvScope(tokens []string, env map[string]interface{}) []string {
	if len(tokens) == 0 || len(env) == 0 {
		return tokens
	}
	var out []string
	for _, tok := range tokens {
		if workflow.ResolveEnvToken(tok, env) {
			out = append(out, tok)
		}
	}
	return out
}

// classifyShellPlacement parses the run body as shell and drops tokens
// whose every expansion sits in a comment, grading the rest by the
// strongest placement reached. An unparseable body keeps all tokens with
// no severity grade.
func (a *Analysis) classifyShellPlacement(body string, tokens []string) ([]string, string) {
	expansions, err := shell.ClassifyExpansions(body)
	if err != nil || expansions == nil {
		return tokens, ""
	}

	best := make(map[string]shell.Placement, len(tokens))
	for _, exp := range expansions {
		for _, tok := range workflow.ExtractTokens("${{" + exp.Text + "}}") {
			if p, ok := best[tok]; !ok || exp.Placement > p {
				best[tok] = exp.Placement
			}
		}
	}

	var kept []string
	strongest := shell.PlacementNone
	for _, tok := range tokens {
		placement, seen := best[tok]
		if seen && placement == shell.PlacementNone {
			continue
		}
		kept = append(kept, tok)
		if placement > strongest {
			strongest = placement
		}
	}

	switch strongest {
	case shell.PlacementCommand, shell.PlacementUnquoted:
		return kept, constants.ConfidenceHigh
	case shell.PlacementQuoted:
		return kept, constants.ConfidenceMedium
	}
	return kept, ""
}
