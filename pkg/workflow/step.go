package workflow

import (
	"fmt"
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
	"github.com/harekrishnarai/forkrisk/pkg/expr"
)

// Step wraps one declared step. Capability flags are computed once at
// construction; a step can carry several (a script step may also be a
// sink).
type Step struct {
	Name  string
	Index int
	Spec  *StepSpec

	// IsActionRef marks a reference to a local composite action (./...).
	IsActionRef bool
	// IsCheckout marks an actions/checkout invocation with a ref input.
	IsCheckout bool
	// IsScript marks an inline executable body (run: or github-script).
	IsScript bool
	// IsGate marks a permission/approval check an external actor cannot
	// pass unassisted.
	IsGate bool
	// IsSink marks a step that persists or executes attacker-influenced
	// state with the workflow token.
	IsSink bool

	// Metadata holds the checkout ref text for checkout steps.
	Metadata string

	guard
}

// NewStep classifies one step declaration. The evaluator is shared across
// the owning analysis pass; a nil gateActions list means the built-in
// permission-gate allow-list.
func NewStep(spec *StepSpec, index int, evaluator *expr.Evaluator, gateActions []string) *Step {
	if gateActions == nil {
		gateActions = constants.GateActions
	}
	s := &Step{
		Name:  spec.Name,
		Index: index,
		Spec:  spec,
		guard: guard{raw: spec.If, evaluator: evaluator},
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("step%d", index+1)
	}

	uses := spec.Uses
	script := s.scriptBody()

	switch {
	case strings.HasPrefix(uses, "./"):
		s.IsActionRef = true
	case strings.HasPrefix(uses, "actions/checkout"):
		if ref, ok := spec.With["ref"]; ok {
			s.IsCheckout = true
			s.Metadata = fmt.Sprintf("%v", ref)
		}
	}

	if script != "" {
		s.IsScript = true
	}

	s.IsGate = matchesAction(uses, gateActions) ||
		containsAny(script, constants.GateScriptMarkers)
	s.IsSink = matchesAction(uses, constants.SinkActions) ||
		containsAny(script, constants.SinkScriptMarkers)
	return s
}

// scriptBody returns the inline executable body of the step: the run
// block, or the script input of a github-script invocation.
func (s *Step) scriptBody() string {
	if s.Spec.Run != "" {
		return s.Spec.Run
	}
	if strings.HasPrefix(s.Spec.Uses, "actions/github-script") {
		if script, ok := s.Spec.With["script"].(string); ok {
			return script
		}
	}
	return ""
}

// Tokens extracts every distinct context-variable reference from the
// step's script body, in first-appearance order. Non-script steps return
// nil.
func (s *Step) Tokens() []string {
	if !s.IsScript {
		return nil
	}
	return ExtractTokens(s.scriptBody())
}

func matchesAction(uses string, actions []string) bool {
	if uses == "" {
		return false
	}
	name := uses
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	for _, a := range actions {
		if name == a || strings.HasPrefix(name, a+"/") {
			return true
		}
	}
	return false
}

func containsAny(body string, markers []string) bool {
	if body == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}
