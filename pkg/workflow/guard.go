package workflow

import (
	"github.com/harekrishnarai/forkrisk/pkg/expr"
)

// GuardVerdict is the tri-state label attached to a raw `if` condition
// after adversarial evaluation.
type GuardVerdict int

const (
	// GuardNone means the job or step declares no condition.
	GuardNone GuardVerdict = iota
	// GuardEvaluated means an adversary can make the condition pass; it
	// offers no protection.
	GuardEvaluated
	// GuardRestricted means the condition cannot be satisfied by
	// adversary-controlled input alone; it acts as a gate.
	GuardRestricted
	// GuardUnresolved means parsing or evaluation failed; the raw text is
	// retained and no verdict is asserted.
	GuardUnresolved
)

// GuardAnnotation pairs a verdict with the original condition text.
type GuardAnnotation struct {
	Verdict GuardVerdict
	Raw     string
}

// String renders the annotation the way results report it: the raw text
// prefixed with the verdict, or unchanged when unresolved.
func (a GuardAnnotation) String() string {
	switch a.Verdict {
	case GuardEvaluated:
		return "EVALUATED: " + a.Raw
	case GuardRestricted:
		return "RESTRICTED: " + a.Raw
	case GuardUnresolved:
		return a.Raw
	}
	return ""
}

// Satisfiable reports whether an adversary can pass the guard. An absent
// guard is trivially passable.
func (a GuardAnnotation) Satisfiable() bool {
	return a.Verdict == GuardNone || a.Verdict == GuardEvaluated
}

// Restrictive reports whether the guard blocks adversarial input.
func (a GuardAnnotation) Restrictive() bool {
	return a.Verdict == GuardRestricted
}

// guard is the shared evaluate-once capability embedded by Job and Step.
// The annotation is computed lazily on first access and memoized into the
// instance; a guarded value must therefore not be shared across concurrent
// analyses.
type guard struct {
	raw       string
	evaluator *expr.Evaluator
	evaluated bool
	ann       GuardAnnotation
}

// EvaluateGuard parses and adversarially evaluates the raw condition,
// memoizing the annotation. Parse failures and unmodeled constructs both
// degrade to the unresolved verdict with the raw text preserved; they are
// never propagated past this boundary.
func (g *guard) EvaluateGuard() GuardAnnotation {
	if g.evaluated {
		return g.ann
	}
	g.evaluated = true

	if g.raw == "" {
		g.ann = GuardAnnotation{Verdict: GuardNone}
		return g.ann
	}

	g.ann = GuardAnnotation{Verdict: GuardUnresolved, Raw: g.raw}
	node, err := expr.Parse(g.raw)
	if err != nil {
		return g.ann
	}
	ok, err := g.evaluator.Evaluate(node)
	if err != nil {
		// Unmodeled function: same unresolved policy as a parse failure.
		return g.ann
	}
	if ok {
		g.ann.Verdict = GuardEvaluated
	} else {
		g.ann.Verdict = GuardRestricted
	}
	return g.ann
}

// RawCondition returns the declared condition text, empty when absent.
func (g *guard) RawCondition() string {
	return g.raw
}
