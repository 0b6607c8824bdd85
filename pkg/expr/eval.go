package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// NotImplementedError is returned when an expression uses a built-in
// function the adversarial model does not cover. Callers treat the guard as
// unresolved, exactly like a parse failure.
type NotImplementedError struct {
	Function string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("expression function %q is not modeled", e.Function)
}

// Evaluator decides whether an expression can be made true by an actor who
// fully controls every value originating from pull-request, fork, issue, or
// comment context but controls nothing sourced from secrets, the base
// branch, or prior trusted steps. The result is a bounded approximation,
// not constraint solving: true means "an adversary can make this guard
// pass", false means the guard behaves as a protective gate.
type Evaluator struct {
	riskyTriggers map[string]bool
}

// NewEvaluator builds an evaluator. riskyTriggers is the trigger set used
// to decide whether a github.event_name comparison is satisfiable; an
// attacker picks which declared event fires, but only risky events are
// reachable without write access.
func NewEvaluator(riskyTriggers []string) *Evaluator {
	set := make(map[string]bool, len(riskyTriggers))
	for _, t := range riskyTriggers {
		set[strings.ToLower(t)] = true
	}
	return &Evaluator{riskyTriggers: set}
}

// Evaluate reports whether the expression is satisfiable by adversarial
// input alone.
func (e *Evaluator) Evaluate(node Node) (bool, error) {
	out, err := e.eval(node)
	if err != nil {
		return false, err
	}
	return out.canTrue, nil
}

// outcome is the pair of reachable boolean results under worst-case
// substitution of adversary-controlled leaves.
type outcome struct {
	canTrue  bool
	canFalse bool
}

func fixed(v bool) outcome {
	return outcome{canTrue: v, canFalse: !v}
}

var free = outcome{canTrue: true, canFalse: true}

type valueKind int

const (
	valueLiteral valueKind = iota
	valueControlled
	valueOpaque
)

// value describes a comparison operand: a concrete literal, an
// adversary-controlled unknown, or a fixed-but-unknown quantity.
type value struct {
	kind valueKind
	lit  interface{} // string, float64, bool, or nil when kind == valueLiteral
	ref  *ContextRef // set for context references
}

// controlledPrefixes are normalized context paths rooted in data an
// external actor can author: the PR head, commit contents, issue and
// comment bodies, discussion text, fork metadata.
var controlledPrefixes = []string{
	"github.head_ref",
	"github.event.comment",
	"github.event.issue",
	"github.event.pull_request",
	"github.event.review",
	"github.event.review_comment",
	"github.event.discussion",
	"github.event.commits",
	"github.event.head_commit",
	"github.event.fork",
	"github.event.sender",
	"github.event.workflow_run.head_branch",
	"github.event.workflow_run.head_commit",
	"github.event.workflow_run.head_repository",
	"github.event.workflow_run.pull_requests",
	"github.event.workflow_run.display_title",
	"github.event.inputs",
	"github.event.client_payload",
}

// opaqueOverrides carve fixed values back out of controlled subtrees: the
// platform computes author_association and merge state, and base.* always
// describes the target repository.
var opaqueOverrides = []string{
	"github.event.pull_request.author_association",
	"github.event.pull_request.merged",
	"github.event.pull_request.base",
	"github.event.issue.author_association",
	"github.event.comment.author_association",
	"github.event.review.author_association",
}

// IsUserControlled reports whether a dotted context path is rooted in data
// an external actor can author. Used by token filtering in addition to
// guard evaluation.
func IsUserControlled(path string) bool {
	return classify(strings.ToLower(strings.TrimSpace(path))) == valueControlled
}

func classify(path string) valueKind {
	for _, o := range opaqueOverrides {
		if path == o || strings.HasPrefix(path, o+".") {
			return valueOpaque
		}
	}
	for _, c := range controlledPrefixes {
		if path == c || strings.HasPrefix(path, c+".") {
			return valueControlled
		}
	}
	return valueOpaque
}

func (e *Evaluator) eval(node Node) (outcome, error) {
	switch n := node.(type) {
	case *BoolLit:
		return fixed(n.Value), nil
	case *StringLit:
		return fixed(n.Value != ""), nil
	case *NumberLit:
		return fixed(n.Value != 0), nil
	case *NullLit:
		return fixed(false), nil
	case *ContextRef:
		if classify(n.Path()) == valueControlled {
			return free, nil
		}
		// Fixed but unknown: cannot be forced true by the adversary.
		return outcome{canTrue: false, canFalse: true}, nil
	case *Not:
		inner, err := e.eval(n.Operand)
		if err != nil {
			return outcome{}, err
		}
		return outcome{canTrue: inner.canFalse, canFalse: inner.canTrue}, nil
	case *Logical:
		left, err := e.eval(n.Left)
		if err != nil {
			return outcome{}, err
		}
		right, err := e.eval(n.Right)
		if err != nil {
			return outcome{}, err
		}
		if n.Op == "&&" {
			return outcome{
				canTrue:  left.canTrue && right.canTrue,
				canFalse: left.canFalse || right.canFalse,
			}, nil
		}
		return outcome{
			canTrue:  left.canTrue || right.canTrue,
			canFalse: left.canFalse && right.canFalse,
		}, nil
	case *Compare:
		return e.compare(n)
	case *Call:
		return e.callOutcome(n)
	}
	return outcome{}, fmt.Errorf("unknown expression node %T", node)
}

func (e *Evaluator) compare(n *Compare) (outcome, error) {
	left, err := e.value(n.Left)
	if err != nil {
		return outcome{}, err
	}
	right, err := e.value(n.Right)
	if err != nil {
		return outcome{}, err
	}

	// github.event_name comparisons: the attacker chooses which declared
	// event fires, but only risky events are reachable from outside.
	if out, ok := e.eventNameCompare(n.Op, left, right); ok {
		return out, nil
	}
	if out, ok := e.eventNameCompare(n.Op, right, left); ok {
		return out, nil
	}

	if left.kind == valueControlled || right.kind == valueControlled {
		return free, nil
	}
	if left.kind == valueLiteral && right.kind == valueLiteral {
		return fixed(compareLiterals(n.Op, left.lit, right.lit)), nil
	}
	// An opaque quantity against anything: not forceable.
	return outcome{canTrue: false, canFalse: true}, nil
}

func (e *Evaluator) eventNameCompare(op string, ref, lit value) (outcome, bool) {
	if ref.ref == nil || ref.ref.Path() != "github.event_name" {
		return outcome{}, false
	}
	s, ok := lit.lit.(string)
	if !ok || lit.kind != valueLiteral {
		return outcome{}, false
	}
	switch op {
	case "==":
		return outcome{canTrue: e.riskyTriggers[strings.ToLower(s)], canFalse: true}, true
	case "!=":
		return free, true
	}
	return outcome{}, false
}

func compareLiterals(op string, left, right interface{}) bool {
	lnum, lok := toNumber(left)
	rnum, rok := toNumber(right)
	if lok && rok {
		switch op {
		case "==":
			return lnum == rnum
		case "!=":
			return lnum != rnum
		case "<":
			return lnum < rnum
		case "<=":
			return lnum <= rnum
		case ">":
			return lnum > rnum
		case ">=":
			return lnum >= rnum
		}
	}
	ls := literalString(left)
	rs := literalString(right)
	switch op {
	case "==":
		return strings.EqualFold(ls, rs)
	case "!=":
		return !strings.EqualFold(ls, rs)
	case "<":
		return ls < rs
	case "<=":
		return ls <= rs
	case ">":
		return ls > rs
	case ">=":
		return ls >= rs
	}
	return false
}

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}

func literalString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.ToLower(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func (e *Evaluator) callOutcome(n *Call) (outcome, error) {
	switch n.Name {
	case "always":
		return fixed(true), nil
	case "success", "failure", "cancelled":
		// Run-status functions depend on earlier steps; an adversary whose
		// code already runs can usually steer them either way.
		return free, nil
	case "contains", "startswith", "endswith":
		return e.stringPredicate(n)
	case "format", "join", "tojson":
		v, err := e.value(n)
		if err != nil {
			return outcome{}, err
		}
		if v.kind == valueControlled {
			return free, nil
		}
		return outcome{canTrue: false, canFalse: true}, nil
	}
	return outcome{}, &NotImplementedError{Function: n.Name}
}

func (e *Evaluator) stringPredicate(n *Call) (outcome, error) {
	if len(n.Args) != 2 {
		return outcome{}, &SyntaxError{0, n.Name + " expects two arguments"}
	}
	haystack, err := e.value(n.Args[0])
	if err != nil {
		return outcome{}, err
	}
	needle, err := e.value(n.Args[1])
	if err != nil {
		return outcome{}, err
	}
	if haystack.kind == valueControlled || needle.kind == valueControlled {
		return free, nil
	}
	if haystack.kind == valueLiteral && needle.kind == valueLiteral {
		hs := literalString(haystack.lit)
		ns := literalString(needle.lit)
		var r bool
		switch n.Name {
		case "contains":
			r = strings.Contains(hs, ns)
		case "startswith":
			r = strings.HasPrefix(hs, ns)
		case "endswith":
			r = strings.HasSuffix(hs, ns)
		}
		return fixed(r), nil
	}
	return outcome{canTrue: false, canFalse: true}, nil
}

// value resolves a node to a comparison operand description.
func (e *Evaluator) value(node Node) (value, error) {
	switch n := node.(type) {
	case *StringLit:
		return value{kind: valueLiteral, lit: n.Value}, nil
	case *NumberLit:
		return value{kind: valueLiteral, lit: n.Value}, nil
	case *BoolLit:
		return value{kind: valueLiteral, lit: n.Value}, nil
	case *NullLit:
		return value{kind: valueLiteral, lit: nil}, nil
	case *ContextRef:
		return value{kind: classify(n.Path()), ref: n}, nil
	case *Call:
		switch n.Name {
		case "format", "join", "tojson", "contains", "startswith", "endswith":
			kind := valueOpaque
			allLiteral := true
			for _, arg := range n.Args {
				v, err := e.value(arg)
				if err != nil {
					return value{}, err
				}
				if v.kind == valueControlled {
					kind = valueControlled
				}
				if v.kind != valueLiteral {
					allLiteral = false
				}
			}
			if kind == valueControlled {
				return value{kind: valueControlled}, nil
			}
			if allLiteral && (n.Name == "contains" || n.Name == "startswith" || n.Name == "endswith") {
				out, err := e.stringPredicate(n)
				if err != nil {
					return value{}, err
				}
				return value{kind: valueLiteral, lit: out.canTrue}, nil
			}
			return value{kind: valueOpaque}, nil
		case "always", "success", "failure", "cancelled":
			return value{kind: valueOpaque}, nil
		}
		return value{}, &NotImplementedError{Function: n.Name}
	default:
		out, err := e.eval(node)
		if err != nil {
			return value{}, err
		}
		if out.canTrue && out.canFalse {
			return value{kind: valueControlled}, nil
		}
		return value{kind: valueLiteral, lit: out.canTrue}, nil
	}
}
