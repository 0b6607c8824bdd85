// Package expr implements the GitHub Actions `${{ ... }}` conditional
// expression mini-language: a lexer, a recursive-descent parser producing a
// small AST, and an adversarial evaluator that decides whether an external
// actor who controls fork/PR/issue/comment context values can make an `if`
// guard pass.
package expr

// Node is a parsed expression tree node.
type Node interface {
	node()
}

// StringLit is a single-quoted string literal.
type StringLit struct {
	Value string
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

// BoolLit is a true/false literal.
type BoolLit struct {
	Value bool
}

// NullLit is the null literal.
type NullLit struct{}

// ContextRef is a dotted (and possibly indexed) context property access,
// e.g. github.event.comment.body or github.event.commits[0].message.
// Parts holds the normalized lower-case path segments; index accesses are
// normalized to "*" so that commits[0].message and commits[7].message
// resolve to the same path.
type ContextRef struct {
	Raw   string
	Parts []string
}

// Not is the unary ! operator.
type Not struct {
	Operand Node
}

// Compare is a binary comparison: == != < <= > >=.
type Compare struct {
	Op    string
	Left  Node
	Right Node
}

// Logical is a binary boolean connective: && or ||.
type Logical struct {
	Op    string
	Left  Node
	Right Node
}

// Call is a built-in function invocation, e.g. contains(a, b).
type Call struct {
	Name string
	Args []Node
}

func (*StringLit) node()  {}
func (*NumberLit) node()  {}
func (*BoolLit) node()    {}
func (*NullLit) node()    {}
func (*ContextRef) node() {}
func (*Not) node()        {}
func (*Compare) node()    {}
func (*Logical) node()    {}
func (*Call) node()       {}

// Path returns the normalized dotted path of a context reference.
func (c *ContextRef) Path() string {
	out := ""
	for i, p := range c.Parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
