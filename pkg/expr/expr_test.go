package expr

import (
	"errors"
	"testing"
)

func TestParseComparison(t *testing.T) {
	node, err := Parse("${{ github.event_name == 'pull_request_target' }}")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cmp, ok := node.(*Compare)
	if !ok {
		t.Fatalf("Expected *Compare, got %T", node)
	}
	if cmp.Op != "==" {
		t.Errorf("Expected op ==, got %s", cmp.Op)
	}

	ref, ok := cmp.Left.(*ContextRef)
	if !ok {
		t.Fatalf("Expected *ContextRef on the left, got %T", cmp.Left)
	}
	if ref.Path() != "github.event_name" {
		t.Errorf("Expected path github.event_name, got %s", ref.Path())
	}

	lit, ok := cmp.Right.(*StringLit)
	if !ok {
		t.Fatalf("Expected *StringLit on the right, got %T", cmp.Right)
	}
	if lit.Value != "pull_request_target" {
		t.Errorf("Expected literal pull_request_target, got %s", lit.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	// && binds tighter than ||.
	node, err := Parse("a == 'x' || b == 'y' && c == 'z'")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	or, ok := node.(*Logical)
	if !ok || or.Op != "||" {
		t.Fatalf("Expected top-level ||, got %T", node)
	}
	and, ok := or.Right.(*Logical)
	if !ok || and.Op != "&&" {
		t.Fatalf("Expected && on the right of ||, got %T", or.Right)
	}
}

func TestParseNotAndParens(t *testing.T) {
	node, err := Parse("!(github.event.pull_request.merged == true)")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := node.(*Not); !ok {
		t.Fatalf("Expected *Not, got %T", node)
	}
}

func TestParseFunctionCall(t *testing.T) {
	node, err := Parse("contains(github.event.comment.body, '/deploy')")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	call, ok := node.(*Call)
	if !ok {
		t.Fatalf("Expected *Call, got %T", node)
	}
	if call.Name != "contains" {
		t.Errorf("Expected lowercased name contains, got %s", call.Name)
	}
	if len(call.Args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(call.Args))
	}
}

func TestParseIndexNormalized(t *testing.T) {
	node, err := Parse("github.event.commits[0].message == 'x'")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cmp := node.(*Compare)
	ref := cmp.Left.(*ContextRef)
	if ref.Path() != "github.event.commits.*.message" {
		t.Errorf("Expected wildcard index path, got %s", ref.Path())
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"github.event_name ==",
		"'unterminated",
		"a == 'x' &&",
		"(a == 'x'",
	}
	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Errorf("Expected parse error for %q", input)
		}
	}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator([]string{"pull_request_target", "issue_comment", "workflow_run"})
}

func evaluate(t *testing.T, input string) bool {
	t.Helper()
	node, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", input, err)
	}
	result, err := newTestEvaluator().Evaluate(node)
	if err != nil {
		t.Fatalf("Evaluate(%q) failed: %v", input, err)
	}
	return result
}

func TestEvaluateSatisfiable(t *testing.T) {
	satisfiable := []string{
		// Controlled contexts can take any value.
		"github.event.pull_request.head.ref == 'main'",
		"github.head_ref == 'feature'",
		"contains(github.event.comment.body, '/run-tests')",
		"startswith(github.event.issue.title, 'release')",
		// event_name against a risky trigger.
		"github.event_name == 'pull_request_target'",
		"github.event_name != 'push'",
		// Controlled disjunct rescues a restrictive one.
		"github.event.pull_request.author_association == 'OWNER' || github.event.pull_request.head.ref == 'x'",
		"always()",
		"success()",
	}
	for _, input := range satisfiable {
		if !evaluate(t, input) {
			t.Errorf("Expected %q to be satisfiable", input)
		}
	}
}

func TestEvaluateRestrictive(t *testing.T) {
	restrictive := []string{
		// Platform-computed values resist forcing.
		"github.event.pull_request.author_association == 'OWNER'",
		"github.event.pull_request.merged == true",
		"github.event.pull_request.base.ref == 'main'",
		// event_name against a non-risky trigger is unreachable.
		"github.event_name == 'push'",
		// Restrictive conjunct poisons the conjunction.
		"github.event.pull_request.head.ref == 'x' && github.event.pull_request.author_association == 'MEMBER'",
		// Secrets and vars are never controlled.
		"secrets.deploy_key == 'x'",
		"vars.environment == 'prod'",
		"false",
	}
	for _, input := range restrictive {
		if evaluate(t, input) {
			t.Errorf("Expected %q to be restrictive", input)
		}
	}
}

func TestEvaluateNegation(t *testing.T) {
	// Negating a restrictive guard makes it satisfiable and vice versa.
	if !evaluate(t, "!(github.event.pull_request.merged == true)") {
		t.Error("Negated restrictive guard should be satisfiable")
	}
	if !evaluate(t, "!(github.event.pull_request.head.ref == 'main')") {
		t.Error("Negated controlled comparison is still free")
	}
	if evaluate(t, "!true") {
		t.Error("!true must be false")
	}
}

func TestEvaluateLiteralFolding(t *testing.T) {
	if !evaluate(t, "'a' == 'A'") {
		t.Error("String comparison must be case-insensitive")
	}
	if !evaluate(t, "3 > 2") {
		t.Error("Numeric comparison failed")
	}
	if evaluate(t, "contains('release', 'debug')") {
		t.Error("Literal contains must fold to false")
	}
}

func TestEvaluateUnmodeledFunction(t *testing.T) {
	node, err := Parse("hashFiles('**/go.sum') != ''")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = newTestEvaluator().Evaluate(node)
	var nie *NotImplementedError
	if !errors.As(err, &nie) {
		t.Fatalf("Expected NotImplementedError, got %v", err)
	}
	if nie.Function != "hashfiles" {
		t.Errorf("Expected function hashfiles, got %s", nie.Function)
	}
}

func TestIsUserControlled(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"github.event.pull_request.head.ref", true},
		{"github.event.comment.body", true},
		{"github.head_ref", true},
		{"github.event.workflow_run.head_branch", true},
		{"github.event.pull_request.author_association", false},
		{"github.event.pull_request.base.ref", false},
		{"github.actor", false},
		{"secrets.token", false},
	}
	for _, tt := range tests {
		if got := IsUserControlled(tt.path); got != tt.want {
			t.Errorf("IsUserControlled(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
