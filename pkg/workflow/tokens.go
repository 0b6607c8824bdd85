package workflow

import (
	"regexp"
	"strings"

	"github.com/harekrishnarai/forkrisk/pkg/constants"
	"github.com/harekrishnarai/forkrisk/pkg/expr"
)

// expressionPattern matches one ${{ ... }} marker inside a script body.
var expressionPattern = regexp.MustCompile(`\$\{\{([^}]*)\}\}`)

// contextRefPattern pulls dotted context references out of an expression
// body. Bracket index segments ride along and are normalized afterwards.
var contextRefPattern = regexp.MustCompile(`(github|env|steps|needs|matrix|inputs|secrets|vars)(?:\.[A-Za-z0-9_\*-]+|\[[^\]]*\])+`)

var bracketIndexPattern = regexp.MustCompile(`\[[^\]]*\]`)

// ExtractTokens returns every distinct context reference used inside the
// ${{ }} markers of a script body, in first-appearance order.
func ExtractTokens(body string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, m := range expressionPattern.FindAllStringSubmatch(body, -1) {
		for _, ref := range contextRefPattern.FindAllString(m[1], -1) {
			tok := normalizeToken(ref)
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func normalizeToken(ref string) string {
	return bracketIndexPattern.ReplaceAllString(ref, "")
}

// FilterTokens keeps only tokens an external actor can influence: refs
// into user-controlled context, env indirections (resolved later against
// the three environment scopes), and step/needs outputs whose name
// suggests an attacker-derived commit or ref.
func FilterTokens(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		switch {
		case expr.IsUserControlled(tok):
			out = append(out, tok)
		case strings.HasPrefix(tok, "env."):
			out = append(out, tok)
		case IsSuspiciousOutput(tok):
			out = append(out, tok)
		}
	}
	return out
}

// IsSuspiciousOutput reports whether a token references a step or needs
// output whose leaf name usually carries an attacker-derived value, e.g.
// steps.get-branch.outputs.sha populated from an API lookup of the PR.
func IsSuspiciousOutput(token string) bool {
	lower := strings.ToLower(token)
	if !strings.HasPrefix(lower, "steps.") && !strings.HasPrefix(lower, "needs.") {
		return false
	}
	parts := strings.Split(lower, ".")
	if len(parts) < 4 || parts[2] != "outputs" {
		return false
	}
	leaf := parts[len(parts)-1]
	for _, name := range constants.SuspiciousOutputNames {
		if leaf == name || strings.Contains(leaf, name) {
			return true
		}
	}
	return false
}

// ResolveEnvToken drops an env.-rooted token when the named variable is
// declared in the given scope with a literal value carrying no embedded
// expression marker. It returns true when the token survives this scope.
func ResolveEnvToken(token string, env map[string]interface{}) bool {
	if !strings.HasPrefix(token, "env.") || len(env) == 0 {
		return true
	}
	name := strings.SplitN(token, ".", 3)[1]
	value, declared := env[name]
	if !declared {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.Contains(s, "${{")
	}
	// Numbers, booleans and null are statically safe.
	return false
}
