package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenDot
	tokenComma
	tokenStar
	tokenNot
	tokenAnd
	tokenOr
	tokenEq
	tokenNe
	tokenLt
	tokenLe
	tokenGt
	tokenGe
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError is returned when an expression cannot be tokenized or parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression syntax error at offset %d: %s", e.Pos, e.Msg)
}

type lexer struct {
	input string
	pos   int
}

// stripDelimiters removes a surrounding ${{ ... }} wrapper if present.
// Workflow `if` values appear both bare and wrapped.
func stripDelimiters(input string) string {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "${{") && strings.HasSuffix(s, "}}") {
		return strings.TrimSpace(s[3 : len(s)-2])
	}
	return s
}

func (l *lexer) lex() ([]token, error) {
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: start}, nil
	}

	c := l.input[l.pos]
	switch c {
	case '(':
		l.pos++
		return token{tokenLParen, "(", start}, nil
	case ')':
		l.pos++
		return token{tokenRParen, ")", start}, nil
	case '[':
		l.pos++
		return token{tokenLBracket, "[", start}, nil
	case ']':
		l.pos++
		return token{tokenRBracket, "]", start}, nil
	case '.':
		l.pos++
		return token{tokenDot, ".", start}, nil
	case ',':
		l.pos++
		return token{tokenComma, ",", start}, nil
	case '*':
		l.pos++
		return token{tokenStar, "*", start}, nil
	case '\'':
		return l.lexString()
	case '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenNe, "!=", start}, nil
		}
		l.pos++
		return token{tokenNot, "!", start}, nil
	case '=':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenEq, "==", start}, nil
		}
		return token{}, &SyntaxError{start, "unexpected '=', did you mean '=='"}
	case '&':
		if l.peekAt(1) == '&' {
			l.pos += 2
			return token{tokenAnd, "&&", start}, nil
		}
		return token{}, &SyntaxError{start, "unexpected '&', did you mean '&&'"}
	case '|':
		if l.peekAt(1) == '|' {
			l.pos += 2
			return token{tokenOr, "||", start}, nil
		}
		return token{}, &SyntaxError{start, "unexpected '|', did you mean '||'"}
	case '<':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenLe, "<=", start}, nil
		}
		l.pos++
		return token{tokenLt, "<", start}, nil
	case '>':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenGe, ">=", start}, nil
		}
		l.pos++
		return token{tokenGt, ">", start}, nil
	}

	if isDigit(c) || (c == '-' && isDigit(l.peekAt(1))) {
		return l.lexNumber()
	}
	if isIdentStart(c) {
		return l.lexIdent()
	}
	return token{}, &SyntaxError{start, fmt.Sprintf("unexpected character %q", c)}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\'' {
			// '' is an escaped quote inside a string literal
			if l.peekAt(1) == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return token{tokenString, sb.String(), start}, nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, &SyntaxError{start, "unterminated string literal"}
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.' ||
		l.input[l.pos] == 'e' || l.input[l.pos] == 'E' || l.input[l.pos] == 'x') {
		l.pos++
	}
	return token{tokenNumber, l.input[start:l.pos], start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return token{tokenIdent, l.input[start:l.pos], start}, nil
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}
