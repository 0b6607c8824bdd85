package expr

import (
	"strconv"
	"strings"

	ferrors "github.com/harekrishnarai/forkrisk/pkg/errors"
)

// Parse converts a raw conditional expression into an AST. The input may or
// may not carry the ${{ ... }} wrapper. A non-nil error means the input is
// not a well-formed expression; callers treat the guard as unresolved, they
// must not abort analysis of the surrounding file.
func Parse(input string) (Node, error) {
	node, err := parseExpression(input)
	if err != nil {
		return nil, ferrors.NewExpressionError("invalid expression", err, input)
	}
	return node, nil
}

func parseExpression(input string) (Node, error) {
	src := stripDelimiters(input)
	if src == "" {
		return nil, &SyntaxError{0, "empty expression"}
	}
	tokens, err := (&lexer{input: src}).lex()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, &SyntaxError{p.peek().pos, "unexpected trailing input"}
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return token{}, &SyntaxError{tok.pos, "expected " + what}
	}
	return p.advance(), nil
}

// parseOr handles the lowest-precedence connective: a || b.
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().kind {
		case tokenEq:
			op = "=="
		case tokenNe:
			op = "!="
		case tokenLt:
			op = "<"
		case tokenLe:
			op = "<="
		case tokenGt:
			op = ">"
		case tokenGe:
			op = ">="
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Compare{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokenNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokenString:
		p.advance()
		return &StringLit{Value: tok.text}, nil
	case tokenNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			// hex and exponent forms the float parser rejects
			if iv, ierr := strconv.ParseInt(tok.text, 0, 64); ierr == nil {
				return &NumberLit{Value: float64(iv)}, nil
			}
			return nil, &SyntaxError{tok.pos, "malformed number literal"}
		}
		return &NumberLit{Value: v}, nil
	case tokenIdent:
		return p.parseIdent()
	}
	return nil, &SyntaxError{tok.pos, "expected expression"}
}

// parseIdent handles literals spelled as identifiers, function calls, and
// dotted/indexed context references.
func (p *parser) parseIdent() (Node, error) {
	tok := p.advance()
	switch strings.ToLower(tok.text) {
	case "true":
		return &BoolLit{Value: true}, nil
	case "false":
		return &BoolLit{Value: false}, nil
	case "null":
		return &NullLit{}, nil
	}

	if p.peek().kind == tokenLParen {
		return p.parseCall(tok)
	}

	ref := &ContextRef{Raw: tok.text, Parts: []string{strings.ToLower(tok.text)}}
	for {
		switch p.peek().kind {
		case tokenDot:
			p.advance()
			next := p.peek()
			if next.kind == tokenStar {
				p.advance()
				ref.Parts = append(ref.Parts, "*")
				ref.Raw += ".*"
				continue
			}
			part, err := p.expect(tokenIdent, "property name after '.'")
			if err != nil {
				return nil, err
			}
			ref.Parts = append(ref.Parts, strings.ToLower(part.text))
			ref.Raw += "." + part.text
		case tokenLBracket:
			p.advance()
			idx := p.peek()
			switch idx.kind {
			case tokenNumber, tokenStar:
				p.advance()
			case tokenString:
				p.advance()
				ref.Parts = append(ref.Parts, strings.ToLower(idx.text))
			default:
				return nil, &SyntaxError{idx.pos, "expected index inside '[]'"}
			}
			if _, err := p.expect(tokenRBracket, "']'"); err != nil {
				return nil, err
			}
			if idx.kind != tokenString {
				ref.Parts = append(ref.Parts, "*")
			}
			ref.Raw += "[" + idx.text + "]"
		default:
			return ref, nil
		}
	}
}

func (p *parser) parseCall(name token) (Node, error) {
	if _, err := p.expect(tokenLParen, "'('"); err != nil {
		return nil, err
	}
	call := &Call{Name: strings.ToLower(name.text)}
	if p.peek().kind == tokenRParen {
		p.advance()
		return call, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		switch p.peek().kind {
		case tokenComma:
			p.advance()
		case tokenRParen:
			p.advance()
			return call, nil
		default:
			return nil, &SyntaxError{p.peek().pos, "expected ',' or ')' in argument list"}
		}
	}
}
