package logic

import (
	"fmt"
	"strings"
)

// node is a parsed expression tree. Nodes evaluate strictly (no
// short-circuit) so that an unknown parameter anywhere in the formula
// is always detected, whichever branch would decide the result.
type node interface {
	eval(expr string, src Source) (bool, error)
}

// atomNode is one "Parameter|Option" predicate.
type atomNode struct {
	parameter string
	option    string
	pos       int
}

func (n *atomNode) eval(expr string, src Source) (bool, error) {
	got, ok := src.Option(n.parameter)
	if !ok {
		return false, &EvalError{
			Expr:    expr,
			Offset:  n.pos,
			Message: fmt.Sprintf("unknown parameter %q", n.parameter),
		}
	}
	return nfc(got) == n.option, nil
}

type notNode struct{ operand node }

func (n *notNode) eval(expr string, src Source) (bool, error) {
	v, err := n.operand.eval(expr, src)
	if err != nil {
		return false, err
	}
	return !v, nil
}

type andNode struct{ left, right node }

func (n *andNode) eval(expr string, src Source) (bool, error) {
	l, err := n.left.eval(expr, src)
	if err != nil {
		return false, err
	}
	r, err := n.right.eval(expr, src)
	if err != nil {
		return false, err
	}
	return l && r, nil
}

type orNode struct{ left, right node }

func (n *orNode) eval(expr string, src Source) (bool, error) {
	l, err := n.left.eval(expr, src)
	if err != nil {
		return false, err
	}
	r, err := n.right.eval(expr, src)
	if err != nil {
		return false, err
	}
	return l || r, nil
}

// parser is a recursive-descent parser over the token stream.
//
// Grammar:
//
//	expr    = term { "||" term }
//	term    = unary { "&&" unary }
//	unary   = "!" unary | primary
//	primary = "(" expr ")" | ATOM
type parser struct {
	expr string
	toks []token
	idx  int
}

// Parse parses a downselect expression into an evaluable tree.
// The returned error, if any, is an *EvalError.
func Parse(expr string) (node, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expr, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.idx != len(p.toks) {
		return nil, p.errorAt(p.toks[p.idx].pos, "unexpected trailing input")
	}
	return root, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek(tokOr) {
		p.idx++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek(tokAnd) {
		p.idx++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek(tokNot) {
		p.idx++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.idx >= len(p.toks) {
		return nil, p.errorAt(len(p.expr), "unexpected end of expression")
	}
	tok := p.toks[p.idx]
	switch tok.kind {
	case tokLParen:
		p.idx++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.peek(tokRParen) {
			return nil, p.errorAt(len(p.expr), "missing closing parenthesis")
		}
		p.idx++
		return inner, nil
	case tokAtom:
		p.idx++
		return p.parseAtom(tok)
	default:
		return nil, p.errorAt(tok.pos, "expected atom or group")
	}
}

// parseAtom splits an atom token at its first pipe. Parameter names may
// not contain a pipe; option values may (everything after the first
// separator belongs to the option).
func (p *parser) parseAtom(tok token) (node, error) {
	param, option, found := strings.Cut(tok.text, "|")
	if !found {
		return nil, p.errorAt(tok.pos, fmt.Sprintf("atom %q is missing the parameter|option separator", tok.text))
	}
	param = strings.TrimSpace(param)
	option = strings.TrimSpace(option)
	if param == "" {
		return nil, p.errorAt(tok.pos, fmt.Sprintf("atom %q has an empty parameter name", tok.text))
	}
	if option == "" {
		return nil, p.errorAt(tok.pos, fmt.Sprintf("atom %q has an empty option name", tok.text))
	}
	return &atomNode{parameter: nfc(param), option: nfc(option), pos: tok.pos}, nil
}

func (p *parser) peek(kind tokenKind) bool {
	return p.idx < len(p.toks) && p.toks[p.idx].kind == kind
}

func (p *parser) errorAt(pos int, msg string) *EvalError {
	return &EvalError{Expr: p.expr, Offset: pos, Message: msg}
}
