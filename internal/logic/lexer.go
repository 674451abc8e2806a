package logic

import "strings"

// tokenKind discriminates lexer output.
type tokenKind int

const (
	tokAtom tokenKind = iota
	tokNot
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

// token is one lexical unit of a downselect expression.
type token struct {
	kind tokenKind
	text string // atom text, trimmed; empty for operators
	pos  int    // byte offset of the token start in the expression
}

// lex splits a downselect expression into tokens.
//
// The only subtlety is `|`: a single pipe separates a parameter from an
// option inside an atom, while a double pipe is the OR operator. The
// lexer therefore scans byte-wise and only treats `||` as structural.
// `!` is an operator only where an atom has not started yet, so option
// text may contain it.
func lex(expr string) ([]token, error) {
	var toks []token
	var buf strings.Builder
	bufStart := -1

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			toks = append(toks, token{kind: tokAtom, text: text, pos: bufStart})
		}
		buf.Reset()
		bufStart = -1
	}

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '&' && i+1 < len(expr) && expr[i+1] == '&':
			flush()
			toks = append(toks, token{kind: tokAnd, pos: i})
			i++
		case c == '|' && i+1 < len(expr) && expr[i+1] == '|':
			flush()
			toks = append(toks, token{kind: tokOr, pos: i})
			i++
		case c == '(':
			flush()
			toks = append(toks, token{kind: tokLParen, pos: i})
		case c == ')':
			flush()
			toks = append(toks, token{kind: tokRParen, pos: i})
		case c == '!' && strings.TrimSpace(buf.String()) == "":
			buf.Reset()
			bufStart = -1
			toks = append(toks, token{kind: tokNot, pos: i})
		default:
			if bufStart < 0 {
				bufStart = i
			}
			buf.WriteByte(c)
		}
	}
	flush()

	if len(toks) == 0 {
		return nil, &EvalError{Expr: expr, Offset: -1, Message: "no tokens"}
	}
	return toks, nil
}
