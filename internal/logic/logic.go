// Package logic parses and evaluates downselect expressions.
//
// A downselect expression is a boolean formula over parameter/option
// atoms, used to decide whether a sampled building belongs to a
// filtered sub-population:
//
//	Vintage|<1950 && Location EPW|USA_TX_Houston.AMY2012.epw
//	!(Heating Fuel|Propane || Heating Fuel|Fuel Oil)
//
// An atom "Parameter|Option" is true iff the referenced parameter is
// assigned exactly that option. `!` binds tightest, `&&` binds tighter
// than `||`, parentheses group. Whitespace around operators is
// insignificant; whitespace inside parameter and option names is
// preserved.
//
// Evaluation is three-valued: Include, Exclude, or Invalid. Callers must
// not collapse Invalid into Exclude - an expression that cannot be
// evaluated is a fatal condition, not a filtered-out building.
package logic

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Verdict is the outcome of evaluating a downselect expression.
type Verdict int

const (
	// Include means the expression evaluated to true (or was empty).
	Include Verdict = iota
	// Exclude means the expression evaluated cleanly to false.
	Exclude
	// Invalid means the expression could not be evaluated. The error
	// returned alongside Invalid carries the diagnostic detail.
	Invalid
)

// String returns the verdict name for logs and CLI output.
func (v Verdict) String() string {
	switch v {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Source supplies the parameter assignments an expression is evaluated
// against. Implemented by buildstock.AssignmentSet (current-assignment
// mode) and by the registry's recorded-run view (results mode).
type Source interface {
	// Option returns the option assigned to a parameter, and whether
	// the parameter is known to the source at all.
	Option(parameter string) (string, bool)
}

// EvalError reports a downselect expression that could not be parsed or
// evaluated. The raw expression text is always included so the failure
// can be diagnosed without rerunning.
type EvalError struct {
	Expr    string // raw expression text
	Offset  int    // byte offset of the offending token, -1 if unknown
	Message string
}

func (e *EvalError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("downselect expression %q: %s (at offset %d)", e.Expr, e.Message, e.Offset)
	}
	return fmt.Sprintf("downselect expression %q: %s", e.Expr, e.Message)
}

// Evaluate parses expr and evaluates it against src.
//
// An empty or all-whitespace expression means "no filtering" and
// evaluates to Include. The returned error is non-nil iff the verdict
// is Invalid.
//
// Both sides of every atom comparison are NFC-normalized before the
// exact, case-sensitive match, so visually identical names compare
// equal regardless of their Unicode composition.
func Evaluate(expr string, src Source) (Verdict, error) {
	if strings.TrimSpace(expr) == "" {
		return Include, nil
	}
	root, err := Parse(expr)
	if err != nil {
		return Invalid, err
	}
	ok, err := root.eval(expr, src)
	if err != nil {
		return Invalid, err
	}
	if ok {
		return Include, nil
	}
	return Exclude, nil
}

// Validate parses expr without evaluating it, returning the parse error
// if any. Used by callers that want to reject a malformed expression
// before scanning a population.
func Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := Parse(expr)
	return err
}

// nfc normalizes a name or option value for comparison.
func nfc(s string) string {
	return norm.NFC.String(s)
}
