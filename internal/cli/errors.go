package cli

import (
	"errors"

	"github.com/stocksim/stockplan/internal/buildstock"
	"github.com/stocksim/stockplan/internal/logic"
	"github.com/stocksim/stockplan/internal/lookup"
	"github.com/stocksim/stockplan/internal/plan"
	"github.com/stocksim/stockplan/internal/weight"
	"github.com/stocksim/stockplan/internal/workflow"
)

// classify maps a resolution error onto its taxonomy kind and the exit
// code the process should report. Malformed user input (expressions,
// descriptors, weight configuration) is a command error; failures
// against valid input are resolution failures.
func classify(err error) (kind string, code int) {
	var (
		notFound   *buildstock.NotFoundError
		orderErr   *lookup.OrderError
		unknownOpt *lookup.UnknownOptionError
		evalErr    *logic.EvalError
		stepErr    *plan.StepError
		cfgErr     *weight.ConfigError
		descErr    *workflow.DescriptorError
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found", ExitFailure
	case errors.As(err, &orderErr):
		return "order_resolution", ExitFailure
	case errors.As(err, &unknownOpt):
		return "unknown_option", ExitFailure
	case errors.As(err, &evalErr):
		return "evaluation", ExitCommandError
	case errors.As(err, &stepErr):
		return "step_application", ExitFailure
	case errors.As(err, &cfgErr):
		return "configuration", ExitCommandError
	case errors.As(err, &descErr):
		return "configuration", ExitCommandError
	default:
		return "internal", ExitFailure
	}
}

// reportError prints err through the formatter and returns the
// ExitError the command should surface.
func reportError(f *OutputFormatter, err error) error {
	kind, code := classify(err)
	if outErr := f.Error(kind, err.Error()); outErr != nil {
		return WrapExitError(code, "write output", outErr)
	}
	return &ExitError{Code: code, Message: kind, Err: err}
}
