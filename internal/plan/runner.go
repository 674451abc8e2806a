package plan

import (
	"context"
	"fmt"
	"log/slog"
)

// Applier mutates the simulation model with one measure step. The
// actual model transformation is an external collaborator; the runner
// only sequences it.
type Applier interface {
	Apply(ctx context.Context, step Step) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, step Step) error

// Apply implements Applier.
func (f ApplierFunc) Apply(ctx context.Context, step Step) error {
	return f(ctx, step)
}

// StepError reports a measure step that failed to apply. The failure is
// propagated as-is: no retry, no reordering, no partial continuation.
type StepError struct {
	Measure string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Measure, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Run applies the plan's steps through the applier and returns the
// measures applied, in application order.
//
// Application order is the plan's own order unless override is
// non-empty: then steps named by override run first, in the override's
// sequence, and steps the override does not name follow in plan order.
// Override names not present in the plan are skipped with a debug log
// (the descriptor may cover a superset workflow). The override affects
// application only - resolution and merge remain parameter-order
// driven.
//
// The first failing step aborts the run with a *StepError.
func Run(ctx context.Context, p *Plan, override []string, applier Applier) ([]string, error) {
	steps := orderSteps(p, override)
	applied := make([]string, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return applied, &StepError{Measure: step.Measure, Err: err}
		}
		slog.Debug("applying step", "measure", step.Measure, "arguments", len(step.Args))
		if err := applier.Apply(ctx, step); err != nil {
			return applied, &StepError{Measure: step.Measure, Err: err}
		}
		applied = append(applied, step.Measure)
	}
	return applied, nil
}

func orderSteps(p *Plan, override []string) []Step {
	steps := p.Steps()
	if len(override) == 0 {
		return steps
	}

	byMeasure := make(map[string]Step, len(steps))
	for _, s := range steps {
		byMeasure[s.Measure] = s
	}

	ordered := make([]Step, 0, len(steps))
	named := make(map[string]bool, len(override))
	for _, measure := range override {
		step, ok := byMeasure[measure]
		if !ok {
			slog.Debug("workflow order names a measure absent from the plan", "measure", measure)
			continue
		}
		if named[measure] {
			continue
		}
		named[measure] = true
		ordered = append(ordered, step)
	}
	for _, s := range steps {
		if !named[s.Measure] {
			ordered = append(ordered, s)
		}
	}
	return ordered
}
