// Package resolver turns one sampled building id into an ordered,
// merged execution plan, applies the optional downselect filter, runs
// the plan, and computes the building's population-representation
// weight.
//
// One Resolve call is one run: it loads its own assignment set and
// builds its own plan from scratch. There is no state shared between
// runs, so separate runs may execute concurrently as long as the
// backing tables are not being rewritten underneath them.
//
// Every failure aborts the whole run. Nothing is retried and no partial
// plan is ever applied or recorded: a half-built model is worse than no
// model. Exclusion by the downselect expression is not a failure - it
// is a normal early halt, reported in the result.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stocksim/stockplan/internal/buildstock"
	"github.com/stocksim/stockplan/internal/logic"
	"github.com/stocksim/stockplan/internal/lookup"
	"github.com/stocksim/stockplan/internal/plan"
	"github.com/stocksim/stockplan/internal/registry"
	"github.com/stocksim/stockplan/internal/weight"
	"github.com/stocksim/stockplan/internal/workflow"
)

// Resolver wires the collaborators of one resolution pipeline. Store,
// Table and CharacteristicsDir are required; the rest are optional.
type Resolver struct {
	Store              *buildstock.Store
	Table              *lookup.Table
	CharacteristicsDir string

	// Workflow supplies the runner's step-order override and the
	// population metadata for weighting. Optional.
	Workflow *workflow.Descriptor

	// Applier mutates the simulation model. Required unless every
	// request is a dry run.
	Applier plan.Applier

	// Registry records completed runs. Optional.
	Registry *registry.Registry

	// Tokens generates run tokens; defaults to UUIDv7.
	Tokens TokenGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Request is one resolution request.
type Request struct {
	// BuildingID selects the sampled building. Must be >= 1.
	BuildingID int

	// Logic is the optional downselect expression. Empty means no
	// filtering.
	Logic string

	// RepresentedCount overrides the workflow's declared building
	// count for weighting. Zero means "use the workflow declaration";
	// if neither is present no weight is computed.
	RepresentedCount int

	// DryRun builds and reports the plan without applying any step.
	DryRun bool
}

// Result is the outcome of one run.
type Result struct {
	RunToken   string
	BuildingID int

	// Included is false when the downselect expression excluded the
	// building. An excluded run applies no steps and reports no weight.
	Included bool

	Plan         *plan.Plan
	AppliedSteps []string

	// Weight is nil when no represented count was available or the run
	// was excluded.
	Weight *float64

	// OrderDescriptor is the workflow descriptor path when its step
	// order override was in effect, empty when the plan's own order
	// was used.
	OrderDescriptor string
}

// Resolve runs the full pipeline for one building.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	if req.BuildingID < 1 {
		return nil, fmt.Errorf("building id must be >= 1, got %d", req.BuildingID)
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tokens := r.Tokens
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}

	res := &Result{
		RunToken:   tokens.Generate(),
		BuildingID: req.BuildingID,
	}
	logger = logger.With("run_token", res.RunToken, "building", req.BuildingID)

	assignments, err := r.Store.Load(req.BuildingID)
	if err != nil {
		return nil, err
	}
	logger.Debug("assignments loaded", "parameters", assignments.Len())

	order, err := lookup.ResolveOrder(r.Table, r.CharacteristicsDir)
	if err != nil {
		return nil, err
	}

	res.Plan, err = r.buildPlan(assignments, order)
	if err != nil {
		return nil, err
	}
	logger.Debug("plan built", "steps", res.Plan.Len())

	verdict, err := logic.Evaluate(req.Logic, assignments)
	if err != nil {
		return nil, err
	}
	if verdict == logic.Exclude {
		logger.Info("building excluded by downselect logic", "expression", req.Logic)
		res.Included = false
		if err := r.record(ctx, res, assignments); err != nil {
			return nil, err
		}
		return res, nil
	}
	res.Included = true

	var override []string
	if r.Workflow != nil && len(r.Workflow.Steps) > 0 {
		override = r.Workflow.Steps
		res.OrderDescriptor = r.Workflow.Path
	}

	if req.DryRun {
		logger.Info("dry run, no steps applied", "steps", res.Plan.Len())
	} else {
		if r.Applier == nil {
			return nil, fmt.Errorf("no step applier configured")
		}
		res.AppliedSteps, err = plan.Run(ctx, res.Plan, override, r.Applier)
		if err != nil {
			return nil, err
		}
		logger.Info("plan applied", "steps", len(res.AppliedSteps))
	}

	if w, ok, err := r.computeWeight(req); err != nil {
		return nil, err
	} else if ok {
		res.Weight = &w
		logger.Info("weight computed", "weight", w)
	}

	if err := r.record(ctx, res, assignments); err != nil {
		return nil, err
	}
	return res, nil
}

// buildPlan iterates the parameters in resolved order, resolving each
// (parameter, option) pair and folding its steps into the plan with the
// first-writer-wins merge policy. Every sampled parameter must resolve
// or the run fails.
func (r *Resolver) buildPlan(assignments buildstock.AssignmentSet, order []string) (*plan.Plan, error) {
	p := plan.New()
	covered := make(map[string]bool, len(order))
	for _, parameter := range order {
		covered[parameter] = true
		option, ok := assignments.Option(parameter)
		if !ok {
			return nil, fmt.Errorf("parameter %q is in the lookup table but has no sampled assignment", parameter)
		}
		steps, err := r.Table.Resolve(parameter, option)
		if err != nil {
			return nil, err
		}
		for _, step := range steps {
			p.Merge(step.Measure, step.Args, false)
		}
	}
	// A sampled parameter outside the resolved order has no lookup
	// entry for its option by definition; surface it as such.
	for _, parameter := range assignments.Parameters() {
		if !covered[parameter] {
			option, _ := assignments.Option(parameter)
			if _, err := r.Table.Resolve(parameter, option); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// computeWeight returns (weight, computed, error). The represented
// count comes from the request override, else the workflow declaration;
// when neither is present no weight is requested and none is computed.
// A requested weight with an unresolvable maximum sample count is an
// error, never a default.
func (r *Resolver) computeWeight(req Request) (float64, bool, error) {
	represented := req.RepresentedCount
	if represented == 0 && r.Workflow != nil {
		represented = r.Workflow.Buildings.Count
	}
	if represented == 0 {
		return 0, false, nil
	}

	maxSamples := 0
	if r.Workflow != nil {
		maxSamples = r.Workflow.Buildings.Samples
	}
	w, err := weight.Compute(represented, maxSamples)
	if err != nil {
		return 0, false, err
	}
	return w, true, nil
}

func (r *Resolver) record(ctx context.Context, res *Result, assignments buildstock.AssignmentSet) error {
	if r.Registry == nil {
		return nil
	}
	rec := registry.RunRecord{
		RunToken:     res.RunToken,
		BuildingID:   res.BuildingID,
		Included:     res.Included,
		Weight:       res.Weight,
		AppliedSteps: res.AppliedSteps,
	}
	for _, parameter := range assignments.Parameters() {
		option, _ := assignments.Option(parameter)
		rec.Assignments = append(rec.Assignments, registry.Assignment{
			Parameter: parameter,
			Option:    option,
		})
	}
	if err := r.Registry.Record(ctx, rec); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
