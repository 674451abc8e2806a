package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stocksim/stockplan/internal/buildstock"
	"github.com/stocksim/stockplan/internal/lookup"
	"github.com/stocksim/stockplan/internal/plan"
	"github.com/stocksim/stockplan/internal/registry"
	"github.com/stocksim/stockplan/internal/resolver"
	"github.com/stocksim/stockplan/internal/workflow"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Buildstock      string
	Lookup          string
	Characteristics string
	Workflow        string
	Registry        string
	Logic           string
	Represented     int
	DryRun          bool
	Parallel        int

	// Applier overrides the default step applier (for testing).
	Applier plan.Applier
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <building-id>...",
		Short: "Resolve sampled buildings into measure plans and apply them",
		Long: `Resolve one or more sampled buildings.

For each building id, resolve loads the building's sampled assignments,
expands them into an ordered measure plan via the options lookup table,
evaluates the optional downselect expression, applies the plan, and
computes the population-representation weight when the workflow
descriptor declares the population dimensions.

Exclusion by the downselect expression is a normal outcome, not a
failure: the command reports it and exits 0.

Example:
  stockplan resolve 7 --buildstock buildstock.csv --lookup options_lookup.tsv \
    --characteristics ./housing_characteristics \
    --logic 'Vintage|<1950 || Location EPW|USA_TX_Houston.AMY2012.epw'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Buildstock, "buildstock", "", "path to the sample population table (required)")
	cmd.Flags().StringVar(&opts.Lookup, "lookup", "", "path to the options lookup table (required)")
	cmd.Flags().StringVar(&opts.Characteristics, "characteristics", "", "path to the housing characteristics directory (required)")
	cmd.Flags().StringVar(&opts.Workflow, "workflow", "", "path to the workflow descriptor (optional)")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to the run registry database (optional)")
	cmd.Flags().StringVar(&opts.Logic, "logic", "", "downselect expression (optional)")
	cmd.Flags().IntVar(&opts.Represented, "represented", 0, "represented building count for weighting (overrides the workflow declaration)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "build and report the plan without applying steps")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "maximum concurrent resolutions")
	_ = cmd.MarkFlagRequired("buildstock")
	_ = cmd.MarkFlagRequired("lookup")
	_ = cmd.MarkFlagRequired("characteristics")

	return cmd
}

// resolveReport is one building's outcome in command output.
type resolveReport struct {
	BuildingID      int         `json:"building_id"`
	RunToken        string      `json:"run_token"`
	Included        bool        `json:"included"`
	Plan            []plan.Step `json:"plan"`
	AppliedSteps    []string    `json:"applied_steps,omitempty"`
	Weight          *float64    `json:"weight,omitempty"`
	OrderDescriptor string      `json:"order_descriptor,omitempty"`
}

func (r resolveReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "building %d (run %s): ", r.BuildingID, r.RunToken)
	if !r.Included {
		b.WriteString("excluded by downselect logic")
		return b.String()
	}
	fmt.Fprintf(&b, "included, %d plan steps", len(r.Plan))
	if len(r.AppliedSteps) > 0 {
		fmt.Fprintf(&b, ", applied %s", strings.Join(r.AppliedSteps, ", "))
	}
	if r.Weight != nil {
		fmt.Fprintf(&b, ", weight %g", *r.Weight)
	}
	if r.OrderDescriptor != "" {
		fmt.Fprintf(&b, ", step order from %s", r.OrderDescriptor)
	}
	return b.String()
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, args []string) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return WrapExitError(ExitCommandError, fmt.Sprintf("building id %q must be an integer >= 1", arg), err)
		}
		ids[i] = id
	}

	res, cleanup, err := buildResolver(opts)
	if err != nil {
		return reportError(out, err)
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The sample table is read-only, so several buildings may be
	// resolved concurrently; the registry serializes its own writes.
	results := make([]*resolver.Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			r, err := res.Resolve(gctx, resolver.Request{
				BuildingID:       id,
				Logic:            opts.Logic,
				RepresentedCount: opts.Represented,
				DryRun:           opts.DryRun,
			})
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reportError(out, err)
	}

	reports := make([]resolveReport, len(results))
	for i, r := range results {
		reports[i] = resolveReport{
			BuildingID:      r.BuildingID,
			RunToken:        r.RunToken,
			Included:        r.Included,
			Plan:            r.Plan.Steps(),
			AppliedSteps:    r.AppliedSteps,
			Weight:          r.Weight,
			OrderDescriptor: r.OrderDescriptor,
		}
	}

	if opts.Format == "json" {
		if err := out.Success(reports); err != nil {
			return WrapExitError(ExitFailure, "write output", err)
		}
		return nil
	}
	for _, report := range reports {
		if err := out.Success(report); err != nil {
			return WrapExitError(ExitFailure, "write output", err)
		}
	}
	return nil
}

// buildResolver assembles the resolution pipeline from the command
// flags. The returned cleanup closes the registry when one was opened.
func buildResolver(opts *ResolveOptions) (*resolver.Resolver, func(), error) {
	table, err := lookup.LoadTable(opts.Lookup)
	if err != nil {
		return nil, nil, err
	}

	res := &resolver.Resolver{
		Store:              buildstock.New(opts.Buildstock),
		Table:              table,
		CharacteristicsDir: opts.Characteristics,
		Applier:            opts.Applier,
	}
	if res.Applier == nil {
		res.Applier = logApplier{}
	}

	if opts.Workflow != "" {
		wf, err := workflow.Load(opts.Workflow)
		if err != nil {
			return nil, nil, err
		}
		res.Workflow = wf
	}

	cleanup := func() {}
	if opts.Registry != "" {
		reg, err := registry.Open(opts.Registry)
		if err != nil {
			return nil, nil, err
		}
		res.Registry = reg
		cleanup = func() {
			if err := reg.Close(); err != nil {
				slog.Error("error closing registry", "error", err)
			}
		}
	}
	return res, cleanup, nil
}

// logApplier stands in for the external model-mutation collaborator:
// it acknowledges each step and logs it. Model execution itself lives
// outside this tool.
type logApplier struct{}

func (logApplier) Apply(_ context.Context, step plan.Step) error {
	slog.Info("step applied", "measure", step.Measure, "arguments", len(step.Args))
	return nil
}
