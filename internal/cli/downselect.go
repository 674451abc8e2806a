package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stocksim/stockplan/internal/buildstock"
	"github.com/stocksim/stockplan/internal/logic"
	"github.com/stocksim/stockplan/internal/registry"
)

// DownselectOptions holds flags for the downselect command.
type DownselectOptions struct {
	*RootOptions
	Buildstock string
	Registry   string
}

// NewDownselectCommand creates the downselect command.
func NewDownselectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DownselectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "downselect <expression>",
		Short: "List the building ids matching a downselect expression",
		Long: `Evaluate a downselect expression over a population.

With --buildstock, the expression is evaluated against every sampled
building's current assignments (pre-simulation filtering). With
--registry, it is evaluated against the recorded assignments of
already-resolved buildings (post-hoc filtering). Exactly one source
must be given.

A building that fails the expression is excluded, which is a normal
outcome; an expression that cannot be evaluated at all aborts the
command.

Example:
  stockplan downselect 'Vintage|<1950 || Vintage|1950s' --buildstock buildstock.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownselect(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Buildstock, "buildstock", "", "evaluate against the sample population table")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "evaluate against recorded runs in the registry database")

	return cmd
}

// downselectReport is the command output: the ids that passed.
type downselectReport struct {
	Expression string `json:"expression"`
	Included   []int  `json:"included"`
}

func (r downselectReport) String() string {
	if len(r.Included) == 0 {
		return "no buildings match"
	}
	ids := make([]string, len(r.Included))
	for i, id := range r.Included {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%d buildings match: %s", len(r.Included), strings.Join(ids, " "))
}

func runDownselect(cmd *cobra.Command, opts *DownselectOptions, expr string) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if (opts.Buildstock == "") == (opts.Registry == "") {
		return WrapExitError(ExitCommandError, "exactly one of --buildstock or --registry is required", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		included []int
		err      error
	)
	if opts.Buildstock != "" {
		included, err = downselectPopulation(opts.Buildstock, expr)
	} else {
		included, err = downselectRegistry(ctx, opts.Registry, expr)
	}
	if err != nil {
		return reportError(out, err)
	}

	if outErr := out.Success(downselectReport{Expression: expr, Included: included}); outErr != nil {
		return WrapExitError(ExitFailure, "write output", outErr)
	}
	return nil
}

// downselectPopulation streams the whole sample table, evaluating the
// expression against each building's current assignments.
func downselectPopulation(path, expr string) ([]int, error) {
	if err := logic.Validate(expr); err != nil {
		return nil, err
	}
	store := buildstock.New(path)
	included := []int{}
	err := store.Scan(func(id int, as buildstock.AssignmentSet) error {
		verdict, err := logic.Evaluate(expr, as)
		if err != nil {
			return fmt.Errorf("building %d: %w", id, err)
		}
		if verdict == logic.Include {
			included = append(included, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return included, nil
}

func downselectRegistry(ctx context.Context, path, expr string) ([]int, error) {
	reg, err := registry.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			slog.Error("error closing registry", "error", err)
		}
	}()
	return reg.Downselect(ctx, expr)
}
