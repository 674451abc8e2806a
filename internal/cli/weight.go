package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stocksim/stockplan/internal/weight"
	"github.com/stocksim/stockplan/internal/workflow"
)

// WeightOptions holds flags for the weight command.
type WeightOptions struct {
	*RootOptions
	Workflow    string
	Represented int
}

// NewWeightCommand creates the weight command.
func NewWeightCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WeightOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Compute the population-representation weight",
		Long: `Compute the weight one sample stands for: the represented building
count divided by the workflow's declared maximum sample count.

The represented count defaults to the workflow's buildings.count
declaration; --represented overrides it. A workflow that does not
declare buildings.samples cannot produce weights and the command fails
rather than defaulting.

Example:
  stockplan weight --workflow workflow.cue --represented 500`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeight(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Workflow, "workflow", "", "path to the workflow descriptor (required)")
	cmd.Flags().IntVar(&opts.Represented, "represented", 0, "represented building count (overrides the workflow declaration)")
	_ = cmd.MarkFlagRequired("workflow")

	return cmd
}

// weightReport is the command output.
type weightReport struct {
	Represented int     `json:"represented"`
	MaxSamples  int     `json:"max_samples"`
	Weight      float64 `json:"weight"`
}

func (r weightReport) String() string {
	return fmt.Sprintf("weight %g (%d represented / %d max samples)", r.Weight, r.Represented, r.MaxSamples)
}

func runWeight(cmd *cobra.Command, opts *WeightOptions) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	wf, err := workflow.Load(opts.Workflow)
	if err != nil {
		return reportError(out, err)
	}

	represented := opts.Represented
	if represented == 0 {
		represented = wf.Buildings.Count
	}

	w, err := weight.Compute(represented, wf.Buildings.Samples)
	if err != nil {
		return reportError(out, err)
	}

	if outErr := out.Success(weightReport{
		Represented: represented,
		MaxSamples:  wf.Buildings.Samples,
		Weight:      w,
	}); outErr != nil {
		return WrapExitError(ExitFailure, "write output", outErr)
	}
	return nil
}
