package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingApplier records applied measures and fails on demand.
type recordingApplier struct {
	applied []string
	failOn  string
}

func (a *recordingApplier) Apply(_ context.Context, step Step) error {
	if step.Measure == a.failOn {
		return errors.New("model mutation rejected")
	}
	a.applied = append(a.applied, step.Measure)
	return nil
}

func threeStepPlan() *Plan {
	p := New()
	p.Merge("A", map[string]string{"x": "1"}, false)
	p.Merge("B", nil, false)
	p.Merge("C", map[string]string{"y": "2"}, false)
	return p
}

func TestRun_AppliesInPlanOrder(t *testing.T) {
	applier := &recordingApplier{}
	applied, err := Run(context.Background(), threeStepPlan(), nil, applier)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, applied)
	assert.Equal(t, []string{"A", "B", "C"}, applier.applied)
}

func TestRun_HaltsOnFirstFailure(t *testing.T) {
	applier := &recordingApplier{failOn: "B"}
	applied, err := Run(context.Background(), threeStepPlan(), nil, applier)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "B", stepErr.Measure)
	assert.Contains(t, err.Error(), "model mutation rejected")

	// A ran, C never did.
	assert.Equal(t, []string{"A"}, applied)
	assert.Equal(t, []string{"A"}, applier.applied)
}

func TestRun_OverrideReordersApplication(t *testing.T) {
	applier := &recordingApplier{}
	applied, err := Run(context.Background(), threeStepPlan(), []string{"C", "A"}, applier)
	require.NoError(t, err)
	// Named steps first in override order, then the rest in plan order.
	assert.Equal(t, []string{"C", "A", "B"}, applied)
}

func TestRun_OverrideSkipsUnknownMeasures(t *testing.T) {
	applier := &recordingApplier{}
	applied, err := Run(context.Background(), threeStepPlan(), []string{"Z", "B"}, applier)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, applied)
}

func TestRun_EmptyPlanIsNoop(t *testing.T) {
	applier := &recordingApplier{}
	applied, err := Run(context.Background(), New(), nil, applier)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestRun_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applier := &recordingApplier{}
	_, err := Run(ctx, threeStepPlan(), nil, applier)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, applier.applied)
}

func TestApplierFunc(t *testing.T) {
	called := false
	fn := ApplierFunc(func(_ context.Context, step Step) error {
		called = true
		return nil
	})
	require.NoError(t, fn.Apply(context.Background(), Step{Measure: "M"}))
	assert.True(t, called)
}
