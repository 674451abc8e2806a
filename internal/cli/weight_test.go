package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksim/stockplan/internal/testutil"
)

func TestWeightCommand(t *testing.T) {
	path := testutil.Workflow(t, `
workflow: {
	buildings: {count: 500, samples: 10000}
}
`)
	out, err := runCommand(t, "weight", "--workflow", path)
	require.NoError(t, err)
	assert.Contains(t, out, "weight 0.05")
}

func TestWeightCommand_RepresentedOverride(t *testing.T) {
	path := testutil.Workflow(t, `
workflow: {
	buildings: {count: 500, samples: 10000}
}
`)
	out, err := runCommand(t, "--format", "json", "weight", "--workflow", path, "--represented", "2000")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var report weightReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 2000, report.Represented)
	assert.InDelta(t, 0.2, report.Weight, 1e-12)
}

func TestWeightCommand_MissingSampleMaxIsConfigurationError(t *testing.T) {
	path := testutil.Workflow(t, `
workflow: {
	buildings: {count: 500}
}
`)
	out, err := runCommand(t, "weight", "--workflow", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "configuration")
}

func TestWeightCommand_BadDescriptor(t *testing.T) {
	out, err := runCommand(t, "weight", "--workflow", "/nonexistent/workflow.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "configuration")
}
