package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksim/stockplan/internal/testutil"
)

// resolveFixture writes the full input set and returns the flag values
// for a resolve invocation.
type resolveFixture struct {
	buildstock      string
	lookup          string
	characteristics string
	workflow        string
}

func newResolveFixture(t *testing.T) resolveFixture {
	t.Helper()
	return resolveFixture{
		buildstock: testutil.Buildstock(t,
			[]string{"Vintage", "Location EPW"},
			[]testutil.SampleRow{
				{ID: 1, Options: []string{"1990s", "USA_CO_Denver.AMY2012.epw"}},
				{ID: 7, Options: []string{"<1950", "USA_TX_Houston.AMY2012.epw"}},
			}),
		lookup: testutil.LookupTable(t, []testutil.LookupRow{
			{Parameter: "Location EPW", Option: "USA_TX_Houston.AMY2012.epw", Measure: "ResidentialLocation",
				Args: []string{"weather_file=USA_TX_Houston.AMY2012.epw"}},
			{Parameter: "Location EPW", Option: "USA_CO_Denver.AMY2012.epw", Measure: "ResidentialLocation",
				Args: []string{"weather_file=USA_CO_Denver.AMY2012.epw"}},
			{Parameter: "Vintage", Option: "<1950", Measure: "ResidentialConstruction", Args: []string{"era=pre1950"}},
			{Parameter: "Vintage", Option: "1990s", Measure: "ResidentialConstruction", Args: []string{"era=1990s"}},
		}),
		characteristics: testutil.Characteristics(t, map[string][]string{
			"Location EPW": nil,
			"Vintage":      {"Location EPW"},
		}),
		workflow: testutil.Workflow(t, `
workflow: {
	buildings: {count: 500, samples: 10000}
}
`),
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand_IncludedBuilding(t *testing.T) {
	fx := newResolveFixture(t)

	out, err := runCommand(t, "resolve", "7",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
		"--workflow", fx.workflow,
		"--logic", "Location EPW|USA_TX_Houston.AMY2012.epw || Vintage|<1950",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "building 7")
	assert.Contains(t, out, "included")
	assert.Contains(t, out, "weight 0.05")
}

func TestResolveCommand_ExcludedBuildingExitsZero(t *testing.T) {
	fx := newResolveFixture(t)

	out, err := runCommand(t, "resolve", "7",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
		"--logic", "Vintage|1990s",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "excluded by downselect logic")
}

func TestResolveCommand_JSONOutput(t *testing.T) {
	fx := newResolveFixture(t)

	out, err := runCommand(t, "--format", "json", "resolve", "7",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
	)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var reports []resolveReport
	require.NoError(t, json.Unmarshal(raw, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, 7, reports[0].BuildingID)
	assert.True(t, reports[0].Included)
	require.Len(t, reports[0].Plan, 2)
	assert.Equal(t, "ResidentialLocation", reports[0].Plan[0].Measure)
}

func TestResolveCommand_MultipleBuildings(t *testing.T) {
	fx := newResolveFixture(t)

	out, err := runCommand(t, "resolve", "1", "7",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "building 1")
	assert.Contains(t, out, "building 7")
}

func TestResolveCommand_UnknownBuildingFails(t *testing.T) {
	fx := newResolveFixture(t)

	out, err := runCommand(t, "resolve", "404",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "not_found")
}

func TestResolveCommand_InvalidLogicIsCommandError(t *testing.T) {
	fx := newResolveFixture(t)

	out, err := runCommand(t, "resolve", "7",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
		"--logic", "Vintage|",
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "evaluation")
}

func TestResolveCommand_BadBuildingIDArgument(t *testing.T) {
	fx := newResolveFixture(t)

	_, err := runCommand(t, "resolve", "zero",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveCommand_RecordsToRegistry(t *testing.T) {
	fx := newResolveFixture(t)
	registryPath := filepath.Join(t.TempDir(), "runs.db")

	_, err := runCommand(t, "resolve", "7",
		"--buildstock", fx.buildstock,
		"--lookup", fx.lookup,
		"--characteristics", fx.characteristics,
		"--registry", registryPath,
	)
	require.NoError(t, err)

	out, err := runCommand(t, "downselect", "Vintage|<1950", "--registry", registryPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 buildings match: 7")
}
