package plan

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_NewMeasureAppended(t *testing.T) {
	p := New()
	p.Merge("ResidentialLocation", map[string]string{"weather_file": "houston.epw"}, false)
	p.Merge("ResidentialConstruction", map[string]string{"era": "pre1950"}, false)

	steps := p.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "ResidentialLocation", steps[0].Measure)
	assert.Equal(t, "ResidentialConstruction", steps[1].Measure)
}

// First writer wins at overwrite=false: this is the pinned production
// merge policy, not an incidental default.
func TestMerge_FirstWriterWins(t *testing.T) {
	p := New()
	p.Merge("M", map[string]string{"a": "1", "b": "2"}, false)

	// Same key, different value: existing value untouched.
	p.Merge("M", map[string]string{"a": "9"}, false)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, p.Args("M"))

	// New key: added.
	p.Merge("M", map[string]string{"c": "3"}, false)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, p.Args("M"))
}

func TestMerge_OverwriteReplaces(t *testing.T) {
	p := New()
	p.Merge("M", map[string]string{"a": "1", "b": "2"}, false)
	p.Merge("M", map[string]string{"a": "9", "c": "3"}, true)

	assert.Equal(t, map[string]string{"a": "9", "b": "2", "c": "3"}, p.Args("M"))
}

// A measure merged from several parameters appears once, at its
// first-occurrence position.
func TestMerge_MeasureIsUnique(t *testing.T) {
	p := New()
	p.Merge("A", map[string]string{"x": "1"}, false)
	p.Merge("B", map[string]string{"y": "1"}, false)
	p.Merge("A", map[string]string{"z": "1"}, false)

	steps := p.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "A", steps[0].Measure)
	assert.Equal(t, map[string]string{"x": "1", "z": "1"}, steps[0].Args)
	assert.True(t, p.Contains("A"))
	assert.False(t, p.Contains("C"))
}

func TestMerge_ArgsAreCopiedIn(t *testing.T) {
	args := map[string]string{"a": "1"}
	p := New()
	p.Merge("M", args, false)
	args["a"] = "mutated"

	assert.Equal(t, map[string]string{"a": "1"}, p.Args("M"))
}

func TestSteps_ReturnsCopies(t *testing.T) {
	p := New()
	p.Merge("M", map[string]string{"a": "1"}, false)

	steps := p.Steps()
	steps[0].Args["a"] = "mutated"
	assert.Equal(t, map[string]string{"a": "1"}, p.Args("M"))
}

func TestArgs_UnknownMeasure(t *testing.T) {
	assert.Nil(t, New().Args("M"))
}

func TestPlanJSON_Golden(t *testing.T) {
	p := New()
	p.Merge("ResidentialLocation", map[string]string{
		"weather_file": "USA_TX_Houston.AMY2012.epw",
		"site_zip":     "77002",
	}, false)
	p.Merge("ResidentialConstruction", map[string]string{"era": "pre1950"}, false)
	p.Merge("ResidentialAirLeakage", map[string]string{"ach50": "25"}, false)
	p.Merge("ResidentialConstruction", map[string]string{"era": "ignored", "wall_type": "wood_stud"}, false)

	raw, err := json.MarshalIndent(p, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "houston_plan", raw)
}
