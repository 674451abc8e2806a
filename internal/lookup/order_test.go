package lookup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksim/stockplan/internal/lookup"
	"github.com/stocksim/stockplan/internal/testutil"
)

// orderFixture builds a table whose first-appearance order deliberately
// disagrees with the dependency order, so tests can tell the two apart.
func orderFixture(t *testing.T) *lookup.Table {
	t.Helper()
	table, err := lookup.LoadTable(testutil.LookupTable(t, []testutil.LookupRow{
		{Parameter: "Vintage", Option: "<1950", Measure: "ResidentialConstruction"},
		{Parameter: "Heating Fuel", Option: "Natural Gas", Measure: "ResidentialHeating"},
		{Parameter: "Location EPW", Option: "USA_TX_Houston.AMY2012.epw", Measure: "ResidentialLocation"},
	}))
	require.NoError(t, err)
	return table
}

func TestResolveOrder_DependenciesComeFirst(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW": nil,
		"Vintage":      {"Location EPW"},
		"Heating Fuel": {"Vintage"},
	})

	order, err := lookup.ResolveOrder(table, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Location EPW", "Vintage", "Heating Fuel"}, order)
}

func TestResolveOrder_IsAPermutationAndDeterministic(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW": nil,
		"Vintage":      nil,
		"Heating Fuel": nil,
	})

	first, err := lookup.ResolveOrder(table, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, table.Parameters(), first)

	// No dependencies: ties resolve to the table's first-appearance order.
	assert.Equal(t, table.Parameters(), first)

	for n := 0; n < 5; n++ {
		again, err := lookup.ResolveOrder(table, dir)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveOrder_ParameterMissingFromCharacteristics(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW": nil,
		"Vintage":      nil,
		// Heating Fuel descriptor missing.
	})

	_, err := lookup.ResolveOrder(table, dir)
	var orderErr *lookup.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Contains(t, err.Error(), "Heating Fuel")
}

func TestResolveOrder_DescriptorWithoutTableEntry(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW":  nil,
		"Vintage":       nil,
		"Heating Fuel":  nil,
		"Roof Material": nil,
	})

	_, err := lookup.ResolveOrder(table, dir)
	var orderErr *lookup.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Contains(t, err.Error(), "Roof Material")
}

func TestResolveOrder_DuplicateDescriptor(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW": nil,
		"Vintage":      nil,
		"Heating Fuel": nil,
	})
	// A second file declaring an already-declared parameter.
	testutil.DuplicateDescriptor(t, dir, "Vintage")

	_, err := lookup.ResolveOrder(table, dir)
	var orderErr *lookup.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Contains(t, err.Error(), "Vintage")
}

func TestResolveOrder_UnknownDependency(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW": nil,
		"Vintage":      {"Census Region"},
		"Heating Fuel": nil,
	})

	_, err := lookup.ResolveOrder(table, dir)
	var orderErr *lookup.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Contains(t, err.Error(), "Census Region")
}

func TestResolveOrder_CycleFails(t *testing.T) {
	table := orderFixture(t)
	dir := testutil.Characteristics(t, map[string][]string{
		"Location EPW": {"Heating Fuel"},
		"Vintage":      {"Location EPW"},
		"Heating Fuel": {"Vintage"},
	})

	_, err := lookup.ResolveOrder(table, dir)
	var orderErr *lookup.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Contains(t, err.Error(), "cycle")
}
