// Package lookup resolves (parameter, option) pairs to the measure
// steps that realize them, and derives the deterministic parameter
// traversal order from the lookup table and the housing characteristics
// directory.
package lookup

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StepSpec is one measure invocation resolved from the lookup table:
// the measure directory name and its argument assignments. Argument
// values are opaque, fully-resolved strings at this layer; no deferred
// cross-parameter references survive past LoadTable.
type StepSpec struct {
	Measure string
	Args    map[string]string
}

// UnknownOptionError reports a (parameter, option) pair with no lookup
// table entry.
type UnknownOptionError struct {
	Parameter string
	Option    string
	Table     string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("no entry for parameter %q option %q in lookup table %s", e.Parameter, e.Option, e.Table)
}

type pairKey struct {
	parameter string
	option    string
}

// Table is the options lookup table, loaded once and read-only after.
// It maps each (parameter, option) pair to the ordered measure steps
// that realize it, and records the first-appearance order of parameter
// columns, which seeds order resolution.
type Table struct {
	name    string
	entries map[pairKey][]StepSpec
	params  []string
	present map[string]bool
}

// LoadTable parses an options_lookup.tsv file.
//
// Format: tab-separated, header row, then one row per (parameter,
// option, measure). Columns: Parameter Name, Option Name, Measure Dir,
// then zero or more name=value argument cells. A row with an empty
// Measure Dir declares the pair legal without contributing a step.
// Several rows may share a (parameter, option) pair; their steps are
// kept in table order.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lookup table: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	r := csv.NewReader(bufio.NewReader(f))
	r.Comma = '\t'
	r.FieldsPerRecord = -1 // argument column count varies per row
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read lookup table %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("lookup table %s is empty", name)
	}
	header := rows[0]
	if len(header) < 2 || header[0] != "Parameter Name" || header[1] != "Option Name" {
		return nil, fmt.Errorf("lookup table %s: unexpected header %v", name, header)
	}

	t := &Table{
		name:    name,
		entries: make(map[pairKey][]StepSpec),
		present: make(map[string]bool),
	}
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) < 2 {
			return nil, fmt.Errorf("lookup table %s line %d: expected at least parameter and option", name, line)
		}
		param := norm.NFC.String(strings.TrimSpace(row[0]))
		option := norm.NFC.String(strings.TrimSpace(row[1]))
		if param == "" || option == "" {
			return nil, fmt.Errorf("lookup table %s line %d: empty parameter or option name", name, line)
		}
		if !t.present[param] {
			t.present[param] = true
			t.params = append(t.params, param)
		}

		key := pairKey{parameter: param, option: option}
		if _, ok := t.entries[key]; !ok {
			t.entries[key] = nil
		}

		if len(row) < 3 || strings.TrimSpace(row[2]) == "" {
			// Pair is legal but carries no measure step.
			continue
		}
		step := StepSpec{
			Measure: strings.TrimSpace(row[2]),
			Args:    make(map[string]string, len(row)-3),
		}
		for _, cell := range row[3:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			argName, argValue, found := strings.Cut(cell, "=")
			if !found || argName == "" {
				return nil, fmt.Errorf("lookup table %s line %d: malformed argument cell %q", name, line, cell)
			}
			step.Args[argName] = argValue
		}
		t.entries[key] = append(t.entries[key], step)
	}
	return t, nil
}

// Name returns the table name used in diagnostics.
func (t *Table) Name() string {
	return t.name
}

// Parameters returns the parameter names in first-appearance order.
func (t *Table) Parameters() []string {
	out := make([]string, len(t.params))
	copy(out, t.params)
	return out
}

// Resolve returns the measure steps for an exact (parameter, option)
// pair, in table order. Both names are NFC-normalized before lookup.
// Returns an *UnknownOptionError when the pair is absent. The returned
// steps are copies; callers may hand their Args maps to a plan merge
// without affecting the table.
func (t *Table) Resolve(parameter, option string) ([]StepSpec, error) {
	key := pairKey{
		parameter: norm.NFC.String(parameter),
		option:    norm.NFC.String(option),
	}
	steps, ok := t.entries[key]
	if !ok {
		return nil, &UnknownOptionError{Parameter: parameter, Option: option, Table: t.name}
	}
	out := make([]StepSpec, len(steps))
	for i, s := range steps {
		args := make(map[string]string, len(s.Args))
		for k, v := range s.Args {
			args[k] = v
		}
		out[i] = StepSpec{Measure: s.Measure, Args: args}
	}
	return out, nil
}
