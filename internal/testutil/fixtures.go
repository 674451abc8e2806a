// Package testutil writes temporary input fixtures (sample tables,
// lookup tables, characteristics directories, workflow descriptors)
// for tests across the module.
package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// SampleRow is one building row for a fixture sample table.
type SampleRow struct {
	ID      int
	Options []string // one option per parameter, in params order
}

// Buildstock writes a buildstock.csv under a fresh temp directory and
// returns its path. The Building identifier column is written first,
// followed by one column per parameter.
func Buildstock(t *testing.T, params []string, rows []SampleRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "buildstock.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create buildstock fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"Building"}, params...)); err != nil {
		t.Fatalf("write buildstock header: %v", err)
	}
	for _, row := range rows {
		if len(row.Options) != len(params) {
			t.Fatalf("buildstock fixture row %d has %d options for %d parameters", row.ID, len(row.Options), len(params))
		}
		record := append([]string{strconv.Itoa(row.ID)}, row.Options...)
		if err := w.Write(record); err != nil {
			t.Fatalf("write buildstock row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush buildstock fixture: %v", err)
	}
	return path
}

// LookupRow is one options_lookup.tsv body row: parameter, option, an
// optional measure directory, and name=value argument cells.
type LookupRow struct {
	Parameter string
	Option    string
	Measure   string
	Args      []string
}

// LookupTable writes an options_lookup.tsv under a fresh temp directory
// and returns its path.
func LookupTable(t *testing.T, rows []LookupRow) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Parameter Name\tOption Name\tMeasure Dir\tMeasure Args\n")
	for _, row := range rows {
		cells := []string{row.Parameter, row.Option, row.Measure}
		cells = append(cells, row.Args...)
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}

	path := filepath.Join(t.TempDir(), "options_lookup.tsv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write lookup table fixture: %v", err)
	}
	return path
}

// Characteristics writes one YAML descriptor per parameter into a fresh
// temp directory and returns the directory path. The map value is the
// parameter's depends_on list (nil for none).
func Characteristics(t *testing.T, deps map[string][]string) string {
	t.Helper()

	dir := t.TempDir()
	i := 0
	for name, dependsOn := range deps {
		var b strings.Builder
		fmt.Fprintf(&b, "name: %q\n", name)
		if len(dependsOn) > 0 {
			b.WriteString("depends_on:\n")
			for _, dep := range dependsOn {
				fmt.Fprintf(&b, "  - %q\n", dep)
			}
		}
		// Descriptor file names only need to be unique; order resolution
		// keys on the declared name, not the file name.
		path := filepath.Join(dir, fmt.Sprintf("characteristic_%02d.yml", i))
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write characteristics descriptor: %v", err)
		}
		i++
	}
	return dir
}

// DuplicateDescriptor writes an extra descriptor file into an existing
// characteristics directory, redeclaring the given parameter. Used to
// exercise duplicate-declaration failures.
func DuplicateDescriptor(t *testing.T, dir, name string) {
	t.Helper()

	content := fmt.Sprintf("name: %q\n", name)
	path := filepath.Join(dir, "characteristic_dup.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write duplicate descriptor: %v", err)
	}
}

// Workflow writes a workflow descriptor CUE file and returns its path.
func Workflow(t *testing.T, cueSource string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workflow.cue")
	if err := os.WriteFile(path, []byte(cueSource), 0o644); err != nil {
		t.Fatalf("write workflow fixture: %v", err)
	}
	return path
}
