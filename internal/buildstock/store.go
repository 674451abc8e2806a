// Package buildstock reads the sampled building population table
// (buildstock.csv): one row per building, one column per parameter,
// plus the Building identifier column.
//
// The table can be large (hundreds of thousands of rows), so lookups
// stream it row by row and never hold more than one record in memory.
package buildstock

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// IDColumn is the identifier column of the sample population table.
const IDColumn = "Building"

// AssignmentSet is one building's sampled parameter-option assignments.
// Parameter order is the source table's column order. The set is
// immutable once loaded.
type AssignmentSet struct {
	order  []string
	values map[string]string
}

// Parameters returns the parameter names in column order.
func (a AssignmentSet) Parameters() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Option returns the option assigned to a parameter. Implements the
// logic evaluator's Source interface for current-assignment mode.
func (a AssignmentSet) Option(parameter string) (string, bool) {
	opt, ok := a.values[parameter]
	return opt, ok
}

// Len returns the number of assigned parameters.
func (a AssignmentSet) Len() int {
	return len(a.order)
}

// NotFoundError reports a building id absent from the sample table.
type NotFoundError struct {
	BuildingID int
	Table      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("building %d not found in sample table %s", e.BuildingID, e.Table)
}

// Store streams rows out of a buildstock.csv file.
//
// Every Load scans from the start of the file: a building id is looked
// up at most once per run, so there is nothing to gain from caching
// scan positions across calls. The backing file is read-only; separate
// Store instances (or goroutines calling Load on separate instances)
// may scan it concurrently.
type Store struct {
	path string
}

// New creates a Store over the sample table at path. The file is opened
// per call, not held open.
func New(path string) *Store {
	return &Store{path: path}
}

// Table returns the table name used in diagnostics.
func (s *Store) Table() string {
	return filepath.Base(s.path)
}

// Load streams the table looking for the row whose Building column
// equals buildingID and returns its assignments. Returns a
// *NotFoundError naming the id and the table when the stream is
// exhausted without a match. Never returns a partial row.
func (s *Store) Load(buildingID int) (AssignmentSet, error) {
	var found AssignmentSet
	err := s.scan(func(id int, as AssignmentSet) error {
		if id == buildingID {
			found = as
			return errStopScan
		}
		return nil
	})
	if errors.Is(err, errStopScan) {
		return found, nil
	}
	if err != nil {
		return AssignmentSet{}, err
	}
	return AssignmentSet{}, &NotFoundError{BuildingID: buildingID, Table: s.Table()}
}

// Scan streams every row of the table through fn in file order. Used by
// population-mode downselect. A non-nil error from fn aborts the scan
// and is propagated.
func (s *Store) Scan(fn func(buildingID int, as AssignmentSet) error) error {
	return s.scan(fn)
}

// errStopScan terminates a scan early without reporting failure.
var errStopScan = errors.New("stop scan")

func (s *Store) scan(fn func(int, AssignmentSet) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open sample table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read sample table header from %s: %w", s.Table(), err)
	}

	idCol := -1
	params := make([]string, 0, len(header)-1)
	paramCols := make([]int, 0, len(header)-1)
	for i, name := range header {
		if name == IDColumn {
			if idCol >= 0 {
				return fmt.Errorf("sample table %s: duplicate %s column", s.Table(), IDColumn)
			}
			idCol = i
			continue
		}
		params = append(params, norm.NFC.String(name))
		paramCols = append(paramCols, i)
	}
	if idCol < 0 {
		return fmt.Errorf("sample table %s: missing %s column", s.Table(), IDColumn)
	}

	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read sample table %s: %w", s.Table(), err)
		}
		line++

		id, err := strconv.Atoi(record[idCol])
		if err != nil {
			return fmt.Errorf("sample table %s line %d: bad building id %q", s.Table(), line, record[idCol])
		}

		as := AssignmentSet{
			order:  params,
			values: make(map[string]string, len(params)),
		}
		for j, col := range paramCols {
			as.values[params[j]] = record[col]
		}
		if err := fn(id, as); err != nil {
			return err
		}
	}
}
