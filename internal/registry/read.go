package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/stocksim/stockplan/internal/logic"
)

// ErrNoRuns is returned when a building has no recorded run to
// evaluate against.
var ErrNoRuns = errors.New("no recorded runs for building")

// resultSource is a logic.Source over one recorded run's assignments.
type resultSource map[string]string

func (s resultSource) Option(parameter string) (string, bool) {
	opt, ok := s[parameter]
	return opt, ok
}

// AssignmentSource returns a logic evaluation source over the latest
// recorded run for a building (results mode). Returns ErrNoRuns when
// the building has never been recorded.
func (r *Registry) AssignmentSource(ctx context.Context, buildingID int) (logic.Source, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `
		SELECT run_token FROM runs
		WHERE building_id = ?
		ORDER BY rowid DESC
		LIMIT 1
	`, buildingID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("building %d: %w", buildingID, ErrNoRuns)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs for building %d: %w", buildingID, err)
	}
	return r.assignmentsFor(ctx, token)
}

func (r *Registry) assignmentsFor(ctx context.Context, runToken string) (resultSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT parameter, option FROM run_assignments
		WHERE run_token = ?
		ORDER BY position ASC
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("query assignments for run %s: %w", runToken, err)
	}
	defer rows.Close()

	src := make(resultSource)
	for rows.Next() {
		var parameter, option string
		if err := rows.Scan(&parameter, &option); err != nil {
			return nil, fmt.Errorf("scan assignment for run %s: %w", runToken, err)
		}
		src[parameter] = option
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments for run %s: %w", runToken, err)
	}
	return src, nil
}

// Downselect evaluates expr against the latest recorded run of every
// building in the registry and returns the ids that pass, sorted
// ascending. An Invalid verdict for any building fails the whole
// operation: "could not determine" is never treated as exclusion.
func (r *Registry) Downselect(ctx context.Context, expr string) ([]int, error) {
	if err := logic.Validate(expr); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT building_id, run_token FROM runs
		WHERE rowid IN (SELECT MAX(rowid) FROM runs GROUP BY building_id)
		ORDER BY building_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recorded buildings: %w", err)
	}
	defer rows.Close()

	type latest struct {
		buildingID int
		runToken   string
	}
	var all []latest
	for rows.Next() {
		var l latest
		if err := rows.Scan(&l.buildingID, &l.runToken); err != nil {
			return nil, fmt.Errorf("scan recorded building: %w", err)
		}
		all = append(all, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recorded buildings: %w", err)
	}

	var included []int
	for _, l := range all {
		src, err := r.assignmentsFor(ctx, l.runToken)
		if err != nil {
			return nil, err
		}
		verdict, err := logic.Evaluate(expr, src)
		if err != nil {
			return nil, fmt.Errorf("building %d: %w", l.buildingID, err)
		}
		if verdict == logic.Include {
			included = append(included, l.buildingID)
		}
	}
	sort.Ints(included)
	return included, nil
}

// Runs returns the number of recorded runs, for diagnostics.
func (r *Registry) Runs(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
