package lookup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// OrderError reports an inconsistent or ambiguous parameter ordering:
// a parameter declared in only one of the two sources, a duplicate
// declaration, or a dependency cycle.
type OrderError struct {
	Message string
}

func (e *OrderError) Error() string {
	return "parameter order resolution: " + e.Message
}

// characteristic is one per-parameter descriptor file from the housing
// characteristics directory.
type characteristic struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
}

// ResolveOrder derives the total parameter traversal order.
//
// The lookup table contributes the parameter set and a stable
// first-appearance index; the characteristics directory contributes one
// YAML descriptor per parameter whose depends_on list expresses logical
// dependency (a parameter is ordered after everything it depends on,
// e.g. a location parameter before parameters whose legal options vary
// by location). The result is a deterministic topological order with
// ties broken by the table's first-appearance index, so two calls on
// the same inputs always agree.
//
// Fails with *OrderError when a parameter appears in only one source,
// when a parameter is declared twice, when a dependency references an
// unknown parameter, or when the dependency graph has a cycle.
func ResolveOrder(table *Table, characteristicsDir string) ([]string, error) {
	declared, err := readCharacteristics(characteristicsDir)
	if err != nil {
		return nil, err
	}

	tableParams := table.Parameters()
	tableSet := make(map[string]int, len(tableParams))
	for i, p := range tableParams {
		tableSet[p] = i
	}

	for p := range declared {
		if _, ok := tableSet[p]; !ok {
			return nil, &OrderError{Message: fmt.Sprintf("parameter %q has a characteristics descriptor but no lookup table entry", p)}
		}
	}
	for _, p := range tableParams {
		if _, ok := declared[p]; !ok {
			return nil, &OrderError{Message: fmt.Sprintf("parameter %q appears in the lookup table but has no characteristics descriptor", p)}
		}
	}

	// Kahn's algorithm; the ready set is always drained in
	// first-appearance order, which makes the result total and
	// deterministic.
	indegree := make(map[string]int, len(tableParams))
	dependents := make(map[string][]string, len(tableParams))
	for _, p := range tableParams {
		indegree[p] = 0
	}
	for p, c := range declared {
		for _, dep := range c.DependsOn {
			dep = norm.NFC.String(strings.TrimSpace(dep))
			if _, ok := tableSet[dep]; !ok {
				return nil, &OrderError{Message: fmt.Sprintf("parameter %q depends on unknown parameter %q", p, dep)}
			}
			indegree[p]++
			dependents[dep] = append(dependents[dep], p)
		}
	}

	var ready []string
	for _, p := range tableParams {
		if indegree[p] == 0 {
			ready = append(ready, p)
		}
	}

	order := make([]string, 0, len(tableParams))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return tableSet[ready[i]] < tableSet[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(tableParams) {
		var stuck []string
		for p, d := range indegree {
			if d > 0 {
				stuck = append(stuck, p)
			}
		}
		sort.Strings(stuck)
		return nil, &OrderError{Message: fmt.Sprintf("dependency cycle among parameters %v", stuck)}
	}
	return order, nil
}

// readCharacteristics parses every YAML descriptor in dir, keyed by the
// declared parameter name.
func readCharacteristics(dir string) (map[string]characteristic, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read characteristics directory: %w", err)
	}

	declared := make(map[string]characteristic)
	declaredBy := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read characteristics descriptor %s: %w", entry.Name(), err)
		}
		var c characteristic
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse characteristics descriptor %s: %w", entry.Name(), err)
		}
		c.Name = norm.NFC.String(strings.TrimSpace(c.Name))
		if c.Name == "" {
			return nil, &OrderError{Message: fmt.Sprintf("descriptor %s declares no parameter name", entry.Name())}
		}
		if prev, ok := declaredBy[c.Name]; ok {
			return nil, &OrderError{Message: fmt.Sprintf("parameter %q declared by both %s and %s", c.Name, prev, entry.Name())}
		}
		declaredBy[c.Name] = entry.Name()
		declared[c.Name] = c
	}
	return declared, nil
}
