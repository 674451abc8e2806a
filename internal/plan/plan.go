// Package plan accumulates resolved measure steps into one ordered
// execution plan and applies it.
//
// The plan is a single-owner accumulator: the resolver creates one per
// run and threads it through the parameter loop by reference. There is
// no shared or ambient plan state.
package plan

import (
	"encoding/json"
	"fmt"
)

// Step is one entry of an execution plan: a measure and its merged
// argument assignments.
type Step struct {
	Measure string            `json:"measure"`
	Args    map[string]string `json:"arguments"`
}

// Plan is an ordered sequence of unique measures under construction.
// Step order is first-occurrence order across the merge calls.
type Plan struct {
	steps []Step
	index map[string]int
}

// New creates an empty plan.
func New() *Plan {
	return &Plan{index: make(map[string]int)}
}

// Merge folds one measure's argument assignments into the plan.
//
// A measure not yet in the plan is appended with a copy of args. For a
// measure already present, the overwrite flag picks the policy:
//
//   - overwrite=false: only argument names absent from the existing
//     mapping are added; existing values are left untouched. First
//     writer wins. The resolution pipeline always merges with
//     overwrite=false, so arguments set by earlier-ordered parameters
//     take precedence over later ones - base configuration is
//     established early and later parameters only fill gaps. This is a
//     pinned policy, not an incidental default.
//   - overwrite=true: incoming argument values replace existing ones.
func (p *Plan) Merge(measure string, args map[string]string, overwrite bool) {
	i, ok := p.index[measure]
	if !ok {
		merged := make(map[string]string, len(args))
		for k, v := range args {
			merged[k] = v
		}
		p.index[measure] = len(p.steps)
		p.steps = append(p.steps, Step{Measure: measure, Args: merged})
		return
	}
	existing := p.steps[i].Args
	for k, v := range args {
		if _, present := existing[k]; present && !overwrite {
			continue
		}
		existing[k] = v
	}
}

// Len returns the number of steps in the plan.
func (p *Plan) Len() int {
	return len(p.steps)
}

// Contains reports whether the plan already carries a measure.
func (p *Plan) Contains(measure string) bool {
	_, ok := p.index[measure]
	return ok
}

// Steps returns the plan's steps in order. The returned slice and its
// argument maps are copies; mutating them does not touch the plan.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	for i, s := range p.steps {
		args := make(map[string]string, len(s.Args))
		for k, v := range s.Args {
			args[k] = v
		}
		out[i] = Step{Measure: s.Measure, Args: args}
	}
	return out
}

// Args returns a copy of one measure's current argument mapping, or nil
// if the measure is not in the plan.
func (p *Plan) Args(measure string) map[string]string {
	i, ok := p.index[measure]
	if !ok {
		return nil
	}
	args := make(map[string]string, len(p.steps[i].Args))
	for k, v := range p.steps[i].Args {
		args[k] = v
	}
	return args
}

// MarshalJSON serializes the plan as its ordered step list. Argument
// keys serialize sorted (encoding/json map behavior), so the output is
// byte-stable for golden comparison.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.steps)
}

// String summarizes the plan for logs.
func (p *Plan) String() string {
	return fmt.Sprintf("plan(%d steps)", len(p.steps))
}
