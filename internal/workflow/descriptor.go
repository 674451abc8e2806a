// Package workflow loads the optional workflow descriptor: a CUE file
// declaring population metadata (building count, maximum sample count)
// and, optionally, an explicit measure application order that overrides
// the plan's default order at run time.
package workflow

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Descriptor is the decoded workflow descriptor.
//
// A zero Buildings block is legal: a workflow that never asks for
// weights does not need to declare its population. Weight computation
// rejects the missing declaration explicitly instead of defaulting.
type Descriptor struct {
	Buildings Buildings `json:"buildings"`
	Steps     []string  `json:"steps"`

	// Path is where the descriptor was loaded from, reported back with
	// resolution results.
	Path string `json:"-"`
}

// Buildings declares the population dimensions used for weighting.
type Buildings struct {
	// Count is the number of real-world buildings the population
	// represents.
	Count int `json:"count"`
	// Samples is the declared maximum sample count: the denominator of
	// every weight.
	Samples int `json:"samples"`
}

// DescriptorError reports a workflow descriptor that could not be
// loaded or decoded, with CUE position detail when available.
type DescriptorError struct {
	Path    string
	Message string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("workflow descriptor %s: %s", e.Path, e.Message)
}

// Load reads and decodes the CUE descriptor at path. The file must
// carry a top-level "workflow" struct:
//
//	workflow: {
//		buildings: {count: 80000, samples: 10000}
//		steps: ["ResidentialLocation", "ResidentialConstruction"]
//	}
//
// Both buildings and steps are optional; a descriptor that declares
// neither is valid but only useful as a placeholder.
func Load(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &DescriptorError{Path: path, Message: err.Error()}
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(raw, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, &DescriptorError{Path: path, Message: formatCUEError(err)}
	}

	wf := v.LookupPath(cue.ParsePath("workflow"))
	if !wf.Exists() {
		return nil, &DescriptorError{Path: path, Message: "missing top-level workflow struct"}
	}
	if err := wf.Err(); err != nil {
		return nil, &DescriptorError{Path: path, Message: formatCUEError(err)}
	}

	d := &Descriptor{Path: path}
	if err := wf.Decode(d); err != nil {
		return nil, &DescriptorError{Path: path, Message: formatCUEError(err)}
	}
	if d.Buildings.Count < 0 || d.Buildings.Samples < 0 {
		return nil, &DescriptorError{Path: path, Message: "buildings.count and buildings.samples must not be negative"}
	}
	return d, nil
}

// formatCUEError flattens a CUE error list into one line-positioned
// message.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	first := errs[0]
	pos := first.Position()
	if pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), first.Error())
	}
	return first.Error()
}
