package dwarfparser

import (
	"debug/dwarf"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// UnitReport describes what happened while parsing one compilation unit.
type UnitReport struct {
	Index  int
	Name   string
	Offset dwarf.Offset
	// Nodes is the number of nodes registered by this unit.
	Nodes int
	// Skipped is the number of DIEs that were dropped, with their subtree.
	Skipped int
	// Issues are the MalformedDIE and UnsupportedConstruct errors found in
	// this unit. None of them stopped the parse.
	Issues []error
}

// Report is the result of a Parse besides the SymbolManager.
type Report struct {
	Units []UnitReport
}

// Issues returns the issues of all units.
func (r *Report) Issues() []error {
	var issues []error
	for i := range r.Units {
		issues = append(issues, r.Units[i].Issues...)
	}
	return issues
}

// Err returns all issues combined in a single error, or nil.
func (r *Report) Err() error {
	return multierr.Combine(r.Issues()...)
}

// Nodes returns the total number of registered nodes.
func (r *Report) Nodes() int {
	n := 0
	for i := range r.Units {
		n += r.Units[i].Nodes
	}
	return n
}

// Fprint writes a summary of r to w, one line per unit with issues.
func (r *Report) Fprint(w io.Writer, verbose bool) {
	var issues, skipped int
	for i := range r.Units {
		u := &r.Units[i]
		issues += len(u.Issues)
		skipped += u.Skipped
		if len(u.Issues) == 0 && !verbose {
			continue
		}
		fmt.Fprintf(w, "unit %d %s at %#x: %d nodes, %d skipped, %d issues\n", u.Index, u.Name, u.Offset, u.Nodes, u.Skipped, len(u.Issues))
		if verbose {
			for _, issue := range u.Issues {
				fmt.Fprintf(w, "\t%v\n", issue)
			}
		}
	}
	fmt.Fprintf(w, "%d units, %d nodes, %d skipped, %d issues\n", len(r.Units), r.Nodes(), skipped, issues)
}
