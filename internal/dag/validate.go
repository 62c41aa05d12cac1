package dag

import (
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/flow"
)

// ValidationResult aggregates structural findings about a flow. Errors
// make the flow invalid; warnings are advisory and never block output.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks a synthesized flow's structure: name uniqueness,
// recipe references, acyclicity, and connectivity. It always returns a
// result, never an error; a partially valid flow is still useful output.
func Validate(f *flow.Flow) ValidationResult {
	res := ValidationResult{Valid: true}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	seenDatasets := map[string]bool{}
	for _, d := range f.Datasets {
		if seenDatasets[d.Name] {
			fail("duplicate dataset name %q", d.Name)
		}
		seenDatasets[d.Name] = true
	}

	seenRecipes := map[string]bool{}
	for _, r := range f.Recipes {
		if seenRecipes[r.Name] {
			fail("duplicate recipe name %q", r.Name)
		}
		seenRecipes[r.Name] = true

		for _, in := range r.Inputs {
			if !seenDatasets[in] {
				fail("recipe %q reads unknown dataset %q", r.Name, in)
			}
		}
		for _, out := range r.Outputs {
			if !seenDatasets[out] {
				fail("recipe %q writes unknown dataset %q", r.Name, out)
			}
		}
		if len(r.Outputs) == 0 {
			warn("recipe %q has no outputs", r.Name)
		}
	}

	g := Build(f)
	for _, cycle := range g.DetectCycles() {
		fail("cycle: %v", cycle)
	}

	if comps := g.Components(); len(comps) > 1 {
		warn("flow has %d disconnected components", len(comps))
	}

	for _, d := range f.Datasets {
		if d.Role == flow.RoleInput && f.ProducerOf(d.Name) != nil {
			warn("input dataset %q has a producing recipe", d.Name)
		}
	}

	return res
}
