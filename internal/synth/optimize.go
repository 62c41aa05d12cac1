package synth

import (
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/flow"
)

// Optimize runs the lightweight post-synthesis pass: adjacent prepare
// recipes connected by a private intermediate dataset are merged into
// one, and flow-level advisory notes are recorded. The pass mutates the
// flow in place and never invalidates it.
func Optimize(f *flow.Flow) {
	for mergeOnce(f) {
	}
	advise(f)
}

// mergeOnce merges the first eligible prepare pair and reports whether a
// merge happened. Eligible means the upstream recipe's only output feeds
// exactly one consumer, the downstream prepare, through an intermediate
// dataset nothing else references.
func mergeOnce(f *flow.Flow) bool {
	for _, up := range f.Recipes {
		if up.Kind != flow.RecipePrepare || len(up.Outputs) != 1 {
			continue
		}
		mid := up.Outputs[0]
		d := f.Dataset(mid)
		if d == nil || d.Role != flow.RoleIntermediate {
			continue
		}
		consumers := consumersOf(f, mid)
		if len(consumers) != 1 {
			continue
		}
		down := consumers[0]
		if down.Kind != flow.RecipePrepare || len(down.Inputs) != 1 {
			continue
		}

		up.Steps = append(up.Steps, down.Steps...)
		up.SourceLines = append(up.SourceLines, down.SourceLines...)
		up.Outputs = down.Outputs
		removeRecipe(f, down)
		removeDataset(f, mid)
		f.AddOptimizationNote(fmt.Sprintf(
			"merged prepare recipe %s into %s", down.Name, up.Name))
		return true
	}
	return false
}

// advise records warnings about datasets nothing consumes. Purely
// advisory: a dangling dataset never blocks output.
func advise(f *flow.Flow) {
	for _, d := range f.Datasets {
		if d.Role == flow.RoleOutput {
			continue
		}
		if len(consumersOf(f, d.Name)) == 0 && f.ProducerOf(d.Name) != nil {
			f.AddOptimizationNote(fmt.Sprintf(
				"dataset %s is produced but never consumed", d.Name))
		}
	}
}

func consumersOf(f *flow.Flow, dataset string) []*flow.Recipe {
	var out []*flow.Recipe
	for _, r := range f.Recipes {
		for _, in := range r.Inputs {
			if in == dataset {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func removeRecipe(f *flow.Flow, target *flow.Recipe) {
	for i, r := range f.Recipes {
		if r == target {
			f.Recipes = append(f.Recipes[:i], f.Recipes[i+1:]...)
			return
		}
	}
}

func removeDataset(f *flow.Flow, name string) {
	for i, d := range f.Datasets {
		if d.Name == name {
			f.Datasets = append(f.Datasets[:i], f.Datasets[i+1:]...)
			return
		}
	}
}
