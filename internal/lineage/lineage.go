// Package lineage traces a column backward through a flow to its origin
// dataset and column, collecting the transformations applied along the
// way.
package lineage

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/flow"
)

// ErrEmptyFlow is returned when tracing against a flow with no datasets.
var ErrEmptyFlow = errors.New("lineage: flow has no datasets")

// UnknownDatasetError is returned when the explicitly requested dataset
// does not exist in the flow.
type UnknownDatasetError struct {
	Name string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("lineage: unknown dataset %q", e.Name)
}

// Entry is one transformation encountered on the trace, in application
// order.
type Entry struct {
	Recipe      string          `json:"recipe"`
	Kind        flow.RecipeKind `json:"kind"`
	Description string          `json:"description"`
}

// Lineage is the result of one trace.
type Lineage struct {
	Column          string  `json:"column"`
	FinalDataset    string  `json:"final_dataset"`
	OriginDataset   string  `json:"origin_dataset"`
	OriginColumn    string  `json:"origin_column"`
	Transformations []Entry `json:"transformations"`
}

// Trace follows column backward from dataset (or, when dataset is empty,
// from the last output dataset, falling back to the last dataset of any
// role). It stops at the first dataset with no producing recipe, or on
// revisiting a dataset.
//
// Join recipes are recorded without resolving which input side the
// column came from; that ambiguity is a known limitation.
func Trace(f *flow.Flow, column, dataset string) (*Lineage, error) {
	start, err := resolveStart(f, dataset)
	if err != nil {
		return nil, err
	}

	lin := &Lineage{Column: column, FinalDataset: start}
	cur := start
	tracked := column
	visited := map[string]bool{}

	for {
		producer := f.ProducerOf(cur)
		if producer == nil || visited[cur] {
			break
		}
		visited[cur] = true
		tracked = applyRecipe(lin, producer, tracked)
		if len(producer.Inputs) == 0 {
			break
		}
		cur = producer.Inputs[0]
	}

	lin.OriginDataset = cur
	lin.OriginColumn = tracked
	reverseEntries(lin.Transformations)
	return lin, nil
}

func resolveStart(f *flow.Flow, dataset string) (string, error) {
	if len(f.Datasets) == 0 {
		return "", ErrEmptyFlow
	}
	if dataset != "" {
		if f.Dataset(dataset) == nil {
			return "", &UnknownDatasetError{Name: dataset}
		}
		return dataset, nil
	}
	if outputs := f.OutputDatasets(); len(outputs) > 0 {
		return outputs[len(outputs)-1].Name, nil
	}
	return f.Datasets[len(f.Datasets)-1].Name, nil
}

// applyRecipe records the recipe's effect on the tracked column and
// returns the upstream column name to keep tracking.
func applyRecipe(lin *Lineage, r *flow.Recipe, tracked string) string {
	switch r.Kind {
	case flow.RecipePrepare:
		return applyPrepare(lin, r, tracked)
	case flow.RecipeGroup:
		return applyGroup(lin, r, tracked)
	case flow.RecipeJoin:
		jt := ""
		if r.Join != nil {
			jt = r.Join.JoinType
		}
		record(lin, r, fmt.Sprintf("passed through %s join (input side unresolved)", jt))
		return tracked
	default:
		record(lin, r, fmt.Sprintf("passed through %s recipe", r.Kind))
		return tracked
	}
}

// applyPrepare scans steps in reverse, rewriting the tracked name across
// renames and copies and recording in-place transforms that touch it.
func applyPrepare(lin *Lineage, r *flow.Recipe, tracked string) string {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		step := r.Steps[i]
		switch step.Type {
		case "ColumnRenamer":
			for _, ren := range mapList(step.Params["renamings"]) {
				from, to := stringAt(ren, "from"), stringAt(ren, "to")
				if to == tracked {
					record(lin, r, fmt.Sprintf("renamed from %s to %s", from, to))
					tracked = from
				}
			}
		case "CreateColumnWithExpr":
			if stringAt(step.Params, "column") == tracked {
				record(lin, r, fmt.Sprintf("computed as %s", stringAt(step.Params, "expression")))
			}
		case "StringTransformer", "DateParser":
			if stringAt(step.Params, "column") == tracked {
				if src := stringAt(step.Params, "source"); src != "" {
					record(lin, r, fmt.Sprintf("derived from %s via %s", src, step.Type))
					tracked = src
				} else {
					record(lin, r, fmt.Sprintf("transformed in place by %s", step.Type))
				}
			}
		case "FillEmptyWithValue", "TypeSetter", "RemoveRowsOnEmpty":
			if touchesColumn(step.Params, tracked) {
				record(lin, r, fmt.Sprintf("transformed in place by %s", step.Type))
			}
		}
	}
	return tracked
}

// applyGroup distinguishes group keys (passthrough) from aggregation
// outputs (rewritten to the aggregation's source column).
func applyGroup(lin *Lineage, r *flow.Recipe, tracked string) string {
	if r.Group == nil {
		record(lin, r, "passed through group recipe")
		return tracked
	}
	for _, key := range r.Group.Keys {
		if key.Column == tracked {
			record(lin, r, "group key (passed through)")
			return tracked
		}
	}
	for _, agg := range r.Group.Aggregations {
		out := agg.OutputColumn
		if out == "" {
			out = agg.Column
		}
		if out == tracked {
			record(lin, r, fmt.Sprintf("%s aggregation of %s", agg.Type, agg.Column))
			return agg.Column
		}
	}
	record(lin, r, "not produced by this aggregation")
	return tracked
}

func record(lin *Lineage, r *flow.Recipe, desc string) {
	lin.Transformations = append(lin.Transformations, Entry{
		Recipe:      r.Name,
		Kind:        r.Kind,
		Description: desc,
	})
}

func reverseEntries(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// mapList accepts either []map[string]any or the []any shape produced by
// JSON decoding.
func mapList(v any) []map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		var out []map[string]any
		for _, e := range list {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func stringAt(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// touchesColumn reports whether a step's column list includes the column;
// a step with no column list applies to every column.
func touchesColumn(params map[string]any, column string) bool {
	v, ok := params["columns"]
	if !ok {
		return true
	}
	switch cols := v.(type) {
	case []string:
		for _, c := range cols {
			if c == column {
				return true
			}
		}
		return false
	case []any:
		for _, c := range cols {
			if s, ok := c.(string); ok && s == column {
				return true
			}
		}
		return false
	default:
		return true
	}
}
