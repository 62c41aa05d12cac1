package flow

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// The map form is the compatibility contract with the platform importer:
// key names and nesting must not change without a version bump.
//
// ToMap then FromMap then ToMap is byte-for-byte stable for every recipe
// kind.

// ToMap serializes the flow to its stable map shape.
func (f *Flow) ToMap() map[string]any {
	datasets := make([]any, 0, len(f.Datasets))
	for _, d := range f.Datasets {
		datasets = append(datasets, d.toMap())
	}
	recipes := make([]any, 0, len(f.Recipes))
	for _, r := range f.Recipes {
		recipes = append(recipes, r.toMap())
	}
	m := map[string]any{
		"flow_name": f.Name,
		"datasets":  datasets,
		"recipes":   recipes,
	}
	if len(f.OptimizationNotes) > 0 {
		m["optimization_notes"] = append([]string{}, f.OptimizationNotes...)
	}
	if len(f.Recommendations) > 0 {
		m["recommendations"] = append([]string{}, f.Recommendations...)
	}
	return m
}

func (d *Dataset) toMap() map[string]any {
	m := map[string]any{
		"name": d.Name,
		"type": string(d.Role),
	}
	if len(d.Schema) > 0 {
		m["schema"] = append([]string{}, d.Schema...)
	}
	if d.SourceVariable != "" {
		m["source_variable"] = d.SourceVariable
	}
	if d.SourceLine > 0 {
		m["source_line"] = d.SourceLine
	}
	return m
}

func (r *Recipe) toMap() map[string]any {
	m := map[string]any{
		"name":    r.Name,
		"type":    string(r.Kind),
		"inputs":  append([]string{}, r.Inputs...),
		"outputs": append([]string{}, r.Outputs...),
	}
	switch r.Kind {
	case RecipePrepare:
		steps := make([]any, 0, len(r.Steps))
		for _, s := range r.Steps {
			steps = append(steps, map[string]any{
				"type":     s.Type,
				"params":   s.Params,
				"disabled": s.Disabled,
			})
		}
		m["steps"] = steps
	case RecipeJoin:
		if r.Join != nil {
			m["joinType"] = r.Join.JoinType
			joins := make([]any, 0, len(r.Join.Joins))
			for _, j := range r.Join.Joins {
				joins = append(joins, map[string]any{
					"left":  map[string]any{"column": j.Left.Column},
					"right": map[string]any{"column": j.Right.Column},
				})
			}
			m["joins"] = joins
		}
	case RecipeGroup:
		if r.Group != nil {
			keys := make([]any, 0, len(r.Group.Keys))
			for _, k := range r.Group.Keys {
				keys = append(keys, map[string]any{"column": k.Column})
			}
			m["keys"] = keys
			aggs := make([]any, 0, len(r.Group.Aggregations))
			for _, a := range r.Group.Aggregations {
				agg := map[string]any{"column": a.Column, "type": a.Type}
				if a.OutputColumn != "" {
					agg["outputColumn"] = a.OutputColumn
				}
				aggs = append(aggs, agg)
			}
			m["aggregations"] = aggs
		}
	case RecipeCode:
		m["code"] = r.Code
	default:
		if len(r.Params) > 0 {
			m["settings"] = r.Params
		}
	}
	if len(r.SourceLines) > 0 {
		m["source_lines"] = append([]int{}, r.SourceLines...)
	}
	if len(r.Notes) > 0 {
		m["notes"] = append([]string{}, r.Notes...)
	}
	return m
}

// FromMap reconstructs a flow from its map shape.
func FromMap(m map[string]any) (*Flow, error) {
	f := New(asString(m["flow_name"]))
	for i, raw := range asList(m["datasets"]) {
		dm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("flow: dataset %d is not a map", i)
		}
		f.Datasets = append(f.Datasets, datasetFromMap(dm))
	}
	for i, raw := range asList(m["recipes"]) {
		rm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("flow: recipe %d is not a map", i)
		}
		r, err := recipeFromMap(rm)
		if err != nil {
			return nil, err
		}
		f.Recipes = append(f.Recipes, r)
	}
	f.OptimizationNotes = asStrings(m["optimization_notes"])
	f.Recommendations = asStrings(m["recommendations"])
	return f, nil
}

func datasetFromMap(m map[string]any) *Dataset {
	return &Dataset{
		Name:           asString(m["name"]),
		Role:           DatasetRole(asString(m["type"])),
		Schema:         asStrings(m["schema"]),
		SourceVariable: asString(m["source_variable"]),
		SourceLine:     asInt(m["source_line"]),
	}
}

func recipeFromMap(m map[string]any) (*Recipe, error) {
	r := &Recipe{
		Name:    asString(m["name"]),
		Kind:    RecipeKind(asString(m["type"])),
		Inputs:  asStrings(m["inputs"]),
		Outputs: asStrings(m["outputs"]),
	}
	switch r.Kind {
	case RecipePrepare:
		for _, raw := range asList(m["steps"]) {
			sm, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("flow: step in recipe %q is not a map", r.Name)
			}
			params, _ := sm["params"].(map[string]any)
			disabled, _ := sm["disabled"].(bool)
			r.Steps = append(r.Steps, Step{
				Type:     asString(sm["type"]),
				Params:   params,
				Disabled: disabled,
			})
		}
	case RecipeJoin:
		if _, ok := m["joinType"]; ok {
			js := &JoinSettings{JoinType: asString(m["joinType"])}
			for _, raw := range asList(m["joins"]) {
				jm, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				js.Joins = append(js.Joins, JoinPair{
					Left:  JoinColumn{Column: sideColumn(jm["left"])},
					Right: JoinColumn{Column: sideColumn(jm["right"])},
				})
			}
			r.Join = js
		}
	case RecipeGroup:
		if _, ok := m["keys"]; ok {
			gs := &GroupSettings{}
			for _, raw := range asList(m["keys"]) {
				if km, ok := raw.(map[string]any); ok {
					gs.Keys = append(gs.Keys, GroupKey{Column: asString(km["column"])})
				}
			}
			for _, raw := range asList(m["aggregations"]) {
				if am, ok := raw.(map[string]any); ok {
					gs.Aggregations = append(gs.Aggregations, Aggregation{
						Column:       asString(am["column"]),
						Type:         asString(am["type"]),
						OutputColumn: asString(am["outputColumn"]),
					})
				}
			}
			r.Group = gs
		}
	case RecipeCode:
		r.Code = asString(m["code"])
	default:
		if settings, ok := m["settings"].(map[string]any); ok {
			r.Params = settings
		}
	}
	r.SourceLines = asInts(m["source_lines"])
	r.Notes = asStrings(m["notes"])
	return r, nil
}

func sideColumn(v any) string {
	if m, ok := v.(map[string]any); ok {
		return asString(m["column"])
	}
	return ""
}

// JSON serializes the flow's map shape with sorted keys and stable
// indentation.
func (f *Flow) JSON() ([]byte, error) {
	return json.MarshalIndent(f.ToMap(), "", "  ")
}

// FromJSON reconstructs a flow from its JSON form.
func FromJSON(data []byte) (*Flow, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("flow: decode json: %w", err)
	}
	return FromMap(m)
}

// YAML serializes the flow's map shape as YAML with sorted keys.
func (f *Flow) YAML() ([]byte, error) {
	return yaml.Marshal(f.ToMap())
}

// WriteText writes the line-oriented structured-text form: one line per
// dataset, recipe, and step, with params rendered as sorted-key JSON.
func (f *Flow) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "flow: %s\n", f.Name)
	for _, d := range f.Datasets {
		fmt.Fprintf(&b, "dataset: %s type=%s", d.Name, d.Role)
		if d.SourceVariable != "" {
			fmt.Fprintf(&b, " variable=%s", d.SourceVariable)
		}
		if d.SourceLine > 0 {
			fmt.Fprintf(&b, " line=%d", d.SourceLine)
		}
		b.WriteString("\n")
	}
	for _, r := range f.Recipes {
		fmt.Fprintf(&b, "recipe: %s type=%s inputs=%s outputs=%s\n",
			r.Name, r.Kind,
			strings.Join(r.Inputs, ","), strings.Join(r.Outputs, ","))
		for _, s := range r.Steps {
			fmt.Fprintf(&b, "  step: %s params=%s\n", s.Type, compactJSON(s.Params))
		}
		if r.Join != nil {
			fmt.Fprintf(&b, "  join: type=%s pairs=%s\n",
				r.Join.JoinType, compactJSON(r.Join.Joins))
		}
		if r.Group != nil {
			fmt.Fprintf(&b, "  group: keys=%s aggregations=%s\n",
				compactJSON(r.Group.Keys), compactJSON(r.Group.Aggregations))
		}
		if len(r.Params) > 0 {
			fmt.Fprintf(&b, "  settings: %s\n", compactJSON(r.Params))
		}
		for _, note := range r.Notes {
			fmt.Fprintf(&b, "  note: %s\n", note)
		}
	}
	for _, note := range f.OptimizationNotes {
		fmt.Fprintf(&b, "note: %s\n", note)
	}
	for _, rec := range f.Recommendations {
		fmt.Fprintf(&b, "recommendation: %s\n", rec)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Text returns the line-oriented form as a string.
func (f *Flow) Text() string {
	var b strings.Builder
	_ = f.WriteText(&b)
	return b.String()
}

// compactJSON renders a value as single-line JSON; map keys come out
// sorted, keeping the text form stable.
func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ---------- loose-typed accessors for the map form ----------

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return nil
}

func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		if len(list) == 0 {
			return nil
		}
		return append([]string{}, list...)
	case []any:
		var out []string
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asInts(v any) []int {
	switch list := v.(type) {
	case []int:
		if len(list) == 0 {
			return nil
		}
		return append([]int{}, list...)
	case []any:
		var out []int
		for _, e := range list {
			out = append(out, asInt(e))
		}
		return out
	default:
		return nil
	}
}
