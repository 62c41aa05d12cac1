// Package flow defines the synthesized pipeline model: Datasets, Recipes,
// Steps, and the Flow that owns them.
//
// A Flow is mutable while the synthesizer appends to it and read-mostly
// afterward; the graph, optimizer, lineage tracer, and exporters only
// read a completed Flow.
package flow

import "fmt"

// DatasetRole describes a dataset's position in the flow.
type DatasetRole string

const (
	RoleInput        DatasetRole = "input"
	RoleIntermediate DatasetRole = "intermediate"
	RoleOutput       DatasetRole = "output"
)

// Dataset is a named data container node in the pipeline graph.
type Dataset struct {
	Name           string
	Role           DatasetRole
	Schema         []string // column names, when known
	SourceVariable string   // script variable the dataset originated from
	SourceLine     int
}

// RecipeKind identifies the transformation type of a recipe. The set is
// closed and fixed by the target platform's vocabulary.
type RecipeKind string

const (
	RecipePrepare  RecipeKind = "prepare"
	RecipeJoin     RecipeKind = "join"
	RecipeGroup    RecipeKind = "group"
	RecipeStack    RecipeKind = "stack"
	RecipeFilter   RecipeKind = "filter"
	RecipeSort     RecipeKind = "sort"
	RecipeWindow   RecipeKind = "window"
	RecipeSampling RecipeKind = "sampling"
	RecipeTopN     RecipeKind = "topn"
	RecipeDistinct RecipeKind = "distinct"
	RecipeCode     RecipeKind = "code"
)

// Step is one atomic processor inside a prepare recipe. Steps execute in
// list order.
type Step struct {
	Type     string
	Params   map[string]any
	Disabled bool
}

// JoinColumn names one side of a join key pair.
type JoinColumn struct {
	Column string `json:"column"`
}

// JoinPair is one left/right join key pairing.
type JoinPair struct {
	Left  JoinColumn `json:"left"`
	Right JoinColumn `json:"right"`
}

// JoinSettings holds join-recipe settings in the platform's shape.
type JoinSettings struct {
	JoinType string     `json:"joinType"` // LEFT, RIGHT, INNER, FULL, CROSS
	Joins    []JoinPair `json:"joins"`
}

// GroupKey names one grouping column.
type GroupKey struct {
	Column string `json:"column"`
}

// Aggregation is one aggregation spec in a group recipe.
type Aggregation struct {
	Column       string `json:"column"`
	Type         string `json:"type"` // SUM, AVG, MIN, MAX, COUNT, FIRST, LAST
	OutputColumn string `json:"outputColumn,omitempty"` // defaults to Column
}

// GroupSettings holds group-recipe settings in the platform's shape.
type GroupSettings struct {
	Keys         []GroupKey    `json:"keys"`
	Aggregations []Aggregation `json:"aggregations"`
}

// Recipe is one transformation step in the flow, with ordered inputs and
// outputs referencing Dataset names.
//
// Kind-specific settings (Steps, Join, Group, Code) may only be attached
// when the recipe kind matches; a mismatch is a programming error and
// panics immediately rather than being silently ignored.
type Recipe struct {
	Name    string
	Kind    RecipeKind
	Inputs  []string
	Outputs []string

	Steps []Step         // prepare only
	Join  *JoinSettings  // join only
	Group *GroupSettings // group only
	Code  string         // code only: generated stub body

	// Params carries the settings of single-purpose recipes
	// (filter, sort, sampling, topn, window, distinct, stack).
	Params map[string]any

	SourceLines []int
	Notes       []string
}

// AddStep appends a prepare step. Panics if the recipe is not a prepare
// recipe.
func (r *Recipe) AddStep(s Step) {
	if r.Kind != RecipePrepare {
		panic(fmt.Sprintf("flow: cannot add step to %s recipe %q", r.Kind, r.Name))
	}
	r.Steps = append(r.Steps, s)
}

// SetJoin attaches join settings. Panics if the recipe is not a join
// recipe.
func (r *Recipe) SetJoin(j *JoinSettings) {
	if r.Kind != RecipeJoin {
		panic(fmt.Sprintf("flow: cannot set join settings on %s recipe %q", r.Kind, r.Name))
	}
	r.Join = j
}

// SetGroup attaches group settings. Panics if the recipe is not a group
// recipe.
func (r *Recipe) SetGroup(g *GroupSettings) {
	if r.Kind != RecipeGroup {
		panic(fmt.Sprintf("flow: cannot set group settings on %s recipe %q", r.Kind, r.Name))
	}
	r.Group = g
}

// SetCode attaches a code stub. Panics if the recipe is not a code
// recipe.
func (r *Recipe) SetCode(code string) {
	if r.Kind != RecipeCode {
		panic(fmt.Sprintf("flow: cannot set code on %s recipe %q", r.Kind, r.Name))
	}
	r.Code = code
}

// Flow is the complete synthesized pipeline: datasets, recipes, and
// advisory metadata, in insertion order.
type Flow struct {
	Name     string
	Datasets []*Dataset
	Recipes  []*Recipe

	OptimizationNotes []string
	Recommendations   []string
}

// New creates an empty named flow.
func New(name string) *Flow {
	return &Flow{Name: name}
}

// Dataset returns the dataset with the given name, or nil.
func (f *Flow) Dataset(name string) *Dataset {
	for _, d := range f.Datasets {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Recipe returns the recipe with the given name, or nil.
func (f *Flow) Recipe(name string) *Recipe {
	for _, r := range f.Recipes {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// AddDataset appends a dataset. An existing dataset with the same name is
// kept; its role is widened to the new role when the new role is more
// specific than intermediate.
func (f *Flow) AddDataset(d *Dataset) *Dataset {
	if existing := f.Dataset(d.Name); existing != nil {
		if d.Role != RoleIntermediate {
			existing.Role = d.Role
		}
		if existing.SourceVariable == "" {
			existing.SourceVariable = d.SourceVariable
		}
		return existing
	}
	f.Datasets = append(f.Datasets, d)
	return d
}

// AddRecipe appends a recipe, auto-creating placeholder intermediate
// datasets for any input or output name not already declared. Every
// recipe reference therefore always resolves within the flow.
func (f *Flow) AddRecipe(r *Recipe) *Recipe {
	for _, name := range r.Inputs {
		f.ensureDataset(name)
	}
	for _, name := range r.Outputs {
		f.ensureDataset(name)
	}
	f.Recipes = append(f.Recipes, r)
	return r
}

// ensureDataset creates a placeholder intermediate dataset if absent.
func (f *Flow) ensureDataset(name string) *Dataset {
	if d := f.Dataset(name); d != nil {
		return d
	}
	d := &Dataset{Name: name, Role: RoleIntermediate}
	f.Datasets = append(f.Datasets, d)
	return d
}

// ProducerOf returns the recipe that writes the named dataset, or nil.
// Dataset names are unique per flow, so at most one producer exists in a
// well-formed flow; the first writer wins otherwise.
func (f *Flow) ProducerOf(dataset string) *Recipe {
	for _, r := range f.Recipes {
		for _, out := range r.Outputs {
			if out == dataset {
				return r
			}
		}
	}
	return nil
}

// OutputDatasets returns the datasets with the output role, in order.
func (f *Flow) OutputDatasets() []*Dataset {
	var out []*Dataset
	for _, d := range f.Datasets {
		if d.Role == RoleOutput {
			out = append(out, d)
		}
	}
	return out
}

// AddRecommendation records a flow-level recommendation.
func (f *Flow) AddRecommendation(msg string) {
	f.Recommendations = append(f.Recommendations, msg)
}

// AddOptimizationNote records a note from the optimizer pass.
func (f *Flow) AddOptimizationNote(msg string) {
	f.OptimizationNotes = append(f.OptimizationNotes, msg)
}
