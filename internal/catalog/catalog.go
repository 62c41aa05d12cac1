// Package catalog holds the static metadata for the processor and recipe
// vocabulary of the target platform: lookup tables used for listing,
// documentation, and step validation. The tables are immutable and built
// once at package init.
package catalog

// Processor describes one atomic step type usable inside a prepare
// recipe.
type Processor struct {
	Type        string
	Description string
	Params      []string // recognized parameter keys
}

// RecipeKind describes one recipe type and its settings vocabulary.
type RecipeKind struct {
	Kind        string
	Description string
	Settings    []string // top-level settings keys
}

// processors lists every supported prepare-step processor, in display
// order.
var processors = []Processor{
	{
		Type:        "ColumnRenamer",
		Description: "renames columns via an ordered from/to mapping",
		Params:      []string{"renamings"},
	},
	{
		Type:        "ColumnsSelector",
		Description: "keeps or removes a fixed set of columns",
		Params:      []string{"columns", "keep"},
	},
	{
		Type:        "CreateColumnWithExpr",
		Description: "adds a column computed from a formula expression",
		Params:      []string{"column", "expression"},
	},
	{
		Type:        "FillEmptyWithValue",
		Description: "replaces missing values with a constant or fill method",
		Params:      []string{"columns", "value", "method"},
	},
	{
		Type:        "RemoveRowsOnEmpty",
		Description: "drops rows with missing values in the given columns",
		Params:      []string{"columns", "how"},
	},
	{
		Type:        "TypeSetter",
		Description: "casts columns to explicit storage types",
		Params:      []string{"types", "columns", "type"},
	},
	{
		Type:        "StringTransformer",
		Description: "applies a string operation (upper, lower, strip, ...)",
		Params:      []string{"column", "source", "mode"},
	},
	{
		Type:        "DateParser",
		Description: "parses a column into dates with an optional format",
		Params:      []string{"column", "source", "format"},
	},
}

// recipeKinds lists every recipe type, in display order.
var recipeKinds = []RecipeKind{
	{Kind: "prepare", Description: "ordered multi-step column preparation", Settings: []string{"steps"}},
	{Kind: "join", Description: "two-input join on key pairs", Settings: []string{"joinType", "joins"}},
	{Kind: "group", Description: "group keys with aggregations", Settings: []string{"keys", "aggregations"}},
	{Kind: "stack", Description: "row-wise union of several inputs", Settings: nil},
	{Kind: "filter", Description: "keeps rows matching a condition", Settings: []string{"condition"}},
	{Kind: "sort", Description: "orders rows by columns", Settings: []string{"columns", "ascending"}},
	{Kind: "window", Description: "rolling and offset computations", Settings: []string{"method", "window", "n"}},
	{Kind: "sampling", Description: "row sampling by count or fraction", Settings: []string{"n", "frac"}},
	{Kind: "topn", Description: "first or last n rows", Settings: []string{"n", "method", "columns"}},
	{Kind: "distinct", Description: "removes duplicate rows", Settings: []string{"columns"}},
	{Kind: "code", Description: "manually authored fallback step", Settings: []string{"code"}},
}

var (
	processorIndex = map[string]Processor{}
	recipeIndex    = map[string]RecipeKind{}
)

func init() {
	for _, p := range processors {
		processorIndex[p.Type] = p
	}
	for _, r := range recipeKinds {
		recipeIndex[r.Kind] = r
	}
}

// Processors returns all processors in display order.
func Processors() []Processor {
	out := make([]Processor, len(processors))
	copy(out, processors)
	return out
}

// RecipeKinds returns all recipe kinds in display order.
func RecipeKinds() []RecipeKind {
	out := make([]RecipeKind, len(recipeKinds))
	copy(out, recipeKinds)
	return out
}

// LookupProcessor finds a processor by step type.
func LookupProcessor(stepType string) (Processor, bool) {
	p, ok := processorIndex[stepType]
	return p, ok
}

// LookupRecipeKind finds a recipe kind by name.
func LookupRecipeKind(kind string) (RecipeKind, bool) {
	r, ok := recipeIndex[kind]
	return r, ok
}
