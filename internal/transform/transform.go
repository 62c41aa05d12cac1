// Package transform defines the Transformation model: the analyzer's
// source-agnostic representation of one detected dataframe operation.
//
// Transformations are created once by the analyzer, never mutated, and
// consumed exactly once by the synthesizer. The Kind fully determines
// which Params keys are meaningful; consumers must not inspect params
// for kinds they were not designed to handle.
package transform

// Kind identifies the operation a Transformation represents.
// The set is closed: the analyzer maps anything it cannot classify to
// KindUnknown rather than inventing new kinds at run time.
type Kind string

const (
	KindRead            Kind = "read"
	KindWrite           Kind = "write"
	KindRenameColumns   Kind = "rename_columns"
	KindDropColumns     Kind = "drop_columns"
	KindCreateColumn    Kind = "create_column"
	KindFillMissing     Kind = "fill_missing"
	KindDropMissing     Kind = "drop_missing"
	KindTypeCast        Kind = "type_cast"
	KindStringTransform Kind = "string_transform"
	KindDateParse       Kind = "date_parse"
	KindFilter          Kind = "filter"
	KindSort            Kind = "sort"
	KindMerge           Kind = "merge"
	KindGroupAggregate  Kind = "group_aggregate"
	KindConcat          Kind = "concat"
	KindPivot           Kind = "pivot"
	KindWindow          Kind = "window"
	KindDistinct        Kind = "distinct"
	KindTopN            Kind = "top_n"
	KindSample          Kind = "sample"
	KindAlias           Kind = "alias"
	KindUnknown         Kind = "unknown"
)

// IsColumnLevel reports whether the kind is a column/value-level operation
// that the synthesizer buffers into a multi-step prepare recipe.
func (k Kind) IsColumnLevel() bool {
	switch k {
	case KindRenameColumns, KindDropColumns, KindCreateColumn,
		KindFillMissing, KindDropMissing, KindTypeCast,
		KindStringTransform, KindDateParse:
		return true
	default:
		return false
	}
}

// IsRelational reports whether the kind is lowered to a dedicated
// single-purpose recipe, flushing any buffered prepare steps first.
func (k Kind) IsRelational() bool {
	switch k {
	case KindFilter, KindSort, KindMerge, KindGroupAggregate, KindConcat,
		KindPivot, KindWindow, KindDistinct, KindTopN, KindSample,
		KindUnknown:
		return true
	default:
		return false
	}
}

// Well-known Params keys. Kind determines which keys are present.
const (
	ParamPath        = "path"       // read/write: file path
	ParamFormat      = "format"     // read/write: csv, parquet, excel, json
	ParamMapping     = "mapping"    // rename/type_cast/aggregate: column map
	ParamValue       = "value"      // fill_missing: fill value
	ParamCondition   = "condition"  // filter: condition text
	ParamColumns     = "columns"    // sort/group: column list
	ParamAscending   = "ascending"  // sort: bool or list
	ParamHow         = "how"        // merge: join type; drop_missing: any/all
	ParamOn          = "on"         // merge: shared join keys
	ParamLeftOn      = "left_on"    // merge: left-side join keys
	ParamRightOn     = "right_on"   // merge: right-side join keys
	ParamOther       = "other"      // merge/concat: other input variables
	ParamKeys        = "keys"       // group_aggregate: group keys
	ParamAggregates  = "aggregates" // group_aggregate: column → func
	ParamExpression  = "expression" // create_column: formula text
	ParamTransform   = "transform"  // string_transform: upper, lower, strip...
	ParamN           = "n"          // top_n/sample: row count
	ParamFrac        = "frac"       // sample: fraction
	ParamMethod      = "method"     // window: rolling, shift, cumsum...
	ParamWindowSize  = "window"     // window: window size
	ParamSourceCol   = "source"     // create/string/date: source column
	ParamKeep        = "keep"       // drop_columns: keep listed columns instead
	ParamDescription = "desc"       // unknown: original call text
)

// NoteFallback marks a Transformation whose operation cannot be expressed
// with the platform's visual processors and must become a code recipe.
const NoteFallback = "requires code-recipe fallback"

// Pair is one ordered key/value entry from a source-script dict literal
// (rename mappings, dtype maps, aggregation specs). A slice of Pairs
// preserves source order, which plain maps cannot.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Transformation is one detected operation, in source order.
type Transformation struct {
	Kind       Kind           `json:"kind"`
	Source     string         `json:"source,omitempty"` // originating variable
	Target     string         `json:"target,omitempty"` // variable receiving the result
	Columns    []string       `json:"columns,omitempty"`
	Params     map[string]any `json:"parameters,omitempty"`
	SourceLine int            `json:"source_line,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}

// RequiresFallback reports whether the transformation was flagged for a
// code-recipe fallback by the analyzer.
func (t *Transformation) RequiresFallback() bool {
	return t.Notes == NoteFallback || t.Kind == KindUnknown
}

// PairsParam returns the named parameter as an ordered Pair slice, or nil.
func (t *Transformation) PairsParam(key string) []Pair {
	if v, ok := t.Params[key].([]Pair); ok {
		return v
	}
	return nil
}

// StringParam returns the named parameter as a string, or "" when absent
// or of another type.
func (t *Transformation) StringParam(key string) string {
	if v, ok := t.Params[key].(string); ok {
		return v
	}
	return ""
}

// StringsParam returns the named parameter as a string slice. A scalar
// string is promoted to a one-element slice.
func (t *Transformation) StringsParam(key string) []string {
	switch v := t.Params[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
