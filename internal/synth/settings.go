package synth

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapflow/internal/flow"
	"github.com/leapstack-labs/leapflow/internal/transform"
)

// The analyzer's parameter bags are stringly typed by necessity. They are
// projected into the typed structs below before any recipe settings are
// built, so the untyped zone ends here.

type mergeParams struct {
	Other   string   `mapstructure:"other"`
	How     string   `mapstructure:"how"`
	On      []string `mapstructure:"on"`
	LeftOn  []string `mapstructure:"left_on"`
	RightOn []string `mapstructure:"right_on"`
}

type filterParams struct {
	Condition string `mapstructure:"condition"`
}

type sortParams struct {
	Ascending string `mapstructure:"ascending"`
}

type windowParams struct {
	Method string `mapstructure:"method"`
	Window string `mapstructure:"window"`
	N      string `mapstructure:"n"`
}

type topNParams struct {
	N      string `mapstructure:"n"`
	Method string `mapstructure:"method"`
}

type sampleParams struct {
	N    string `mapstructure:"n"`
	Frac string `mapstructure:"frac"`
}

type fillParams struct {
	Value  string `mapstructure:"value"`
	Method string `mapstructure:"method"`
}

type dropMissingParams struct {
	How string `mapstructure:"how"`
}

// decode projects a parameter bag into a typed struct, coercing scalar
// mismatches leniently. Unknown keys are ignored: the kind determines
// which keys are meaningful.
func decode[T any](params map[string]any) T {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err == nil {
		_ = dec.Decode(params)
	}
	return out
}

// ---------- recipe settings ----------

func filterSettings(t *transform.Transformation) map[string]any {
	p := decode[filterParams](t.Params)
	return map[string]any{"condition": p.Condition}
}

func sortSettings(t *transform.Transformation) map[string]any {
	p := decode[sortParams](t.Params)
	asc := p.Ascending
	if asc == "" {
		asc = "True"
	}
	return map[string]any{
		"columns":   append([]string{}, t.Columns...),
		"ascending": asc,
	}
}

func windowSettings(t *transform.Transformation) map[string]any {
	p := decode[windowParams](t.Params)
	settings := map[string]any{"method": p.Method}
	if p.Window != "" {
		settings["window"] = p.Window
	}
	if p.N != "" {
		settings["n"] = p.N
	}
	return settings
}

func distinctSettings(t *transform.Transformation) map[string]any {
	return map[string]any{"columns": append([]string{}, t.Columns...)}
}

func topNSettings(t *transform.Transformation) map[string]any {
	p := decode[topNParams](t.Params)
	settings := map[string]any{"n": p.N}
	if p.Method != "" {
		settings["method"] = p.Method
	}
	if len(t.Columns) > 0 {
		settings["columns"] = append([]string{}, t.Columns...)
	}
	return settings
}

func sampleSettings(t *transform.Transformation) map[string]any {
	p := decode[sampleParams](t.Params)
	settings := map[string]any{}
	if p.N != "" {
		settings["n"] = p.N
	}
	if p.Frac != "" {
		settings["frac"] = p.Frac
	}
	return settings
}

// joinTypes maps source join names onto the platform's vocabulary.
var joinTypes = map[string]string{
	"left":  "LEFT",
	"right": "RIGHT",
	"inner": "INNER",
	"outer": "FULL",
	"cross": "CROSS",
}

func joinSettings(p mergeParams) *flow.JoinSettings {
	jt, ok := joinTypes[p.How]
	if !ok {
		jt = "INNER"
	}
	js := &flow.JoinSettings{JoinType: jt}
	switch {
	case len(p.On) > 0:
		for _, col := range p.On {
			js.Joins = append(js.Joins, flow.JoinPair{
				Left:  flow.JoinColumn{Column: col},
				Right: flow.JoinColumn{Column: col},
			})
		}
	case len(p.LeftOn) > 0:
		for i, left := range p.LeftOn {
			right := left
			if i < len(p.RightOn) {
				right = p.RightOn[i]
			}
			js.Joins = append(js.Joins, flow.JoinPair{
				Left:  flow.JoinColumn{Column: left},
				Right: flow.JoinColumn{Column: right},
			})
		}
	}
	return js
}

// aggTypes maps source aggregation function names onto the platform's
// vocabulary.
var aggTypes = map[string]string{
	"sum":     "SUM",
	"mean":    "AVG",
	"avg":     "AVG",
	"count":   "COUNT",
	"size":    "COUNT",
	"min":     "MIN",
	"max":     "MAX",
	"median":  "MEDIAN",
	"std":     "STDDEV",
	"var":     "VARIANCE",
	"first":   "FIRST",
	"last":    "LAST",
	"nunique": "COUNT_DISTINCT",
}

func aggType(fn string) string {
	if t, ok := aggTypes[fn]; ok {
		return t
	}
	return strings.ToUpper(fn)
}

func groupSettings(t *transform.Transformation) *flow.GroupSettings {
	gs := &flow.GroupSettings{}
	for _, key := range t.StringsParam(transform.ParamKeys) {
		gs.Keys = append(gs.Keys, flow.GroupKey{Column: key})
	}
	for _, pair := range t.PairsParam(transform.ParamAggregates) {
		gs.Aggregations = append(gs.Aggregations, flow.Aggregation{
			Column: pair.Key,
			Type:   aggType(pair.Value),
		})
	}
	return gs
}

// ---------- prepare step lowering ----------

// Processor type names understood by the target platform.
const (
	ProcColumnRenamer     = "ColumnRenamer"
	ProcColumnsSelector   = "ColumnsSelector"
	ProcCreateColumn      = "CreateColumnWithExpr"
	ProcFillEmpty         = "FillEmptyWithValue"
	ProcRemoveRowsOnEmpty = "RemoveRowsOnEmpty"
	ProcTypeSetter        = "TypeSetter"
	ProcStringTransformer = "StringTransformer"
	ProcDateParser        = "DateParser"
)

// stepFor lowers one column-level transformation to a prepare step.
func stepFor(t *transform.Transformation) flow.Step {
	switch t.Kind {
	case transform.KindRenameColumns:
		var renamings []map[string]any
		for _, p := range t.PairsParam(transform.ParamMapping) {
			renamings = append(renamings, map[string]any{"from": p.Key, "to": p.Value})
		}
		return flow.Step{Type: ProcColumnRenamer, Params: map[string]any{"renamings": renamings}}

	case transform.KindDropColumns:
		keep, _ := t.Params[transform.ParamKeep].(bool)
		return flow.Step{Type: ProcColumnsSelector, Params: map[string]any{
			"columns": append([]string{}, t.Columns...),
			"keep":    keep,
		}}

	case transform.KindCreateColumn:
		return flow.Step{Type: ProcCreateColumn, Params: map[string]any{
			"column":     firstColumn(t),
			"expression": t.StringParam(transform.ParamExpression),
		}}

	case transform.KindFillMissing:
		p := decode[fillParams](t.Params)
		params := map[string]any{"value": p.Value}
		if p.Method != "" {
			params["method"] = p.Method
		}
		if len(t.Columns) > 0 {
			params["columns"] = append([]string{}, t.Columns...)
		}
		return flow.Step{Type: ProcFillEmpty, Params: params}

	case transform.KindDropMissing:
		p := decode[dropMissingParams](t.Params)
		how := p.How
		if how == "" {
			how = "any"
		}
		params := map[string]any{"how": how}
		if len(t.Columns) > 0 {
			params["columns"] = append([]string{}, t.Columns...)
		}
		return flow.Step{Type: ProcRemoveRowsOnEmpty, Params: params}

	case transform.KindTypeCast:
		if pairs := t.PairsParam(transform.ParamMapping); len(pairs) > 0 {
			var types []map[string]any
			for _, p := range pairs {
				types = append(types, map[string]any{"column": p.Key, "type": p.Value})
			}
			return flow.Step{Type: ProcTypeSetter, Params: map[string]any{"types": types}}
		}
		params := map[string]any{"type": t.StringParam(transform.ParamValue)}
		if len(t.Columns) > 0 {
			params["columns"] = append([]string{}, t.Columns...)
		}
		return flow.Step{Type: ProcTypeSetter, Params: params}

	case transform.KindStringTransform:
		return flow.Step{Type: ProcStringTransformer, Params: map[string]any{
			"column": firstColumn(t),
			"source": t.StringParam(transform.ParamSourceCol),
			"mode":   t.StringParam(transform.ParamTransform),
		}}

	case transform.KindDateParse:
		params := map[string]any{"column": firstColumn(t)}
		if src := t.StringParam(transform.ParamSourceCol); src != "" {
			params["source"] = src
		}
		if f := t.StringParam(transform.ParamFormat); f != "" {
			params["format"] = f
		}
		return flow.Step{Type: ProcDateParser, Params: params}
	}
	// Unreachable: bufferStep only receives column-level kinds.
	return flow.Step{Type: "Unknown", Params: map[string]any{}}
}

func firstColumn(t *transform.Transformation) string {
	if len(t.Columns) > 0 {
		return t.Columns[0]
	}
	return ""
}
