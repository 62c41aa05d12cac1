// Package analyzer walks a parsed script and emits the ordered
// Transformation sequence the synthesizer consumes.
//
// Recognition is pattern-driven: the analyzer never evaluates anything,
// it matches call and assignment shapes. Anything it cannot classify
// becomes an unknown-kind transformation carrying the original call text,
// so no information is dropped silently.
package analyzer

import (
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/transform"
	"github.com/leapstack-labs/leapflow/pkg/pyscript"
)

// readFormats maps reader call names to the format they load.
var readFormats = map[string]string{
	"read_csv":     "csv",
	"read_table":   "csv",
	"read_parquet": "parquet",
	"read_excel":   "excel",
	"read_json":    "json",
}

// writeFormats maps writer method names to the format they emit.
var writeFormats = map[string]string{
	"to_csv":     "csv",
	"to_parquet": "parquet",
	"to_excel":   "excel",
	"to_json":    "json",
}

// Analyzer holds the per-run state of one analysis pass. A fresh Analyzer
// is created per script; nothing is shared between runs.
type Analyzer struct {
	// pandasAliases holds the names the pandas module is bound to,
	// collected from import statements. "pd" and "pandas" are assumed
	// even without an import, matching how scripts are written in
	// practice.
	pandasAliases map[string]bool

	// frames tracks variables known to hold a dataframe.
	frames map[string]bool

	// readPaths records the file path each frame variable was read from.
	readPaths map[string]string

	out      []*transform.Transformation
	chainSeq int
}

// Analyze parses the script and returns its transformations in source
// order. A parse failure propagates to the caller untouched.
func Analyze(src string) ([]*transform.Transformation, error) {
	mod, err := pyscript.Parse(src)
	if err != nil {
		return nil, err
	}
	a := New()
	return a.Module(mod), nil
}

// New returns an empty analyzer.
func New() *Analyzer {
	return &Analyzer{
		pandasAliases: map[string]bool{"pd": true, "pandas": true},
		frames:        map[string]bool{},
		readPaths:     map[string]string{},
	}
}

// Module analyzes a parsed module and returns the transformations found.
func (a *Analyzer) Module(mod *pyscript.Module) []*transform.Transformation {
	for _, st := range mod.Statements {
		switch s := st.(type) {
		case *pyscript.ImportStmt:
			a.importStmt(s)
		case *pyscript.AssignStmt:
			a.assign(s)
		case *pyscript.ExprStmt:
			a.exprStmt(s)
		case *pyscript.BlockStmt:
			a.blockStmt(s)
		}
	}
	return a.out
}

func (a *Analyzer) emit(t *transform.Transformation) {
	a.out = append(a.out, t)
}

func (a *Analyzer) nextChainVar(base string) string {
	a.chainSeq++
	// '#' cannot appear in a script identifier, so synthetic chain
	// variables never collide with real ones.
	return fmt.Sprintf("%s#%d", base, a.chainSeq)
}

func (a *Analyzer) importStmt(s *pyscript.ImportStmt) {
	if s.Module != "pandas" || len(s.Names) > 0 {
		return
	}
	alias := s.Alias
	if alias == "" {
		alias = "pandas"
	}
	a.pandasAliases[alias] = true
}

// blockStmt surfaces a compound statement (def, for, if, ...) as an
// operation requiring a code-recipe fallback. Its suite was captured
// verbatim by the parser and is not analyzed.
func (a *Analyzer) blockStmt(s *pyscript.BlockStmt) {
	a.emit(&transform.Transformation{
		Kind: transform.KindUnknown,
		Params: map[string]any{
			transform.ParamDescription: s.Header,
		},
		SourceLine: s.Line(),
		Notes:      transform.NoteFallback,
	})
}

func (a *Analyzer) assign(s *pyscript.AssignStmt) {
	switch target := s.Target.(type) {
	case *pyscript.Name:
		a.assignName(target.Ident, s.Value, s.Line())
	case *pyscript.Subscript:
		a.assignColumn(target, s.Value, s.Line())
	case *pyscript.Attribute:
		// df.columns = [...] and similar attribute writes have no
		// direct processor equivalent.
		if name, ok := target.Value.(*pyscript.Name); ok && a.frames[name.Ident] {
			a.emitUnknown(name.Ident, name.Ident, exprText(target)+" = "+exprText(s.Value), s.Line())
		}
	}
}

// assignName handles `target = <expr>` for a plain variable target.
func (a *Analyzer) assignName(target string, value pyscript.Expr, line int) {
	switch v := value.(type) {
	case *pyscript.Call:
		a.assignCall(target, v, line)
	case *pyscript.Subscript:
		a.assignSubscript(target, v, line)
	case *pyscript.Name:
		// Plain rebinding: `b = a`. The synthesizer needs the record to
		// bind both variables to the same dataset.
		if a.frames[v.Ident] {
			a.frames[target] = true
			a.emit(&transform.Transformation{
				Kind:       transform.KindAlias,
				Source:     v.Ident,
				Target:     target,
				SourceLine: line,
			})
		}
	default:
		if referencesFrame(value, a.frames) {
			a.emitUnknown("", target, exprText(value), line)
		}
	}
}

// assignCall classifies a call right-hand side: a reader, a module-level
// merge/concat, or a method chain.
func (a *Analyzer) assignCall(target string, call *pyscript.Call, line int) {
	if fn, recv, ok := qualifiedCall(call); ok && a.pandasAliases[recv] {
		if format, isRead := readFormats[fn]; isRead {
			a.emitRead(target, call, format, line)
			return
		}
		switch fn {
		case "merge":
			a.emitModuleMerge(target, call, line)
			return
		case "concat":
			a.emitConcat(target, call, line)
			return
		case "pivot_table":
			a.emitPivot("", target, call, line)
			return
		}
	}
	a.chain(target, call, line)
}

// assignSubscript handles `target = df[<index>]`: a boolean-mask filter,
// a column selection, or a positional slice.
func (a *Analyzer) assignSubscript(target string, sub *pyscript.Subscript, line int) {
	recv, ok := sub.Value.(*pyscript.Name)
	if !ok || !a.frames[recv.Ident] {
		if referencesFrame(sub, a.frames) {
			a.emitUnknown("", target, exprText(sub), line)
		}
		return
	}
	switch idx := sub.Index.(type) {
	case *pyscript.ListLit:
		cols := stringElems(idx)
		a.frames[target] = true
		a.emit(&transform.Transformation{
			Kind:    transform.KindDropColumns,
			Source:  recv.Ident,
			Target:  target,
			Columns: cols,
			Params:  map[string]any{transform.ParamKeep: true},
			SourceLine: line,
		})
	case *pyscript.StringLit:
		// Single-column selection: `s = df['a']` keeps one column.
		a.frames[target] = true
		a.emit(&transform.Transformation{
			Kind:       transform.KindDropColumns,
			Source:     recv.Ident,
			Target:     target,
			Columns:    []string{idx.Value},
			Params:     map[string]any{transform.ParamKeep: true},
			SourceLine: line,
		})
	case *pyscript.SliceExpr:
		n := ""
		if idx.Hi != nil {
			n = exprText(idx.Hi)
		}
		a.frames[target] = true
		a.emit(&transform.Transformation{
			Kind:       transform.KindTopN,
			Source:     recv.Ident,
			Target:     target,
			Params:     map[string]any{transform.ParamN: n},
			SourceLine: line,
		})
	default:
		a.frames[target] = true
		a.emit(&transform.Transformation{
			Kind:       transform.KindFilter,
			Source:     recv.Ident,
			Target:     target,
			Params:     map[string]any{transform.ParamCondition: exprText(idx)},
			SourceLine: line,
		})
	}
}

func (a *Analyzer) exprStmt(s *pyscript.ExprStmt) {
	call, ok := s.X.(*pyscript.Call)
	if !ok {
		return
	}
	// A bare method chain mutates its receiver in place (writers,
	// inplace=True variants), so the receiver is also the target.
	base, _ := chainBase(call)
	if name, ok := base.(*pyscript.Name); ok && a.frames[name.Ident] {
		a.chain(name.Ident, call, s.Line())
	}
}

func (a *Analyzer) emitRead(target string, call *pyscript.Call, format string, line int) {
	path := ""
	if len(call.Args) > 0 {
		if lit, ok := call.Args[0].(*pyscript.StringLit); ok {
			path = lit.Value
		} else {
			path = exprText(call.Args[0])
		}
	}
	a.frames[target] = true
	a.readPaths[target] = path
	a.emit(&transform.Transformation{
		Kind:   transform.KindRead,
		Target: target,
		Params: map[string]any{
			transform.ParamPath:   path,
			transform.ParamFormat: format,
		},
		SourceLine: line,
	})
}

// emitModuleMerge handles pd.merge(left, right, ...).
func (a *Analyzer) emitModuleMerge(target string, call *pyscript.Call, line int) {
	var left, right string
	if len(call.Args) > 0 {
		if n, ok := call.Args[0].(*pyscript.Name); ok {
			left = n.Ident
		}
	}
	if len(call.Args) > 1 {
		if n, ok := call.Args[1].(*pyscript.Name); ok {
			right = n.Ident
		}
	}
	a.frames[target] = true
	a.emit(a.mergeTransformation(left, right, target, call, line))
}

// mergeTransformation builds the shared merge record for both the
// module-level and the method form.
func (a *Analyzer) mergeTransformation(source, other, target string, call *pyscript.Call, line int) *transform.Transformation {
	params := map[string]any{transform.ParamOther: other}
	how := "inner"
	if kw := call.Keyword("how"); kw != nil {
		if lit, ok := kw.(*pyscript.StringLit); ok {
			how = lit.Value
		}
	}
	params[transform.ParamHow] = how
	if kw := call.Keyword("on"); kw != nil {
		params[transform.ParamOn] = stringList(kw)
	}
	if kw := call.Keyword("left_on"); kw != nil {
		params[transform.ParamLeftOn] = stringList(kw)
	}
	if kw := call.Keyword("right_on"); kw != nil {
		params[transform.ParamRightOn] = stringList(kw)
	}
	return &transform.Transformation{
		Kind:       transform.KindMerge,
		Source:     source,
		Target:     target,
		Params:     params,
		SourceLine: line,
	}
}

// emitConcat handles pd.concat([a, b, ...]).
func (a *Analyzer) emitConcat(target string, call *pyscript.Call, line int) {
	var inputs []string
	if len(call.Args) > 0 {
		if list, ok := call.Args[0].(*pyscript.ListLit); ok {
			for _, e := range list.Elems {
				if n, ok := e.(*pyscript.Name); ok {
					inputs = append(inputs, n.Ident)
				}
			}
		}
	}
	t := &transform.Transformation{
		Kind:       transform.KindConcat,
		Target:     target,
		Params:     map[string]any{},
		SourceLine: line,
	}
	if len(inputs) > 0 {
		t.Source = inputs[0]
		t.Params[transform.ParamOther] = inputs[1:]
	}
	if kw := call.Keyword("axis"); kw != nil && exprText(kw) == "1" {
		// Column-wise concat has no stack equivalent.
		t.Notes = transform.NoteFallback
	}
	a.frames[target] = true
	a.emit(t)
}

func (a *Analyzer) emitPivot(source, target string, call *pyscript.Call, line int) {
	a.frames[target] = true
	a.emit(&transform.Transformation{
		Kind:   transform.KindPivot,
		Source: source,
		Target: target,
		Params: map[string]any{
			transform.ParamDescription: exprText(call),
		},
		SourceLine: line,
		Notes:      transform.NoteFallback,
	})
}

func (a *Analyzer) emitUnknown(source, target, desc string, line int) {
	if target != "" {
		a.frames[target] = true
	}
	a.emit(&transform.Transformation{
		Kind:   transform.KindUnknown,
		Source: source,
		Target: target,
		Params: map[string]any{
			transform.ParamDescription: desc,
		},
		SourceLine: line,
		Notes:      transform.NoteFallback,
	})
}
