package analyzer

import (
	"github.com/leapstack-labs/leapflow/internal/transform"
	"github.com/leapstack-labs/leapflow/pkg/pyscript"
)

// chainLink is one element of an unwound method chain: a method call, or
// a bare column selection (df.groupby('k')['amt'] style subscripting).
type chainLink struct {
	name string // method name; "" for a column selection link
	call *pyscript.Call
	cols []string // selection link only
}

// unwindChain descends through a chain's receivers and returns the base
// expression plus the links in left-to-right application order.
func unwindChain(e pyscript.Expr) (pyscript.Expr, []chainLink) {
	var reversed []chainLink
	for {
		switch v := e.(type) {
		case *pyscript.Call:
			attr, ok := v.Func.(*pyscript.Attribute)
			if !ok {
				// Plain function call: the chain base.
				return e, reverse(reversed)
			}
			reversed = append(reversed, chainLink{name: attr.Attr, call: v})
			e = attr.Value
		case *pyscript.Subscript:
			// Selection inside a chain only; a leading subscript (mask or
			// projection) is the base.
			if _, isChain := v.Value.(*pyscript.Call); !isChain {
				return e, reverse(reversed)
			}
			reversed = append(reversed, chainLink{cols: stringList(v.Index)})
			e = v.Value
		default:
			return e, reverse(reversed)
		}
	}
}

func reverse(links []chainLink) []chainLink {
	out := make([]chainLink, len(links))
	for i, l := range links {
		out[len(links)-1-i] = l
	}
	return out
}

// chainBase returns the base expression of a chain without the links.
func chainBase(e pyscript.Expr) (pyscript.Expr, bool) {
	base, links := unwindChain(e)
	return base, len(links) > 0
}

// chain analyzes `target = <base>.m1().m2()...` (or the in-place bare
// statement form, where target is the receiver). Each link's handler
// emits zero or more transformations, threaded through synthetic
// intermediate variables; the final frame-producing transformation is
// then rebound to the real target name.
func (a *Analyzer) chain(target string, call *pyscript.Call, line int) {
	base, links := unwindChain(call)

	curVar := ""
	switch b := base.(type) {
	case *pyscript.Name:
		if !a.frames[b.Ident] && !a.pandasAliases[b.Ident] {
			return
		}
		if a.pandasAliases[b.Ident] {
			// pd.to_datetime(...) and friends reached through the
			// generic chain path carry no frame state.
			a.emitUnknown("", target, exprText(call), line)
			return
		}
		curVar = b.Ident
	case *pyscript.Subscript:
		// Chain rooted in a mask or projection: emit the base operation
		// first, then continue the chain from its synthetic result.
		recv, ok := b.Value.(*pyscript.Name)
		if !ok || !a.frames[recv.Ident] {
			return
		}
		next := a.nextChainVar(recv.Ident)
		a.assignSubscript(next, b, line)
		curVar = next
	default:
		return
	}

	start := len(a.out)
	st := chainState{}
	for _, link := range links {
		curVar = a.handleLink(curVar, link, line, &st)
	}
	a.flushPending(curVar, line, &st)

	// Rebind the synthetic tail to the real target.
	if curVar != target {
		for _, t := range a.out[start:] {
			if t.Source == curVar {
				t.Source = target
			}
			if t.Target == curVar {
				t.Target = target
			}
		}
	}
	a.frames[target] = true
}

// chainState carries the two deferred constructs that only become a
// transformation once a later link completes them.
type chainState struct {
	groupKeys  []string // set by groupby, consumed by agg/sum/mean/...
	groupCols  []string // optional selection between groupby and the agg
	groupLine  int
	windowSize string // set by rolling, consumed by the next agg method
}

// aggMethods are the reduction methods that complete a groupby or a
// rolling window.
var aggMethods = map[string]bool{
	"sum": true, "mean": true, "count": true, "min": true, "max": true,
	"median": true, "std": true, "var": true, "first": true, "last": true,
	"nunique": true, "size": true,
}

// handleLink dispatches one chain link and returns the variable the next
// link operates on.
func (a *Analyzer) handleLink(cur string, link chainLink, line int, st *chainState) string {
	if link.name == "" {
		// Column selection: between groupby and agg it scopes the
		// aggregation; elsewhere it is a projection.
		if st.groupKeys != nil {
			st.groupCols = link.cols
			return cur
		}
		next := a.nextChainVar(cur)
		a.emit(&transform.Transformation{
			Kind:       transform.KindDropColumns,
			Source:     cur,
			Target:     next,
			Columns:    link.cols,
			Params:     map[string]any{transform.ParamKeep: true},
			SourceLine: line,
		})
		return next
	}

	call := link.call

	if st.windowSize != "" && aggMethods[link.name] {
		next := a.nextChainVar(cur)
		a.emit(&transform.Transformation{
			Kind:   transform.KindWindow,
			Source: cur,
			Target: next,
			Params: map[string]any{
				transform.ParamMethod:     "rolling_" + link.name,
				transform.ParamWindowSize: st.windowSize,
			},
			SourceLine: line,
		})
		st.windowSize = ""
		return next
	}

	if st.groupKeys != nil {
		switch {
		case link.name == "agg" || link.name == "aggregate":
			return a.emitGroupAgg(cur, call, line, st)
		case aggMethods[link.name]:
			return a.emitGroupReduce(cur, link.name, line, st)
		}
		// A non-aggregating method after groupby is out of pattern.
		a.flushPending(cur, line, st)
	}

	switch link.name {
	case "rename":
		return a.emitRename(cur, call, line)
	case "drop":
		return a.emitDrop(cur, call, line)
	case "fillna":
		return a.emitFillna(cur, call, line)
	case "dropna":
		return a.emitDropna(cur, call, line)
	case "astype":
		return a.emitAstype(cur, call, line)
	case "sort_values":
		return a.emitSort(cur, call, line)
	case "query":
		return a.emitQuery(cur, call, line)
	case "head", "tail":
		return a.emitHead(cur, link.name, call, line)
	case "nlargest", "nsmallest":
		return a.emitNLargest(cur, link.name, call, line)
	case "sample":
		return a.emitSample(cur, call, line)
	case "drop_duplicates":
		return a.emitDistinct(cur, call, line)
	case "merge", "join":
		return a.emitMethodMerge(cur, call, line)
	case "groupby":
		st.groupKeys = groupArg(call)
		st.groupCols = nil
		st.groupLine = line
		return cur
	case "rolling":
		if len(call.Args) > 0 {
			st.windowSize = exprText(call.Args[0])
		} else if kw := call.Keyword("window"); kw != nil {
			st.windowSize = exprText(kw)
		}
		return cur
	case "shift", "cumsum", "cumprod", "diff", "rank":
		return a.emitWindowMethod(cur, link.name, call, line)
	case "assign":
		return a.emitAssign(cur, call, line)
	case "pivot_table", "pivot":
		next := a.nextChainVar(cur)
		a.emitPivot(cur, next, call, line)
		return next
	case "apply", "applymap", "map", "transform", "pipe":
		next := a.nextChainVar(cur)
		a.emitUnknown(cur, next, exprText(call), line)
		return next
	case "reset_index", "copy", "set_index", "sort_index":
		// Passthrough: no frame semantics the target model cares about.
		return cur
	default:
		if _, isWrite := writeFormats[link.name]; isWrite {
			a.emitWrite(cur, link.name, call, line)
			return cur
		}
		next := a.nextChainVar(cur)
		a.emitUnknown(cur, next, exprText(call), line)
		return next
	}
}

// flushPending emits a transformation for a groupby left dangling at the
// end of a chain.
func (a *Analyzer) flushPending(cur string, line int, st *chainState) {
	if st.groupKeys == nil {
		return
	}
	a.emit(&transform.Transformation{
		Kind:    transform.KindGroupAggregate,
		Source:  cur,
		Target:  cur,
		Columns: st.groupKeys,
		Params: map[string]any{
			transform.ParamKeys: st.groupKeys,
		},
		SourceLine: st.groupLine,
		Notes:      "aggregation not specified",
	})
	st.groupKeys = nil
	st.groupCols = nil
}

// ---------- per-method handlers ----------

func (a *Analyzer) emitRename(cur string, call *pyscript.Call, line int) string {
	dict, _ := call.Keyword("columns").(*pyscript.DictLit)
	if dict == nil {
		next := a.nextChainVar(cur)
		a.emitUnknown(cur, next, exprText(call), line)
		return next
	}
	pairs := dictPairs(dict)
	cols := make([]string, 0, len(pairs))
	for _, p := range pairs {
		cols = append(cols, p.Key)
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindRenameColumns,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		Params:     map[string]any{transform.ParamMapping: pairs},
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitDrop(cur string, call *pyscript.Call, line int) string {
	var cols []string
	if kw := call.Keyword("columns"); kw != nil {
		cols = stringList(kw)
	} else if len(call.Args) > 0 && keywordText(call, "axis") == "1" {
		cols = stringList(call.Args[0])
	}
	next := a.nextChainVar(cur)
	if len(cols) == 0 {
		// Row drops by label have no processor equivalent.
		a.emitUnknown(cur, next, exprText(call), line)
		return next
	}
	a.emit(&transform.Transformation{
		Kind:       transform.KindDropColumns,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitFillna(cur string, call *pyscript.Call, line int) string {
	params := map[string]any{}
	if len(call.Args) > 0 {
		params[transform.ParamValue] = exprText(call.Args[0])
	} else if kw := call.Keyword("value"); kw != nil {
		params[transform.ParamValue] = exprText(kw)
	} else if kw := call.Keyword("method"); kw != nil {
		params[transform.ParamMethod] = exprText(kw)
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindFillMissing,
		Source:     cur,
		Target:     next,
		Params:     params,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitDropna(cur string, call *pyscript.Call, line int) string {
	params := map[string]any{}
	if kw := call.Keyword("how"); kw != nil {
		if lit, ok := kw.(*pyscript.StringLit); ok {
			params[transform.ParamHow] = lit.Value
		}
	}
	var cols []string
	if kw := call.Keyword("subset"); kw != nil {
		cols = stringList(kw)
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindDropMissing,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		Params:     params,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitAstype(cur string, call *pyscript.Call, line int) string {
	next := a.nextChainVar(cur)
	t := &transform.Transformation{
		Kind:       transform.KindTypeCast,
		Source:     cur,
		Target:     next,
		Params:     map[string]any{},
		SourceLine: line,
	}
	if len(call.Args) > 0 {
		switch arg := call.Args[0].(type) {
		case *pyscript.DictLit:
			pairs := dictPairs(arg)
			for _, p := range pairs {
				t.Columns = append(t.Columns, p.Key)
			}
			t.Params[transform.ParamMapping] = pairs
		case *pyscript.StringLit:
			t.Params[transform.ParamValue] = arg.Value
		}
	}
	a.emit(t)
	return next
}

func (a *Analyzer) emitSort(cur string, call *pyscript.Call, line int) string {
	var cols []string
	if kw := call.Keyword("by"); kw != nil {
		cols = stringList(kw)
	} else if len(call.Args) > 0 {
		cols = stringList(call.Args[0])
	}
	params := map[string]any{}
	if kw := call.Keyword("ascending"); kw != nil {
		params[transform.ParamAscending] = exprText(kw)
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindSort,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		Params:     params,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitQuery(cur string, call *pyscript.Call, line int) string {
	cond := ""
	if len(call.Args) > 0 {
		if lit, ok := call.Args[0].(*pyscript.StringLit); ok {
			cond = lit.Value
		}
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindFilter,
		Source:     cur,
		Target:     next,
		Params:     map[string]any{transform.ParamCondition: cond},
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitHead(cur, name string, call *pyscript.Call, line int) string {
	n := "5"
	if len(call.Args) > 0 {
		n = exprText(call.Args[0])
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindTopN,
		Source:     cur,
		Target:     next,
		Params:     map[string]any{transform.ParamN: n, transform.ParamMethod: name},
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitNLargest(cur, name string, call *pyscript.Call, line int) string {
	params := map[string]any{transform.ParamMethod: name}
	if len(call.Args) > 0 {
		params[transform.ParamN] = exprText(call.Args[0])
	}
	var cols []string
	if len(call.Args) > 1 {
		cols = stringList(call.Args[1])
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindTopN,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		Params:     params,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitSample(cur string, call *pyscript.Call, line int) string {
	params := map[string]any{}
	if kw := call.Keyword("n"); kw != nil {
		params[transform.ParamN] = exprText(kw)
	} else if len(call.Args) > 0 {
		params[transform.ParamN] = exprText(call.Args[0])
	}
	if kw := call.Keyword("frac"); kw != nil {
		params[transform.ParamFrac] = exprText(kw)
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindSample,
		Source:     cur,
		Target:     next,
		Params:     params,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitDistinct(cur string, call *pyscript.Call, line int) string {
	var cols []string
	if kw := call.Keyword("subset"); kw != nil {
		cols = stringList(kw)
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindDistinct,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		SourceLine: line,
	})
	return next
}

func (a *Analyzer) emitMethodMerge(cur string, call *pyscript.Call, line int) string {
	other := ""
	if len(call.Args) > 0 {
		if n, ok := call.Args[0].(*pyscript.Name); ok {
			other = n.Ident
		}
	}
	next := a.nextChainVar(cur)
	a.emit(a.mergeTransformation(cur, other, next, call, line))
	return next
}

func (a *Analyzer) emitGroupAgg(cur string, call *pyscript.Call, line int, st *chainState) string {
	params := map[string]any{transform.ParamKeys: st.groupKeys}
	var cols []string
	if len(call.Args) > 0 {
		if dict, ok := call.Args[0].(*pyscript.DictLit); ok {
			pairs := dictPairs(dict)
			params[transform.ParamAggregates] = pairs
			for _, p := range pairs {
				cols = append(cols, p.Key)
			}
		}
	}
	// .agg('sum') applies one function across the selection.
	if len(call.Args) > 0 && len(cols) == 0 {
		if lit, ok := call.Args[0].(*pyscript.StringLit); ok {
			params[transform.ParamAggregates] = pairsFor(st.groupCols, lit.Value)
			cols = st.groupCols
		}
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindGroupAggregate,
		Source:     cur,
		Target:     next,
		Columns:    cols,
		Params:     params,
		SourceLine: line,
	})
	st.groupKeys = nil
	st.groupCols = nil
	return next
}

func (a *Analyzer) emitGroupReduce(cur, fn string, line int, st *chainState) string {
	params := map[string]any{
		transform.ParamKeys:       st.groupKeys,
		transform.ParamAggregates: pairsFor(st.groupCols, fn),
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindGroupAggregate,
		Source:     cur,
		Target:     next,
		Columns:    st.groupCols,
		Params:     params,
		SourceLine: line,
	})
	st.groupKeys = nil
	st.groupCols = nil
	return next
}

func (a *Analyzer) emitWindowMethod(cur, name string, call *pyscript.Call, line int) string {
	params := map[string]any{transform.ParamMethod: name}
	if name == "shift" && len(call.Args) > 0 {
		params[transform.ParamN] = exprText(call.Args[0])
	}
	next := a.nextChainVar(cur)
	a.emit(&transform.Transformation{
		Kind:       transform.KindWindow,
		Source:     cur,
		Target:     next,
		Params:     params,
		SourceLine: line,
	})
	return next
}

// emitAssign lowers df.assign(x=..., y=...) to one create-column
// transformation per keyword, in source order.
func (a *Analyzer) emitAssign(cur string, call *pyscript.Call, line int) string {
	for _, kw := range call.Keywords {
		next := a.nextChainVar(cur)
		t := &transform.Transformation{
			Kind:    transform.KindCreateColumn,
			Source:  cur,
			Target:  next,
			Columns: []string{kw.Name},
			Params: map[string]any{
				transform.ParamExpression: exprText(kw.Value),
			},
			SourceLine: line,
		}
		if _, isLambda := kw.Value.(*pyscript.LambdaExpr); isLambda {
			t.Notes = transform.NoteFallback
		}
		a.emit(t)
		cur = next
	}
	return cur
}

func (a *Analyzer) emitWrite(cur, method string, call *pyscript.Call, line int) {
	path := ""
	if len(call.Args) > 0 {
		if lit, ok := call.Args[0].(*pyscript.StringLit); ok {
			path = lit.Value
		} else {
			path = exprText(call.Args[0])
		}
	}
	a.emit(&transform.Transformation{
		Kind:   transform.KindWrite,
		Source: cur,
		Params: map[string]any{
			transform.ParamPath:   path,
			transform.ParamFormat: writeFormats[method],
		},
		SourceLine: line,
	})
}

// ---------- small extraction helpers ----------

// qualifiedCall reports a call of the form recv.fn(...) with a plain name
// receiver.
func qualifiedCall(call *pyscript.Call) (fn, recv string, ok bool) {
	attr, isAttr := call.Func.(*pyscript.Attribute)
	if !isAttr {
		return "", "", false
	}
	name, isName := attr.Value.(*pyscript.Name)
	if !isName {
		return "", "", false
	}
	return attr.Attr, name.Ident, true
}

// groupArg extracts grouping keys from a groupby call.
func groupArg(call *pyscript.Call) []string {
	if len(call.Args) > 0 {
		if keys := stringList(call.Args[0]); keys != nil {
			return keys
		}
	}
	if kw := call.Keyword("by"); kw != nil {
		return stringList(kw)
	}
	return []string{}
}

// stringList accepts a string literal or a list/tuple of string literals.
func stringList(e pyscript.Expr) []string {
	switch v := e.(type) {
	case *pyscript.StringLit:
		return []string{v.Value}
	case *pyscript.ListLit:
		return stringElems(v)
	case *pyscript.TupleLit:
		var out []string
		for _, el := range v.Elems {
			if lit, ok := el.(*pyscript.StringLit); ok {
				out = append(out, lit.Value)
			}
		}
		return out
	default:
		return nil
	}
}

func stringElems(list *pyscript.ListLit) []string {
	var out []string
	for _, el := range list.Elems {
		if lit, ok := el.(*pyscript.StringLit); ok {
			out = append(out, lit.Value)
		}
	}
	return out
}

// dictPairs flattens a dict literal to ordered pairs, rendering non-string
// values as source text.
func dictPairs(d *pyscript.DictLit) []transform.Pair {
	pairs := make([]transform.Pair, 0, len(d.Keys))
	for i := range d.Keys {
		key, ok := d.Keys[i].(*pyscript.StringLit)
		if !ok {
			continue
		}
		val := ""
		if lit, isStr := d.Values[i].(*pyscript.StringLit); isStr {
			val = lit.Value
		} else {
			val = exprText(d.Values[i])
		}
		pairs = append(pairs, transform.Pair{Key: key.Value, Value: val})
	}
	return pairs
}

// pairsFor builds one aggregation pair per column for a single function.
func pairsFor(cols []string, fn string) []transform.Pair {
	if len(cols) == 0 {
		return []transform.Pair{{Key: "*", Value: fn}}
	}
	pairs := make([]transform.Pair, 0, len(cols))
	for _, c := range cols {
		pairs = append(pairs, transform.Pair{Key: c, Value: fn})
	}
	return pairs
}

func keywordText(call *pyscript.Call, name string) string {
	if kw := call.Keyword(name); kw != nil {
		return exprText(kw)
	}
	return ""
}

// referencesFrame reports whether the expression mentions a known frame
// variable.
func referencesFrame(e pyscript.Expr, frames map[string]bool) bool {
	found := false
	walkExpr(e, func(x pyscript.Expr) {
		if n, ok := x.(*pyscript.Name); ok && frames[n.Ident] {
			found = true
		}
	})
	return found
}

// walkExpr visits every sub-expression, depth first.
func walkExpr(e pyscript.Expr, fn func(pyscript.Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch v := e.(type) {
	case *pyscript.Attribute:
		walkExpr(v.Value, fn)
	case *pyscript.Call:
		walkExpr(v.Func, fn)
		for _, arg := range v.Args {
			walkExpr(arg, fn)
		}
		for _, kw := range v.Keywords {
			walkExpr(kw.Value, fn)
		}
	case *pyscript.Subscript:
		walkExpr(v.Value, fn)
		walkExpr(v.Index, fn)
	case *pyscript.SliceExpr:
		walkExpr(v.Lo, fn)
		walkExpr(v.Hi, fn)
		walkExpr(v.Step, fn)
	case *pyscript.ListLit:
		for _, el := range v.Elems {
			walkExpr(el, fn)
		}
	case *pyscript.TupleLit:
		for _, el := range v.Elems {
			walkExpr(el, fn)
		}
	case *pyscript.DictLit:
		for i := range v.Keys {
			walkExpr(v.Keys[i], fn)
			walkExpr(v.Values[i], fn)
		}
	case *pyscript.BinaryExpr:
		walkExpr(v.Left, fn)
		walkExpr(v.Right, fn)
	case *pyscript.UnaryExpr:
		walkExpr(v.X, fn)
	case *pyscript.LambdaExpr:
		walkExpr(v.Body, fn)
	}
}
