package analyzer

import (
	"github.com/leapstack-labs/leapflow/internal/transform"
	"github.com/leapstack-labs/leapflow/pkg/pyscript"
)

// assignColumn handles `df['col'] = <expr>`: the column-level
// transformation family (string transforms, date parsing, per-column
// fill and cast, computed columns).
func (a *Analyzer) assignColumn(target *pyscript.Subscript, value pyscript.Expr, line int) {
	recv, ok := target.Value.(*pyscript.Name)
	if !ok || !a.frames[recv.Ident] {
		return
	}
	col, ok := target.Index.(*pyscript.StringLit)
	if !ok {
		a.emitUnknown(recv.Ident, recv.Ident, exprText(target)+" = "+exprText(value), line)
		return
	}

	if t := a.columnTransformation(recv.Ident, col.Value, value, line); t != nil {
		a.emit(t)
		return
	}

	// Anything else is a computed column with the right-hand side as its
	// formula text.
	t := &transform.Transformation{
		Kind:    transform.KindCreateColumn,
		Source:  recv.Ident,
		Target:  recv.Ident,
		Columns: []string{col.Value},
		Params: map[string]any{
			transform.ParamExpression: exprText(value),
		},
		SourceLine: line,
	}
	if containsLambda(value) {
		t.Notes = transform.NoteFallback
	}
	a.emit(t)
}

// columnTransformation recognizes the specialized column patterns; it
// returns nil when only the generic create-column lowering applies.
func (a *Analyzer) columnTransformation(frame, col string, value pyscript.Expr, line int) *transform.Transformation {
	call, ok := value.(*pyscript.Call)
	if !ok {
		return nil
	}

	// df['x'] = df['y'].str.upper()
	if method, srcCol, ok := strAccessor(call, frame); ok {
		return &transform.Transformation{
			Kind:    transform.KindStringTransform,
			Source:  frame,
			Target:  frame,
			Columns: []string{col},
			Params: map[string]any{
				transform.ParamTransform: method,
				transform.ParamSourceCol: srcCol,
			},
			SourceLine: line,
		}
	}

	// df['x'] = pd.to_datetime(df['x'], format='%Y-%m-%d')
	if fn, recv, ok := qualifiedCall(call); ok && a.pandasAliases[recv] && fn == "to_datetime" {
		params := map[string]any{}
		if len(call.Args) > 0 {
			if src, ok := columnRef(call.Args[0], frame); ok {
				params[transform.ParamSourceCol] = src
			}
		}
		if kw := call.Keyword("format"); kw != nil {
			if lit, ok := kw.(*pyscript.StringLit); ok {
				params[transform.ParamFormat] = lit.Value
			}
		}
		return &transform.Transformation{
			Kind:       transform.KindDateParse,
			Source:     frame,
			Target:     frame,
			Columns:    []string{col},
			Params:     params,
			SourceLine: line,
		}
	}

	// Single-column method calls: df['x'] = df['x'].fillna(0) / .astype('int')
	fn, okAttr := callMethod(call)
	if !okAttr {
		return nil
	}
	srcCol, onOwnColumn := receiverColumn(call, frame)
	if !onOwnColumn {
		return nil
	}
	switch fn {
	case "fillna":
		params := map[string]any{}
		if len(call.Args) > 0 {
			params[transform.ParamValue] = exprText(call.Args[0])
		}
		return &transform.Transformation{
			Kind:       transform.KindFillMissing,
			Source:     frame,
			Target:     frame,
			Columns:    []string{col},
			Params:     params,
			SourceLine: line,
		}
	case "astype":
		params := map[string]any{}
		if len(call.Args) > 0 {
			if lit, ok := call.Args[0].(*pyscript.StringLit); ok {
				params[transform.ParamValue] = lit.Value
			}
		}
		return &transform.Transformation{
			Kind:       transform.KindTypeCast,
			Source:     frame,
			Target:     frame,
			Columns:    []string{col},
			Params:     params,
			SourceLine: line,
		}
	case "apply", "map":
		return &transform.Transformation{
			Kind:    transform.KindCreateColumn,
			Source:  frame,
			Target:  frame,
			Columns: []string{col},
			Params: map[string]any{
				transform.ParamExpression: exprText(call),
				transform.ParamSourceCol:  srcCol,
			},
			SourceLine: line,
			Notes:      transform.NoteFallback,
		}
	}
	return nil
}

// strAccessor matches `<frame>['col'].str.<method>(...)` and returns the
// method and source column.
func strAccessor(call *pyscript.Call, frame string) (method, col string, ok bool) {
	attr, isAttr := call.Func.(*pyscript.Attribute)
	if !isAttr {
		return "", "", false
	}
	strAttr, isAttr := attr.Value.(*pyscript.Attribute)
	if !isAttr || strAttr.Attr != "str" {
		return "", "", false
	}
	src, isCol := columnRef(strAttr.Value, frame)
	if !isCol {
		return "", "", false
	}
	return attr.Attr, src, true
}

// columnRef matches `<frame>['col']` and returns the column name.
func columnRef(e pyscript.Expr, frame string) (string, bool) {
	sub, ok := e.(*pyscript.Subscript)
	if !ok {
		return "", false
	}
	name, ok := sub.Value.(*pyscript.Name)
	if !ok || name.Ident != frame {
		return "", false
	}
	lit, ok := sub.Index.(*pyscript.StringLit)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

// callMethod returns the method name of an attribute call.
func callMethod(call *pyscript.Call) (string, bool) {
	attr, ok := call.Func.(*pyscript.Attribute)
	if !ok {
		return "", false
	}
	return attr.Attr, true
}

// receiverColumn matches a call whose receiver is `<frame>['col']`.
func receiverColumn(call *pyscript.Call, frame string) (string, bool) {
	attr, ok := call.Func.(*pyscript.Attribute)
	if !ok {
		return "", false
	}
	return columnRef(attr.Value, frame)
}

func containsLambda(e pyscript.Expr) bool {
	found := false
	walkExpr(e, func(x pyscript.Expr) {
		if _, ok := x.(*pyscript.LambdaExpr); ok {
			found = true
		}
	})
	return found
}
