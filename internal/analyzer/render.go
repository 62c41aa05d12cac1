package analyzer

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/pyscript"
	"github.com/leapstack-labs/leapflow/pkg/token"
)

// opText maps operators to the spelling used in recipe condition and
// formula text. Bitwise mask operators become their logical form, since
// that is what they mean in dataframe expressions.
var opText = map[token.TokenType]string{
	token.PLUS:    "+",
	token.MINUS:   "-",
	token.STAR:    "*",
	token.DSTAR:   "**",
	token.SLASH:   "/",
	token.DSLASH:  "//",
	token.PERCENT: "%",
	token.EQ:      "==",
	token.NE:      "!=",
	token.LT:      "<",
	token.GT:      ">",
	token.LE:      "<=",
	token.GE:      ">=",
	token.AMP:     "and",
	token.PIPE:    "or",
	token.AND:     "and",
	token.OR:      "or",
	token.IN:      "in",
	token.IS:      "is",
}

// exprText renders an expression as condition/formula text for recipe
// settings. Column subscripts collapse to the bare column name, so
// `df['age'] >= 18` renders as `age >= 18`.
func exprText(e pyscript.Expr) string {
	switch v := e.(type) {
	case *pyscript.Name:
		return v.Ident
	case *pyscript.StringLit:
		return "'" + v.Value + "'"
	case *pyscript.NumberLit:
		return v.Literal
	case *pyscript.BoolLit:
		if v.Value {
			return "True"
		}
		return "False"
	case *pyscript.NoneLit:
		return "None"
	case *pyscript.Attribute:
		return exprText(v.Value) + "." + v.Attr
	case *pyscript.Subscript:
		if lit, ok := v.Index.(*pyscript.StringLit); ok {
			if _, isName := v.Value.(*pyscript.Name); isName {
				return lit.Value
			}
		}
		return exprText(v.Value) + "[" + exprText(v.Index) + "]"
	case *pyscript.SliceExpr:
		return sliceText(v)
	case *pyscript.Call:
		return callText(v)
	case *pyscript.ListLit:
		return "[" + joinExprs(v.Elems) + "]"
	case *pyscript.TupleLit:
		return "(" + joinExprs(v.Elems) + ")"
	case *pyscript.DictLit:
		return dictText(v)
	case *pyscript.BinaryExpr:
		op, ok := opText[v.Op]
		if !ok {
			op = v.Op.String()
		}
		left, right := exprText(v.Left), exprText(v.Right)
		if logicalOp(v.Op) {
			left, right = parenCompound(v.Left, left), parenCompound(v.Right, right)
		}
		return fmt.Sprintf("%s %s %s", left, op, right)
	case *pyscript.UnaryExpr:
		if v.Op == token.NOT || v.Op == token.TILDE {
			return "not " + parenCompound(v.X, exprText(v.X))
		}
		return v.Op.String() + exprText(v.X)
	case *pyscript.LambdaExpr:
		return "lambda " + strings.Join(v.Params, ", ") + ": " + exprText(v.Body)
	default:
		return ""
	}
}

func logicalOp(op token.TokenType) bool {
	return op == token.AMP || op == token.PIPE || op == token.AND || op == token.OR
}

// parenCompound parenthesizes a compound operand of a logical join so the
// rendered text keeps the source grouping.
func parenCompound(e pyscript.Expr, text string) string {
	if _, ok := e.(*pyscript.BinaryExpr); ok {
		return "(" + text + ")"
	}
	return text
}

func callText(c *pyscript.Call) string {
	parts := make([]string, 0, len(c.Args)+len(c.Keywords))
	for _, arg := range c.Args {
		parts = append(parts, exprText(arg))
	}
	for _, kw := range c.Keywords {
		parts = append(parts, kw.Name+"="+exprText(kw.Value))
	}
	return exprText(c.Func) + "(" + strings.Join(parts, ", ") + ")"
}

func sliceText(s *pyscript.SliceExpr) string {
	var b strings.Builder
	if s.Lo != nil {
		b.WriteString(exprText(s.Lo))
	}
	b.WriteString(":")
	if s.Hi != nil {
		b.WriteString(exprText(s.Hi))
	}
	if s.Step != nil {
		b.WriteString(":")
		b.WriteString(exprText(s.Step))
	}
	return b.String()
}

func dictText(d *pyscript.DictLit) string {
	parts := make([]string, 0, len(d.Keys))
	for i := range d.Keys {
		parts = append(parts, exprText(d.Keys[i])+": "+exprText(d.Values[i]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func joinExprs(elems []pyscript.Expr) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		parts = append(parts, exprText(e))
	}
	return strings.Join(parts, ", ")
}
