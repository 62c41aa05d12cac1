package pyscript

import "github.com/leapstack-labs/leapflow/pkg/token"

// Stmt represents a top-level statement in a script.
type Stmt interface {
	stmtNode()
}

// Expr represents an expression.
type Expr interface {
	exprNode()
}

// NodeInfo provides common fields for all AST nodes.
type NodeInfo struct {
	Span token.Span
}

// GetSpan returns the node's source span.
func (n *NodeInfo) GetSpan() token.Span {
	return n.Span
}

// Line returns the 1-based line the node starts on.
func (n *NodeInfo) Line() int {
	return n.Span.Start.Line
}

// Module is the root of a parsed script: an ordered list of top-level
// statements.
type Module struct {
	Statements []Stmt
}

// ---------- Statement Types ----------

// AssignStmt represents `target = value`. Target is a Name, a Subscript
// (df['col'] = ...), or an Attribute (obj.attr = ...).
type AssignStmt struct {
	NodeInfo
	Target Expr
	Value  Expr
}

func (*AssignStmt) stmtNode() {}

// ExprStmt represents a bare expression statement, typically a call with
// side effects such as df.to_csv('out.csv').
type ExprStmt struct {
	NodeInfo
	X Expr
}

func (*ExprStmt) stmtNode() {}

// ImportStmt represents `import module [as alias]` or
// `from module import name [, name ...]`.
type ImportStmt struct {
	NodeInfo
	Module string
	Alias  string
	Names  []string // non-empty for the from-import form
}

func (*ImportStmt) stmtNode() {}

// BlockStmt represents a compound statement (def, if, for, while, with,
// try, class) whose indented suite is captured verbatim rather than parsed.
// The analyzer surfaces these as operations requiring a code-recipe
// fallback.
type BlockStmt struct {
	NodeInfo
	Keyword string // the introducing keyword, e.g. "def"
	Header  string // the header line text up to the colon
}

func (*BlockStmt) stmtNode() {}

// ---------- Expression Types ----------

// Name is an identifier reference.
type Name struct {
	NodeInfo
	Ident string
}

func (*Name) exprNode() {}

// Attribute represents `value.attr`.
type Attribute struct {
	NodeInfo
	Value Expr
	Attr  string
}

func (*Attribute) exprNode() {}

// KeywordArg is a keyword argument in a call: name=value.
type KeywordArg struct {
	Name  string
	Value Expr
}

// Call represents a function or method call.
type Call struct {
	NodeInfo
	Func     Expr
	Args     []Expr
	Keywords []KeywordArg
}

func (*Call) exprNode() {}

// Keyword returns the value of the named keyword argument, or nil.
func (c *Call) Keyword(name string) Expr {
	for _, kw := range c.Keywords {
		if kw.Name == name {
			return kw.Value
		}
	}
	return nil
}

// Subscript represents `value[index]`.
type Subscript struct {
	NodeInfo
	Value Expr
	Index Expr
}

func (*Subscript) exprNode() {}

// SliceExpr represents a slice index `lo:hi[:step]`; any part may be nil.
type SliceExpr struct {
	NodeInfo
	Lo   Expr
	Hi   Expr
	Step Expr
}

func (*SliceExpr) exprNode() {}

// StringLit is a string literal with quotes and escapes resolved.
type StringLit struct {
	NodeInfo
	Value string
}

func (*StringLit) exprNode() {}

// NumberLit is a numeric literal, kept as source text.
type NumberLit struct {
	NodeInfo
	Literal string
}

func (*NumberLit) exprNode() {}

// BoolLit is True or False.
type BoolLit struct {
	NodeInfo
	Value bool
}

func (*BoolLit) exprNode() {}

// NoneLit is the None literal.
type NoneLit struct {
	NodeInfo
}

func (*NoneLit) exprNode() {}

// ListLit is a list literal [a, b, c].
type ListLit struct {
	NodeInfo
	Elems []Expr
}

func (*ListLit) exprNode() {}

// TupleLit is a tuple literal (a, b) or a, b.
type TupleLit struct {
	NodeInfo
	Elems []Expr
}

func (*TupleLit) exprNode() {}

// DictLit is a dict literal {k: v, ...}. Keys and Values are parallel,
// preserving source order.
type DictLit struct {
	NodeInfo
	Keys   []Expr
	Values []Expr
}

func (*DictLit) exprNode() {}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	NodeInfo
	Op    token.TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is a unary operation (-x, ~mask, not x).
type UnaryExpr struct {
	NodeInfo
	Op token.TokenType
	X  Expr
}

func (*UnaryExpr) exprNode() {}

// LambdaExpr is a lambda; the body is parsed but the analyzer treats any
// lambda-bearing operation as requiring a code-recipe fallback.
type LambdaExpr struct {
	NodeInfo
	Params []string
	Body   Expr
}

func (*LambdaExpr) exprNode() {}
