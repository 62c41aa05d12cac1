// Package token defines the lexical tokens for the script language
// accepted by the analyzer: a Python subset sufficient for dataframe
// manipulation scripts.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL
	NEWLINE // logical end of statement

	// Literals
	IDENT  // identifier
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello' or "hello"

	// Operators and delimiters
	PLUS     // +
	MINUS    // -
	STAR     // *
	DSTAR    // **
	SLASH    // /
	DSLASH   // //
	PERCENT  // %
	EQ       // ==
	NE       // !=
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	ASSIGN   // =
	AMP      // &
	PIPE     // |
	TILDE    // ~
	DOT      // .
	COMMA    // ,
	COLON    // :
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }
	ARROW    // ->

	// Keywords (alphabetical)
	AND
	AS
	CLASS
	DEF
	ELIF
	ELSE
	FALSE
	FOR
	FROM
	IF
	IMPORT
	IN
	IS
	LAMBDA
	NONE
	NOT
	OR
	RETURN
	TRUE
	TRY
	WHILE
	WITH
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps token types to their string representations.
var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",
	NEWLINE: "NEWLINE",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	DSTAR:    "**",
	SLASH:    "/",
	DSLASH:   "//",
	PERCENT:  "%",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	ASSIGN:   "=",
	AMP:      "&",
	PIPE:     "|",
	TILDE:    "~",
	DOT:      ".",
	COMMA:    ",",
	COLON:    ":",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	LBRACE:   "{",
	RBRACE:   "}",
	ARROW:    "->",

	AND:    "and",
	AS:     "as",
	CLASS:  "class",
	DEF:    "def",
	ELIF:   "elif",
	ELSE:   "else",
	FALSE:  "False",
	FOR:    "for",
	FROM:   "from",
	IF:     "if",
	IMPORT: "import",
	IN:     "in",
	IS:     "is",
	LAMBDA: "lambda",
	NONE:   "None",
	NOT:    "not",
	OR:     "or",
	RETURN: "return",
	TRUE:   "True",
	TRY:    "try",
	WHILE:  "while",
	WITH:   "with",
}

// keywords maps keyword strings to their token types.
// Keyword matching is case-sensitive, as in the source language.
var keywords = map[string]TokenType{
	"and":    AND,
	"as":     AS,
	"class":  CLASS,
	"def":    DEF,
	"elif":   ELIF,
	"else":   ELSE,
	"False":  FALSE,
	"for":    FOR,
	"from":   FROM,
	"if":     IF,
	"import": IMPORT,
	"in":     IN,
	"is":     IS,
	"lambda": LAMBDA,
	"None":   NONE,
	"not":    NOT,
	"or":     OR,
	"return": RETURN,
	"True":   TRUE,
	"try":    TRY,
	"while":  WHILE,
	"with":   WITH,
}

// LookupIdent returns the token type for the given identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= AND && t <= WITH
}

// BeginsBlock returns true for keywords that open an indented suite
// (def, if, for, while, with, try, class). The parser captures such
// suites verbatim rather than descending into them.
func BeginsBlock(t TokenType) bool {
	switch t {
	case DEF, IF, FOR, WHILE, WITH, TRY, CLASS:
		return true
	default:
		return false
	}
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
