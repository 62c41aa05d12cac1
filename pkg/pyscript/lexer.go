package pyscript

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/leapflow/pkg/token"
)

// Lexer tokenizes script input.
//
// Newlines are significant at bracket depth zero: the lexer emits a single
// NEWLINE token per logical line end and suppresses newlines inside
// parentheses, brackets, and braces, matching the source language's
// implicit line joining.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	depth       int  // open bracket depth; newlines are suppressed when > 0
	lastNewline bool // collapse runs of blank lines into one NEWLINE

	err *ParseError // first lexical error, if any
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:       input,
		line:        1,
		col:         0,
		lastNewline: true, // suppress leading blank lines
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipSpacesAndComments()

		if l.ch == '\n' {
			pos := l.currentPos()
			l.readChar()
			if l.depth > 0 || l.lastNewline {
				continue
			}
			l.lastNewline = true
			return token.Token{Type: token.NEWLINE, Literal: "\n", Pos: pos}
		}
		break
	}

	pos := l.currentPos()
	var tok token.Token
	tok.Pos = pos

	switch l.ch {
	case 0:
		tok.Type = token.EOF
		tok.Literal = ""
	case '+':
		tok = l.newToken(token.PLUS, "+")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = token.Token{Type: token.ARROW, Literal: "->", Pos: pos}
		} else {
			tok = l.newToken(token.MINUS, "-")
		}
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			tok = token.Token{Type: token.DSTAR, Literal: "**", Pos: pos}
		} else {
			tok = l.newToken(token.STAR, "*")
		}
	case '/':
		if l.peekChar() == '/' {
			l.readChar()
			tok = token.Token{Type: token.DSLASH, Literal: "//", Pos: pos}
		} else {
			tok = l.newToken(token.SLASH, "/")
		}
	case '%':
		tok = l.newToken(token.PERCENT, "%")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.newToken(token.ASSIGN, "=")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		} else {
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.newToken(token.GT, ">")
		}
	case '&':
		tok = l.newToken(token.AMP, "&")
	case '|':
		tok = l.newToken(token.PIPE, "|")
	case '~':
		tok = l.newToken(token.TILDE, "~")
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			tok.Pos = pos
			l.lastNewline = false
			return tok
		}
		tok = l.newToken(token.DOT, ".")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case ':':
		tok = l.newToken(token.COLON, ":")
	case '(':
		l.depth++
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		l.decDepth()
		tok = l.newToken(token.RPAREN, ")")
	case '[':
		l.depth++
		tok = l.newToken(token.LBRACKET, "[")
	case ']':
		l.decDepth()
		tok = l.newToken(token.RBRACKET, "]")
	case '{':
		l.depth++
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		l.decDepth()
		tok = l.newToken(token.RBRACE, "}")
	case '\'', '"':
		tok.Type = token.STRING
		tok.Literal = l.readString(l.ch, pos)
		tok.Pos = pos
		l.lastNewline = false
		return tok
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			// String prefixes (r'', f"", b'', u'') lex as strings.
			if isStringPrefix(l.ch) && (l.peekChar() == '\'' || l.peekChar() == '"') {
				l.readChar()
				tok.Type = token.STRING
				tok.Literal = l.readString(l.ch, pos)
				tok.Pos = pos
				l.lastNewline = false
				return tok
			}
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			tok.Pos = pos
			l.lastNewline = false
			return tok
		case isDigit(l.ch):
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			tok.Pos = pos
			l.lastNewline = false
			return tok
		default:
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	}

	l.readChar()
	l.lastNewline = tok.Type == token.EOF
	return tok
}

// decDepth decrements bracket depth, never below zero.
func (l *Lexer) decDepth() {
	if l.depth > 0 {
		l.depth--
	}
}

// newToken creates a new token at the current position.
func (l *Lexer) newToken(tokenType token.TokenType, literal string) token.Token {
	return token.Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipSpacesAndComments skips horizontal whitespace, comments, and
// backslash line continuations. Newlines are left for NextToken.
func (l *Lexer) skipSpacesAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}

		// Line continuation joins the next line.
		if l.ch == '\\' && l.peekChar() == '\n' {
			l.readChar() // skip backslash
			l.readChar() // skip newline
			continue
		}

		// Comment runs to end of line.
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a string literal delimited by the given quote,
// including the triple-quoted form. Backslash escapes are resolved for
// the common cases and passed through otherwise. A string cut off by a
// newline or end of input records a lexical error at the opening quote.
func (l *Lexer) readString(quote byte, pos token.Position) string {
	l.readChar() // skip opening quote

	if l.ch == quote {
		if l.peekChar() == quote {
			// Triple-quoted string
			l.readChar()
			l.readChar()
			return l.readTripleString(quote, pos)
		}
		// Empty string
		l.readChar()
		return ""
	}

	var result strings.Builder
	terminated := false
	for l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			next := l.peekChar()
			switch next {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case '\\', '\'', '"':
				result.WriteByte(next)
			default:
				result.WriteByte('\\')
				result.WriteByte(next)
			}
			l.readChar()
			l.readChar()
			continue
		}
		if l.ch == quote {
			l.readChar() // skip closing quote
			terminated = true
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	if !terminated {
		l.setErr(pos, ErrUnterminatedString)
	}
	return result.String()
}

// readTripleString reads the body of a triple-quoted string.
func (l *Lexer) readTripleString(quote byte, pos token.Position) string {
	var result strings.Builder
	terminated := false
	for l.ch != 0 {
		if l.ch == quote && l.peekChar() == quote && l.peekAt(2) == quote {
			l.readChar()
			l.readChar()
			l.readChar()
			terminated = true
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	if !terminated {
		l.setErr(pos, ErrUnterminatedString)
	}
	return result.String()
}

// setErr records the first lexical error; later ones are dropped.
func (l *Lexer) setErr(pos token.Position, msg string) {
	if l.err == nil {
		l.err = &ParseError{Pos: pos, Message: msg}
	}
}

// Err returns the first lexical error encountered so far, if any.
func (l *Lexer) Err() error {
	if l.err == nil {
		return nil
	}
	return l.err
}

// peekAt returns the character n positions ahead of the current one.
func (l *Lexer) peekAt(n int) byte {
	idx := l.pos + n
	if idx >= len(l.input) {
		return 0
	}
	return l.input[idx]
}

// readIdentifier reads an identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	if l.ch == '.' && (isDigit(l.peekChar()) || !isLetter(l.peekChar())) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// isStringPrefix reports whether ch is a recognized string prefix letter.
func isStringPrefix(ch byte) bool {
	switch ch {
	case 'r', 'R', 'f', 'F', 'b', 'B', 'u', 'U':
		return true
	default:
		return false
	}
}

// isLetter returns true if ch is a letter.
func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens
}
