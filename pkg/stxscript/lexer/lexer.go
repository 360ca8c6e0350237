package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Identifiers and literals
	IDENT     // add, foobar, x, y, ...
	INT       // 1343456
	FLOAT     // 3.14159
	STRING    // "foobar" or './module'
	PRINCIPAL // 'SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7
	DECORATOR // @public, @map

	// Operators
	ASSIGN   // =
	PLUS     // +
	MINUS    // -
	BANG     // !
	ASTERISK // *
	SLASH    // /
	PERCENT  // %
	LT       // <
	GT       // >
	LTE      // <=
	GTE      // >=
	EQ       // ==
	NOT_EQ   // !=
	AND      // &&
	OR       // ||
	BIT_AND  // &
	BIT_OR   // |
	BIT_XOR  // ^
	SHL      // <<
	SHR      // >>
	QUESTION // ?
	ARROW    // =>

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DOT       // .
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]

	// Keywords
	FUNCTION // "function"
	LET      // "let"
	CONST    // "const"
	CLASS    // "class"
	TRAIT    // "trait"
	IF       // "if"
	ELSE     // "else"
	TRY      // "try"
	CATCH    // "catch"
	THROW    // "throw"
	RETURN   // "return"
	IMPORT   // "import"
	EXPORT   // "export"
	NEW      // "new"
	FOR      // "for"
	IN       // "in"
	IS       // "is"
	AS       // "as"
	TRUE     // "true"
	FALSE    // "false"
	NONE     // "none"
)

var tokenNames = map[TokenType]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	IDENT:     "IDENT",
	INT:       "INT",
	FLOAT:     "FLOAT",
	STRING:    "STRING",
	PRINCIPAL: "PRINCIPAL",
	DECORATOR: "DECORATOR",
	ASSIGN:    "=",
	PLUS:      "+",
	MINUS:     "-",
	BANG:      "!",
	ASTERISK:  "*",
	SLASH:     "/",
	PERCENT:   "%",
	LT:        "<",
	GT:        ">",
	LTE:       "<=",
	GTE:       ">=",
	EQ:        "==",
	NOT_EQ:    "!=",
	AND:       "&&",
	OR:        "||",
	BIT_AND:   "&",
	BIT_OR:    "|",
	BIT_XOR:   "^",
	SHL:       "<<",
	SHR:       ">>",
	QUESTION:  "?",
	ARROW:     "=>",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",
	DOT:       ".",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
	FUNCTION:  "FUNCTION",
	LET:       "LET",
	CONST:     "CONST",
	CLASS:     "CLASS",
	TRAIT:     "TRAIT",
	IF:        "IF",
	ELSE:      "ELSE",
	TRY:       "TRY",
	CATCH:     "CATCH",
	THROW:     "THROW",
	RETURN:    "RETURN",
	IMPORT:    "IMPORT",
	EXPORT:    "EXPORT",
	NEW:       "NEW",
	FOR:       "FOR",
	IN:        "IN",
	IS:        "IS",
	AS:        "AS",
	TRUE:      "TRUE",
	FALSE:     "FALSE",
	NONE:      "NONE",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

// keywords maps reserved words to their token types. Words such as "from",
// "map", "filter" and "fold" stay identifiers and are recognized by context.
var keywords = map[string]TokenType{
	"function": FUNCTION,
	"let":      LET,
	"const":    CONST,
	"class":    CLASS,
	"trait":    TRAIT,
	"if":       IF,
	"else":     ELSE,
	"try":      TRY,
	"catch":    CATCH,
	"throw":    THROW,
	"return":   RETURN,
	"import":   IMPORT,
	"export":   EXPORT,
	"new":      NEW,
	"for":      FOR,
	"in":       IN,
	"is":       IS,
	"as":       AS,
	"true":     TRUE,
	"false":    FALSE,
	"none":     NONE,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Lexer represents the lexical analyzer
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination (first byte)
	chRune       rune // current character as a rune
	chSize       int  // byte size of current character
	line         int
	column       int
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "<input>")
}

// NewWithFilename creates a new lexer instance with a specific filename
func NewWithFilename(input string, filename string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    input,
		line:     1,
		column:   0,
	}
	l.readChar()
	return l
}

// Filename returns the name the lexer was created with.
func (l *Lexer) Filename() string {
	return l.filename
}

// LexerState holds the state of a lexer for save/restore
type LexerState struct {
	position     int
	readPosition int
	ch           byte
	chRune       rune
	chSize       int
	line         int
	column       int
}

// SaveState saves the current lexer state for potential restoration
func (l *Lexer) SaveState() LexerState {
	return LexerState{
		position:     l.position,
		readPosition: l.readPosition,
		ch:           l.ch,
		chRune:       l.chRune,
		chSize:       l.chSize,
		line:         l.line,
		column:       l.column,
	}
}

// RestoreState restores the lexer to a previously saved state
func (l *Lexer) RestoreState(state LexerState) {
	l.position = state.position
	l.readPosition = state.readPosition
	l.ch = state.ch
	l.chRune = state.chRune
	l.chSize = state.chSize
	l.line = state.line
	l.column = state.column
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.chRune = 0
		l.chSize = 0
		l.position = l.readPosition
		return
	}

	b := l.input[l.readPosition]
	if b < utf8.RuneSelf {
		l.ch = b
		l.chRune = rune(b)
		l.chSize = 1
		l.position = l.readPosition
		l.readPosition++

		if l.ch == '\n' {
			l.line++
			l.column = 0
		} else {
			l.column++
		}
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = b
	l.chRune = r
	l.chSize = size
	l.position = l.readPosition
	l.readPosition += size
	l.column++
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	line, col := l.line, l.column
	var tok Token

	switch l.ch {
	case '=':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: EQ, Literal: "==", Line: line, Column: col}
		case '>':
			l.readChar()
			tok = Token{Type: ARROW, Literal: "=>", Line: line, Column: col}
		default:
			tok = newToken(ASSIGN, l.ch, line, col)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: NOT_EQ, Literal: "!=", Line: line, Column: col}
		} else {
			tok = newToken(BANG, l.ch, line, col)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: LTE, Literal: "<=", Line: line, Column: col}
		case '<':
			l.readChar()
			tok = Token{Type: SHL, Literal: "<<", Line: line, Column: col}
		default:
			tok = newToken(LT, l.ch, line, col)
		}
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: GTE, Literal: ">=", Line: line, Column: col}
		case '>':
			l.readChar()
			tok = Token{Type: SHR, Literal: ">>", Line: line, Column: col}
		default:
			tok = newToken(GT, l.ch, line, col)
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = Token{Type: AND, Literal: "&&", Line: line, Column: col}
		} else {
			tok = newToken(BIT_AND, l.ch, line, col)
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: OR, Literal: "||", Line: line, Column: col}
		} else {
			tok = newToken(BIT_OR, l.ch, line, col)
		}
	case '^':
		tok = newToken(BIT_XOR, l.ch, line, col)
	case '+':
		tok = newToken(PLUS, l.ch, line, col)
	case '-':
		tok = newToken(MINUS, l.ch, line, col)
	case '*':
		tok = newToken(ASTERISK, l.ch, line, col)
	case '/':
		tok = newToken(SLASH, l.ch, line, col)
	case '%':
		tok = newToken(PERCENT, l.ch, line, col)
	case '?':
		tok = newToken(QUESTION, l.ch, line, col)
	case ',':
		tok = newToken(COMMA, l.ch, line, col)
	case ';':
		tok = newToken(SEMICOLON, l.ch, line, col)
	case ':':
		tok = newToken(COLON, l.ch, line, col)
	case '.':
		tok = newToken(DOT, l.ch, line, col)
	case '(':
		tok = newToken(LPAREN, l.ch, line, col)
	case ')':
		tok = newToken(RPAREN, l.ch, line, col)
	case '{':
		tok = newToken(LBRACE, l.ch, line, col)
	case '}':
		tok = newToken(RBRACE, l.ch, line, col)
	case '[':
		tok = newToken(LBRACKET, l.ch, line, col)
	case ']':
		tok = newToken(RBRACKET, l.ch, line, col)
	case '"':
		str, ok := l.readString('"')
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated string", Line: line, Column: col}
		}
		tok = Token{Type: STRING, Literal: str, Line: line, Column: col}
	case '\'':
		if l.atPrincipal() {
			l.readChar()
			principal := l.readPrincipal()
			return Token{Type: PRINCIPAL, Literal: principal, Line: line, Column: col}
		}
		str, ok := l.readString('\'')
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated string", Line: line, Column: col}
		}
		tok = Token{Type: STRING, Literal: str, Line: line, Column: col}
	case '@':
		l.readChar()
		if !isLetterRune(l.chRune) {
			return Token{Type: ILLEGAL, Literal: "@", Line: line, Column: col}
		}
		return Token{Type: DECORATOR, Literal: "@" + l.readIdentifier(), Line: line, Column: col}
	case 0:
		return Token{Type: EOF, Literal: "", Line: line, Column: col}
	default:
		if isLetterRune(l.chRune) {
			ident := l.readIdentifier()
			return Token{Type: LookupIdent(ident), Literal: ident, Line: line, Column: col}
		} else if isDigit(l.ch) {
			num := l.readNumber()
			if containsDot(num) {
				return Token{Type: FLOAT, Literal: num, Line: line, Column: col}
			}
			return Token{Type: INT, Literal: num, Line: line, Column: col}
		}
		tok = Token{Type: ILLEGAL, Literal: string(l.chRune), Line: line, Column: col}
	}

	l.readChar()
	return tok
}

// skipWhitespaceAndComments skips blanks, // comments and /* */ comments.
// It reports false with an ILLEGAL token for an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			line, col := l.line, l.column
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return Token{Type: ILLEGAL, Literal: "unterminated comment", Line: line, Column: col}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
		default:
			return Token{}, true
		}
	}
}

// newToken creates a new token with the given parameters
func newToken(tokenType TokenType, ch byte, line, column int) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: line, Column: column}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetterRune(l.chRune) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads a number (integer or float)
func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[position:l.position]
}

// readString reads a string literal delimited by quote with escape sequence
// support. The lexer is left on the closing quote. Strings cannot span lines.
func (l *Lexer) readString(quote byte) (string, bool) {
	var result []byte
	l.readChar()

	for l.ch != quote && l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case '\\', '"', '\'':
				result = append(result, l.ch)
			default:
				result = append(result, '\\', l.ch)
			}
		} else if l.chSize > 1 {
			result = append(result, l.input[l.position:l.position+l.chSize]...)
		} else {
			result = append(result, l.ch)
		}
		l.readChar()
	}

	return string(result), l.ch == quote
}

// atPrincipal reports whether the single quote at the current position
// starts a principal: a Stacks address (S followed by P, M, T or N, then
// upper-case letters and digits), an optional .contract-name, and no
// closing quote.
func (l *Lexer) atPrincipal() bool {
	i := l.readPosition
	if i+2 >= len(l.input) || l.input[i] != 'S' || !strings.ContainsRune("PMTN", rune(l.input[i+1])) {
		return false
	}
	i += 2
	start := i
	for i < len(l.input) && isAddressChar(l.input[i]) {
		i++
	}
	if i == start {
		return false
	}
	if i < len(l.input) && l.input[i] == '.' {
		i++
		for i < len(l.input) && isContractNameChar(l.input[i]) {
			i++
		}
	}
	return i >= len(l.input) || l.input[i] != '\''
}

// readPrincipal reads the body of a principal literal: an address optionally
// followed by .contract-name.
func (l *Lexer) readPrincipal() string {
	position := l.position
	for isAddressChar(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isContractNameChar(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

func isAddressChar(ch byte) bool {
	return isDigit(ch) || (ch >= 'A' && ch <= 'Z')
}

func isContractNameChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '-'
}

// isLetter checks if a byte represents an ASCII letter or underscore.
func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isLetterRune checks if a rune is a valid identifier character.
func isLetterRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func containsDot(s string) bool {
	for _, ch := range s {
		if ch == '.' {
			return true
		}
	}
	return false
}
