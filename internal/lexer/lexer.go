// Package lexer implements the Raven tokenizer.
//
// The tokenizer is mode aware: declarations at the top level, field lists in
// struct bodies, statements in code bodies and string literals are all lexed
// differently. Modes nest through an explicit stack; every '{' pushes a mode
// and the matching '}' pops it.
package lexer

import (
	"fmt"

	"github.com/raven-lang/raven/internal/position"
)

// TokenType represents the type of a token
type TokenType int

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

const (
	// 特殊トークン
	TokenEOF TokenType = iota
	TokenInvalidCharacters
	TokenLineEnd

	// 構造
	TokenCodeStart
	TokenCodeEnd
	TokenParenOpen
	TokenParenClose
	TokenArgumentEnd
	TokenColon
	TokenReturnType

	// リテラル
	TokenVariable
	TokenInteger
	TokenFloat
	TokenStringStart
	TokenStringEnd

	// 演算子
	TokenCallingType
	TokenOperator
	TokenEquals

	// コードキーワード
	TokenReturn
	TokenBreak
	TokenSwitch
	TokenFor
	TokenWhile
	TokenIf
	TokenElse
	TokenLet
	TokenNew

	// 宣言キーワード
	TokenImport
	TokenStruct
	TokenFunction
)

var tokenNames = map[TokenType]string{
	TokenEOF:               "EOF",
	TokenInvalidCharacters: "InvalidCharacters",
	TokenLineEnd:           "LineEnd",

	TokenCodeStart:   "CodeStart",
	TokenCodeEnd:     "CodeEnd",
	TokenParenOpen:   "ParenOpen",
	TokenParenClose:  "ParenClose",
	TokenArgumentEnd: "ArgumentEnd",
	TokenColon:       "Colon",
	TokenReturnType:  "ReturnType",

	TokenVariable:    "Variable",
	TokenInteger:     "Integer",
	TokenFloat:       "Float",
	TokenStringStart: "StringStart",
	TokenStringEnd:   "StringEnd",

	TokenCallingType: "CallingType",
	TokenOperator:    "Operator",
	TokenEquals:      "Equals",

	TokenReturn: "Return",
	TokenBreak:  "Break",
	TokenSwitch: "Switch",
	TokenFor:    "For",
	TokenWhile:  "While",
	TokenIf:     "If",
	TokenElse:   "Else",
	TokenLet:    "Let",
	TokenNew:    "New",

	TokenImport:   "Import",
	TokenStruct:   "Struct",
	TokenFunction: "Function",
}

// codeKeywords are only recognized inside code bodies
var codeKeywords = []struct {
	word string
	tt   TokenType
}{
	{"return", TokenReturn},
	{"break", TokenBreak},
	{"switch", TokenSwitch},
	{"for", TokenFor},
	{"while", TokenWhile},
	{"if", TokenIf},
	{"else", TokenElse},
	{"let", TokenLet},
	{"new", TokenNew},
}

// Token is a span into the source buffer. The text is only copied on demand.
type Token struct {
	Type TokenType
	Span position.Span
}

// Text returns the source text covered by the token
func (t Token) Text(buffer []byte) string {
	return t.Span.Text(buffer)
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Span: %d-%d}", t.Type, t.Span.Start, t.Span.End)
}

// Mode is the lexical context the tokenizer is currently in
type Mode int

const (
	ModeTop Mode = iota
	ModeStruct
	ModeCode
	ModeString
)

func (m Mode) String() string {
	switch m {
	case ModeTop:
		return "top"
	case ModeStruct:
		return "struct"
	case ModeCode:
		return "code"
	case ModeString:
		return "string"
	default:
		return "unknown"
	}
}

// Tokenizer turns a source buffer into tokens one at a time.
type Tokenizer struct {
	buffer []byte
	index  int
	start  int
	modes  []Mode

	// set by the struct keyword; the next '{' opens a struct body
	structPending bool
}

// New creates a tokenizer positioned at the top level of a file
func New(buffer []byte) *Tokenizer {
	return NewInMode(buffer, ModeTop)
}

// NewInMode creates a tokenizer whose base mode is mode.
func NewInMode(buffer []byte, mode Mode) *Tokenizer {
	return &Tokenizer{
		buffer: buffer,
		modes:  []Mode{mode},
	}
}

// Tokenize lexes the whole buffer from the top level, including the final EOF token.
func Tokenize(buffer []byte) []Token {
	return New(buffer).All()
}

// All reads tokens until EOF, including the EOF token.
func (t *Tokenizer) All() []Token {
	var tokens []Token
	for {
		tok := t.Next()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// Mode returns the innermost lexical mode
func (t *Tokenizer) Mode() Mode {
	return t.modes[len(t.modes)-1]
}

// Depth returns the number of open modes, the base mode included.
func (t *Tokenizer) Depth() int {
	return len(t.modes)
}

func (t *Tokenizer) push(mode Mode) {
	t.modes = append(t.modes, mode)
}

// pop closes the innermost mode. The base mode is never popped.
func (t *Tokenizer) pop() bool {
	if len(t.modes) == 1 {
		return false
	}
	t.modes = t.modes[:len(t.modes)-1]
	return true
}

// Next returns the next token. Once the buffer is exhausted every call
// returns an EOF token.
func (t *Tokenizer) Next() Token {
	if t.Mode() == ModeString {
		return t.nextString()
	}

	t.skipIgnored()
	t.start = t.index
	if t.index >= len(t.buffer) {
		return t.makeToken(TokenEOF)
	}

	switch t.Mode() {
	case ModeCode:
		return t.nextCode()
	default:
		return t.nextDeclaration()
	}
}

func (t *Tokenizer) makeToken(tt TokenType) Token {
	return Token{Type: tt, Span: position.Span{Start: t.start, End: t.index}}
}

// matches consumes word if the buffer continues with it. Words made of
// identifier characters must also end at an identifier boundary.
func (t *Tokenizer) matches(word string) bool {
	end := t.index + len(word)
	if end > len(t.buffer) || string(t.buffer[t.index:end]) != word {
		return false
	}
	if isIdentStart(word[0]) && end < len(t.buffer) && isIdentPart(t.buffer[end]) {
		return false
	}
	t.index = end
	return true
}

func (t *Tokenizer) skipIgnored() {
	for t.index < len(t.buffer) {
		switch c := t.buffer[t.index]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			t.index++
		case c == '/' && t.index+1 < len(t.buffer) && t.buffer[t.index+1] == '/':
			for t.index < len(t.buffer) && t.buffer[t.index] != '\n' {
				t.index++
			}
		default:
			return
		}
	}
}

// closeBlock handles '}' in every mode. A close with nothing open is
// reported as invalid characters and leaves the mode stack untouched.
func (t *Tokenizer) closeBlock() Token {
	if !t.pop() {
		return t.makeToken(TokenInvalidCharacters)
	}
	return t.makeToken(TokenCodeEnd)
}

// generic classifies anything that is not punctuation or a keyword.
func (t *Tokenizer) generic(identType TokenType) Token {
	c := t.buffer[t.index]
	switch {
	case isIdentStart(c):
		return t.parseIdent(identType)
	case isDigit(c):
		return t.parseNumber()
	case c > ' ' && c < 0x7f:
		t.index++
		return t.makeToken(TokenOperator)
	default:
		// control bytes and non-ASCII runs
		for t.index < len(t.buffer) && !isClassifiable(t.buffer[t.index]) {
			t.index++
		}
		return t.makeToken(TokenInvalidCharacters)
	}
}

// parseIdent reads an identifier, which may be qualified with "::".
func (t *Tokenizer) parseIdent(tt TokenType) Token {
	for t.index < len(t.buffer) {
		c := t.buffer[t.index]
		if isIdentPart(c) {
			t.index++
			continue
		}
		if c == ':' && t.index+2 < len(t.buffer) && t.buffer[t.index+1] == ':' && isIdentStart(t.buffer[t.index+2]) {
			t.index += 2
			continue
		}
		break
	}
	return t.makeToken(tt)
}

// parseNumber reads an integer, or a float when a decimal point followed by a
// digit is present. The number may start at the decimal point.
func (t *Tokenizer) parseNumber() Token {
	tt := TokenInteger
	for t.index < len(t.buffer) && isDigit(t.buffer[t.index]) {
		t.index++
	}
	if t.index+1 < len(t.buffer) && t.buffer[t.index] == '.' && isDigit(t.buffer[t.index+1]) {
		tt = TokenFloat
		t.index++
		for t.index < len(t.buffer) && isDigit(t.buffer[t.index]) {
			t.index++
		}
	}
	return t.makeToken(tt)
}

func (t *Tokenizer) nextString() Token {
	t.start = t.index
	for t.index < len(t.buffer) {
		c := t.buffer[t.index]
		t.index++
		if c == '\\' {
			if t.index < len(t.buffer) {
				t.index++
			}
			continue
		}
		if c == '"' {
			break
		}
	}
	t.pop()
	return t.makeToken(TokenStringEnd)
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isClassifiable(ch byte) bool {
	return ch >= ' ' && ch < 0x7f || ch == '\t' || ch == '\n' || ch == '\r'
}
