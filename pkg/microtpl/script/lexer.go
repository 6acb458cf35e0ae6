package script

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenType represents the type of a source token
type TokenType int

const (
	TokenIdentifier TokenType = iota
	TokenNumber
	TokenString
	TokenPunct
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenIdentifier:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenPunct:
		return "punctuator"
	case TokenEOF:
		return "end of input"
	default:
		return "unknown"
	}
}

// Position is a 1-based line and column in the source text.
type Position struct {
	Line   int
	Column int
}

// Token represents a lexed token. Value holds the decoded literal for
// strings and the raw text for everything else.
type Token struct {
	Type   TokenType
	Value  string
	Pos    int
	Line   int
	Column int
	// NewlineBefore is set when a line terminator separates this token from
	// the previous one; the parser uses it for semicolon insertion.
	NewlineBefore bool
}

func (t Token) position() Position {
	return Position{Line: t.Line, Column: t.Column}
}

func (t Token) is(value string) bool {
	return t.Type == TokenPunct && t.Value == value
}

func (t Token) isKeyword(value string) bool {
	return t.Type == TokenIdentifier && t.Value == value
}

var (
	identifierRegex = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*`)
	numberRegex     = regexp.MustCompile(`^([0-9]+(\.[0-9]+)?|\.[0-9]+)([eE][+-]?[0-9]+)?`)
	punctRegex      = regexp.MustCompile(`^(===|!==|==|!=|<=|>=|&&|\|\||\+\+|--|\+=|-=|\*=|/=|%=|[-+*/%<>=!?:.,;()\[\]{}])`)
)

var keywords = map[string]bool{
	"var": true, "let": true, "const": true, "if": true, "else": true,
	"for": true, "while": true, "do": true, "break": true, "continue": true,
	"return": true, "with": true, "function": true, "typeof": true,
	"true": true, "false": true, "null": true, "undefined": true,
	"in": true, "new": true, "this": true,
}

// IsKeyword reports whether name is reserved and cannot be used as a binding.
func IsKeyword(name string) bool {
	return keywords[name]
}

// IsIdentifier reports whether name is a valid, non-reserved binding name.
func IsIdentifier(name string) bool {
	return identifierRegex.FindString(name) == name && name != "" && !IsKeyword(name)
}

type lexer struct {
	src     string
	pos     int
	line    int
	lineAt  int
	newline bool
	tokens  []Token
}

// Lex splits src into tokens, always ending with a TokenEOF.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1}
	for {
		if err := l.skipSpace(); err != nil {
			return nil, err
		}
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, l.token(TokenEOF, "", l.pos))
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) token(typ TokenType, value string, start int) Token {
	tok := Token{
		Type:          typ,
		Value:         value,
		Pos:           start,
		Line:          l.line,
		Column:        start - l.lineAt + 1,
		NewlineBefore: l.newline,
	}
	l.newline = false
	return tok
}

func (l *lexer) errorAt(start int, msg string) error {
	return &SyntaxError{Message: msg, Line: l.line, Column: start - l.lineAt + 1}
}

// skipSpace consumes whitespace and comments, recording line terminators.
func (l *lexer) skipSpace() error {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case r == '\n' || r == '\u2028' || r == '\u2029':
			l.pos += size
			l.line++
			l.lineAt = l.pos
			l.newline = true
		case r == ' ' || r == '\t' || r == '\r' || r == '\f' || r == '\v' || r == '\u00a0' || r == '\ufeff':
			l.pos += size
		case strings.HasPrefix(l.src[l.pos:], "//"):
			end := strings.IndexAny(l.src[l.pos:], "\n\u2028\u2029")
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			start := l.pos
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorAt(start, "unterminated comment")
			}
			body := l.src[l.pos : l.pos+2+end+2]
			for i := 0; i < len(body); i++ {
				if body[i] == '\n' {
					l.line++
					l.lineAt = l.pos + i + 1
					l.newline = true
				}
			}
			l.pos += len(body)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() error {
	start := l.pos
	remaining := l.src[start:]

	if match := identifierRegex.FindString(remaining); match != "" {
		l.tokens = append(l.tokens, l.token(TokenIdentifier, match, start))
		l.pos += len(match)
		return nil
	}

	if match := numberRegex.FindString(remaining); match != "" {
		l.tokens = append(l.tokens, l.token(TokenNumber, match, start))
		l.pos += len(match)
		return nil
	}

	if remaining[0] == '\'' || remaining[0] == '"' {
		value, n, err := l.readString(remaining)
		if err != nil {
			return err
		}
		l.tokens = append(l.tokens, l.token(TokenString, value, start))
		l.pos += n
		return nil
	}

	if match := punctRegex.FindString(remaining); match != "" {
		l.tokens = append(l.tokens, l.token(TokenPunct, match, start))
		l.pos += len(match)
		return nil
	}

	r, _ := utf8.DecodeRuneInString(remaining)
	return l.errorAt(start, "unexpected character "+strconv.QuoteRune(r))
}

// readString decodes a quoted string literal at the start of s and returns
// its value and encoded length.
func (l *lexer) readString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\n' || c == '\r':
			return "", 0, l.errorAt(l.pos, "unterminated string literal")
		case c == '\\':
			if i+1 >= len(s) {
				return "", 0, l.errorAt(l.pos, "unterminated string literal")
			}
			esc := s[i+1]
			i += 2
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'v':
				b.WriteByte('\v')
			case '0':
				b.WriteByte(0)
			case 'u':
				if i+4 > len(s) {
					return "", 0, l.errorAt(l.pos, "invalid unicode escape")
				}
				code, err := strconv.ParseUint(s[i:i+4], 16, 32)
				if err != nil {
					return "", 0, l.errorAt(l.pos, "invalid unicode escape")
				}
				b.WriteRune(rune(code))
				i += 4
			default:
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, l.errorAt(l.pos, "unterminated string literal")
}
