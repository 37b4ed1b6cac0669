// Package parser implements the SQL dialect's lexer, AST and recursive
// descent parser. Unlike the core engine components, the textual parser
// is treated as an external collaborator by the specification, so it is
// free to diverge in implementation while producing the AST the planner
// consumes.
package parser

import (
	"fmt"
	"strings"

	"github.com/cuemby/slotdb/internal/types"
)

// TokenType enumerates lexical token kinds.
type TokenType int

const (
	TokEOF TokenType = iota
	TokIdent
	TokIntLit
	TokStringLit
	TokKeyword
	TokLParen
	TokRParen
	TokComma
	TokSemicolon
	TokStar
	TokDot
	TokEq
	TokNe
	TokLt
	TokLe
	TokGt
	TokGe
)

var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true, "into": true,
	"values": true, "update": true, "set": true, "delete": true, "create": true,
	"table": true, "drop": true, "index": true, "on": true, "primary": true,
	"key": true, "order": true, "by": true, "asc": true, "desc": true,
	"limit": true, "offset": true, "explain": true, "analyze": true,
	"and": true, "or": true, "not": true, "null": true, "true": true, "false": true,
	"int": true, "integer": true, "text": true, "string": true, "varchar": true,
	"bool": true, "boolean": true,
}

// Token is one lexical token. Identifiers and keywords are folded to
// lowercase at lex time per the dialect's case-insensitivity rule.
type Token struct {
	Type TokenType
	Text string
	Int  int64
}

type lexer struct {
	input []rune
	pos   int
}

func tokenize(input string) ([]Token, error) {
	l := &lexer{input: []rune(input)}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}
	return tokens, nil
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) next() (Token, error) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return Token{Type: TokEOF}, nil
	}
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return Token{Type: TokLParen}, nil
	case c == ')':
		l.pos++
		return Token{Type: TokRParen}, nil
	case c == ',':
		l.pos++
		return Token{Type: TokComma}, nil
	case c == ';':
		l.pos++
		return Token{Type: TokSemicolon}, nil
	case c == '*':
		l.pos++
		return Token{Type: TokStar}, nil
	case c == '.':
		l.pos++
		return Token{Type: TokDot}, nil
	case c == '=':
		l.pos++
		return Token{Type: TokEq}, nil
	case c == '!' && l.peekAt(1) == '=':
		l.pos += 2
		return Token{Type: TokNe}, nil
	case c == '<':
		l.pos++
		if l.peekRune() == '=' {
			l.pos++
			return Token{Type: TokLe}, nil
		}
		if l.peekRune() == '>' {
			l.pos++
			return Token{Type: TokNe}, nil
		}
		return Token{Type: TokLt}, nil
	case c == '>':
		l.pos++
		if l.peekRune() == '=' {
			l.pos++
			return Token{Type: TokGe}, nil
		}
		return Token{Type: TokGt}, nil
	case c == '\'':
		return l.lexString()
	case isDigit(c):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	default:
		return Token{}, fmt.Errorf("%w: unexpected character %q", types.ErrParser, c)
	}
}

func (l *lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		if c == '-' && l.peekAt(1) == '-' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

func isDigit(c rune) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c rune) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentCont(c rune) bool  { return isIdentStart(c) || isDigit(c) }

func (l *lexer) lexString() (Token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return Token{}, fmt.Errorf("%w: unterminated string literal", types.ErrParser)
		}
		c := l.input[l.pos]
		if c == '\'' {
			if l.peekAt(1) == '\'' {
				sb.WriteRune('\'')
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteRune(c)
		l.pos++
	}
	return Token{Type: TokStringLit, Text: sb.String()}, nil
}

func (l *lexer) lexNumber() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		return Token{}, fmt.Errorf("%w: non-integer numeric literal is not supported", types.ErrParser)
	}
	text := string(l.input[start:l.pos])
	var n int64
	for _, c := range text {
		n = n*10 + int64(c-'0')
	}
	return Token{Type: TokIntLit, Int: n, Text: text}, nil
}

func (l *lexer) lexIdent() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentCont(l.input[l.pos]) {
		l.pos++
	}
	text := strings.ToLower(string(l.input[start:l.pos]))
	if keywords[text] {
		return Token{Type: TokKeyword, Text: text}, nil
	}
	return Token{Type: TokIdent, Text: text}, nil
}
