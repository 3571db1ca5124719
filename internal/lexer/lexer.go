package lexer

import (
	"strings"

	"github.com/xirelogy/go-tiney/internal/token"
)

// runKind is the class of the run currently being accumulated.
type runKind int

const (
	runNone runKind = iota
	runOperator
	runIdentifier
	runLiteral
	// runUnknown marks a run restarted after a class change. It accepts
	// any character and closes as token.Unknown.
	runUnknown
)

func (r runKind) tokenKind() token.Kind {
	switch r {
	case runOperator:
		return token.Operator
	case runIdentifier:
		return token.Identifier
	case runLiteral:
		return token.Literal
	default:
		return token.Unknown
	}
}

// accepts reports whether ch may extend a run of this kind.
func (r runKind) accepts(ch byte) bool {
	switch r {
	case runOperator:
		return isOperator(ch)
	case runIdentifier:
		return isLetter(ch)
	case runLiteral:
		return isDigit(ch)
	default:
		return true
	}
}

// Option tunes tokenizer behaviour.
type Option func(*Lexer)

// WithTrailingFlush emits the final run even when no separator follows it.
// By default that run is discarded.
func WithTrailingFlush() Option {
	return func(l *Lexer) { l.flushTrailing = true }
}

// Lexer converts source text into a sequence of tokens.
type Lexer struct {
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
	column  int

	run      runKind
	acc      strings.Builder
	accStart token.Position

	flushTrailing bool
	tokens        []token.Token
}

// New creates a lexer for the provided source text.
func New(input string, opts ...Option) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tokenize is shorthand for New(input, opts...).Tokenize().
func Tokenize(input string, opts ...Option) []token.Token {
	return New(input, opts...).Tokenize()
}

// Tokenize runs a single pass over the input and returns the tokens in the
// order they were closed.
func (l *Lexer) Tokenize() []token.Token {
	l.tokens = []token.Token{}
	for l.readChar() {
		if isWhitespace(l.ch) || isSpecial(l.ch) {
			l.closeRun(true)
			switch l.ch {
			case '\n':
				l.emit(token.Newline, "\n", l.here())
			case '\t':
				l.emit(token.Tab, "\t", l.here())
			}
			continue
		}
		l.consume()
	}
	if l.flushTrailing {
		l.closeRun(true)
	}
	return l.tokens
}

func (l *Lexer) consume() {
	if l.run == runNone {
		switch {
		case isOperator(l.ch):
			l.startRun(runOperator)
		case isLetter(l.ch):
			l.startRun(runIdentifier)
		case isDigit(l.ch):
			l.startRun(runLiteral)
		default:
			return
		}
		l.acc.WriteByte(l.ch)
		return
	}
	if !l.run.accepts(l.ch) {
		l.closeRun(false)
		l.startRun(runUnknown)
	}
	l.acc.WriteByte(l.ch)
}

func (l *Lexer) startRun(kind runKind) {
	l.run = kind
	l.accStart = l.here()
}

// closeRun materialises the accumulator. Keyword promotion only happens on
// separator closes.
func (l *Lexer) closeRun(promote bool) {
	if l.run == runNone {
		return
	}
	text := l.acc.String()
	kind := l.run.tokenKind()
	if promote {
		if kw, ok := token.LookupKeyword(text); ok {
			kind = kw
		}
	}
	l.emit(kind, text, l.accStart)
	l.acc.Reset()
	l.run = runNone
}

func (l *Lexer) emit(kind token.Kind, text string, pos token.Position) {
	l.tokens = append(l.tokens, token.Token{Kind: kind, Text: text, Pos: pos})
}

func (l *Lexer) here() token.Position {
	return token.Position{Offset: l.pos, Line: l.line, Column: l.column}
}

func (l *Lexer) readChar() bool {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return false
	}
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
	l.column++
	return true
}

func isWhitespace(ch byte) bool {
	return ch == ' '
}

func isSpecial(ch byte) bool {
	switch ch {
	case ':', '(', ')', '\n', '\t':
		return true
	default:
		return false
	}
}

func isOperator(ch byte) bool {
	switch ch {
	case '+', '-', '/', '*', '=':
		return true
	default:
		return false
	}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
