package parser

import (
	"github.com/xirelogy/go-tiney/internal/bytecode"
	"github.com/xirelogy/go-tiney/internal/token"
)

// ValidationMode selects the operand check applied to additions.
type ValidationMode int

const (
	// ValidateCompat pops the left operand from the identifier queue and then
	// requires that either operand still appears in the queue. This usually
	// only succeeds when the left operand was recorded more than once.
	ValidateCompat ValidationMode = iota
	// ValidateDeclared requires both operands to be earlier assignment
	// targets. It is an alternative to ValidateCompat, not a refinement of it.
	ValidateDeclared
)

func (m ValidationMode) String() string {
	switch m {
	case ValidateDeclared:
		return "declared"
	default:
		return "compat"
	}
}

// Option configures a Parser.
type Option func(*Parser)

// WithValidation selects the operand check.
func WithValidation(mode ValidationMode) Option {
	return func(p *Parser) { p.mode = mode }
}

// Parser turns a token sequence into instructions in a single forward pass.
// A Parser is not safe for concurrent use; independent Parsers are.
type Parser struct {
	tokens []token.Token
	mode   ValidationMode

	st    *state
	chunk *bytecode.Chunk
}

// New creates a parser over tokens.
func New(tokens []token.Token, opts ...Option) *Parser {
	p := &Parser{tokens: tokens}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse is shorthand for New(tokens, opts...).Parse().
func Parse(tokens []token.Token, opts ...Option) (*bytecode.Chunk, error) {
	return New(tokens, opts...).Parse()
}

// Parse generates the instruction sequence. Working state is rebuilt on
// every call. On error no chunk is returned.
func (p *Parser) Parse() (*bytecode.Chunk, error) {
	p.st = newState()
	p.chunk = &bytecode.Chunk{}

	for _, tok := range p.tokens {
		switch tok.Kind {
		case token.Identifier:
			if err := p.parseIdentifier(tok); err != nil {
				return nil, err
			}
		case token.Operator:
			p.st.pushOperator(tok.Text)
		case token.Literal:
			p.parseLiteral(tok)
		case token.Keyword:
			p.parseKeyword(tok)
		default:
			// Newline, Tab and Unknown are inert.
		}
	}
	// Leftover operators, identifiers or an open def are discarded.
	return p.chunk, nil
}

func (p *Parser) parseIdentifier(tok token.Token) error {
	switch p.st.context() {
	case ctxStatement:
		p.st.record(tok.Text)
		return nil
	case ctxDefHeader:
		p.st.closeDef()
		return nil
	}

	left := p.st.popIdent()
	if !p.validOperands(left, tok.Text) {
		return p.invalidOperand(left, tok)
	}
	p.chunk.Emit(bytecode.OP_LOAD_FAST, left, tok.Pos)
	p.chunk.Emit(bytecode.OP_LOAD_FAST, tok.Text, tok.Pos)
	if p.st.topOperator() == "+" {
		p.chunk.Emit(bytecode.OP_BINARY_ADD, "", tok.Pos)
		p.st.popOperator()
	}
	return nil
}

func (p *Parser) validOperands(left, right string) bool {
	switch p.mode {
	case ValidateDeclared:
		return p.st.isStored(left) && p.st.isStored(right)
	default:
		return p.st.hasIdent(left) || p.st.hasIdent(right)
	}
}

func (p *Parser) invalidOperand(left string, tok token.Token) error {
	err := &InvalidOperandError{
		Left:  left,
		Right: tok.Text,
		Mode:  p.mode,
		Pos:   tok.Pos,
	}
	unknown := tok.Text
	if p.mode == ValidateDeclared && p.st.isStored(tok.Text) {
		unknown = left
	}
	err.Suggestion = closestMatch(unknown, p.st.knownNames())
	return err
}

func (p *Parser) parseLiteral(tok token.Token) {
	if p.st.topOperator() != "=" {
		return
	}
	target := p.st.lastIdent()
	p.chunk.Emit(bytecode.OP_LOAD_CONST, tok.Text, tok.Pos)
	p.chunk.Emit(bytecode.OP_STORE_FAST, target, tok.Pos)
	p.st.markStored(target)
	p.st.popOperator()
}

func (p *Parser) parseKeyword(tok token.Token) {
	switch tok.Text {
	case token.Print:
		p.chunk.Emit(bytecode.OP_LOAD_GLOBAL, token.Print, tok.Pos)
	case token.Def:
		p.st.openDef()
	}
}
