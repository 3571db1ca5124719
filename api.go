package tiney

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/xirelogy/go-tiney/internal/bytecode"
	"github.com/xirelogy/go-tiney/internal/lexer"
	"github.com/xirelogy/go-tiney/internal/parser"
	"github.com/xirelogy/go-tiney/internal/token"
)

// ErrInvalidOperand is matched (errors.Is) by compile failures caused by an
// addition whose operands could not be validated.
var ErrInvalidOperand = parser.ErrInvalidOperand

// ValidationMode selects how addition operands are checked.
type ValidationMode = parser.ValidationMode

const (
	// ValidateCompat is the default check: after popping the left operand,
	// either operand must still be present in the recorded identifiers.
	ValidateCompat = parser.ValidateCompat
	// ValidateDeclared requires both operands to be earlier assignment targets.
	ValidateDeclared = parser.ValidateDeclared
)

// ParseValidationMode maps "compat" or "declared" to a mode.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch s {
	case "", "compat":
		return ValidateCompat, nil
	case "declared":
		return ValidateDeclared, nil
	default:
		return ValidateCompat, fmt.Errorf("unknown validation mode %q", s)
	}
}

// Token is a lexical item as exposed to callers.
type Token struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Instruction is one generated operation. Operand is empty for BINARY_ADD.
type Instruction struct {
	Op      string `json:"op"`
	Operand string `json:"operand,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// CompileError is a source-aware code generation failure.
type CompileError struct {
	Name    string
	Line    int
	Column  int
	Message string
	Cause   error
}

func (e *CompileError) Error() string {
	loc := e.Name
	if e.Line > 0 {
		if loc != "" {
			loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
		} else {
			loc = fmt.Sprintf("line %d:%d", e.Line, e.Column)
		}
	}
	if loc != "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying cause (if any) for errors.Is/As.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

func convertCompileError(name string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *parser.InvalidOperandError
	if errors.As(err, &opErr) {
		return &CompileError{
			Name:    name,
			Line:    opErr.Pos.Line,
			Column:  opErr.Pos.Column,
			Message: opErr.Message(),
			Cause:   err,
		}
	}
	return &CompileError{Name: name, Message: err.Error(), Cause: err}
}

// Compiler is the configurator for the tokenizer and code generator.
// Settings may be changed between compilations; Compile itself is safe for
// concurrent use.
type Compiler struct {
	mu      sync.RWMutex
	mode    ValidationMode
	flush   bool
	cache   Cache
	logger  *log.Logger
	verbose bool
}

// NewCompiler constructs a compiler with the default settings: compatible
// validation, trailing token discarded, no cache, no logging.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Duplicate returns an independent compiler with the same settings. The
// cache and logger are shared.
func (c *Compiler) Duplicate() *Compiler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Compiler{
		mode:    c.mode,
		flush:   c.flush,
		cache:   c.cache,
		logger:  c.logger,
		verbose: c.verbose,
	}
}

// SetValidation selects the operand check.
func (c *Compiler) SetValidation(mode ValidationMode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
}

// SetTrailingFlush makes the tokenizer emit a run still open at end of input
// instead of discarding it.
func (c *Compiler) SetTrailingFlush(enable bool) {
	c.mu.Lock()
	c.flush = enable
	c.mu.Unlock()
}

// SetCache attaches a compile cache (nil to disable).
func (c *Compiler) SetCache(cache Cache) {
	c.mu.Lock()
	c.cache = cache
	c.mu.Unlock()
}

// SetLogger attaches a logger for cache activity and compile failures.
// With verbose set, cache hits and misses are logged as well.
func (c *Compiler) SetLogger(logger *log.Logger, verbose bool) {
	c.mu.Lock()
	c.logger = logger
	c.verbose = verbose
	c.mu.Unlock()
}

type settings struct {
	mode    ValidationMode
	flush   bool
	cache   Cache
	logger  *log.Logger
	verbose bool
}

func (c *Compiler) settings() settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return settings{mode: c.mode, flush: c.flush, cache: c.cache, logger: c.logger, verbose: c.verbose}
}

func (s settings) lexerOptions() []lexer.Option {
	if s.flush {
		return []lexer.Option{lexer.WithTrailingFlush()}
	}
	return nil
}

func (s settings) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s settings) debugf(format string, args ...any) {
	if s.verbose {
		s.logf(format, args...)
	}
}

// Tokenize runs only the tokenizer.
func (c *Compiler) Tokenize(src string) []Token {
	return exportTokens(lexer.Tokenize(src, c.settings().lexerOptions()...))
}

// CompileFile reads and compiles a script from a filesystem path.
func (c *Compiler) CompileFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Compile(path, string(data))
}

// Compile tokenizes and generates code for src. The name is used in
// diagnostics and cache entries. On failure no program is returned.
func (c *Compiler) Compile(name string, src string) (*Program, error) {
	s := c.settings()
	toks := lexer.Tokenize(src, s.lexerOptions()...)
	prog := &Program{Name: name, Source: src, Tokens: exportTokens(toks)}

	var key string
	if s.cache != nil {
		key = CacheKey(src, s.mode, s.flush)
		code, ok, err := s.cache.Get(key)
		switch {
		case err != nil:
			s.logf("cache lookup for %s: %v", name, err)
		case ok:
			chunk, err := importInstructions(code)
			if err == nil {
				s.debugf("cache hit for %s (%s)", name, key[:12])
				prog.chunk = chunk
				prog.cached = true
				return prog, nil
			}
			s.logf("cache entry for %s unusable: %v", name, err)
		default:
			s.debugf("cache miss for %s (%s)", name, key[:12])
		}
	}

	chunk, err := parser.Parse(toks, parser.WithValidation(s.mode))
	if err != nil {
		err = convertCompileError(name, err)
		s.debugf("compile %s: %v", name, err)
		return nil, err
	}
	prog.chunk = chunk

	if s.cache != nil {
		if err := s.cache.Put(key, name, prog.Instructions()); err != nil {
			s.logf("cache store for %s: %v", name, err)
		}
	}
	return prog, nil
}

// CompileFuture represents an in-flight compilation.
type CompileFuture struct {
	ch <-chan CompileResult
}

// CompileResult is the outcome of an asynchronous compilation.
type CompileResult struct {
	Program *Program
	Err     error
}

// Await waits for completion or context cancellation.
func (f CompileFuture) Await(ctx context.Context) (*Program, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-f.ch:
		return res.Program, res.Err
	}
}

// CompileAsync compiles src on its own goroutine.
func (c *Compiler) CompileAsync(ctx context.Context, name string, src string) CompileFuture {
	ch := make(chan CompileResult, 1)
	go func() {
		defer close(ch)
		select {
		case <-ctx.Done():
			ch <- CompileResult{Err: ctx.Err()}
			return
		default:
		}
		prog, err := c.Compile(name, src)
		ch <- CompileResult{Program: prog, Err: err}
	}()
	return CompileFuture{ch: ch}
}

// Program is the result of a successful compilation.
type Program struct {
	Name   string
	Source string
	Tokens []Token

	chunk  *bytecode.Chunk
	cached bool
}

// Cached reports whether the instructions came from the compile cache.
func (p *Program) Cached() bool {
	return p.cached
}

// Len returns the number of generated instructions.
func (p *Program) Len() int {
	return p.chunk.Len()
}

// Instructions returns the generated instruction sequence.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, p.chunk.Len())
	for i, ins := range p.chunk.Code {
		out[i] = Instruction{Op: ins.Op.String(), Operand: ins.Operand, Line: ins.Pos.Line}
	}
	return out
}

// Fingerprint is a stable 64-bit digest of the instruction sequence.
func (p *Program) Fingerprint() uint64 {
	return p.chunk.Fingerprint()
}

// Disassemble writes an assembly-style listing of the instructions.
func (p *Program) Disassemble(w io.Writer, colored bool) error {
	d := bytecode.NewDisassembler(w)
	d.SetColor(colored)
	return d.DisassembleChunk(p.Name, p.chunk)
}

// Assemble lowers the instructions to CPython-style byte code.
func (p *Program) Assemble() (*Bytecode, error) {
	obj, err := bytecode.Assemble(p.chunk)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", p.Name, err)
	}
	return &Bytecode{obj: obj}, nil
}

// Bytecode is an assembled program.
type Bytecode struct {
	obj *bytecode.CodeObject
}

// Code returns the raw byte code.
func (b *Bytecode) Code() []byte { return b.obj.Code }

// Consts returns the constant table; index 0 is nil.
func (b *Bytecode) Consts() []any { return b.obj.Consts }

// Names returns the global name table.
func (b *Bytecode) Names() []string { return b.obj.Names }

// VarNames returns the local variable table.
func (b *Bytecode) VarNames() []string { return b.obj.VarNames }

// Hex renders the code as an escaped byte string.
func (b *Bytecode) Hex() string { return b.obj.Hex() }

// Disassemble writes a listing of the byte code with resolved arguments.
func (b *Bytecode) Disassemble(w io.Writer, label string, colored bool) error {
	d := bytecode.NewDisassembler(w)
	d.SetColor(colored)
	return d.DisassembleCode(label, b.obj)
}

// WriteTokens writes one token per line as "line:col  Kind  text".
func WriteTokens(w io.Writer, toks []Token) error {
	for _, tok := range toks {
		if _, err := fmt.Fprintf(w, "%d:%d\t%s\t%q\n", tok.Line, tok.Column, tok.Kind, tok.Text); err != nil {
			return err
		}
	}
	return nil
}

func exportTokens(toks []token.Token) []Token {
	out := make([]Token, len(toks))
	for i, tok := range toks {
		out[i] = Token{Kind: tok.Kind.String(), Text: tok.Text, Line: tok.Pos.Line, Column: tok.Pos.Column}
	}
	return out
}

func importInstructions(code []Instruction) (*bytecode.Chunk, error) {
	chunk := &bytecode.Chunk{}
	for i, ins := range code {
		op, ok := bytecode.LookupOpcode(ins.Op)
		if !ok {
			return nil, fmt.Errorf("instruction %d: unknown opcode %q", i, ins.Op)
		}
		chunk.Emit(op, ins.Operand, token.Position{Line: ins.Line})
	}
	return chunk, nil
}
