package tiney

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const sampleSource = "def s():\n\tab = 1\n\tb = 12\n\tprint(ab + b)\n"

type memCache struct {
	mu      sync.Mutex
	entries map[string][]Instruction
	gets    int
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]Instruction{}}
}

func (m *memCache) Get(key string) ([]Instruction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	code, ok := m.entries[key]
	return code, ok, nil
}

func (m *memCache) Put(key, name string, code []Instruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.entries[key] = code
	return nil
}

func opsOf(code []Instruction) string {
	parts := make([]string, len(code))
	for i, ins := range code {
		if ins.Operand != "" {
			parts[i] = ins.Op + " " + ins.Operand
		} else {
			parts[i] = ins.Op
		}
	}
	return strings.Join(parts, "; ")
}

func TestAPICompileSample(t *testing.T) {
	prog, err := NewCompiler().Compile("inline", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := "LOAD_CONST 1; STORE_FAST ab; LOAD_CONST 12; STORE_FAST b; LOAD_GLOBAL print; LOAD_FAST ab; LOAD_FAST b; BINARY_ADD"
	if got := opsOf(prog.Instructions()); got != want {
		t.Fatalf("unexpected instructions:\n got %s\nwant %s", got, want)
	}
	if prog.Len() != 8 {
		t.Fatalf("expected 8 instructions, got %d", prog.Len())
	}
	if prog.Instructions()[0].Line != 2 {
		t.Fatalf("expected first instruction on line 2, got %d", prog.Instructions()[0].Line)
	}
	if len(prog.Tokens) != 19 {
		t.Fatalf("expected 19 tokens, got %d", len(prog.Tokens))
	}
	if first := prog.Tokens[0]; first.Kind != "Keyword" || first.Text != "def" {
		t.Fatalf("unexpected first token %#v", first)
	}
}

func TestAPICompileInvalidOperand(t *testing.T) {
	prog, err := NewCompiler().Compile("bad.ty", "c + d\n")
	if prog != nil {
		t.Fatalf("expected no program on failure")
	}
	if !errors.Is(err, ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %T", err)
	}
	if cerr.Line != 1 || cerr.Column != 5 {
		t.Fatalf("unexpected position %d:%d", cerr.Line, cerr.Column)
	}
	if !strings.HasPrefix(err.Error(), "bad.ty:1:5: invalid operand") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAPIValidationModes(t *testing.T) {
	src := "a = 1\nprint(a + b)\n"
	c := NewCompiler()
	if _, err := c.Compile("inline", src); err != nil {
		t.Fatalf("compat compile: %v", err)
	}
	c.SetValidation(ValidateDeclared)
	if _, err := c.Compile("inline", src); !errors.Is(err, ErrInvalidOperand) {
		t.Fatalf("expected declared mode to reject, got %v", err)
	}
	mode, err := ParseValidationMode("declared")
	if err != nil || mode != ValidateDeclared {
		t.Fatalf("parse mode: %v %v", mode, err)
	}
	if _, err := ParseValidationMode("strict"); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}

func TestAPITrailingFlush(t *testing.T) {
	c := NewCompiler()
	if toks := c.Tokenize("x = 1"); len(toks) != 2 {
		t.Fatalf("expected trailing literal to be dropped, got %d tokens", len(toks))
	}
	prog, err := c.Compile("inline", "x = 1")
	if err != nil || prog.Len() != 0 {
		t.Fatalf("expected empty program, got %v / %v", prog, err)
	}
	c.SetTrailingFlush(true)
	prog, err = c.Compile("inline", "x = 1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := opsOf(prog.Instructions()); got != "LOAD_CONST 1; STORE_FAST x" {
		t.Fatalf("unexpected instructions %s", got)
	}
}

func TestAPIDisassemble(t *testing.T) {
	prog, err := NewCompiler().Compile("inline", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var buf bytes.Buffer
	if err := prog.Disassemble(&buf, false); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"code inline (instructions=8)\n",
		"0000    2 LOAD_CONST       1\n",
		"0004    4 LOAD_GLOBAL      print\n",
		"0007    4 BINARY_ADD\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestAPIAssemble(t *testing.T) {
	prog, err := NewCompiler().Compile("inline", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	code, err := prog.Assemble()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	want := `d\x01\x00}\x00\x00d\x02\x00}\x01\x00t\x00\x00|\x00\x00|\x01\x00\x17`
	if got := code.Hex(); got != want {
		t.Fatalf("unexpected bytes:\n got %s\nwant %s", got, want)
	}
	if len(code.Code()) != 22 {
		t.Fatalf("expected 22 bytes, got %d", len(code.Code()))
	}
	if strings.Join(code.VarNames(), ",") != "ab,b" || strings.Join(code.Names(), ",") != "print" {
		t.Fatalf("unexpected tables %v %v", code.VarNames(), code.Names())
	}
	if consts := code.Consts(); len(consts) != 3 || consts[0] != nil {
		t.Fatalf("unexpected consts %#v", consts)
	}
	var buf bytes.Buffer
	if err := code.Disassemble(&buf, "inline", false); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	if !strings.Contains(buf.String(), "LOAD_FAST        1 (b)") {
		t.Fatalf("unexpected listing:\n%s", buf.String())
	}
}

func TestAPIFingerprintStable(t *testing.T) {
	c := NewCompiler()
	a, err := c.Compile("a", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := c.Compile("b", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprints differ: %x vs %x", a.Fingerprint(), b.Fingerprint())
	}
	other, err := c.Compile("c", "x = 2\n")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if other.Fingerprint() == a.Fingerprint() {
		t.Fatalf("expected different fingerprint")
	}
}

func TestAPICache(t *testing.T) {
	cache := newMemCache()
	c := NewCompiler()
	c.SetCache(cache)

	first, err := c.Compile("inline", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first.Cached() || cache.puts != 1 {
		t.Fatalf("expected miss and store, cached=%v puts=%d", first.Cached(), cache.puts)
	}
	second, err := c.Compile("inline", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !second.Cached() || cache.puts != 1 {
		t.Fatalf("expected hit, cached=%v puts=%d", second.Cached(), cache.puts)
	}
	if first.Fingerprint() != second.Fingerprint() {
		t.Fatalf("cached program differs")
	}

	// a different validation mode is a different key
	c.SetValidation(ValidateDeclared)
	third, err := c.Compile("inline", sampleSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if third.Cached() || cache.puts != 2 {
		t.Fatalf("expected miss for new mode, cached=%v puts=%d", third.Cached(), cache.puts)
	}

	// failures are not stored
	if _, err := c.Compile("bad", "c + d\n"); err == nil {
		t.Fatalf("expected failure")
	}
	if cache.puts != 2 {
		t.Fatalf("failure was cached")
	}
}

func TestAPICacheKey(t *testing.T) {
	k1 := CacheKey(sampleSource, ValidateCompat, false)
	if len(k1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(k1))
	}
	if k1 != CacheKey(sampleSource, ValidateCompat, false) {
		t.Fatalf("key not deterministic")
	}
	if k1 == CacheKey(sampleSource, ValidateCompat, true) || k1 == CacheKey(sampleSource, ValidateDeclared, false) {
		t.Fatalf("settings must change the key")
	}
}

func TestAPICacheUnusableEntry(t *testing.T) {
	cache := newMemCache()
	cache.entries[CacheKey("x = 1\n", ValidateCompat, false)] = []Instruction{{Op: "JUMP"}}
	var logBuf bytes.Buffer
	c := NewCompiler()
	c.SetCache(cache)
	c.SetLogger(log.New(&logBuf, "", 0), false)
	prog, err := c.Compile("inline", "x = 1\n")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if prog.Cached() || prog.Len() != 2 {
		t.Fatalf("expected recompilation, cached=%v len=%d", prog.Cached(), prog.Len())
	}
	if !strings.Contains(logBuf.String(), `unknown opcode "JUMP"`) {
		t.Fatalf("expected log line, got %q", logBuf.String())
	}
}

func TestAPICompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.ty")
	if err := os.WriteFile(path, []byte(sampleSource), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	prog, err := NewCompiler().CompileFile(path)
	if err != nil {
		t.Fatalf("compile file: %v", err)
	}
	if prog.Name != path || prog.Len() != 8 {
		t.Fatalf("unexpected program %s/%d", prog.Name, prog.Len())
	}
	if _, err := NewCompiler().CompileFile(filepath.Join(t.TempDir(), "missing.ty")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestAPICompileAsync(t *testing.T) {
	c := NewCompiler()
	futures := make([]CompileFuture, 8)
	for i := range futures {
		futures[i] = c.CompileAsync(context.Background(), "inline", sampleSource)
	}
	for i, f := range futures {
		prog, err := f.Await(context.Background())
		if err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if prog.Len() != 8 {
			t.Fatalf("future %d: unexpected length %d", i, prog.Len())
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.CompileAsync(ctx, "inline", sampleSource).Await(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestAPIAwaitTimeout(t *testing.T) {
	f := CompileFuture{ch: make(chan CompileResult)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestAPIDuplicate(t *testing.T) {
	base := NewCompiler()
	base.SetValidation(ValidateDeclared)
	dup := base.Duplicate()
	dup.SetValidation(ValidateCompat)
	src := "a = 1\nprint(a + b)\n"
	if _, err := base.Compile("inline", src); err == nil {
		t.Fatalf("base should still use declared mode")
	}
	if _, err := dup.Compile("inline", src); err != nil {
		t.Fatalf("duplicate compile: %v", err)
	}
}

func TestAPIWriteTokens(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTokens(&buf, NewCompiler().Tokenize("ab = 1\n")); err != nil {
		t.Fatalf("write tokens: %v", err)
	}
	want := "1:1\tIdentifier\t\"ab\"\n1:4\tOperator\t\"=\"\n1:6\tLiteral\t\"1\"\n1:7\tNewline\t\"\\n\"\n"
	if buf.String() != want {
		t.Fatalf("unexpected listing:\n%q\nwant\n%q", buf.String(), want)
	}
}
