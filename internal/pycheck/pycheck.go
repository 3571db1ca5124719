// Package pycheck parses a source text as Python and reports what a Python
// reading of it defines and calls. The report is advisory; it never affects
// code generation.
package pycheck

import (
	"fmt"
	"strings"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
	"github.com/go-python/gpython/py"

	tiney "github.com/xirelogy/go-tiney"
	"github.com/xirelogy/go-tiney/internal/bytecode"
)

// Report summarises a Python parse.
type Report struct {
	Functions  []string `json:"functions"`
	Assigned   []string `json:"assigned"`
	Calls      []string `json:"calls"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Check parses src in exec mode.
func Check(name string, src string) (*Report, error) {
	mod, err := parser.Parse(strings.NewReader(src), name, py.ExecMode)
	if err != nil {
		return nil, fmt.Errorf("python parse %s: %w", name, err)
	}
	module, ok := mod.(*ast.Module)
	if !ok {
		return nil, fmt.Errorf("python parse %s: expected *ast.Module, got %T", name, mod)
	}
	w := &walker{report: &Report{}, seen: map[string]bool{}}
	for _, stmt := range module.Body {
		w.stmt(stmt)
	}
	w.resolve()
	return w.report, nil
}

// Mismatches lists disagreements between the report and generated code:
// store targets Python does not see assigned, and globals Python does not
// see called.
func (r *Report) Mismatches(code []tiney.Instruction) []string {
	assigned := toSet(r.Assigned)
	called := toSet(r.Calls)
	var out []string
	for _, ins := range code {
		switch ins.Op {
		case bytecode.OP_STORE_FAST.String():
			if !assigned[ins.Operand] {
				out = append(out, fmt.Sprintf("line %d: %s stores %q which python does not assign", ins.Line, ins.Op, ins.Operand))
			}
		case bytecode.OP_LOAD_GLOBAL.String():
			if !called[ins.Operand] {
				out = append(out, fmt.Sprintf("line %d: %s loads %q which python does not call", ins.Line, ins.Op, ins.Operand))
			}
		}
	}
	return out
}

type walker struct {
	report *Report
	seen   map[string]bool
}

func (w *walker) add(list *[]string, kind, name string) {
	key := kind + ":" + name
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	*list = append(*list, name)
}

func (w *walker) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.FunctionDef:
		w.add(&w.report.Functions, "def", string(s.Name))
		for _, inner := range s.Body {
			w.stmt(inner)
		}
	case *ast.Assign:
		for _, target := range s.Targets {
			if name, ok := target.(*ast.Name); ok {
				w.add(&w.report.Assigned, "set", string(name.Id))
			}
		}
		w.expr(s.Value)
	case *ast.ExprStmt:
		w.expr(s.Value)
	case *ast.Return:
		if s.Value != nil {
			w.expr(s.Value)
		}
	}
}

func (w *walker) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.Call:
		if name, ok := e.Func.(*ast.Name); ok {
			w.add(&w.report.Calls, "call", string(name.Id))
		}
		for _, arg := range e.Args {
			w.expr(arg)
		}
	case *ast.BinOp:
		w.expr(e.Left)
		w.expr(e.Right)
	}
}

func (w *walker) resolve() {
	defined := toSet(w.report.Functions)
	for _, name := range w.report.Calls {
		if defined[name] {
			continue
		}
		if _, ok := bytecode.LookupGlobal(name); ok {
			continue
		}
		w.report.Unresolved = append(w.report.Unresolved, name)
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
