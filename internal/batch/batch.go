// Package batch compiles many independent sources concurrently.
package batch

import (
	"context"

	"github.com/tevino/abool/v2"
	"golang.org/x/sync/errgroup"

	tiney "github.com/xirelogy/go-tiney"
)

// Input is one source to compile.
type Input struct {
	Name   string
	Source string
}

// Result pairs an input with its outcome.
type Result struct {
	Name    string
	Program *tiney.Program
	Err     error
}

// CompileFunc compiles a single input.
type CompileFunc func(ctx context.Context, in Input) (*tiney.Program, error)

// Batch runs compilations with bounded parallelism.
type Batch struct {
	jobs   int
	failed *abool.AtomicBool
}

// New creates a batch running at most jobs compilations at once; jobs <= 0
// means no limit.
func New(jobs int) *Batch {
	return &Batch{jobs: jobs, failed: abool.New()}
}

// Failed reports whether any input of any Run failed to compile.
func (b *Batch) Failed() bool {
	return b.failed.IsSet()
}

// Run compiles every input and returns results in input order. A failing
// input does not stop the others; only context cancellation aborts the run.
func (b *Batch) Run(ctx context.Context, inputs []Input, fn CompileFunc) ([]Result, error) {
	results := make([]Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if b.jobs > 0 {
		g.SetLimit(b.jobs)
	}
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prog, err := fn(gctx, in)
			if err != nil {
				b.failed.Set()
			}
			results[i] = Result{Name: in.Name, Program: prog, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compiler adapts c to a CompileFunc.
func Compiler(c *tiney.Compiler) CompileFunc {
	return func(ctx context.Context, in Input) (*tiney.Program, error) {
		return c.CompileAsync(ctx, in.Name, in.Source).Await(ctx)
	}
}
