package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/valyala/fasthttp"

	tiney "github.com/xirelogy/go-tiney"
	"github.com/xirelogy/go-tiney/internal/pycheck"
)

// Server exposes the tokenizer and code generator over HTTP.
type Server struct {
	base   *tiney.Compiler
	logger *log.Logger
	srv    *fasthttp.Server
}

// New creates a server whose requests compile with copies of base.
func New(base *tiney.Compiler, logger *log.Logger) *Server {
	s := &Server{base: base, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:            s.Handle,
		Name:               "tiney",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.logf("Starting HTTP server on %q", addr)
	return s.srv.ListenAndServe(addr)
}

// Serve serves connections accepted from ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

// Handle routes one request.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		if !ctx.IsGet() {
			methodNotAllowed(ctx)
			return
		}
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok\n")
	case "/tokenize":
		if !ctx.IsPost() {
			methodNotAllowed(ctx)
			return
		}
		s.handleTokenize(ctx)
	case "/compile":
		if !ctx.IsPost() {
			methodNotAllowed(ctx)
			return
		}
		s.handleCompile(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

type tokenizeResponse struct {
	Tokens []tiney.Token `json:"tokens"`
}

type compileResponse struct {
	Name         string              `json:"name"`
	Fingerprint  string              `json:"fingerprint"`
	Cached       bool                `json:"cached"`
	Instructions []tiney.Instruction `json:"instructions"`
	Bytecode     string              `json:"bytecode"`
	Python       *pythonReport       `json:"python,omitempty"`
}

type pythonReport struct {
	*pycheck.Report
	Mismatches []string `json:"mismatches,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (s *Server) compilerFor(ctx *fasthttp.RequestCtx) (*tiney.Compiler, error) {
	args := ctx.QueryArgs()
	c := s.base.Duplicate()
	if args.Has("validate") {
		mode, err := tiney.ParseValidationMode(string(args.Peek("validate")))
		if err != nil {
			return nil, err
		}
		c.SetValidation(mode)
	}
	if args.Has("flush") {
		c.SetTrailingFlush(args.GetBool("flush"))
	}
	return c, nil
}

func (s *Server) handleTokenize(ctx *fasthttp.RequestCtx) {
	c, err := s.compilerFor(ctx)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, tokenizeResponse{Tokens: c.Tokenize(string(ctx.PostBody()))})
}

func (s *Server) handleCompile(ctx *fasthttp.RequestCtx) {
	c, err := s.compilerFor(ctx)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	name := string(ctx.QueryArgs().Peek("name"))
	if name == "" {
		name = "<request>"
	}
	src := string(ctx.PostBody())

	prog, err := c.Compile(name, src)
	if err != nil {
		s.logf("compile %s from %s: %v", name, ctx.RemoteAddr(), err)
		resp := errorResponse{Error: err.Error()}
		var cerr *tiney.CompileError
		if errors.As(err, &cerr) {
			resp.Line, resp.Column = cerr.Line, cerr.Column
		}
		status := fasthttp.StatusInternalServerError
		if errors.Is(err, tiney.ErrInvalidOperand) {
			status = fasthttp.StatusUnprocessableEntity
		}
		writeJSON(ctx, status, resp)
		return
	}
	code, err := prog.Assemble()
	if err != nil {
		writeJSON(ctx, fasthttp.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	resp := compileResponse{
		Name:         prog.Name,
		Fingerprint:  fmt.Sprintf("%016x", prog.Fingerprint()),
		Cached:       prog.Cached(),
		Instructions: prog.Instructions(),
		Bytecode:     code.Hex(),
	}
	if ctx.QueryArgs().GetBool("pycheck") {
		resp.Python = checkPython(name, src, prog)
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func checkPython(name, src string, prog *tiney.Program) *pythonReport {
	report, err := pycheck.Check(name, src)
	if err != nil {
		return &pythonReport{Error: err.Error()}
	}
	return &pythonReport{Report: report, Mismatches: report.Mismatches(prog.Instructions())}
}

func methodNotAllowed(ctx *fasthttp.RequestCtx) {
	ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
