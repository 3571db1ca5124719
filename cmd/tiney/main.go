package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	tiney "github.com/xirelogy/go-tiney"
	"github.com/xirelogy/go-tiney/internal/batch"
	"github.com/xirelogy/go-tiney/internal/cache"
	"github.com/xirelogy/go-tiney/internal/config"
	"github.com/xirelogy/go-tiney/internal/pycheck"
	"github.com/xirelogy/go-tiney/internal/server"
)

const sweepInterval = 5 * time.Minute

func main() {
	os.Exit(run(os.Args, os.Getenv, os.Stdin, os.Stdout, os.Stderr))
}

func run(argv []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Parse(argv, getenv)
	if errors.Is(err, config.ErrHelp) {
		config.Usage(stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "tiney: %v\n", err)
		config.Usage(stderr)
		return 2
	}
	logger := log.New(stderr, "tiney: ", 0)

	c := tiney.NewCompiler()
	c.SetValidation(cfg.Validation)
	c.SetTrailingFlush(cfg.TrailingFlush)
	c.SetLogger(logger, cfg.Verbose)

	var store *cache.Store
	if cfg.CachePath != "" {
		store, err = cache.Open(cfg.CachePath, cfg.CacheExpiry)
		if err != nil {
			logger.Println(err)
			return 1
		}
		defer store.Close()
		c.SetCache(store)
	}

	if cfg.Listen != "" {
		return serve(cfg, c, store, logger)
	}

	inputs, err := readInputs(cfg.Files, stdin)
	if err != nil {
		logger.Println(err)
		return 1
	}
	b := batch.New(cfg.Jobs)
	results, err := b.Run(context.Background(), inputs, batch.Compiler(c))
	if err != nil {
		logger.Println(err)
		return 1
	}

	colored := cfg.Color && !color.NoColor
	status := 0
	for i, r := range results {
		if r.Err != nil {
			fmt.Fprintf(stderr, "%v\n", r.Err)
			status = 1
			continue
		}
		if err := report(stdout, cfg, r.Program, colored); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", r.Name, err)
			status = 1
		}
		if cfg.PyCheck {
			pyReport(stdout, r.Program, inputs[i].Source)
		}
	}
	if b.Failed() {
		status = 1
	}
	return status
}

func readInputs(files []string, stdin io.Reader) ([]batch.Input, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	inputs := make([]batch.Input, 0, len(files))
	for _, path := range files {
		var (
			data []byte
			err  error
			name = path
		)
		if path == "-" {
			name = "<stdin>"
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, batch.Input{Name: name, Source: string(data)})
	}
	return inputs, nil
}

func report(w io.Writer, cfg *config.Config, prog *tiney.Program, colored bool) error {
	if cfg.ShowTokens {
		fmt.Fprintf(w, "tokens %s (count=%d)\n", prog.Name, len(prog.Tokens))
		if err := tiney.WriteTokens(w, prog.Tokens); err != nil {
			return err
		}
	}
	if cfg.Disassemble {
		if err := prog.Disassemble(w, colored); err != nil {
			return err
		}
	}
	if cfg.ShowBytes {
		code, err := prog.Assemble()
		if err != nil {
			return err
		}
		if err := code.Disassemble(w, prog.Name, colored); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", code.Hex())
	}
	return nil
}

func pyReport(w io.Writer, prog *tiney.Program, src string) {
	r, err := pycheck.Check(prog.Name, src)
	if err != nil {
		fmt.Fprintf(w, "python %s: %v\n", prog.Name, err)
		return
	}
	fmt.Fprintf(w, "python %s: functions=[%s] assigned=[%s] calls=[%s]\n", prog.Name,
		strings.Join(r.Functions, " "), strings.Join(r.Assigned, " "), strings.Join(r.Calls, " "))
	for _, name := range r.Unresolved {
		fmt.Fprintf(w, "python %s: unresolved call %q\n", prog.Name, name)
	}
	for _, m := range r.Mismatches(prog.Instructions()) {
		fmt.Fprintf(w, "python %s: %s\n", prog.Name, m)
	}
}

func serve(cfg *config.Config, c *tiney.Compiler, store *cache.Store, logger *log.Logger) int {
	if store != nil && cfg.CacheExpiry > 0 {
		j := cache.NewJanitor(store, sweepInterval, logger)
		if err := j.Start(); err != nil {
			logger.Println(err)
			return 1
		}
		defer j.Stop()
	}
	srv := server.New(c, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			logger.Println("shutting down")
			if err := srv.Shutdown(); err != nil {
				logger.Println(err)
			}
		}
	}()

	if err := srv.ListenAndServe(cfg.Listen); err != nil {
		logger.Printf("error in ListenAndServe: %v", err)
		return 1
	}
	return 0
}
