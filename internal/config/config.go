package config

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"time"

	"git.sr.ht/~sircmpwn/getopt"

	tiney "github.com/xirelogy/go-tiney"
)

// ErrHelp is returned when -h was given.
var ErrHelp = errors.New("help requested")

// Environment variables consulted for defaults.
const (
	EnvCache  = "TINEY_CACHE"
	EnvListen = "TINEY_LISTEN"
)

// Config holds command line settings.
type Config struct {
	ShowTokens    bool
	Disassemble   bool
	ShowBytes     bool
	Jobs          int
	Validation    tiney.ValidationMode
	TrailingFlush bool
	PyCheck       bool
	Color         bool
	Verbose       bool
	CachePath     string
	CacheExpiry   time.Duration
	Listen        string
	Files         []string
}

// Default returns the settings used when no flags are given.
func Default() Config {
	return Config{
		Jobs:        runtime.NumCPU(),
		Validation:  tiney.ValidateCompat,
		Color:       true,
		CacheExpiry: 24 * time.Hour,
	}
}

// Parse reads argv (including the program name). getenv supplies
// environment defaults and may be nil.
func Parse(argv []string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if getenv != nil {
		cfg.CachePath = getenv(EnvCache)
		cfg.Listen = getenv(EnvListen)
	}

	opts, optind, err := getopt.Getopts(argv, "tdbj:sfpnvC:e:l:h")
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		switch opt.Option {
		case 't':
			cfg.ShowTokens = true
		case 'd':
			cfg.Disassemble = true
		case 'b':
			cfg.ShowBytes = true
		case 'j':
			value, err := strconv.Atoi(opt.Value)
			if err != nil || value < 0 {
				return nil, fmt.Errorf("invalid -j parameter %q", opt.Value)
			}
			// 0 means unlimited
			cfg.Jobs = value
		case 's':
			cfg.Validation = tiney.ValidateDeclared
		case 'f':
			cfg.TrailingFlush = true
		case 'p':
			cfg.PyCheck = true
		case 'n':
			cfg.Color = false
		case 'v':
			cfg.Verbose = true
		case 'C':
			cfg.CachePath = opt.Value
		case 'e':
			d, err := time.ParseDuration(opt.Value)
			if err != nil || d < 0 {
				return nil, fmt.Errorf("invalid -e parameter %q", opt.Value)
			}
			cfg.CacheExpiry = d
		case 'l':
			cfg.Listen = opt.Value
		case 'h':
			return nil, ErrHelp
		}
	}
	if !cfg.ShowTokens && !cfg.Disassemble && !cfg.ShowBytes {
		cfg.Disassemble = true
	}
	cfg.Files = argv[optind:]
	return &cfg, nil
}

// Usage prints the option summary.
func Usage(w io.Writer) {
	fmt.Fprintf(w, "usage: tiney [options] [file ...]\n"+
		"\n"+
		"reads standard input when no file (or \"-\") is given.\n"+
		"\n"+
		"options:\n"+
		"  -t       print tokens\n"+
		"  -d       print instruction listing (default)\n"+
		"  -b       print assembled byte code\n"+
		"  -j N     compile N files in parallel [default=%d, 0 means unlimited]\n"+
		"  -s       require addition operands to be assigned variables\n"+
		"  -f       keep a token still open at end of input\n"+
		"  -p       cross-check each file with a Python parser\n"+
		"  -n       disable colour\n"+
		"  -v       verbose logging\n"+
		"  -C PATH  compile cache database [$%s]\n"+
		"  -e DUR   cache entry lifetime [default=24h, 0 keeps entries]\n"+
		"  -l ADDR  serve the HTTP API on ADDR instead of compiling files [$%s]\n"+
		"  -h       show this help\n",
		runtime.NumCPU(), EnvCache, EnvListen)
}
