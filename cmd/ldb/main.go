package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/ldb-dev/ldb/internal/cli"
	"github.com/ldb-dev/ldb/internal/config"
	"github.com/ldb-dev/ldb/internal/launcher"
)

const quickStart = `ldb - launch, supervise and restart Lua debug sessions

Quick start:
  ldb script.lua                 Run script.lua under the debugger
  ldb --no-quit script.lua       Re-enter the control shell between runs
  ldb -x script.lua              Trace execution
  ldb script.lua -- a b c        Forward arguments to the script

For help:
  ldb --help                     All flags
`

// Set via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// A target script is required; show quick start and fail early without one.
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		os.Exit(1)
	}

	// Load configuration from rc files/environment. A broken rc file must
	// never block a session: fall back to defaults silently.
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing; CLI flags override them.
	vars := kong.Vars{
		"version":            fmt.Sprintf("ldb %s (%s)", version, commit),
		"config_no_quit":     strconv.FormatBool(cfg.Defaults.NoQuit),
		"config_no_stop":     strconv.FormatBool(cfg.Defaults.NoStop),
		"config_post_mortem": strconv.FormatBool(cfg.Defaults.PostMortem),
		"config_trace":       strconv.FormatBool(cfg.Defaults.Trace),
	}

	ctx := kong.Parse(&c,
		kong.Name("ldb"),
		kong.Description("ldb: a supervising launcher for Lua debug sessions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		// Pre-flight validation failures carry the subprocess's status.
		var exitErr *launcher.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
