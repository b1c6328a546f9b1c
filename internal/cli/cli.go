package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"

	"github.com/ldb-dev/ldb/internal/config"
	"github.com/ldb-dev/ldb/internal/domain"
	"github.com/ldb-dev/ldb/internal/engine/luaengine"
	"github.com/ldb-dev/ldb/internal/launcher"
)

// CLI is the launcher's flag surface. There are no subcommands: the target
// script is the positional argument, everything after "--" is forwarded.
type CLI struct {
	Debug         bool     `short:"d" help:"Enable verbose launcher logging."`
	Include       []string `short:"I" placeholder:"PATH" help:"Add PATH to the module search path (repeatable)."`
	NoQuit        bool     `default:"${config_no_quit}" help:"Open the control shell when the script finishes instead of exiting."`
	NoStop        bool     `default:"${config_no_stop}" help:"Do not stop before the first line of the script."`
	Nx            bool     `help:"Do not run init files."`
	PostMortem    bool     `default:"${config_post_mortem}" help:"Keep the faulted state for inspection after an unhandled error."`
	Require       []string `short:"r" placeholder:"NAME" help:"Preload module NAME before the script runs (repeatable)."`
	RestartScript string   `placeholder:"FILE" type:"path" help:"One-shot script run via the engine and deleted after use."`
	Script        string   `placeholder:"FILE" type:"path" help:"Startup script run once before the session."`
	Trace         bool     `short:"x" default:"${config_trace}" help:"Report execution as it happens (disables stopping at entry)."`

	Version kong.VersionFlag `short:"v" help:"Print version and exit."`

	Target string   `arg:"" help:"Script to debug."`
	Args   []string `arg:"" optional:"" passthrough:"" help:"Arguments forwarded to the script."`
}

// Globals carries the shared command context: loaded config, stdio streams,
// and the debug logger.
type Globals struct {
	Quiet  bool
	Debug  bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config

	logger *launchLogger
}

// NewGlobalsWithConfig creates Globals with config fallbacks applied.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	g := &Globals{
		Quiet:  cfg.Quiet,
		Debug:  c.Debug || cfg.Debug,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: cfg,
	}
	g.logger = newLaunchLogger(g.Debug)
	return g
}

// Run resolves the target, wires the engine and drives the session loop.
func (c *CLI) Run(globals *Globals) error {
	sessionCfg := &domain.SessionConfig{
		QuitOnFinish:      !c.NoQuit,
		StopAtEntry:       !c.NoStop,
		PostMortem:        c.PostMortem,
		Tracing:           c.Trace,
		SkipInitFiles:     c.Nx,
		StartupScriptPath: c.Script,
		RestartScriptPath: c.RestartScript,
		IncludePaths:      lo.Uniq(append(append([]string{}, globals.Config.Defaults.Include...), c.Include...)),
		Requires:          lo.Uniq(append(append([]string{}, globals.Config.Defaults.Require...), c.Require...)),
	}
	sessionCfg.Normalize()

	resolved := launcher.ResolveTarget(c.Target, os.Getenv("PATH"))
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return outputError(globals, "TARGET_NOT_FOUND", fmt.Sprintf("cannot find script %q", c.Target))
	}
	target := &domain.TargetScript{Path: resolved, Args: c.Args}
	globals.Debugf("resolved target %s", target.Path)

	log := globals.logger.Sugared()
	eng := luaengine.New(
		luaengine.WithIncludePaths(sessionCfg.IncludePaths...),
		luaengine.WithRequires(sessionCfg.Requires...),
		luaengine.WithStreams(globals.Stdin, globals.Stdout, globals.Stderr),
		luaengine.WithLogger(log),
	)
	defer eng.Close()

	staging := launcher.NewStaging(sessionCfg.RestartScriptPath, sessionCfg.StartupScriptPath, log)
	if err := staging.Verify(); err != nil {
		return outputError(globals, "STAGED_SCRIPT_MISSING", err.Error())
	}

	initScript := ""
	if !sessionCfg.SkipInitFiles {
		initScript = globals.Config.InitScript
	}

	loop := launcher.NewLoop(sessionCfg, target, launcher.LoopOptions{
		Engine:     eng,
		Validator:  launcher.NewValidator(globals.Config.Interpreter.CheckCommand),
		Staging:    staging,
		InitScript: initScript,
		Stdin:      globals.Stdin,
		Stdout:     globals.Stdout,
		Stderr:     globals.Stderr,
		Quiet:      globals.Quiet,
		Log:        log,
	})
	return loop.Run()
}

// Debugf logs through the verbose logger, a no-op unless debug is enabled.
func (g *Globals) Debugf(format string, args ...interface{}) {
	g.logger.Debug(format, args...)
}

// outputError normalizes error emission so failures always carry a stable
// code alongside the message.
func outputError(globals *Globals, code, message string) error {
	fmt.Fprintf(globals.Stderr, "ldb: error [%s]: %s\n", code, message)
	return errors.New(message)
}
