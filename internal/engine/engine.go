// Package engine defines the lifecycle surface of a debugging engine as seen
// by the session control loop. The loop drives exactly this interface; the
// engine's internals (stepping, breakpoints, evaluation) stay behind it.
package engine

import (
	"errors"
	"io"

	"github.com/ldb-dev/ldb/internal/domain"
)

// ErrQuit is returned by Shell.ProcessCommands when the user asked to
// terminate the session rather than rerun the target.
var ErrQuit = errors.New("quit requested")

// Engine is the external debugging engine's lifecycle surface.
type Engine interface {
	// Start activates debug instrumentation. Called exactly once per
	// process, before any run.
	Start(postMortem bool) error

	// DebugLoad executes the target under debug control. A non-nil Fault is
	// returned only when the run ended via an unhandled error; (nil, nil)
	// means normal completion. The error is ErrQuit when the user quit from
	// the entry stop without running the target, and otherwise non-nil only
	// when the engine itself failed while driving the run.
	DebugLoad(target *domain.TargetScript, stopAtEntry bool) (*domain.Fault, error)

	// RunInitScript executes init-script source before the main loop begins.
	RunInitScript(source string) error

	// RunScript executes a staged script file through the engine's own
	// script-execution path, distinct from DebugLoad.
	RunScript(path string) error

	// SetTracing toggles per-execution source reporting.
	SetTracing(on bool)

	// NewShell constructs a fresh interactive command processor bound to the
	// given streams. The loop builds a new one per iteration; no shell state
	// carries across iterations, but implementations keep one line source per
	// input stream so buffered input survives from one shell to the next.
	NewShell(in io.Reader, out io.Writer) Shell
}

// Shell is the interactive control surface entered between debug runs.
type Shell interface {
	// ProcessCommands blocks until the user exits the shell. It returns
	// ErrQuit when the user asked to terminate the session, nil when the
	// shell was left in order to rerun the target.
	ProcessCommands() error
}
