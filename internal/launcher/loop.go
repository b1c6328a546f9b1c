package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/ldb-dev/ldb/internal/domain"
	"github.com/ldb-dev/ldb/internal/engine"
)

// ExitError carries a process exit status decided inside the loop, so main
// can terminate with the status the validator's subprocess reported.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var faultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

// LoopOptions configures a Loop. Zero values get sensible defaults.
type LoopOptions struct {
	Engine     engine.Engine
	Validator  *Validator
	Staging    *Staging
	InitScript string // path to the engine init script, skipped when empty

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Quiet bool
	Clock clock.Clock
	Log   *zap.SugaredLogger
}

// Loop is the session control state machine: it validates the target,
// invokes the engine to execute it, and decides between exiting and
// re-entering the control shell before rerunning.
type Loop struct {
	cfg    *domain.SessionConfig
	target *domain.TargetScript

	engine     engine.Engine
	validator  *Validator
	staging    *Staging
	initScript string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	quiet bool
	clock clock.Clock
	log   *zap.SugaredLogger
}

// NewLoop creates a control loop for one resolved target.
func NewLoop(cfg *domain.SessionConfig, target *domain.TargetScript, opts LoopOptions) *Loop {
	l := &Loop{
		cfg:        cfg,
		target:     target,
		engine:     opts.Engine,
		validator:  opts.Validator,
		staging:    opts.Staging,
		initScript: opts.InitScript,
		stdin:      opts.Stdin,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		quiet:      opts.Quiet,
		clock:      opts.Clock,
		log:        opts.Log,
	}
	if l.staging == nil {
		l.staging = NewStaging("", "", opts.Log)
	}
	if l.stdin == nil {
		l.stdin = os.Stdin
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.clock == nil {
		l.clock = clock.New()
	}
	if l.log == nil {
		l.log = zap.NewNop().Sugar()
	}
	return l
}

// Run drives the session until the process should exit. It returns nil on a
// normal quit and an *ExitError when a pre-flight validation failure must be
// propagated as the process exit status.
func (l *Loop) Run() error {
	if err := l.init(); err != nil {
		return err
	}

	for {
		if err := l.validate(); err != nil {
			return err
		}

		outcome := l.execute()
		l.report(outcome)

		if outcome.Kind == domain.OutcomeQuit || l.cfg.QuitOnFinish {
			return nil
		}

		// A fresh shell per iteration: no shell state carries across runs.
		sh := l.engine.NewShell(l.stdin, l.stdout)
		if err := sh.ProcessCommands(); err != nil {
			if errors.Is(err, engine.ErrQuit) {
				return nil
			}
			return err
		}
	}
}

// init activates the engine exactly once and stages the one-shot scripts.
func (l *Loop) init() error {
	l.cfg.Normalize()

	if err := l.engine.Start(l.cfg.PostMortem); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}

	if !l.cfg.SkipInitFiles {
		l.runInitScript()
	}

	if err := l.staging.RunRestart(l.engine); err != nil {
		return err
	}
	if err := l.staging.RunStartup(l.engine); err != nil {
		return err
	}

	l.engine.SetTracing(l.cfg.Tracing)
	return nil
}

// runInitScript feeds the per-user init script to the engine. A missing or
// broken init script never blocks the session; it is a named no-op path.
func (l *Loop) runInitScript() {
	if l.initScript == "" {
		return
	}
	src, err := os.ReadFile(l.initScript)
	if err != nil {
		l.log.Debugw("init script not loaded", "path", l.initScript, "error", err)
		return
	}
	if err := l.engine.RunInitScript(string(src)); err != nil {
		l.log.Debugw("init script failed", "path", l.initScript, "error", err)
	}
}

// validate runs the pre-flight syntax check. A failed check is fatal: the
// captured output is printed verbatim and the subprocess status becomes the
// process exit status.
func (l *Loop) validate() error {
	out, code, err := l.validator.Check(l.target.Path)
	if err != nil {
		fmt.Fprintf(l.stderr, "ldb: %v\n", err)
		return &ExitError{Code: 1}
	}
	if code != 0 {
		l.stderr.Write(out)
		return &ExitError{Code: code}
	}
	return nil
}

// execute performs one engine run and classifies how it ended. The loop
// never crashes the process because of the target's misbehavior or an
// engine-level fault: both degrade to a faulted outcome.
func (l *Loop) execute() *domain.Outcome {
	start := l.clock.Now()
	fault, err := l.debugLoad()
	outcome := &domain.Outcome{Duration: l.clock.Since(start)}

	switch {
	case errors.Is(err, engine.ErrQuit):
		// The user quit from the entry stop; the target never ran.
		outcome.Kind = domain.OutcomeQuit
	case err != nil:
		outcome.Kind = domain.OutcomeEngineFault
		outcome.Err = err
	case fault != nil:
		outcome.Kind = domain.OutcomeFaulted
		outcome.Fault = fault
	default:
		outcome.Kind = domain.OutcomeClean
	}

	l.log.Debugw("run finished",
		"target", l.target.Path,
		"kind", outcome.Kind.String(),
		"duration", outcome.Duration,
	)
	return outcome
}

func (l *Loop) debugLoad() (fault *domain.Fault, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return l.engine.DebugLoad(l.target, l.cfg.StopAtEntry)
}

// report prints the diagnostic output for a finished run. Faults are
// diagnostic output, not fatal process errors.
func (l *Loop) report(outcome *domain.Outcome) {
	switch outcome.Kind {
	case domain.OutcomeClean:
		if !l.quiet {
			fmt.Fprintf(l.stderr, "%s finished\n", l.target.Path)
		}
	case domain.OutcomeFaulted:
		l.printFault(outcome.Fault)
	case domain.OutcomeEngineFault:
		fmt.Fprintf(l.stderr, "%s %v\n", faultStyle.Render("Engine error:"), outcome.Err)
	case domain.OutcomeQuit:
		// Nothing to report; the target never ran.
	}
}

func (l *Loop) printFault(fault *domain.Fault) {
	fmt.Fprintf(l.stderr, "%s %s\n", faultStyle.Render("Unhandled error:"), fault.Message)
	if len(fault.Frames) == 0 {
		return
	}

	table := tablewriter.NewWriter(l.stderr)
	table.Header("#", "Function", "Source", "Line")
	for i, frame := range fault.Frames {
		line := ""
		if frame.Line > 0 {
			line = strconv.Itoa(frame.Line)
		}
		table.Append([]string{strconv.Itoa(i), frame.Func, frame.Source, line})
	}
	table.Render()
}
