// Package luaengine implements the debugging engine surface on top of
// gopher-lua. One Lua state lives for the whole process; reruns and staged
// scripts all execute in it, which is what lets post-mortem inspection see
// the faulted state.
package luaengine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/ldb-dev/ldb/internal/domain"
	"github.com/ldb-dev/ldb/internal/engine"
	"github.com/ldb-dev/ldb/internal/shell"
)

// Engine drives Lua scripts under debug control.
//
// gopher-lua does not expose per-line debug hooks, so tracing is best-effort:
// the engine reports chunk loads and staged-script execution rather than
// individual source lines.
type Engine struct {
	L *lua.LState

	includePaths []string
	requires     []string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *zap.SugaredLogger

	started    bool
	postMortem bool
	tracing    bool
	lastFault  *domain.Fault

	lines     *shell.LineReader
	linesFrom io.Reader
}

// Option configures an Engine.
type Option func(*Engine)

// WithIncludePaths adds directories to the Lua module search path.
func WithIncludePaths(dirs ...string) Option {
	return func(e *Engine) {
		e.includePaths = append(e.includePaths, dirs...)
	}
}

// WithRequires preloads modules before the target runs.
func WithRequires(mods ...string) Option {
	return func(e *Engine) {
		e.requires = append(e.requires, mods...)
	}
}

// WithStreams binds the engine to the given stdio streams.
func WithStreams(in io.Reader, out, errw io.Writer) Option {
	return func(e *Engine) {
		e.stdin = in
		e.stdout = out
		e.stderr = errw
	}
}

// WithLogger sets the debug logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine. Start must be called before any run.
func New(opts ...Option) *Engine {
	e := &Engine{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start activates the Lua state, applies include paths and preloads the
// configured modules. It must be called exactly once per process.
func (e *Engine) Start(postMortem bool) error {
	if e.started {
		return errors.New("engine already started")
	}
	e.started = true
	e.postMortem = postMortem

	e.L = lua.NewState()

	if len(e.includePaths) > 0 {
		if err := e.extendPackagePath(); err != nil {
			return err
		}
	}
	for _, mod := range e.requires {
		if err := e.doString(fmt.Sprintf("require(%q)", mod)); err != nil {
			return fmt.Errorf("require %s: %w", mod, err)
		}
	}

	e.log.Debugw("engine started",
		"post_mortem", postMortem,
		"include_paths", len(e.includePaths),
		"requires", len(e.requires),
	)
	return nil
}

func (e *Engine) extendPackagePath() error {
	pkg := e.L.GetGlobal("package")
	if pkg == lua.LNil {
		return errors.New("package library not available")
	}
	current := lua.LVAsString(e.L.GetField(pkg, "path"))

	entries := make([]string, 0, len(e.includePaths)+1)
	for _, dir := range e.includePaths {
		entries = append(entries, filepath.Join(dir, "?.lua"))
	}
	entries = append(entries, current)
	e.L.SetField(pkg, "path", lua.LString(strings.Join(entries, ";")))
	return nil
}

// DebugLoad executes the target script under debug control. An unhandled Lua
// error is captured as a Fault with its backtrace frames. The returned error
// is engine.ErrQuit when the user quit from the entry stop, and otherwise
// non-nil only when the engine itself cannot run at all.
func (e *Engine) DebugLoad(target *domain.TargetScript, stopAtEntry bool) (*domain.Fault, error) {
	if !e.started {
		return nil, errors.New("engine not started")
	}
	if !e.postMortem {
		e.lastFault = nil
	}

	e.setArgTable(target)
	e.tracef("loading %s", target.Path)

	if stopAtEntry {
		fmt.Fprintf(e.stderr, "Stopped at entry of %s\n", target.Path)
		sh := e.NewShell(e.stdin, e.stdout)
		if err := sh.ProcessCommands(); err != nil {
			// Quit at the entry stop skips the run and ends the session;
			// the caller sees engine.ErrQuit and terminates.
			return nil, err
		}
	}

	if err := e.doFile(target.Path); err != nil {
		fault := faultFromError(err)
		e.lastFault = fault
		e.log.Debugw("captured fault", "message", fault.Message, "frames", len(fault.Frames))
		return fault, nil
	}
	return nil, nil
}

// setArgTable exposes the script path and forwarded arguments the way the
// standalone interpreter does: arg[0] is the script, arg[1..n] its arguments.
func (e *Engine) setArgTable(target *domain.TargetScript) {
	tbl := e.L.NewTable()
	tbl.RawSetInt(0, lua.LString(target.Path))
	for i, a := range target.Args {
		tbl.RawSetInt(i+1, lua.LString(a))
	}
	e.L.SetGlobal("arg", tbl)
}

// RunInitScript executes init-script source in the session state.
func (e *Engine) RunInitScript(source string) error {
	if !e.started {
		return errors.New("engine not started")
	}
	return e.doString(source)
}

// RunScript executes a staged script file, distinct from DebugLoad.
func (e *Engine) RunScript(path string) error {
	if !e.started {
		return errors.New("engine not started")
	}
	e.tracef("running script %s", path)
	return e.doFile(path)
}

// SetTracing toggles execution reporting.
func (e *Engine) SetTracing(on bool) {
	e.tracing = on
}

// NewShell constructs a fresh control shell bound to this session. The line
// source for a stream is created once and shared by every shell reading it,
// so input buffered past one shell's exit is still seen by the next.
func (e *Engine) NewShell(in io.Reader, out io.Writer) engine.Shell {
	if e.lines == nil || e.linesFrom != in {
		e.lines = shell.NewLineReader(in)
		e.linesFrom = in
	}
	return shell.New(e.lines, out, e)
}

// Eval evaluates an expression in the session and renders its results,
// tab-separated. Statements are accepted as a fallback for convenience.
func (e *Engine) Eval(expr string) (string, error) {
	if !e.started {
		return "", errors.New("engine not started")
	}

	base := e.L.GetTop()
	err := e.doString("return " + expr)
	if err != nil {
		// Not an expression; try it as a statement.
		if stmtErr := e.doString(expr); stmtErr != nil {
			return "", firstLineError(err)
		}
		e.L.SetTop(base)
		return "", nil
	}

	n := e.L.GetTop() - base
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, e.L.Get(base+i+1).String())
	}
	e.L.SetTop(base)
	return strings.Join(parts, "\t"), nil
}

// LastFault returns the most recent captured fault, or nil.
func (e *Engine) LastFault() *domain.Fault {
	return e.lastFault
}

// Close releases the Lua state.
func (e *Engine) Close() {
	if e.L != nil {
		e.L.Close()
	}
}

func (e *Engine) tracef(format string, args ...interface{}) {
	if !e.tracing {
		return
	}
	fmt.Fprintf(e.stderr, "trace: "+format+"\n", args...)
}

// doFile and doString recover from panics inside gopher-lua so a misbehaving
// target can never take the launcher down with it.
func (e *Engine) doFile(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return e.L.DoFile(path)
}

func (e *Engine) doString(source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return e.L.DoString(source)
}

// faultFromError converts a Lua error into a Fault with backtrace frames.
func faultFromError(err error) *domain.Fault {
	fault := &domain.Fault{Message: err.Error()}

	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		fault.Message = apiErr.Object.String()
		fault.Frames = parseTraceback(apiErr.StackTrace)
	}
	return fault
}

// parseTraceback turns gopher-lua's textual stack traceback into frames.
// Lines look like "\tfile.lua:3: in main chunk" or "\t[G]: in function 'f'".
func parseTraceback(trace string) []domain.Frame {
	var frames []domain.Frame
	for _, line := range strings.Split(trace, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "stack traceback") {
			continue
		}

		frame := domain.Frame{Func: "?"}
		loc := line
		if i := strings.Index(line, ": in "); i >= 0 {
			loc = line[:i]
			frame.Func = normalizeFuncName(line[i+len(": in "):])
		}
		frame.Source = loc
		if i := strings.LastIndex(loc, ":"); i >= 0 {
			var n int
			if _, scanErr := fmt.Sscanf(loc[i+1:], "%d", &n); scanErr == nil {
				frame.Source = loc[:i]
				frame.Line = n
			}
		}
		frames = append(frames, frame)
	}
	return frames
}

func normalizeFuncName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "function ")
	return strings.Trim(s, "'")
}

func firstLineError(err error) error {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return errors.New(msg)
}
