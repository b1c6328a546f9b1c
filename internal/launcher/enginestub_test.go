package launcher

import (
	"io"

	"github.com/ldb-dev/ldb/internal/domain"
	"github.com/ldb-dev/ldb/internal/engine"
)

// loadCall records one DebugLoad invocation.
type loadCall struct {
	path        string
	stopAtEntry bool
}

// stubShell returns a scripted result from ProcessCommands.
type stubShell struct {
	result error
}

func (s *stubShell) ProcessCommands() error { return s.result }

// stubEngine records every lifecycle call the loop makes.
type stubEngine struct {
	startCalls   int
	postMortem   bool
	startErr     error
	initScripts  []string
	scripts      []string
	runScriptErr error
	loads        []loadCall
	fault        *domain.Fault
	loadErr      error
	loadPanic    any
	tracingSet   []bool

	// shellResults is consumed one entry per NewShell; when exhausted the
	// shell quits, keeping tests finite.
	shellResults []error
	shellsMade   int
}

func (e *stubEngine) Start(postMortem bool) error {
	e.startCalls++
	e.postMortem = postMortem
	return e.startErr
}

func (e *stubEngine) DebugLoad(target *domain.TargetScript, stopAtEntry bool) (*domain.Fault, error) {
	if e.loadPanic != nil {
		panic(e.loadPanic)
	}
	e.loads = append(e.loads, loadCall{path: target.Path, stopAtEntry: stopAtEntry})
	return e.fault, e.loadErr
}

func (e *stubEngine) RunInitScript(source string) error {
	e.initScripts = append(e.initScripts, source)
	return nil
}

func (e *stubEngine) RunScript(path string) error {
	e.scripts = append(e.scripts, path)
	return e.runScriptErr
}

func (e *stubEngine) SetTracing(on bool) {
	e.tracingSet = append(e.tracingSet, on)
}

func (e *stubEngine) NewShell(in io.Reader, out io.Writer) engine.Shell {
	e.shellsMade++
	if len(e.shellResults) == 0 {
		return &stubShell{result: engine.ErrQuit}
	}
	result := e.shellResults[0]
	e.shellResults = e.shellResults[1:]
	return &stubShell{result: result}
}
