package launcher

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldb-dev/ldb/internal/domain"
	"github.com/ldb-dev/ldb/internal/engine"
)

type loopFixture struct {
	loop   *Loop
	engine *stubEngine
	stderr *bytes.Buffer
}

func newLoopFixture(t *testing.T, cfg *domain.SessionConfig, eng *stubEngine, opts LoopOptions) *loopFixture {
	t.Helper()
	stderr := &bytes.Buffer{}

	opts.Engine = eng
	if opts.Validator == nil {
		opts.Validator = NewValidator([]string{"true"})
	}
	opts.Stdin = strings.NewReader("")
	opts.Stdout = &bytes.Buffer{}
	opts.Stderr = stderr
	opts.Clock = clock.NewMock()

	target := &domain.TargetScript{Path: "/tmp/target.lua"}
	return &loopFixture{
		loop:   NewLoop(cfg, target, opts),
		engine: eng,
		stderr: stderr,
	}
}

func TestLoop_QuitOnFinish(t *testing.T) {
	t.Run("clean run executes exactly once", func(t *testing.T) {
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, &stubEngine{}, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Equal(t, 1, fx.engine.startCalls)
		assert.Len(t, fx.engine.loads, 1)
		assert.Zero(t, fx.engine.shellsMade)
	})

	t.Run("faulted run still exits after one run", func(t *testing.T) {
		eng := &stubEngine{fault: &domain.Fault{Message: "boom"}}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Len(t, eng.loads, 1)
		assert.Zero(t, eng.shellsMade)
		assert.Contains(t, fx.stderr.String(), "boom")
	})
}

func TestLoop_ShellThenLoop(t *testing.T) {
	t.Run("fresh shell per iteration before rerun", func(t *testing.T) {
		eng := &stubEngine{shellResults: []error{nil, nil}} // rerun twice, then quit
		fx := newLoopFixture(t, &domain.SessionConfig{}, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Equal(t, 3, len(eng.loads), "two reruns after the first run")
		assert.Equal(t, 3, eng.shellsMade, "a new shell for every finished run")
		assert.Equal(t, 1, eng.startCalls, "engine started exactly once across reruns")
	})

	t.Run("quit from the shell terminates", func(t *testing.T) {
		eng := &stubEngine{}
		fx := newLoopFixture(t, &domain.SessionConfig{}, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Len(t, eng.loads, 1)
		assert.Equal(t, 1, eng.shellsMade)
	})

	t.Run("quit at the entry stop terminates without another shell", func(t *testing.T) {
		eng := &stubEngine{loadErr: engine.ErrQuit}
		cfg := &domain.SessionConfig{StopAtEntry: true}
		fx := newLoopFixture(t, cfg, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Len(t, eng.loads, 1)
		assert.Zero(t, eng.shellsMade, "no shell reopened after the user already quit")
		assert.NotContains(t, fx.stderr.String(), "Engine error")
	})
}

func TestLoop_Validation(t *testing.T) {
	t.Run("failed validation is fatal with the subprocess status", func(t *testing.T) {
		check := writeScript(t, t.TempDir(), "check.sh", "#!/bin/sh\necho 'bad syntax'\nexit 3\n")
		eng := &stubEngine{}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{
			Validator: NewValidator([]string{check}),
		})

		err := fx.loop.Run()
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.Code)
		assert.Contains(t, fx.stderr.String(), "bad syntax")
		assert.Empty(t, eng.loads, "engine run entry point never invoked")
	})

	t.Run("validation runs on every iteration", func(t *testing.T) {
		dir := t.TempDir()
		counter := writeScript(t, dir, "check.sh",
			"#!/bin/sh\necho . >> \"$(dirname \"$0\")/count\"\nexit 0\n")
		eng := &stubEngine{shellResults: []error{nil}} // one rerun
		fx := newLoopFixture(t, &domain.SessionConfig{}, eng, LoopOptions{
			Validator: NewValidator([]string{counter}),
		})

		require.NoError(t, fx.loop.Run())
		assert.Len(t, eng.loads, 2)
		count := readFile(t, dir+"/count")
		assert.Equal(t, 2, strings.Count(count, "."))
	})

	t.Run("unrunnable checker is fatal", func(t *testing.T) {
		eng := &stubEngine{}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{
			Validator: NewValidator([]string{"/no/such/interpreter"}),
		})

		err := fx.loop.Run()
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
		assert.Empty(t, eng.loads)
	})
}

func TestLoop_EngineFaults(t *testing.T) {
	t.Run("engine error degrades to a faulted run", func(t *testing.T) {
		eng := &stubEngine{loadErr: errors.New("engine exploded")}
		fx := newLoopFixture(t, &domain.SessionConfig{}, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Contains(t, fx.stderr.String(), "engine exploded")
		assert.Equal(t, 1, eng.shellsMade, "shell still entered after an engine fault")
	})

	t.Run("engine panic degrades to a faulted run", func(t *testing.T) {
		eng := &stubEngine{loadPanic: "kaboom"}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.Contains(t, fx.stderr.String(), "kaboom")
	})

	t.Run("fault frames are printed", func(t *testing.T) {
		eng := &stubEngine{fault: &domain.Fault{
			Message: "attempt to index a nil value",
			Frames: []domain.Frame{
				{Func: "handler", Source: "crash.lua", Line: 12},
				{Func: "main chunk", Source: "crash.lua", Line: 30},
			},
		}}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		out := fx.stderr.String()
		assert.Contains(t, out, "attempt to index a nil value")
		assert.Contains(t, out, "handler")
		assert.Contains(t, out, "crash.lua")
	})
}

func TestLoop_Init(t *testing.T) {
	t.Run("tracing forces stop-at-entry off", func(t *testing.T) {
		eng := &stubEngine{}
		cfg := &domain.SessionConfig{QuitOnFinish: true, Tracing: true, StopAtEntry: true}
		fx := newLoopFixture(t, cfg, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		require.Len(t, eng.loads, 1)
		assert.False(t, eng.loads[0].stopAtEntry)
		assert.Equal(t, []bool{true}, eng.tracingSet)
	})

	t.Run("stop-at-entry honored without tracing", func(t *testing.T) {
		eng := &stubEngine{}
		cfg := &domain.SessionConfig{QuitOnFinish: true, StopAtEntry: true}
		fx := newLoopFixture(t, cfg, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		require.Len(t, eng.loads, 1)
		assert.True(t, eng.loads[0].stopAtEntry)
	})

	t.Run("post-mortem forwarded to engine start", func(t *testing.T) {
		eng := &stubEngine{}
		cfg := &domain.SessionConfig{QuitOnFinish: true, PostMortem: true}
		fx := newLoopFixture(t, cfg, eng, LoopOptions{})

		require.NoError(t, fx.loop.Run())
		assert.True(t, eng.postMortem)
	})

	t.Run("init script fed to engine", func(t *testing.T) {
		rc := writeScript(t, t.TempDir(), "rc.lua", "greeting = 'hi'")
		eng := &stubEngine{}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{InitScript: rc})

		require.NoError(t, fx.loop.Run())
		assert.Equal(t, []string{"greeting = 'hi'"}, eng.initScripts)
	})

	t.Run("skip-init-files suppresses the init script", func(t *testing.T) {
		rc := writeScript(t, t.TempDir(), "rc.lua", "greeting = 'hi'")
		eng := &stubEngine{}
		cfg := &domain.SessionConfig{QuitOnFinish: true, SkipInitFiles: true}
		fx := newLoopFixture(t, cfg, eng, LoopOptions{InitScript: rc})

		require.NoError(t, fx.loop.Run())
		assert.Empty(t, eng.initScripts)
	})

	t.Run("missing init script is a silent no-op", func(t *testing.T) {
		eng := &stubEngine{}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{
			InitScript: "/no/such/rc.lua",
		})

		require.NoError(t, fx.loop.Run())
		assert.Empty(t, eng.initScripts)
		assert.Len(t, eng.loads, 1)
	})

	t.Run("engine start failure is fatal before any run", func(t *testing.T) {
		eng := &stubEngine{startErr: errors.New("no instrumentation")}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{})

		assert.Error(t, fx.loop.Run())
		assert.Empty(t, eng.loads)
	})

	t.Run("staged scripts run before the first validation", func(t *testing.T) {
		dir := t.TempDir()
		restart := writeScript(t, dir, "restart.lua", "")
		startup := writeScript(t, dir, "startup.lua", "")
		eng := &stubEngine{}
		fx := newLoopFixture(t, &domain.SessionConfig{QuitOnFinish: true}, eng, LoopOptions{
			Staging: NewStaging(restart, startup, nil),
		})

		require.NoError(t, fx.loop.Run())
		assert.Equal(t, []string{restart, startup}, eng.scripts)
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
