package domain

import "time"

// SessionConfig holds the launch options for one debug session. It is built
// once from parsed flags and config defaults and is read-only afterwards,
// except for the tracing policy applied by Normalize.
type SessionConfig struct {
	QuitOnFinish      bool     // exit after the first run instead of opening the control shell
	StopAtEntry       bool     // stop before the first line of the target executes
	PostMortem        bool     // keep the faulted state around for inspection
	Tracing           bool     // report source execution as it happens
	SkipInitFiles     bool     // do not run the per-user engine init script
	StartupScriptPath string   // optional script run once before the main loop
	RestartScriptPath string   // optional one-shot script, deleted after its single run
	IncludePaths      []string // extra directories for the engine's module search path
	Requires          []string // modules preloaded before the target runs
}

// Normalize applies cross-field policy. Tracing and stopping at entry are
// mutually exclusive: tracing wins.
func (c *SessionConfig) Normalize() {
	if c.Tracing {
		c.StopAtEntry = false
	}
}

// TargetScript is the resolved script under debug. Exactly one TargetScript
// is resolved per process invocation; the control loop never re-resolves it.
type TargetScript struct {
	Path string   // absolute or caller-asserted path to the script
	Args []string // argument vector forwarded to the script
}

// OutcomeKind classifies how a single engine run ended.
type OutcomeKind int

const (
	// OutcomeClean means the target ran to completion.
	OutcomeClean OutcomeKind = iota
	// OutcomeFaulted means the target raised an unhandled error.
	OutcomeFaulted
	// OutcomeEngineFault means the engine itself failed while driving the
	// run. Treated like a faulted run; the loop never dies from it.
	OutcomeEngineFault
	// OutcomeQuit means the user terminated the session before the target
	// ran, from the entry stop. The loop exits without reopening a shell.
	OutcomeQuit
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeClean:
		return "clean"
	case OutcomeFaulted:
		return "faulted"
	case OutcomeEngineFault:
		return "engine_fault"
	case OutcomeQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Frame is one entry of a captured backtrace.
type Frame struct {
	Func   string // function name, or "?" when the engine cannot tell
	Source string // chunk or file name
	Line   int    // 0 when unknown
}

// Fault is the captured failure of a run that ended via an unhandled error.
type Fault struct {
	Message string
	Frames  []Frame
}

// Outcome is the typed result of one engine run, consumed immediately by the
// control loop to decide between exiting and re-entering the control shell.
type Outcome struct {
	Kind     OutcomeKind
	Fault    *Fault // set for OutcomeFaulted
	Err      error  // set for OutcomeEngineFault
	Duration time.Duration
}
