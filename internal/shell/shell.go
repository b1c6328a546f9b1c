// Package shell implements the interactive control shell entered between
// debug runs. It is line-oriented and fully synchronous: ProcessCommands
// blocks until the user leaves the shell.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/ldb-dev/ldb/internal/domain"
	"github.com/ldb-dev/ldb/internal/engine"
)

var promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

// Session is the engine surface the shell drives.
type Session interface {
	// Eval evaluates an expression in the session and renders the result.
	Eval(expr string) (string, error)
	// LastFault returns the most recent captured fault, or nil.
	LastFault() *domain.Fault
}

// LineReader is a shared line source over an input stream. Build exactly one
// per stream and hand it to every Shell reading that stream: a scanner may
// buffer input past the line it returns, so a per-shell scanner would drop
// commands typed ahead of a shell exit.
type LineReader struct {
	scanner     *bufio.Scanner
	interactive bool
}

// NewLineReader wraps an input stream. Interactivity is detected once here,
// so prompts are only shown when the stream is a terminal.
func NewLineReader(in io.Reader) *LineReader {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd())
	}
	return &LineReader{scanner: bufio.NewScanner(in), interactive: interactive}
}

// ReadLine returns the next input line; ok is false at end of input.
func (r *LineReader) ReadLine() (line string, ok bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

// Shell reads control commands until the user continues or quits. Shell
// state is per-iteration; only the LineReader is shared across shells.
type Shell struct {
	lines   *LineReader
	out     io.Writer
	session Session
}

// New creates a shell over a shared line source.
func New(lines *LineReader, out io.Writer, session Session) *Shell {
	return &Shell{lines: lines, out: out, session: session}
}

// ProcessCommands blocks until the user exits the shell. It returns nil when
// the user asked to rerun the target and engine.ErrQuit when the session
// should terminate. End of input counts as quit.
func (s *Shell) ProcessCommands() error {
	for {
		if s.lines.interactive {
			fmt.Fprint(s.out, promptStyle.Render("(ldb)")+" ")
		}
		line, ok := s.lines.ReadLine()
		if !ok {
			return engine.ErrQuit
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "help", "h":
			s.printHelp()
		case "run", "r", "cont", "c":
			return nil
		case "quit", "q", "exit":
			return engine.ErrQuit
		case "backtrace", "bt", "where":
			s.printBacktrace()
		case "eval", "p":
			s.eval(strings.TrimSpace(rest))
		default:
			fmt.Fprintf(s.out, "unknown command %q (try help)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  run, cont       rerun the target
  quit, exit      terminate the session
  backtrace, bt   show the last captured backtrace
  eval, p EXPR    evaluate an expression in the session
  help            show this help
`)
}

func (s *Shell) printBacktrace() {
	fault := s.session.LastFault()
	if fault == nil {
		fmt.Fprintln(s.out, "no fault recorded")
		return
	}
	fmt.Fprintln(s.out, fault.Message)
	for i, frame := range fault.Frames {
		if frame.Line > 0 {
			fmt.Fprintf(s.out, "  #%d %s at %s:%d\n", i, frame.Func, frame.Source, frame.Line)
		} else {
			fmt.Fprintf(s.out, "  #%d %s at %s\n", i, frame.Func, frame.Source)
		}
	}
}

func (s *Shell) eval(expr string) {
	if expr == "" {
		fmt.Fprintln(s.out, "usage: eval EXPR")
		return
	}
	result, err := s.session.Eval(expr)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, result)
}
