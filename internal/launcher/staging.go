package launcher

import (
	"fmt"
	"os"

	"github.com/ldb-dev/ldb/internal/engine"
	"go.uber.org/zap"
)

// Staging holds the optional one-shot restart script and the startup script
// that are run through the engine's script path before the main loop.
type Staging struct {
	restartPath string
	startupPath string
	log         *zap.SugaredLogger
}

// NewStaging creates a Staging for the configured script paths. Either path
// may be empty.
func NewStaging(restartPath, startupPath string, log *zap.SugaredLogger) *Staging {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Staging{restartPath: restartPath, startupPath: startupPath, log: log}
}

// Verify checks that every configured staged script exists. A missing staged
// script is a configuration error, fatal before any session work begins.
func (s *Staging) Verify() error {
	for _, path := range []string{s.restartPath, s.startupPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("staged script %s: %w", path, err)
		}
	}
	return nil
}

// RunRestart executes the restart script once via the engine and consumes it.
// The staged path is cleared before anything else happens, so the script can
// never run twice in-process even when the unlink fails.
func (s *Staging) RunRestart(eng engine.Engine) error {
	if s.restartPath == "" {
		return nil
	}
	path := s.restartPath
	s.restartPath = ""

	if err := eng.RunScript(path); err != nil {
		return fmt.Errorf("restart script %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		s.log.Warnw("could not remove restart script", "path", path, "error", err)
	}
	return nil
}

// RunStartup executes the startup script via the engine, if one is
// configured. The file is left in place.
func (s *Staging) RunStartup(eng engine.Engine) error {
	if s.startupPath == "" {
		return nil
	}
	if err := eng.RunScript(s.startupPath); err != nil {
		return fmt.Errorf("startup script %s: %w", s.startupPath, err)
	}
	return nil
}
