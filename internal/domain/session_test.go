package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionConfig_Normalize(t *testing.T) {
	t.Run("tracing forces stop-at-entry off", func(t *testing.T) {
		cfg := &SessionConfig{Tracing: true, StopAtEntry: true}
		cfg.Normalize()
		assert.False(t, cfg.StopAtEntry)
		assert.True(t, cfg.Tracing)
	})

	t.Run("stop-at-entry kept without tracing", func(t *testing.T) {
		cfg := &SessionConfig{StopAtEntry: true}
		cfg.Normalize()
		assert.True(t, cfg.StopAtEntry)
	})

	t.Run("idempotent", func(t *testing.T) {
		cfg := &SessionConfig{Tracing: true, StopAtEntry: true}
		cfg.Normalize()
		cfg.Normalize()
		assert.False(t, cfg.StopAtEntry)
	})
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "clean", OutcomeClean.String())
	assert.Equal(t, "faulted", OutcomeFaulted.String())
	assert.Equal(t, "engine_fault", OutcomeEngineFault.String())
	assert.Equal(t, "quit", OutcomeQuit.String())
	assert.Equal(t, "unknown", OutcomeKind(42).String())
}
