package types

// SourceMode selects which source adapter feeds the state window.
type SourceMode string

const (
	// ModeSynthetic drives the window from the local random-walk generator.
	ModeSynthetic SourceMode = "synthetic"
	// ModeRemote drives the window from the configured HTTP endpoint.
	ModeRemote SourceMode = "remote"
)

// Valid reports whether the mode is one of the recognized source modes.
func (m SourceMode) Valid() bool {
	return m == ModeSynthetic || m == ModeRemote
}

// RunState is the control-surface lifecycle state of the ingestion engine.
type RunState string

const (
	// RunStateRunning means the scheduler is armed and ticks are firing.
	RunStateRunning RunState = "running"
	// RunStateIdle means the scheduler is torn down; the window is frozen.
	RunStateIdle RunState = "idle"
)
