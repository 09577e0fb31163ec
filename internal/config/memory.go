package config

import "fmt"

// Mode names a memory tier. It bounds how much conversation history a
// responder sees per turn.
type Mode string

const (
	// ModeUltraCompact keeps 4 turns at 100 chars each.
	ModeUltraCompact Mode = "ultra_compact"
	// ModeOptimized keeps 6 turns at 200 chars each. Process default.
	ModeOptimized Mode = "optimized"
	// ModeStandard keeps 10 turns at 500 chars each.
	ModeStandard Mode = "standard"
	// ModeFull keeps 30 turns untruncated.
	ModeFull Mode = "full"
)

// MemoryConfig configures the conversation memory tiers.
type MemoryConfig struct {
	// Mode selects the tier from the policy table.
	Mode Mode `yaml:"mode"`

	// WriteQueueSize bounds the per-session durable write queue.
	WriteQueueSize int `yaml:"write_queue_size"`
}

// DefaultMemoryConfig returns the default memory configuration.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Mode:           ModeOptimized,
		WriteQueueSize: 64,
	}
}

// ParseMode validates a mode string. Unknown modes are a startup error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUltraCompact, ModeOptimized, ModeStandard, ModeFull:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid memory mode %q (valid: ultra_compact, optimized, standard, full)", s)
	}
}
