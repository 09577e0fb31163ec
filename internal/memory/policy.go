// Package memory implements the tiered conversation memory: a static
// policy table, a bounded context projection, and a manager that layers a
// local buffer over the backing store with graceful degradation.
package memory

import "fitcoach/internal/config"

// TruncationMarker is appended to turn content clipped by the policy.
const TruncationMarker = "..."

// Policy bounds how much conversation history a responder sees.
// MaxCharsPerTurn <= 0 means unbounded length.
type Policy struct {
	Mode            config.Mode
	MaxTurns        int
	MaxCharsPerTurn int
}

// policyTable is the process-wide tier table. Read-only after init.
var policyTable = map[config.Mode]Policy{
	config.ModeUltraCompact: {Mode: config.ModeUltraCompact, MaxTurns: 4, MaxCharsPerTurn: 100},
	config.ModeOptimized:    {Mode: config.ModeOptimized, MaxTurns: 6, MaxCharsPerTurn: 200},
	config.ModeStandard:     {Mode: config.ModeStandard, MaxTurns: 10, MaxCharsPerTurn: 500},
	config.ModeFull:         {Mode: config.ModeFull, MaxTurns: 30, MaxCharsPerTurn: 0},
}

// PolicyFor returns the tier for a mode. Unknown modes fall back to
// optimized; config validation rejects them at startup so this is only a
// belt for direct construction.
func PolicyFor(mode config.Mode) Policy {
	if p, ok := policyTable[mode]; ok {
		return p
	}
	return policyTable[config.ModeOptimized]
}

// EmergencyPolicy is the extreme cost-saving tier: 2 turns at 50 chars.
// Not part of the mode enum; selected explicitly by operators.
func EmergencyPolicy() Policy {
	return Policy{Mode: "emergency", MaxTurns: 2, MaxCharsPerTurn: 50}
}
