package scheduler

import "fmt"

// PassState represents a backfill pass state in the state machine.
type PassState string

const (
	StateIdle       PassState = "idle"
	StateEvaluating PassState = "evaluating"
	StateSkipped    PassState = "skipped"
	StateAcquiring  PassState = "acquiring"
	StateRunning    PassState = "running"
)

// ValidateStateTransition checks if a pass state transition is valid.
// Returns an error if the transition is not allowed.
func ValidateStateTransition(from, to PassState) error {
	validTransitions := map[PassState][]PassState{
		StateIdle: {
			StateEvaluating, // Trigger arrived
		},
		StateEvaluating: {
			StateIdle,      // No missing records, nothing to do
			StateSkipped,   // Guard fired: lock held or interval not elapsed
			StateAcquiring, // Work found and guards passed
		},
		StateSkipped: {
			StateIdle, // Skip is log-only; pass ends immediately
		},
		StateAcquiring: {
			StateRunning, // Lock taken, lastRunAt stamped
		},
		StateRunning: {
			StateIdle, // Batch done (success, partial failure, or error)
		},
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %s to %s", from, to)
}

// IsTerminalState reports whether a pass in this state has finished.
func IsTerminalState(state PassState) bool {
	return state == StateIdle
}
