package port

import (
	"powerstream2mqtt/internal/core/domain"
)

// StateStore persists controller state across restarts and archives decision
// entries beyond the in-memory window.
type StateStore interface {
	SaveControlState(state domain.ControlState) error
	// LoadControlState reports false when no previous state was saved.
	LoadControlState() (domain.ControlState, bool, error)
	AppendDecision(entry domain.DecisionLogEntry) error
	RecentDecisions(limit int) ([]domain.DecisionLogEntry, error)
}
