// Package docstate provides declarative status machines for documents.
// Each document type declares its transition table once; services ask
// the machine instead of scattering status checks through the code.
package docstate

import (
	"wareflow/internal/core/apperror"
)

// Status is a document lifecycle state.
type Status string

// Transitions maps a status to the statuses it may move to.
type Transitions map[Status][]Status

// Machine validates status changes for one document type.
type Machine struct {
	docType     string
	transitions Transitions
}

// New creates a machine for a document type.
func New(docType string, transitions Transitions) *Machine {
	return &Machine{
		docType:     docType,
		transitions: transitions,
	}
}

// Can reports whether the transition is allowed.
func (m *Machine) Can(from, to Status) bool {
	for _, next := range m.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns nil when the move is allowed, otherwise an
// InvalidStateTransition error carrying both statuses.
func (m *Machine) Transition(from, to Status) error {
	if !m.Can(from, to) {
		return apperror.NewInvalidStateTransition(m.docType, string(from), string(to))
	}
	return nil
}

// IsTerminal reports whether a status has no outgoing transitions.
func (m *Machine) IsTerminal(s Status) bool {
	return len(m.transitions[s]) == 0
}

// Next returns the allowed target statuses from a status.
func (m *Machine) Next(from Status) []Status {
	return m.transitions[from]
}
