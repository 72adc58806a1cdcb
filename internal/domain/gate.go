package domain

import (
	"strings"
	"time"
)

// Gate is one ordered approval step of a task. Ownership is a contact id,
// the display name is resolved at read time.
type Gate struct {
	ID             string
	Name           string
	OwnerContactID string
	Completed      bool
	CompletedAt    *time.Time
}

// GateInput holds values for gate creation.
type GateInput struct {
	ID             string
	Name           string
	OwnerContactID string
}

// NewGate constructs an incomplete gate.
func NewGate(in GateInput) (Gate, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Gate{}, ErrInvalidID
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Gate{}, ErrInvalidGateName
	}
	return Gate{
		ID:             in.ID,
		Name:           name,
		OwnerContactID: strings.TrimSpace(in.OwnerContactID),
	}, nil
}

// ActiveGateIndex returns the index of the first incomplete gate, or -1.
func ActiveGateIndex(gates []Gate) int {
	for i := range gates {
		if !gates[i].Completed {
			return i
		}
	}
	return -1
}

// ActiveGate returns the first incomplete gate in list order.
// ok is false when the list is empty or every gate is completed.
func ActiveGate(gates []Gate) (Gate, bool) {
	idx := ActiveGateIndex(gates)
	if idx < 0 {
		return Gate{}, false
	}
	return gates[idx], true
}

func gateIndex(gates []Gate, id string) int {
	id = strings.TrimSpace(id)
	for i := range gates {
		if gates[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneGates(gates []Gate) []Gate {
	if gates == nil {
		return nil
	}
	out := make([]Gate, len(gates))
	for i, g := range gates {
		out[i] = g
		if g.CompletedAt != nil {
			ts := *g.CompletedAt
			out[i].CompletedAt = &ts
		}
	}
	return out
}
