package domain

import (
	"strconv"
	"strings"
	"time"
)

// ChangeOperation describes a persisted activity operation on a task.
type ChangeOperation string

// ChangeOperation values used by the task activity ledger.
const (
	ChangeOperationCreate ChangeOperation = "create"
	ChangeOperationUpdate ChangeOperation = "update"
	ChangeOperationNote   ChangeOperation = "note"
	ChangeOperationGate   ChangeOperation = "gate"
	ChangeOperationStatus ChangeOperation = "status"
	ChangeOperationOwner  ChangeOperation = "owner"
	ChangeOperationDelete ChangeOperation = "delete"
)

// ChangeEvent is a single activity-log entry for a task.
type ChangeEvent struct {
	ID         int64
	ProjectID  string
	TaskID     string
	Operation  ChangeOperation
	ActorID    string
	Metadata   map[string]string
	OccurredAt time.Time
}

// ClassifyTaskChange picks the ledger operation for an update from prev to next.
func ClassifyTaskChange(prev, next Task) ChangeOperation {
	switch {
	case prev.Status != next.Status:
		return ChangeOperationStatus
	case !sameGates(prev.Gates, next.Gates):
		return ChangeOperationGate
	case !sameStrings(prev.OwnerIDs, next.OwnerIDs):
		return ChangeOperationOwner
	default:
		return ChangeOperationUpdate
	}
}

func sameGates(a, b []Gate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Name != b[i].Name || a[i].OwnerContactID != b[i].OwnerContactID || a[i].Completed != b[i].Completed {
			return false
		}
	}
	return true
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DescribeTaskChange returns the ledger metadata for an update classified as op.
func DescribeTaskChange(op ChangeOperation, prev, next Task) map[string]string {
	switch op {
	case ChangeOperationStatus:
		return map[string]string{"from": string(prev.Status), "to": string(next.Status)}
	case ChangeOperationGate:
		meta := map[string]string{"gates": strconv.Itoa(len(next.Gates))}
		if gate, ok := next.ActiveGate(); ok {
			meta["active_gate"] = gate.Name
		}
		return meta
	case ChangeOperationOwner:
		return map[string]string{"owners": strings.Join(next.OwnerIDs, ",")}
	default:
		fields := make([]string, 0, 4)
		if prev.Description != next.Description {
			fields = append(fields, "description")
		}
		if prev.NextStep != next.NextStep {
			fields = append(fields, "next_step")
		}
		if prev.CadenceDays != next.CadenceDays {
			fields = append(fields, "cadence_days")
		}
		if !prev.LastMovementAt.Equal(next.LastMovementAt) {
			fields = append(fields, "last_movement_at")
		}
		return map[string]string{"changed_fields": strings.Join(fields, ",")}
	}
}
