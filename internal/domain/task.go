package domain

import (
	"slices"
	"strings"
	"time"
)

// DefaultCadenceDays applies when a task is created without a cadence.
const DefaultCadenceDays = 3

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// TaskStatus values.
const (
	StatusOpen           TaskStatus = "open"
	StatusCloseRequested TaskStatus = "close_requested"
	StatusClosed         TaskStatus = "closed"
)

var validTaskStatuses = []TaskStatus{StatusOpen, StatusCloseRequested, StatusClosed}

// NormalizeTaskStatus canonicalizes status values, folding the legacy
// "pending_close" spelling into close_requested.
func NormalizeTaskStatus(status TaskStatus) TaskStatus {
	status = TaskStatus(strings.ToLower(strings.TrimSpace(string(status))))
	switch status {
	case "":
		return StatusOpen
	case "pending_close", "pending-close", "close-requested":
		return StatusCloseRequested
	}
	return status
}

// IsValidTaskStatus reports whether the status is supported.
func IsValidTaskStatus(status TaskStatus) bool {
	return slices.Contains(validTaskStatuses, NormalizeTaskStatus(status))
}

// Task is the core unit of follow-up work.
type Task struct {
	ID               string
	ProjectID        string
	Description      string
	NextStep         string
	Status           TaskStatus
	CadenceDays      int
	OwnerIDs         []string
	Gates            []Gate
	LastMovementAt   time.Time
	CloseRequestedAt *time.Time
	CloseRequestedBy string
	ClosedAt         *time.Time
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TaskInput holds values for task creation.
type TaskInput struct {
	ID          string
	ProjectID   string
	Description string
	NextStep    string
	CadenceDays int
	OwnerIDs    []string
	Gates       []Gate
	CreatedBy   string
}

// NewTask constructs an open task whose movement clock starts now.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.ProjectID == "" {
		return Task{}, ErrInvalidProjectID
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return Task{}, ErrInvalidDescription
	}
	cadence := in.CadenceDays
	if cadence == 0 {
		cadence = DefaultCadenceDays
	}
	if cadence < 0 {
		return Task{}, ErrInvalidCadence
	}
	for _, g := range in.Gates {
		if strings.TrimSpace(g.ID) == "" {
			return Task{}, ErrInvalidID
		}
		if strings.TrimSpace(g.Name) == "" {
			return Task{}, ErrInvalidGateName
		}
	}

	ts := now.UTC()
	return Task{
		ID:             in.ID,
		ProjectID:      in.ProjectID,
		Description:    description,
		NextStep:       strings.TrimSpace(in.NextStep),
		Status:         StatusOpen,
		CadenceDays:    cadence,
		OwnerIDs:       normalizeIDs(in.OwnerIDs),
		Gates:          cloneGates(in.Gates),
		LastMovementAt: ts,
		CreatedBy:      strings.TrimSpace(in.CreatedBy),
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}, nil
}

// Gated reports whether an incomplete gate blocks the task. It is always
// derived from the gate list.
func (t Task) Gated() bool {
	return ActiveGateIndex(t.Gates) >= 0
}

// ActiveGate returns the current blocking gate.
func (t Task) ActiveGate() (Gate, bool) {
	return ActiveGate(t.Gates)
}

// IsOpen reports whether the task still needs attention (open or awaiting close approval).
func (t Task) IsOpen() bool {
	return t.Status != StatusClosed
}

// Touch records movement, which restarts the staleness clock.
func (t *Task) Touch(now time.Time) {
	t.LastMovementAt = now.UTC()
	t.UpdatedAt = now.UTC()
}

// SetDetails updates the description and next step.
func (t *Task) SetDetails(description, nextStep string, now time.Time) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return ErrInvalidDescription
	}
	t.Description = description
	t.NextStep = strings.TrimSpace(nextStep)
	t.UpdatedAt = now.UTC()
	return nil
}

// SetCadence changes the follow-up cadence in days.
func (t *Task) SetCadence(days int, now time.Time) error {
	if days <= 0 {
		return ErrInvalidCadence
	}
	t.CadenceDays = days
	t.UpdatedAt = now.UTC()
	return nil
}

// HasOwner reports whether the contact is assigned to the task.
func (t Task) HasOwner(contactID string) bool {
	return slices.Contains(t.OwnerIDs, strings.TrimSpace(contactID))
}

// AssignOwner adds a contact as owner. It returns false when already assigned.
func (t *Task) AssignOwner(contactID string, now time.Time) (bool, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return false, ErrInvalidID
	}
	if t.HasOwner(contactID) {
		return false, nil
	}
	t.OwnerIDs = append(t.OwnerIDs, contactID)
	t.UpdatedAt = now.UTC()
	return true, nil
}

// UnassignOwner removes a contact from the owners. It returns false when not assigned.
func (t *Task) UnassignOwner(contactID string, now time.Time) bool {
	contactID = strings.TrimSpace(contactID)
	if !t.HasOwner(contactID) {
		return false
	}
	t.OwnerIDs = slices.DeleteFunc(t.OwnerIDs, func(id string) bool { return id == contactID })
	t.UpdatedAt = now.UTC()
	return true
}

// InsertGate inserts a gate at position (0-based). A position equal to the
// gate count appends.
func (t *Task) InsertGate(position int, gate Gate, now time.Time) error {
	if position < 0 || position > len(t.Gates) {
		return ErrInvalidGatePosition
	}
	if strings.TrimSpace(gate.ID) == "" || gateIndex(t.Gates, gate.ID) >= 0 {
		return ErrInvalidID
	}
	if strings.TrimSpace(gate.Name) == "" {
		return ErrInvalidGateName
	}
	t.Gates = slices.Insert(t.Gates, position, gate)
	t.Touch(now)
	return nil
}

// CompleteGate marks a gate complete, which may reveal the next active gate.
func (t *Task) CompleteGate(gateID string, now time.Time) error {
	idx := gateIndex(t.Gates, gateID)
	if idx < 0 {
		return ErrGateNotFound
	}
	ts := now.UTC()
	t.Gates[idx].Completed = true
	t.Gates[idx].CompletedAt = &ts
	t.Touch(now)
	return nil
}

// ReopenGate clears the completed flag of a gate.
func (t *Task) ReopenGate(gateID string, now time.Time) error {
	idx := gateIndex(t.Gates, gateID)
	if idx < 0 {
		return ErrGateNotFound
	}
	t.Gates[idx].Completed = false
	t.Gates[idx].CompletedAt = nil
	t.Touch(now)
	return nil
}

// RemoveGate deletes a gate from the sequence.
func (t *Task) RemoveGate(gateID string, now time.Time) error {
	idx := gateIndex(t.Gates, gateID)
	if idx < 0 {
		return ErrGateNotFound
	}
	t.Gates = slices.Delete(t.Gates, idx, idx+1)
	t.UpdatedAt = now.UTC()
	return nil
}

// RequestClose moves an open task to close_requested pending admin approval.
func (t *Task) RequestClose(userID string, now time.Time) error {
	if t.Status != StatusOpen {
		return ErrInvalidTransition
	}
	ts := now.UTC()
	t.Status = StatusCloseRequested
	t.CloseRequestedAt = &ts
	t.CloseRequestedBy = strings.TrimSpace(userID)
	t.Touch(now)
	return nil
}

// RejectClose returns a close_requested task to open.
func (t *Task) RejectClose(now time.Time) error {
	if t.Status != StatusCloseRequested {
		return ErrInvalidTransition
	}
	t.Status = StatusOpen
	t.CloseRequestedAt = nil
	t.CloseRequestedBy = ""
	t.Touch(now)
	return nil
}

// Close closes an open or close_requested task.
func (t *Task) Close(now time.Time) error {
	if t.Status == StatusClosed {
		return ErrInvalidTransition
	}
	ts := now.UTC()
	t.Status = StatusClosed
	t.ClosedAt = &ts
	t.CloseRequestedAt = nil
	t.CloseRequestedBy = ""
	t.Touch(now)
	return nil
}

// Reopen returns a closed task to open.
func (t *Task) Reopen(now time.Time) error {
	if t.Status != StatusClosed {
		return ErrInvalidTransition
	}
	t.Status = StatusOpen
	t.ClosedAt = nil
	t.Touch(now)
	return nil
}

// References reports whether the task points at the contact as owner or gate owner.
func (t Task) References(contactID string) bool {
	if t.HasOwner(contactID) {
		return true
	}
	for _, g := range t.Gates {
		if g.OwnerContactID == contactID {
			return true
		}
	}
	return false
}

// ReplaceContact moves every owner and gate-owner reference from one contact
// to another. Owner lists stay unique. It reports whether anything changed.
func (t *Task) ReplaceContact(fromID, toID string, now time.Time) bool {
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if fromID == "" || toID == "" || fromID == toID {
		return false
	}
	changed := false
	if t.HasOwner(fromID) {
		owners := make([]string, 0, len(t.OwnerIDs))
		for _, id := range t.OwnerIDs {
			if id == fromID {
				id = toID
			}
			if !slices.Contains(owners, id) {
				owners = append(owners, id)
			}
		}
		t.OwnerIDs = owners
		changed = true
	}
	for i := range t.Gates {
		if t.Gates[i].OwnerContactID == fromID {
			t.Gates[i].OwnerContactID = toID
			changed = true
		}
	}
	if changed {
		t.UpdatedAt = now.UTC()
	}
	return changed
}

// DropContact strips every reference to the contact. Gates keep their place
// but lose the owner.
func (t *Task) DropContact(contactID string, now time.Time) bool {
	changed := t.UnassignOwner(contactID, now)
	for i := range t.Gates {
		if t.Gates[i].OwnerContactID == contactID {
			t.Gates[i].OwnerContactID = ""
			changed = true
		}
	}
	if changed {
		t.UpdatedAt = now.UTC()
	}
	return changed
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	out := t
	out.OwnerIDs = slices.Clone(t.OwnerIDs)
	out.Gates = cloneGates(t.Gates)
	if t.CloseRequestedAt != nil {
		ts := *t.CloseRequestedAt
		out.CloseRequestedAt = &ts
	}
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		out.ClosedAt = &ts
	}
	return out
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
