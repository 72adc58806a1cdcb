package domain

import (
	"testing"
	"time"
)

func TestActiveGate(t *testing.T) {
	cases := []struct {
		name  string
		gates []Gate
		want  int
	}{
		{"empty", nil, -1},
		{"all complete", []Gate{{ID: "a", Completed: true}, {ID: "b", Completed: true}}, -1},
		{"first incomplete", []Gate{{ID: "a"}, {ID: "b"}}, 0},
		{"skips completed", []Gate{{ID: "a", Completed: true}, {ID: "b"}, {ID: "c"}}, 1},
		{"later incomplete after gap", []Gate{{ID: "a", Completed: true}, {ID: "b", Completed: true}, {ID: "c"}}, 2},
	}
	for _, tc := range cases {
		gate, ok := ActiveGate(tc.gates)
		if tc.want < 0 {
			if ok {
				t.Fatalf("%s: expected no active gate, got %#v", tc.name, gate)
			}
			continue
		}
		if !ok || gate.ID != tc.gates[tc.want].ID {
			t.Fatalf("%s: expected gate %q, got %#v ok=%v", tc.name, tc.gates[tc.want].ID, gate, ok)
		}
	}
}

func TestTaskGateMutations(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	task, _ := NewTask(TaskInput{ID: "t1", ProjectID: "p1", Description: "x"}, now)
	if task.Gated() {
		t.Fatal("expected task without gates to be ungated")
	}

	legal, _ := NewGate(GateInput{ID: "g1", Name: "legal", OwnerContactID: "c1"})
	finance, _ := NewGate(GateInput{ID: "g2", Name: "finance"})
	ops, _ := NewGate(GateInput{ID: "g3", Name: "ops"})
	if err := task.InsertGate(0, legal, now); err != nil {
		t.Fatalf("InsertGate() error = %v", err)
	}
	if err := task.InsertGate(1, finance, now); err != nil {
		t.Fatalf("InsertGate() error = %v", err)
	}
	if err := task.InsertGate(1, ops, now); err != nil {
		t.Fatalf("InsertGate() error = %v", err)
	}
	if err := task.InsertGate(9, Gate{ID: "g4", Name: "late"}, now); err != ErrInvalidGatePosition {
		t.Fatalf("expected ErrInvalidGatePosition, got %v", err)
	}
	if err := task.InsertGate(0, Gate{ID: "g1", Name: "dup"}, now); err != ErrInvalidID {
		t.Fatalf("expected duplicate gate id rejected, got %v", err)
	}
	order := ""
	for _, g := range task.Gates {
		order += g.ID
	}
	if order != "g1g3g2" {
		t.Fatalf("unexpected gate order %s", order)
	}

	later := now.Add(48 * time.Hour)
	if err := task.CompleteGate("g1", later); err != nil {
		t.Fatalf("CompleteGate() error = %v", err)
	}
	active, ok := task.ActiveGate()
	if !ok || active.ID != "g3" {
		t.Fatalf("expected g3 active, got %#v", active)
	}
	if !task.LastMovementAt.Equal(later) {
		t.Fatal("expected gate completion to count as movement")
	}
	_ = task.CompleteGate("g3", later)
	_ = task.CompleteGate("g2", later)
	if task.Gated() {
		t.Fatal("expected all gates complete to ungate task")
	}
	if err := task.ReopenGate("g3", later); err != nil {
		t.Fatalf("ReopenGate() error = %v", err)
	}
	if active, _ := task.ActiveGate(); active.ID != "g3" {
		t.Fatalf("expected reopened gate active, got %#v", active)
	}
	if err := task.RemoveGate("missing", later); err != ErrGateNotFound {
		t.Fatalf("expected ErrGateNotFound, got %v", err)
	}
}

func TestStaleness(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	task := Task{Status: StatusOpen, CadenceDays: 7, LastMovementAt: now.Add(-10 * 24 * time.Hour)}
	if got := DaysSinceMovement(task, now); got != 10 {
		t.Fatalf("expected 10 days, got %d", got)
	}
	if !IsStale(task, now) {
		t.Fatal("expected 10 days with cadence 7 to be stale")
	}
	if got := DaysPastCadence(task, now); got != 3 {
		t.Fatalf("expected 3 days past cadence, got %d", got)
	}

	task.LastMovementAt = now.Add(-2 * 24 * time.Hour)
	if IsStale(task, now) {
		t.Fatal("expected 2 days with cadence 7 to be fresh")
	}

	// Partial days floor.
	task.LastMovementAt = now.Add(-(7*24 + 23) * time.Hour)
	if got := DaysSinceMovement(task, now); got != 7 {
		t.Fatalf("expected floor to 7 days, got %d", got)
	}
	if IsStale(task, now) {
		t.Fatal("expected exactly cadence days to be fresh")
	}
}

func TestIsStaleFalseUnlessOpen(t *testing.T) {
	now := time.Now()
	old := now.Add(-100 * 24 * time.Hour)
	for _, status := range []TaskStatus{StatusClosed, StatusCloseRequested} {
		task := Task{Status: status, CadenceDays: 1, LastMovementAt: old}
		if IsStale(task, now) {
			t.Fatalf("expected %s task not stale", status)
		}
	}
}

func TestStalenessMissingDataFailsClosed(t *testing.T) {
	now := time.Now()
	if IsStale(Task{Status: StatusOpen, CadenceDays: 3}, now) {
		t.Fatal("expected missing timestamp to be not stale")
	}
	if IsStale(Task{Status: StatusOpen, LastMovementAt: now.Add(-50 * 24 * time.Hour)}, now) {
		t.Fatal("expected missing cadence to be not stale")
	}
	if got := DaysSinceMovement(Task{LastMovementAt: now.Add(time.Hour)}, now); got != 0 {
		t.Fatalf("expected future timestamp to yield 0, got %d", got)
	}
}

func TestTouchResetsDaysSinceMovement(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task, _ := NewTask(TaskInput{ID: "t1", ProjectID: "p1", Description: "x", CadenceDays: 2}, start)
	now := start.Add(9 * 24 * time.Hour)
	if !IsStale(task, now) {
		t.Fatal("expected stale before movement")
	}
	task.Touch(now)
	if got := DaysSinceMovement(task, now); got != 0 {
		t.Fatalf("expected 0 days after movement, got %d", got)
	}
	if IsStale(task, now) {
		t.Fatal("expected movement to clear staleness")
	}
}

func TestBuildIssues(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	daysAgo := func(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }
	requested := daysAgo(1)
	requestedLong := daysAgo(5)

	tasks := []Task{
		// warning overdue (5 past cadence)
		{ID: "w-overdue", Status: StatusOpen, CadenceDays: 3, LastMovementAt: daysAgo(8)},
		// info close request
		{ID: "info-close", Status: StatusCloseRequested, CadenceDays: 3, LastMovementAt: daysAgo(1), CloseRequestedAt: &requested},
		// critical overdue and gated
		{ID: "crit", Status: StatusOpen, CadenceDays: 3, LastMovementAt: daysAgo(20), Gates: []Gate{{ID: "g1", Name: "legal"}}},
		// inactive with long cadence
		{ID: "inactive", Status: StatusOpen, CadenceDays: 60, LastMovementAt: daysAgo(40)},
		// warning close request
		{ID: "w-close", Status: StatusCloseRequested, CadenceDays: 3, LastMovementAt: daysAgo(5), CloseRequestedAt: &requestedLong},
		// closed tasks never contribute
		{ID: "closed", Status: StatusClosed, CadenceDays: 1, LastMovementAt: daysAgo(90)},
		// fresh task
		{ID: "fresh", Status: StatusOpen, CadenceDays: 3, LastMovementAt: daysAgo(1)},
	}

	issues := BuildIssues(tasks, now, DefaultIssueThresholds())
	type row struct {
		task string
		kind IssueKind
		sev  Severity
	}
	want := []row{
		{"crit", IssueOverdue, SeverityCritical},
		{"w-overdue", IssueOverdue, SeverityWarning},
		{"crit", IssueGated, SeverityWarning},
		{"w-close", IssueCloseRequested, SeverityWarning},
		{"info-close", IssueCloseRequested, SeverityInfo},
		{"inactive", IssueInactive, SeverityInfo},
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d: %#v", len(want), len(issues), issues)
	}
	for i, w := range want {
		got := issues[i]
		if got.TaskID != w.task || got.Kind != w.kind || got.Severity != w.sev {
			t.Fatalf("issue %d: got %s/%s/%s want %s/%s/%s", i, got.TaskID, got.Kind, got.Severity, w.task, w.kind, w.sev)
		}
	}
	if issues[0].DaysPastCadence != 17 {
		t.Fatalf("expected 17 days past cadence, got %d", issues[0].DaysPastCadence)
	}
	if issues[2].Gate == nil || issues[2].Gate.ID != "g1" {
		t.Fatalf("expected gated issue to carry the active gate, got %#v", issues[2].Gate)
	}
}

func TestBuildIssuesOverdueBoundary(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	task := Task{ID: "t", Status: StatusOpen, CadenceDays: 3, LastMovementAt: now.Add(-10 * 24 * time.Hour)}
	issues := BuildIssues([]Task{task}, now, IssueThresholds{})
	if len(issues) != 1 || issues[0].Severity != SeverityWarning {
		t.Fatalf("expected exactly 7 days past cadence to be warning, got %#v", issues)
	}
	task.LastMovementAt = now.Add(-11 * 24 * time.Hour)
	issues = BuildIssues([]Task{task}, now, IssueThresholds{})
	if len(issues) != 1 || issues[0].Severity != SeverityCritical {
		t.Fatalf("expected 8 days past cadence to be critical, got %#v", issues)
	}
}

func TestSortIssuesStable(t *testing.T) {
	issues := []Issue{
		{TaskID: "1", Severity: SeverityInfo},
		{TaskID: "2", Severity: SeverityWarning},
		{TaskID: "3", Severity: SeverityCritical},
		{TaskID: "4", Severity: SeverityWarning},
	}
	SortIssues(issues)
	got := ""
	for _, i := range issues {
		got += i.TaskID
	}
	if got != "3241" {
		t.Fatalf("expected critical, warning, warning, info order 3241, got %s", got)
	}
}
