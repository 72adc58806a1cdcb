package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// IssueKind names one attention signal.
type IssueKind string

// IssueKind values.
const (
	IssueOverdue        IssueKind = "overdue"
	IssueGated          IssueKind = "gated"
	IssueCloseRequested IssueKind = "close_requested"
	IssueInactive       IssueKind = "inactive"
)

// Severity orders issues on the dashboard.
type Severity string

// Severity values, most urgent first.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns the sort rank of a severity; lower sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// IssueThresholds tunes severity boundaries.
type IssueThresholds struct {
	CriticalOverdueDays     int
	CloseRequestWarningDays int
	InactiveDays            int
}

// DefaultIssueThresholds returns the standard dashboard thresholds.
func DefaultIssueThresholds() IssueThresholds {
	return IssueThresholds{
		CriticalOverdueDays:     7,
		CloseRequestWarningDays: 2,
		InactiveDays:            30,
	}
}

func (th IssueThresholds) normalized() IssueThresholds {
	def := DefaultIssueThresholds()
	if th.CriticalOverdueDays <= 0 {
		th.CriticalOverdueDays = def.CriticalOverdueDays
	}
	if th.CloseRequestWarningDays <= 0 {
		th.CloseRequestWarningDays = def.CloseRequestWarningDays
	}
	if th.InactiveDays <= 0 {
		th.InactiveDays = def.InactiveDays
	}
	return th
}

// Issue is one attention-worthy signal for a task.
type Issue struct {
	TaskID            string
	ProjectID         string
	Kind              IssueKind
	Severity          Severity
	Summary           string
	DaysSinceMovement int
	DaysPastCadence   int
	WaitingDays       int
	Gate              *Gate
}

// BuildIssues derives the prioritized attention list for tasks. Closed tasks
// are skipped. Output is sorted critical, warning, info and keeps source
// order within a severity.
func BuildIssues(tasks []Task, now time.Time, th IssueThresholds) []Issue {
	th = th.normalized()
	out := make([]Issue, 0)
	for _, t := range tasks {
		if !t.IsOpen() {
			continue
		}
		days := DaysSinceMovement(t, now)
		stale := IsStale(t, now)
		base := Issue{TaskID: t.ID, ProjectID: t.ProjectID, DaysSinceMovement: days}

		if stale {
			issue := base
			issue.Kind = IssueOverdue
			issue.DaysPastCadence = days - t.CadenceDays
			issue.Severity = SeverityWarning
			if issue.DaysPastCadence > th.CriticalOverdueDays {
				issue.Severity = SeverityCritical
			}
			issue.Summary = fmt.Sprintf("%d days since movement, cadence %d", days, t.CadenceDays)
			out = append(out, issue)
		}

		gate, gated := t.ActiveGate()
		if gated {
			issue := base
			issue.Kind = IssueGated
			issue.Severity = SeverityWarning
			issue.Gate = &gate
			issue.Summary = "waiting on gate " + gate.Name
			out = append(out, issue)
		}

		if t.Status == StatusCloseRequested && t.CloseRequestedAt != nil {
			issue := base
			issue.Kind = IssueCloseRequested
			issue.WaitingDays = wholeDaysSince(*t.CloseRequestedAt, now)
			issue.Severity = SeverityInfo
			if issue.WaitingDays > th.CloseRequestWarningDays {
				issue.Severity = SeverityWarning
			}
			issue.Summary = fmt.Sprintf("close requested %d days ago", issue.WaitingDays)
			out = append(out, issue)
		}

		if t.Status == StatusOpen && !gated && !stale && days > th.InactiveDays {
			issue := base
			issue.Kind = IssueInactive
			issue.Severity = SeverityInfo
			issue.Summary = fmt.Sprintf("no movement for %d days", days)
			out = append(out, issue)
		}
	}
	SortIssues(out)
	return out
}

// SortIssues orders issues by severity, keeping relative order within a severity.
func SortIssues(issues []Issue) {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		return cmp.Compare(a.Severity.Rank(), b.Severity.Rank())
	})
}
