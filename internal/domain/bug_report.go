package domain

import (
	"slices"
	"strings"
	"time"
)

// BugStatus is the triage state of a bug report.
type BugStatus string

// BugStatus values.
const (
	BugStatusOpen     BugStatus = "open"
	BugStatusResolved BugStatus = "resolved"
)

var validBugStatuses = []BugStatus{BugStatusOpen, BugStatusResolved}

// IsValidBugStatus reports whether the status is supported.
func IsValidBugStatus(status BugStatus) bool {
	return slices.Contains(validBugStatuses, status)
}

// BugReport is an inbox entry filed by a user, optionally with a screenshot.
type BugReport struct {
	ID             string
	ReporterUserID string
	Description    string
	PageURL        string
	ScreenshotKey  string
	Status         BugStatus
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// BugReportInput holds values for bug report creation.
type BugReportInput struct {
	ID             string
	ReporterUserID string
	Description    string
	PageURL        string
	ScreenshotKey  string
}

// NewBugReport constructs an open bug report.
func NewBugReport(in BugReportInput, now time.Time) (BugReport, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return BugReport{}, ErrInvalidID
	}
	reporter := strings.TrimSpace(in.ReporterUserID)
	if reporter == "" {
		return BugReport{}, ErrInvalidID
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return BugReport{}, ErrInvalidDescription
	}
	return BugReport{
		ID:             in.ID,
		ReporterUserID: reporter,
		Description:    description,
		PageURL:        strings.TrimSpace(in.PageURL),
		ScreenshotKey:  strings.TrimSpace(in.ScreenshotKey),
		Status:         BugStatusOpen,
		CreatedAt:      now.UTC(),
	}, nil
}

// Resolve marks the report resolved.
func (b *BugReport) Resolve(now time.Time) error {
	if b.Status == BugStatusResolved {
		return ErrInvalidTransition
	}
	ts := now.UTC()
	b.Status = BugStatusResolved
	b.ResolvedAt = &ts
	return nil
}
