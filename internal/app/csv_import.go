package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/g3/tornado/internal/domain"
)

// ImportRow reports the outcome of one CSV data row.
type ImportRow struct {
	Line     int
	TaskID   string
	Warnings []string
	Err      string
}

// ImportReport summarizes a CSV import.
type ImportReport struct {
	Created int
	Failed  int
	Rows    []ImportRow
}

// ImportTasksCSV creates tasks in a project from a CSV export of the legacy
// tracker. Columns: description, owners, cadence_days, next_step, gates,
// last_movement_at. Owners are separated by ";". Gates are separated by ";"
// as "name" or "name:owner", with a "[x] " prefix for completed gates.
// Owner names are resolved to contacts at import time; names that do not
// resolve are reported and dropped.
func (s *Service) ImportTasksCSV(ctx context.Context, actor domain.ActorContext, projectID string, r io.Reader) (ImportReport, error) {
	project, err := s.visibleProject(ctx, actor, projectID)
	if err != nil {
		return ImportReport{}, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return ImportReport{}, err
	}
	assignable := domain.FilterContactsByProject(contacts, project, actor)
	resolve := func(name string) (string, bool) {
		for _, c := range assignable {
			if domain.SameName(c.Name, name) {
				return c.ID, true
			}
		}
		return "", false
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return ImportReport{}, fmt.Errorf("%w: read header: %v", ErrInvalidImport, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["description"]; !ok {
		return ImportReport{}, fmt.Errorf("%w: missing description column", ErrInvalidImport)
	}
	field := func(rec []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	ctx = withActor(ctx, actor)
	report := ImportReport{}
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		row := ImportRow{Line: line}
		if err != nil {
			row.Err = err.Error()
			report.Failed++
			report.Rows = append(report.Rows, row)
			continue
		}

		task, warnings, err := s.taskFromRecord(project, actor, func(name string) string { return field(rec, name) }, resolve)
		row.Warnings = warnings
		if err == nil {
			err = s.repo.CreateTask(ctx, task)
		}
		if err != nil {
			row.Err = err.Error()
			report.Failed++
		} else {
			row.TaskID = task.ID
			report.Created++
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

func (s *Service) taskFromRecord(project domain.Project, actor domain.ActorContext, field func(string) string, resolve func(string) (string, bool)) (domain.Task, []string, error) {
	var warnings []string
	now := s.clock()

	cadence := s.cfg.DefaultCadenceDays
	if raw := field("cadence_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return domain.Task{}, nil, domain.ErrInvalidCadence
		}
		cadence = n
	}

	owners := make([]string, 0)
	for _, name := range splitList(field("owners")) {
		id, ok := resolve(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("owner %q not found", name))
			continue
		}
		owners = append(owners, id)
	}

	gates := make([]domain.Gate, 0)
	for _, entry := range splitList(field("gates")) {
		completed := false
		if rest, ok := strings.CutPrefix(entry, "[x]"); ok {
			completed = true
			entry = strings.TrimSpace(rest)
		}
		name, ownerName, _ := strings.Cut(entry, ":")
		ownerID := ""
		if ownerName = strings.TrimSpace(ownerName); ownerName != "" {
			id, ok := resolve(ownerName)
			if ok {
				ownerID = id
			} else {
				warnings = append(warnings, fmt.Sprintf("gate owner %q not found", ownerName))
			}
		}
		gate, err := domain.NewGate(domain.GateInput{ID: s.idGen(), Name: name, OwnerContactID: ownerID})
		if err != nil {
			return domain.Task{}, warnings, err
		}
		if completed {
			ts := now.UTC()
			gate.Completed = true
			gate.CompletedAt = &ts
		}
		gates = append(gates, gate)
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		ProjectID:   project.ID,
		Description: field("description"),
		NextStep:    field("next_step"),
		CadenceDays: cadence,
		OwnerIDs:    owners,
		Gates:       gates,
		CreatedBy:   actor.UserID,
	}, now)
	if err != nil {
		return domain.Task{}, warnings, err
	}
	if raw := field("last_movement_at"); raw != "" {
		ts, err := parseImportTime(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("last_movement_at %q not understood, using now", raw))
		} else {
			task.LastMovementAt = ts
		}
	}
	return task, warnings, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseImportTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time %q", raw)
}
