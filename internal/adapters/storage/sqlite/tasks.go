package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

const taskColumns = `id, project_id, description, next_step, status, cadence_days, owner_ids_json, gates_json,
	last_movement_at, close_requested_at, close_requested_by, closed_at, created_by, created_at, updated_at`

// gateRow is the JSON shape of one gate in tasks.gates_json.
type gateRow struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OwnerContactID string     `json:"owner_contact_id,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// CreateTask inserts a task and its create event in one transaction.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	ownersJSON, gatesJSON, err := encodeTaskLists(t)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks(`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.ProjectID,
		t.Description,
		t.NextStep,
		string(t.Status),
		t.CadenceDays,
		ownersJSON,
		gatesJSON,
		ts(t.LastMovementAt),
		nullableTS(t.CloseRequestedAt),
		t.CloseRequestedBy,
		nullableTS(t.ClosedAt),
		t.CreatedBy,
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	if err != nil {
		return err
	}

	err = insertChangeEvent(ctx, tx, app.LedgerEvent(ctx, t, domain.ChangeOperationCreate, map[string]string{
		"description": t.Description,
		"cadence":     strconv.Itoa(t.CadenceDays),
	}, t.CreatedAt))
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// UpdateTask replaces a task row and records what kind of change it was.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	ownersJSON, gatesJSON, err := encodeTaskLists(t)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getTaskByID(ctx, tx, t.ID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET project_id = ?, description = ?, next_step = ?, status = ?, cadence_days = ?, owner_ids_json = ?, gates_json = ?,
			last_movement_at = ?, close_requested_at = ?, close_requested_by = ?, closed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		t.ProjectID,
		t.Description,
		t.NextStep,
		string(t.Status),
		t.CadenceDays,
		ownersJSON,
		gatesJSON,
		ts(t.LastMovementAt),
		nullableTS(t.CloseRequestedAt),
		t.CloseRequestedBy,
		nullableTS(t.ClosedAt),
		ts(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	op := domain.ClassifyTaskChange(prev, t)
	err = insertChangeEvent(ctx, tx, app.LedgerEvent(ctx, t, op, domain.DescribeTaskChange(op, prev, t), t.UpdatedAt))
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetTask returns a task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// ListTasks lists tasks in creation order; an empty projectID lists all.
func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// DeleteTask deletes a task and its notes, keeping a delete event.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	task, err := getTaskByID(ctx, tx, id)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = insertChangeEvent(ctx, tx, app.LedgerEvent(ctx, task, domain.ChangeOperationDelete, map[string]string{
		"description": task.Description,
	}, time.Now()))
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// CreateNote inserts a note and a note event in one transaction.
func (r *Repository) CreateNote(ctx context.Context, n domain.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	task, err := getTaskByID(ctx, tx, n.TaskID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes(id, task_id, body, author_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.TaskID, n.Body, n.AuthorUserID, ts(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	err = insertChangeEvent(ctx, tx, app.LedgerEvent(ctx, task, domain.ChangeOperationNote, map[string]string{
		"note_id": n.ID,
	}, n.CreatedAt))
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// ListNotes lists a task's notes oldest first.
func (r *Repository) ListNotes(ctx context.Context, taskID string) ([]domain.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, body, author_user_id, created_at
		FROM notes
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Note, 0)
	for rows.Next() {
		var (
			n          domain.Note
			createdRaw string
		)
		if err := rows.Scan(&n.ID, &n.TaskID, &n.Body, &n.AuthorUserID, &createdRaw); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTS(createdRaw)
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListTaskChangeEvents lists a task's ledger, newest first.
func (r *Repository) ListTaskChangeEvents(ctx context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, task_id, operation, actor_id, metadata_json, created_at
		FROM change_events
		WHERE task_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.ProjectID, &event.TaskID, &opRaw, &event.ActorID, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = normalizeChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getTaskByID(ctx context.Context, q queryRower, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(project_id, task_id, operation, actor_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.ProjectID,
		event.TaskID,
		string(event.Operation),
		event.ActorID,
		string(metadataJSON),
		ts(event.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

func normalizeChangeOperation(raw string) domain.ChangeOperation {
	switch op := domain.ChangeOperation(strings.TrimSpace(strings.ToLower(raw))); op {
	case domain.ChangeOperationCreate,
		domain.ChangeOperationUpdate,
		domain.ChangeOperationNote,
		domain.ChangeOperationGate,
		domain.ChangeOperationStatus,
		domain.ChangeOperationOwner,
		domain.ChangeOperationDelete:
		return op
	default:
		return domain.ChangeOperationUpdate
	}
}

func encodeTaskLists(t domain.Task) (string, string, error) {
	owners := t.OwnerIDs
	if owners == nil {
		owners = []string{}
	}
	ownersJSON, err := json.Marshal(owners)
	if err != nil {
		return "", "", fmt.Errorf("encode task owners: %w", err)
	}
	gates := make([]gateRow, 0, len(t.Gates))
	for _, g := range t.Gates {
		gates = append(gates, gateRow{
			ID:             g.ID,
			Name:           g.Name,
			OwnerContactID: g.OwnerContactID,
			Completed:      g.Completed,
			CompletedAt:    g.CompletedAt,
		})
	}
	gatesJSON, err := json.Marshal(gates)
	if err != nil {
		return "", "", fmt.Errorf("encode task gates: %w", err)
	}
	return string(ownersJSON), string(gatesJSON), nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t                                domain.Task
		status, ownersRaw, gatesRaw      string
		movedRaw, createdRaw, updatedRaw string
		closeRequestedAt, closedAt       sql.NullString
	)
	if err := s.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Description,
		&t.NextStep,
		&status,
		&t.CadenceDays,
		&ownersRaw,
		&gatesRaw,
		&movedRaw,
		&closeRequestedAt,
		&t.CloseRequestedBy,
		&closedAt,
		&t.CreatedBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.NormalizeTaskStatus(domain.TaskStatus(status))
	if err := json.Unmarshal([]byte(ownersRaw), &t.OwnerIDs); err != nil {
		return domain.Task{}, fmt.Errorf("decode tasks.owner_ids_json: %w", err)
	}
	var gates []gateRow
	if err := json.Unmarshal([]byte(gatesRaw), &gates); err != nil {
		return domain.Task{}, fmt.Errorf("decode tasks.gates_json: %w", err)
	}
	t.Gates = make([]domain.Gate, 0, len(gates))
	for _, g := range gates {
		t.Gates = append(t.Gates, domain.Gate{
			ID:             g.ID,
			Name:           g.Name,
			OwnerContactID: g.OwnerContactID,
			Completed:      g.Completed,
			CompletedAt:    g.CompletedAt,
		})
	}
	t.LastMovementAt = parseTS(movedRaw)
	t.CloseRequestedAt = parseNullTS(closeRequestedAt)
	t.ClosedAt = parseNullTS(closedAt)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}
