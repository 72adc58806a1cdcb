// Package postgres is the gorm-backed app.Repository used for shared
// deployments. Any gorm dialector works; production opens Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

// Repository persists tracker state through gorm.
type Repository struct {
	db *gorm.DB
}

var _ app.Repository = (*Repository)(nil)

// Open connects to Postgres using dsn and migrates the schema.
func Open(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	return OpenDialector(postgres.Open(dsn))
}

// OpenDialector opens a repository over any gorm dialector.
func OpenDialector(dialector gorm.Dialector) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := db.AutoMigrate(
		&userRow{},
		&contactRow{},
		&projectRow{},
		&taskRow{},
		&noteRow{},
		&changeEventRow{},
		&bugReportRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate gorm: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// UpsertUser inserts or replaces a user.
func (r *Repository) UpsertUser(ctx context.Context, u domain.User) error {
	return r.db.WithContext(ctx).Save(ptr(toUserRow(u))).Error
}

// GetUser returns a user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.User{}, translate(err)
	}
	return row.toDomain(), nil
}

// ListUsers lists users by id.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CreateContact inserts a contact.
func (r *Repository) CreateContact(ctx context.Context, c domain.Contact) error {
	return r.db.WithContext(ctx).Create(ptr(toContactRow(c))).Error
}

// UpdateContact replaces a contact.
func (r *Repository) UpdateContact(ctx context.Context, c domain.Contact) error {
	row := toContactRow(c)
	return affected(r.db.WithContext(ctx).Model(&contactRow{}).Where("id = ?", c.ID).Select("*").Updates(&row))
}

// GetContact returns a contact.
func (r *Repository) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	var row contactRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Contact{}, translate(err)
	}
	return row.toDomain()
}

// ListContacts lists contacts by name.
func (r *Repository) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var rows []contactRow
	if err := r.db.WithContext(ctx).Order("LOWER(name) ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Contact, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode contact %s: %w", row.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteContact deletes a contact.
func (r *Repository) DeleteContact(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&contactRow{}, "id = ?", id))
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	return r.db.WithContext(ctx).Create(ptr(toProjectRow(p))).Error
}

// UpdateProject replaces a project.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	row := toProjectRow(p)
	return affected(r.db.WithContext(ctx).Model(&projectRow{}).Where("id = ?", p.ID).Select("*").Updates(&row))
}

// GetProject returns a project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var row projectRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Project{}, translate(err)
	}
	return row.toDomain()
}

// ListProjects lists projects by creation time.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var rows []projectRow
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode project %s: %w", row.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// DeleteProject deletes a project with its tasks and their notes.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&taskRow{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&noteRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&taskRow{}).Error; err != nil {
			return err
		}
		return affected(tx.Delete(&projectRow{}, "id = ?", id))
	})
}

// CreateTask inserts a task and its create event in one transaction.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ptr(toTaskRow(t))).Error; err != nil {
			return err
		}
		return insertEvent(tx, app.LedgerEvent(ctx, t, domain.ChangeOperationCreate, map[string]string{
			"description": t.Description,
			"cadence":     strconv.Itoa(t.CadenceDays),
		}, t.CreatedAt))
	})
}

// UpdateTask replaces a task and records the classified change.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prevRow taskRow
		if err := tx.First(&prevRow, "id = ?", t.ID).Error; err != nil {
			return translate(err)
		}
		row := toTaskRow(t)
		if err := affected(tx.Model(&taskRow{}).Where("id = ?", t.ID).Select("*").Updates(&row)); err != nil {
			return err
		}
		prev := prevRow.toDomain()
		op := domain.ClassifyTaskChange(prev, t)
		return insertEvent(tx, app.LedgerEvent(ctx, t, op, domain.DescribeTaskChange(op, prev, t), t.UpdatedAt))
	})
}

// GetTask returns a task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var row taskRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Task{}, translate(err)
	}
	return row.toDomain(), nil
}

// ListTasks lists tasks in creation order; an empty projectID lists all.
func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	q := r.db.WithContext(ctx).Order("created_at ASC, id ASC")
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DeleteTask deletes a task and its notes, keeping a delete event.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row taskRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("task_id = ?", id).Delete(&noteRow{}).Error; err != nil {
			return err
		}
		if err := affected(tx.Delete(&taskRow{}, "id = ?", id)); err != nil {
			return err
		}
		return insertEvent(tx, app.LedgerEvent(ctx, row.toDomain(), domain.ChangeOperationDelete, map[string]string{
			"description": row.Description,
		}, time.Now()))
	})
}

// CreateNote inserts a note and a note event in one transaction.
func (r *Repository) CreateNote(ctx context.Context, n domain.Note) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task taskRow
		if err := tx.First(&task, "id = ?", n.TaskID).Error; err != nil {
			return translate(err)
		}
		row := noteRow{ID: n.ID, TaskID: n.TaskID, Body: n.Body, AuthorUserID: n.AuthorUserID, CreatedAt: n.CreatedAt.UTC()}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return insertEvent(tx, app.LedgerEvent(ctx, task.toDomain(), domain.ChangeOperationNote, map[string]string{
			"note_id": n.ID,
		}, n.CreatedAt))
	})
}

// ListNotes lists a task's notes oldest first.
func (r *Repository) ListNotes(ctx context.Context, taskID string) ([]domain.Note, error) {
	var rows []noteRow
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Note, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Note{
			ID:           row.ID,
			TaskID:       row.TaskID,
			Body:         row.Body,
			AuthorUserID: row.AuthorUserID,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// ListTaskChangeEvents lists a task's ledger, newest first.
func (r *Repository) ListTaskChangeEvents(ctx context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []changeEventRow
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChangeEvent, 0, len(rows))
	for _, row := range rows {
		meta := row.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		out = append(out, domain.ChangeEvent{
			ID:         row.ID,
			ProjectID:  row.ProjectID,
			TaskID:     row.TaskID,
			Operation:  domain.ChangeOperation(row.Operation),
			ActorID:    row.ActorID,
			Metadata:   meta,
			OccurredAt: row.OccurredAt.UTC(),
		})
	}
	return out, nil
}

// CreateBugReport inserts a bug report.
func (r *Repository) CreateBugReport(ctx context.Context, b domain.BugReport) error {
	return r.db.WithContext(ctx).Create(ptr(toBugReportRow(b))).Error
}

// UpdateBugReport replaces a bug report.
func (r *Repository) UpdateBugReport(ctx context.Context, b domain.BugReport) error {
	row := toBugReportRow(b)
	return affected(r.db.WithContext(ctx).Model(&bugReportRow{}).Where("id = ?", b.ID).Select("*").Updates(&row))
}

// GetBugReport returns a bug report.
func (r *Repository) GetBugReport(ctx context.Context, id string) (domain.BugReport, error) {
	var row bugReportRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.BugReport{}, translate(err)
	}
	return row.toDomain(), nil
}

// ListBugReports lists bug reports newest first.
func (r *Repository) ListBugReports(ctx context.Context) ([]domain.BugReport, error) {
	var rows []bugReportRow
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BugReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func insertEvent(tx *gorm.DB, event domain.ChangeEvent) error {
	row := changeEventRow{
		ProjectID:  event.ProjectID,
		TaskID:     event.TaskID,
		Operation:  string(event.Operation),
		ActorID:    event.ActorID,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt.UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return app.ErrNotFound
	}
	return err
}

// affected maps a write that matched no rows to app.ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
