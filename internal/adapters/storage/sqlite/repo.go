package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository is the SQLite-backed app.Repository.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens (and migrates) the database file at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			contact_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			affiliations TEXT NOT NULL DEFAULT '',
			is_vendor INTEGER NOT NULL DEFAULT 0,
			is_private INTEGER NOT NULL DEFAULT 0,
			private_owner_id TEXT NOT NULL DEFAULT '',
			voided INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'shared',
			affiliations TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			shared_contact_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			description TEXT NOT NULL,
			next_step TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			cadence_days INTEGER NOT NULL,
			owner_ids_json TEXT NOT NULL DEFAULT '[]',
			gates_json TEXT NOT NULL DEFAULT '[]',
			last_movement_at TEXT NOT NULL,
			close_requested_at TEXT,
			close_requested_by TEXT NOT NULL DEFAULT '',
			closed_at TEXT,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			body TEXT NOT NULL,
			author_user_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		// change_events outlive their task so deletes stay in the ledger.
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bug_reports (
			id TEXT PRIMARY KEY,
			reporter_user_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			page_url TEXT NOT NULL DEFAULT '',
			screenshot_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			created_at TEXT NOT NULL,
			resolved_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_task_created_at ON notes(task_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_task_created_at ON change_events(task_id, created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// UpsertUser inserts or replaces a user row.
func (r *Repository) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, email, display_name, role, contact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			role = excluded.role,
			contact_id = excluded.contact_id,
			updated_at = excluded.updated_at
	`, u.ID, u.Email, u.DisplayName, string(u.Role), u.ContactID, ts(u.CreatedAt), ts(u.UpdatedAt))
	return err
}

// GetUser returns a user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, contact_id, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers lists users by id.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, display_name, role, contact_id, created_at, updated_at
		FROM users ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateContact inserts a contact.
func (r *Repository) CreateContact(ctx context.Context, c domain.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts(id, name, email, phone, affiliations, is_vendor, is_private, private_owner_id, voided, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Email, c.Phone, c.Affiliations.String(), c.IsVendor, c.IsPrivate, c.PrivateOwnerID, c.Voided, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

// UpdateContact replaces a contact row.
func (r *Repository) UpdateContact(ctx context.Context, c domain.Contact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET name = ?, email = ?, phone = ?, affiliations = ?, is_vendor = ?, is_private = ?, private_owner_id = ?, voided = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Email, c.Phone, c.Affiliations.String(), c.IsVendor, c.IsPrivate, c.PrivateOwnerID, c.Voided, ts(c.UpdatedAt), c.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetContact returns a contact.
func (r *Repository) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, affiliations, is_vendor, is_private, private_owner_id, voided, created_at, updated_at
		FROM contacts WHERE id = ?
	`, id)
	return scanContact(row)
}

// ListContacts lists contacts by name.
func (r *Repository) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, phone, affiliations, is_vendor, is_private, private_owner_id, voided, created_at, updated_at
		FROM contacts ORDER BY name COLLATE NOCASE ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteContact deletes a contact row.
func (r *Repository) DeleteContact(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, slug, name, description, visibility, affiliations, created_by, shared_contact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Slug, p.Name, p.Description, string(p.Visibility), p.Affiliations.String(), p.CreatedBy, p.SharedContactID, ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// UpdateProject replaces a project row.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET slug = ?, name = ?, description = ?, visibility = ?, affiliations = ?, created_by = ?, shared_contact_id = ?, updated_at = ?
		WHERE id = ?
	`, p.Slug, p.Name, p.Description, string(p.Visibility), p.Affiliations.String(), p.CreatedBy, p.SharedContactID, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProject returns a project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, visibility, affiliations, created_by, shared_contact_id, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists projects by creation time.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, description, visibility, affiliations, created_by, shared_contact_id, created_at, updated_at
		FROM projects ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject deletes a project and, by cascade, its tasks.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateBugReport inserts a bug report.
func (r *Repository) CreateBugReport(ctx context.Context, b domain.BugReport) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bug_reports(id, reporter_user_id, description, page_url, screenshot_key, status, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.ReporterUserID, b.Description, b.PageURL, b.ScreenshotKey, string(b.Status), ts(b.CreatedAt), nullableTS(b.ResolvedAt))
	return err
}

// UpdateBugReport updates status fields of a bug report.
func (r *Repository) UpdateBugReport(ctx context.Context, b domain.BugReport) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bug_reports SET description = ?, status = ?, resolved_at = ? WHERE id = ?
	`, b.Description, string(b.Status), nullableTS(b.ResolvedAt), b.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetBugReport returns a bug report.
func (r *Repository) GetBugReport(ctx context.Context, id string) (domain.BugReport, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, reporter_user_id, description, page_url, screenshot_key, status, created_at, resolved_at
		FROM bug_reports WHERE id = ?
	`, id)
	return scanBugReport(row)
}

// ListBugReports lists bug reports newest first.
func (r *Repository) ListBugReports(ctx context.Context) ([]domain.BugReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, reporter_user_id, description, page_url, screenshot_key, status, created_at, resolved_at
		FROM bug_reports ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.BugReport, 0)
	for rows.Next() {
		b, err := scanBugReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u                  domain.User
		role               string
		createdRaw, updRaw string
	)
	if err := s.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.ContactID, &createdRaw, &updRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Role = domain.NormalizeRole(domain.Role(role))
	u.CreatedAt = parseTS(createdRaw)
	u.UpdatedAt = parseTS(updRaw)
	return u, nil
}

func scanContact(s scanner) (domain.Contact, error) {
	var (
		c                  domain.Contact
		affiliations       string
		createdRaw, updRaw string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &affiliations, &c.IsVendor, &c.IsPrivate, &c.PrivateOwnerID, &c.Voided, &createdRaw, &updRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Contact{}, app.ErrNotFound
		}
		return domain.Contact{}, err
	}
	parsed, err := domain.ParseAffiliations(affiliations)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("decode contacts.affiliations: %w", err)
	}
	c.Affiliations = parsed
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updRaw)
	return c, nil
}

func scanProject(s scanner) (domain.Project, error) {
	var (
		p                  domain.Project
		visibility         string
		affiliations       string
		createdRaw, updRaw string
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &visibility, &affiliations, &p.CreatedBy, &p.SharedContactID, &createdRaw, &updRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	parsed, err := domain.ParseAffiliations(affiliations)
	if err != nil {
		return domain.Project{}, fmt.Errorf("decode projects.affiliations: %w", err)
	}
	p.Visibility = domain.NormalizeVisibility(domain.Visibility(visibility))
	p.Affiliations = parsed
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updRaw)
	return p, nil
}

func scanBugReport(s scanner) (domain.BugReport, error) {
	var (
		b          domain.BugReport
		status     string
		createdRaw string
		resolved   sql.NullString
	)
	if err := s.Scan(&b.ID, &b.ReporterUserID, &b.Description, &b.PageURL, &b.ScreenshotKey, &status, &createdRaw, &resolved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BugReport{}, app.ErrNotFound
		}
		return domain.BugReport{}, err
	}
	b.Status = domain.BugStatus(status)
	b.CreatedAt = parseTS(createdRaw)
	b.ResolvedAt = parseNullTS(resolved)
	return b, nil
}

// translateNoRows maps an update or delete that touched nothing to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
