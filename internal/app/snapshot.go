package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/g3/tornado/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tornado.snapshot.v1"

// Snapshot is a portable JSON dump of tracker state.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Users      []SnapshotUser    `json:"users"`
	Contacts   []SnapshotContact `json:"contacts"`
	Projects   []SnapshotProject `json:"projects"`
	Tasks      []SnapshotTask    `json:"tasks"`
	Notes      []SnapshotNote    `json:"notes,omitempty"`
}

// SnapshotUser represents snapshot user data.
type SnapshotUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email,omitempty"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
	ContactID   string      `json:"contact_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// SnapshotContact represents snapshot contact data.
type SnapshotContact struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Affiliations   []string  `json:"affiliations"`
	IsVendor       bool      `json:"is_vendor"`
	IsPrivate      bool      `json:"is_private"`
	PrivateOwnerID string    `json:"private_owner_id,omitempty"`
	Voided         bool      `json:"voided"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SnapshotProject represents snapshot project data.
type SnapshotProject struct {
	ID              string            `json:"id"`
	Slug            string            `json:"slug"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Visibility      domain.Visibility `json:"visibility"`
	Affiliations    []string          `json:"affiliations"`
	CreatedBy       string            `json:"created_by"`
	SharedContactID string            `json:"shared_contact_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SnapshotGate represents one gate inside a snapshot task.
type SnapshotGate struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OwnerContactID string     `json:"owner_contact_id,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SnapshotTask represents snapshot task data.
type SnapshotTask struct {
	ID               string            `json:"id"`
	ProjectID        string            `json:"project_id"`
	Description      string            `json:"description"`
	NextStep         string            `json:"next_step,omitempty"`
	Status           domain.TaskStatus `json:"status"`
	CadenceDays      int               `json:"cadence_days"`
	OwnerIDs         []string          `json:"owner_ids"`
	Gates            []SnapshotGate    `json:"gates"`
	LastMovementAt   time.Time         `json:"last_movement_at"`
	CloseRequestedAt *time.Time        `json:"close_requested_at,omitempty"`
	CloseRequestedBy string            `json:"close_requested_by,omitempty"`
	ClosedAt         *time.Time        `json:"closed_at,omitempty"`
	CreatedBy        string            `json:"created_by,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// SnapshotNote represents snapshot note data.
type SnapshotNote struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	Body         string    `json:"body"`
	AuthorUserID string    `json:"author_user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExportSnapshot dumps every user, contact, project, task, and note; admin only.
func (s *Service) ExportSnapshot(ctx context.Context, actor domain.ActorContext) (Snapshot, error) {
	if !actor.IsAdmin() {
		return Snapshot{}, ErrAdminRequired
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, "")
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Users:      make([]SnapshotUser, 0, len(users)),
		Contacts:   make([]SnapshotContact, 0, len(contacts)),
		Projects:   make([]SnapshotProject, 0, len(projects)),
		Tasks:      make([]SnapshotTask, 0, len(tasks)),
		Notes:      make([]SnapshotNote, 0),
	}
	for _, u := range users {
		snap.Users = append(snap.Users, snapshotUserFromDomain(u))
	}
	for _, c := range contacts {
		snap.Contacts = append(snap.Contacts, snapshotContactFromDomain(c))
	}
	for _, p := range projects {
		snap.Projects = append(snap.Projects, snapshotProjectFromDomain(p))
	}
	for _, t := range tasks {
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(t))
		notes, err := s.repo.ListNotes(ctx, t.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, n := range notes {
			snap.Notes = append(snap.Notes, SnapshotNote{
				ID:           n.ID,
				TaskID:       n.TaskID,
				Body:         n.Body,
				AuthorUserID: n.AuthorUserID,
				CreatedAt:    n.CreatedAt,
			})
		}
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts snapshot rows; admin only. Notes that already exist are skipped.
func (s *Service) ImportSnapshot(ctx context.Context, actor domain.ActorContext, snap Snapshot) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()
	ctx = withActor(ctx, actor)

	for _, c := range snap.Contacts {
		contact, err := c.toDomain()
		if err != nil {
			return fmt.Errorf("contact %s: %w", c.ID, err)
		}
		if err := upsert(ctx, s.repo.GetContact, s.repo.CreateContact, s.repo.UpdateContact, contact.ID, contact); err != nil {
			return err
		}
	}
	for _, u := range snap.Users {
		if err := s.repo.UpsertUser(ctx, u.toDomain()); err != nil {
			return err
		}
	}
	for _, p := range snap.Projects {
		project := p.toDomain()
		if err := upsert(ctx, s.repo.GetProject, s.repo.CreateProject, s.repo.UpdateProject, project.ID, project); err != nil {
			return err
		}
	}
	for _, t := range snap.Tasks {
		task := t.toDomain()
		if err := upsert(ctx, s.repo.GetTask, s.repo.CreateTask, s.repo.UpdateTask, task.ID, task); err != nil {
			return err
		}
	}

	existingNotes := map[string]struct{}{}
	for _, t := range snap.Tasks {
		notes, err := s.repo.ListNotes(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			existingNotes[n.ID] = struct{}{}
		}
	}
	for _, n := range snap.Notes {
		if _, ok := existingNotes[n.ID]; ok {
			continue
		}
		note := domain.Note{ID: n.ID, TaskID: n.TaskID, Body: n.Body, AuthorUserID: n.AuthorUserID, CreatedAt: n.CreatedAt.UTC()}
		if err := s.repo.CreateNote(ctx, note); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks ids, required fields, and references.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}

	contactIDs := map[string]struct{}{}
	for i, c := range s.Contacts {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: contacts[%d] requires id and name", ErrInvalidSnapshot, i)
		}
		if _, exists := contactIDs[c.ID]; exists {
			return fmt.Errorf("%w: duplicate contact id %q", ErrInvalidSnapshot, c.ID)
		}
		contactIDs[c.ID] = struct{}{}
	}

	userIDs := map[string]struct{}{}
	for i, u := range s.Users {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("%w: users[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, exists := userIDs[u.ID]; exists {
			return fmt.Errorf("%w: duplicate user id %q", ErrInvalidSnapshot, u.ID)
		}
		if u.ContactID != "" {
			if _, ok := contactIDs[u.ContactID]; !ok {
				return fmt.Errorf("%w: user %q references unknown contact %q", ErrInvalidSnapshot, u.ID, u.ContactID)
			}
		}
		userIDs[u.ID] = struct{}{}
	}

	projectIDs := map[string]struct{}{}
	for i, p := range s.Projects {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: projects[%d] requires id and name", ErrInvalidSnapshot, i)
		}
		if !domain.IsValidVisibility(p.Visibility) {
			return fmt.Errorf("%w: project %q has visibility %q", ErrInvalidSnapshot, p.ID, p.Visibility)
		}
		if _, exists := projectIDs[p.ID]; exists {
			return fmt.Errorf("%w: duplicate project id %q", ErrInvalidSnapshot, p.ID)
		}
		projectIDs[p.ID] = struct{}{}
	}

	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Description) == "" {
			return fmt.Errorf("%w: tasks[%d] requires id and description", ErrInvalidSnapshot, i)
		}
		if _, ok := projectIDs[t.ProjectID]; !ok {
			return fmt.Errorf("%w: task %q references unknown project %q", ErrInvalidSnapshot, t.ID, t.ProjectID)
		}
		if !domain.IsValidTaskStatus(t.Status) {
			return fmt.Errorf("%w: task %q has status %q", ErrInvalidSnapshot, t.ID, t.Status)
		}
		if t.CadenceDays <= 0 {
			return fmt.Errorf("%w: task %q has cadence %d", ErrInvalidSnapshot, t.ID, t.CadenceDays)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, t.ID)
		}
		taskIDs[t.ID] = struct{}{}
	}

	for i, n := range s.Notes {
		if strings.TrimSpace(n.ID) == "" || strings.TrimSpace(n.Body) == "" {
			return fmt.Errorf("%w: notes[%d] requires id and body", ErrInvalidSnapshot, i)
		}
		if _, ok := taskIDs[n.TaskID]; !ok {
			return fmt.Errorf("%w: note %q references unknown task %q", ErrInvalidSnapshot, n.ID, n.TaskID)
		}
	}
	return nil
}

// upsert updates a row that exists and creates it otherwise.
func upsert[T any](ctx context.Context, get func(context.Context, string) (T, error), create, update func(context.Context, T) error, id string, value T) error {
	if _, err := get(ctx, id); err == nil {
		return update(ctx, value)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return create(ctx, value)
}

func (s *Snapshot) sort() {
	slices.SortFunc(s.Users, func(a, b SnapshotUser) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Contacts, func(a, b SnapshotContact) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Projects, func(a, b SnapshotProject) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Tasks, func(a, b SnapshotTask) int {
		if c := strings.Compare(a.ProjectID, b.ProjectID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortFunc(s.Notes, func(a, b SnapshotNote) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func snapshotUserFromDomain(u domain.User) SnapshotUser {
	return SnapshotUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		ContactID:   u.ContactID,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func snapshotContactFromDomain(c domain.Contact) SnapshotContact {
	return SnapshotContact{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		Affiliations:   c.Affiliations.Strings(),
		IsVendor:       c.IsVendor,
		IsPrivate:      c.IsPrivate,
		PrivateOwnerID: c.PrivateOwnerID,
		Voided:         c.Voided,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func snapshotProjectFromDomain(p domain.Project) SnapshotProject {
	return SnapshotProject{
		ID:              p.ID,
		Slug:            p.Slug,
		Name:            p.Name,
		Description:     p.Description,
		Visibility:      p.Visibility,
		Affiliations:    p.Affiliations.Strings(),
		CreatedBy:       p.CreatedBy,
		SharedContactID: p.SharedContactID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	gates := make([]SnapshotGate, 0, len(t.Gates))
	for _, g := range t.Gates {
		gates = append(gates, SnapshotGate{
			ID:             g.ID,
			Name:           g.Name,
			OwnerContactID: g.OwnerContactID,
			Completed:      g.Completed,
			CompletedAt:    copyTimePtr(g.CompletedAt),
		})
	}
	return SnapshotTask{
		ID:               t.ID,
		ProjectID:        t.ProjectID,
		Description:      t.Description,
		NextStep:         t.NextStep,
		Status:           t.Status,
		CadenceDays:      t.CadenceDays,
		OwnerIDs:         slices.Clone(t.OwnerIDs),
		Gates:            gates,
		LastMovementAt:   t.LastMovementAt,
		CloseRequestedAt: copyTimePtr(t.CloseRequestedAt),
		CloseRequestedBy: t.CloseRequestedBy,
		ClosedAt:         copyTimePtr(t.ClosedAt),
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func (u SnapshotUser) toDomain() domain.User {
	return domain.User{
		ID:          strings.TrimSpace(u.ID),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        domain.NormalizeRole(u.Role),
		ContactID:   u.ContactID,
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
}

func (c SnapshotContact) toDomain() (domain.Contact, error) {
	ids := make([]domain.CompanyID, 0, len(c.Affiliations))
	for _, a := range c.Affiliations {
		ids = append(ids, domain.CompanyID(a))
	}
	affiliations, err := domain.NewAffiliations(ids...)
	if err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{
		ID:             strings.TrimSpace(c.ID),
		Name:           strings.TrimSpace(c.Name),
		Email:          c.Email,
		Phone:          c.Phone,
		Affiliations:   affiliations,
		IsVendor:       c.IsVendor,
		IsPrivate:      c.IsPrivate,
		PrivateOwnerID: c.PrivateOwnerID,
		Voided:         c.Voided,
		CreatedAt:      c.CreatedAt.UTC(),
		UpdatedAt:      c.UpdatedAt.UTC(),
	}, nil
}

func (p SnapshotProject) toDomain() domain.Project {
	ids := make([]domain.CompanyID, 0, len(p.Affiliations))
	for _, a := range p.Affiliations {
		ids = append(ids, domain.CompanyID(a))
	}
	affiliations, _ := domain.NewAffiliations(ids...)
	return domain.Project{
		ID:              strings.TrimSpace(p.ID),
		Slug:            p.Slug,
		Name:            strings.TrimSpace(p.Name),
		Description:     p.Description,
		Visibility:      domain.NormalizeVisibility(p.Visibility),
		Affiliations:    affiliations,
		CreatedBy:       p.CreatedBy,
		SharedContactID: p.SharedContactID,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func (t SnapshotTask) toDomain() domain.Task {
	gates := make([]domain.Gate, 0, len(t.Gates))
	for _, g := range t.Gates {
		gates = append(gates, domain.Gate{
			ID:             g.ID,
			Name:           g.Name,
			OwnerContactID: g.OwnerContactID,
			Completed:      g.Completed,
			CompletedAt:    copyTimePtr(g.CompletedAt),
		})
	}
	return domain.Task{
		ID:               strings.TrimSpace(t.ID),
		ProjectID:        strings.TrimSpace(t.ProjectID),
		Description:      t.Description,
		NextStep:         t.NextStep,
		Status:           domain.NormalizeTaskStatus(t.Status),
		CadenceDays:      t.CadenceDays,
		OwnerIDs:         slices.Clone(t.OwnerIDs),
		Gates:            gates,
		LastMovementAt:   t.LastMovementAt.UTC(),
		CloseRequestedAt: copyTimePtr(t.CloseRequestedAt),
		CloseRequestedBy: t.CloseRequestedBy,
		ClosedAt:         copyTimePtr(t.ClosedAt),
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	ts := in.UTC()
	return &ts
}
