// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"errors"
	"time"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnauthenticated reports a missing or rejected bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden reports an authenticated caller acting outside its role.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports writes that collide with existing state.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports an optional backend that is not configured.
var ErrUnavailable = errors.New("unavailable")

// Actor describes the caller a request runs as.
type Actor struct {
	UserID         string   `json:"user_id"`
	ContactID      string   `json:"contact_id,omitempty"`
	Role           string   `json:"role"`
	Affiliations   []string `json:"affiliations"`
	IsVendor       bool     `json:"is_vendor"`
	ImpersonatorID string   `json:"impersonator_id,omitempty"`
}

// Project is the transport shape of a project.
type Project struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Visibility      string    `json:"visibility"`
	Affiliations    []string  `json:"affiliations"`
	CreatedBy       string    `json:"created_by"`
	SharedContactID string    `json:"shared_contact_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Contact is the transport shape of a contact.
type Contact struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Affiliations []string  `json:"affiliations"`
	IsVendor     bool      `json:"is_vendor"`
	IsPrivate    bool      `json:"is_private"`
	Voided       bool      `json:"voided"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContactRef names one owner on a task.
type ContactRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Gate is one gate with its owner resolved.
type Gate struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OwnerContactID string     `json:"owner_contact_id,omitempty"`
	OwnerName      string     `json:"owner_name,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Active         bool       `json:"active"`
}

// Task is a task with the derived fields list views render.
type Task struct {
	ID                string       `json:"id"`
	ProjectID         string       `json:"project_id"`
	ProjectName       string       `json:"project_name"`
	Description       string       `json:"description"`
	NextStep          string       `json:"next_step,omitempty"`
	Status            string       `json:"status"`
	CadenceDays       int          `json:"cadence_days"`
	Owners            []ContactRef `json:"owners"`
	Gates             []Gate       `json:"gates"`
	Gated             bool         `json:"gated"`
	ActiveGate        *Gate        `json:"active_gate,omitempty"`
	DaysSinceMovement int          `json:"days_since_movement"`
	IsStale           bool         `json:"is_stale"`
	LastMovementAt    time.Time    `json:"last_movement_at"`
	CloseRequestedAt  *time.Time   `json:"close_requested_at,omitempty"`
	CloseRequestedBy  string       `json:"close_requested_by,omitempty"`
	ClosedAt          *time.Time   `json:"closed_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Note is one task note.
type Note struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	Body         string    `json:"body"`
	AuthorUserID string    `json:"author_user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityEvent is one entry of a task's change ledger.
type ActivityEvent struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"task_id"`
	Operation  string            `json:"operation"`
	ActorID    string            `json:"actor_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Issue is one dashboard row.
type Issue struct {
	TaskID            string   `json:"task_id"`
	ProjectID         string   `json:"project_id"`
	ProjectName       string   `json:"project_name"`
	TaskDescription   string   `json:"task_description"`
	OwnerNames        []string `json:"owner_names"`
	Kind              string   `json:"kind"`
	Severity          string   `json:"severity"`
	Summary           string   `json:"summary"`
	DaysSinceMovement int      `json:"days_since_movement"`
	DaysPastCadence   int      `json:"days_past_cadence,omitempty"`
	WaitingDays       int      `json:"waiting_days,omitempty"`
	GateName          string   `json:"gate_name,omitempty"`
	GateOwnerName     string   `json:"gate_owner_name,omitempty"`
}

// MergeResult reports what a contact merge touched.
type MergeResult struct {
	Target        Contact `json:"target"`
	TasksUpdated  int     `json:"tasks_updated"`
	UsersRelinked int     `json:"users_relinked"`
}

// BugReport is one bug inbox entry.
type BugReport struct {
	ID             string     `json:"id"`
	ReporterUserID string     `json:"reporter_user_id"`
	Description    string     `json:"description"`
	PageURL        string     `json:"page_url,omitempty"`
	Status         string     `json:"status"`
	ScreenshotURL  string     `json:"screenshot_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ImpersonationGrant is a short-lived token that acts as another user.
type ImpersonationGrant struct {
	Token     string    `json:"token"`
	Actor     Actor     `json:"actor"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateProjectRequest holds values for project creation.
type CreateProjectRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=4000"`
	Visibility      string   `json:"visibility" validate:"omitempty,oneof=shared personal one_on_one"`
	Affiliations    []string `json:"affiliations" validate:"dive,required"`
	SharedContactID string   `json:"shared_contact_id"`
}

// UpdateProjectRequest holds optional project changes.
type UpdateProjectRequest struct {
	Name            *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string   `json:"description" validate:"omitempty,max=4000"`
	Visibility      *string   `json:"visibility" validate:"omitempty,oneof=shared personal one_on_one"`
	Affiliations    *[]string `json:"affiliations"`
	SharedContactID *string   `json:"shared_contact_id"`
}

// CreateContactRequest holds values for contact creation.
type CreateContactRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Email        string   `json:"email" validate:"omitempty,email"`
	Phone        string   `json:"phone" validate:"max=50"`
	Affiliations []string `json:"affiliations" validate:"dive,required"`
	IsVendor     bool     `json:"is_vendor"`
	IsPrivate    bool     `json:"is_private"`
}

// UpdateContactRequest holds optional contact changes. Companies maps a
// company id to whether the contact is affiliated with it.
type UpdateContactRequest struct {
	Name      *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Email     *string         `json:"email" validate:"omitempty,email"`
	Phone     *string         `json:"phone" validate:"omitempty,max=50"`
	Companies map[string]bool `json:"companies"`
	IsVendor  *bool           `json:"is_vendor"`
	IsPrivate *bool           `json:"is_private"`
}

// GateRequest describes a gate to add.
type GateRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	OwnerContactID string `json:"owner_contact_id"`
	Position       *int   `json:"position" validate:"omitempty,min=0"`
}

// CreateTaskRequest holds values for task creation.
type CreateTaskRequest struct {
	ProjectID   string        `json:"project_id" validate:"required"`
	Description string        `json:"description" validate:"required,max=2000"`
	NextStep    string        `json:"next_step" validate:"max=2000"`
	CadenceDays int           `json:"cadence_days" validate:"min=0,max=365"`
	OwnerIDs    []string      `json:"owner_ids" validate:"dive,required"`
	Gates       []GateRequest `json:"gates" validate:"dive"`
}

// UpdateTaskRequest holds optional task changes.
type UpdateTaskRequest struct {
	Description *string `json:"description" validate:"omitempty,min=1,max=2000"`
	NextStep    *string `json:"next_step" validate:"omitempty,max=2000"`
	CadenceDays *int    `json:"cadence_days" validate:"omitempty,min=1,max=365"`
}

// ListTasksRequest filters the task list.
type ListTasksRequest struct {
	ProjectID     string `json:"project_id"`
	IncludeClosed bool   `json:"include_closed"`
	StaleOnly     bool   `json:"stale_only"`
}

// NoteRequest holds a note body.
type NoteRequest struct {
	Body string `json:"body" validate:"required,max=20000"`
}

// OwnerRequest names a contact to assign.
type OwnerRequest struct {
	ContactID string `json:"contact_id" validate:"required"`
}

// MergeContactRequest names the surviving contact of a merge.
type MergeContactRequest struct {
	TargetID string `json:"target_id" validate:"required"`
}

// VoidContactRequest toggles the voided flag.
type VoidContactRequest struct {
	Voided bool `json:"voided"`
}

// ImpersonateRequest names the user an admin wants to act as.
type ImpersonateRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// BugReportRequest holds a bug report. Screenshot is base64 in JSON.
type BugReportRequest struct {
	Description           string `json:"description" validate:"required,max=4000"`
	PageURL               string `json:"page_url" validate:"omitempty,url"`
	Screenshot            []byte `json:"screenshot"`
	ScreenshotContentType string `json:"screenshot_content_type" validate:"omitempty,oneof=image/png image/jpeg image/webp"`
}

func mapActor(a domain.ActorContext) Actor {
	return Actor{
		UserID:         a.UserID,
		ContactID:      a.ContactID,
		Role:           string(a.Role),
		Affiliations:   companyStrings(a.Affiliations),
		IsVendor:       a.IsVendor,
		ImpersonatorID: a.ImpersonatorID,
	}
}

func mapProject(p domain.Project) Project {
	return Project{
		ID:              p.ID,
		Slug:            p.Slug,
		Name:            p.Name,
		Description:     p.Description,
		Visibility:      string(p.Visibility),
		Affiliations:    companyStrings(p.Affiliations),
		CreatedBy:       p.CreatedBy,
		SharedContactID: p.SharedContactID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func mapContact(c domain.Contact) Contact {
	return Contact{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Affiliations: companyStrings(c.Affiliations),
		IsVendor:     c.IsVendor,
		IsPrivate:    c.IsPrivate,
		Voided:       c.Voided,
		UpdatedAt:    c.UpdatedAt,
	}
}

func mapGate(g app.GateView) Gate {
	return Gate{
		ID:             g.ID,
		Name:           g.Name,
		OwnerContactID: g.OwnerContactID,
		OwnerName:      g.OwnerName,
		Completed:      g.Completed,
		CompletedAt:    g.CompletedAt,
		Active:         g.Active,
	}
}

func mapTask(v app.TaskView) Task {
	t := v.Task
	out := Task{
		ID:                t.ID,
		ProjectID:         t.ProjectID,
		ProjectName:       v.ProjectName,
		Description:       t.Description,
		NextStep:          t.NextStep,
		Status:            string(t.Status),
		CadenceDays:       t.CadenceDays,
		Owners:            make([]ContactRef, 0, len(v.Owners)),
		Gates:             make([]Gate, 0, len(v.Gates)),
		DaysSinceMovement: v.DaysSinceMovement,
		IsStale:           v.IsStale,
		LastMovementAt:    t.LastMovementAt,
		CloseRequestedAt:  t.CloseRequestedAt,
		CloseRequestedBy:  t.CloseRequestedBy,
		ClosedAt:          t.ClosedAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	for _, owner := range v.Owners {
		out.Owners = append(out.Owners, ContactRef{ID: owner.ID, Name: owner.Name})
	}
	for _, gate := range v.Gates {
		out.Gates = append(out.Gates, mapGate(gate))
	}
	if v.ActiveGate != nil {
		active := mapGate(*v.ActiveGate)
		out.ActiveGate = &active
		out.Gated = true
	}
	return out
}

func mapNote(n domain.Note) Note {
	return Note{
		ID:           n.ID,
		TaskID:       n.TaskID,
		Body:         n.Body,
		AuthorUserID: n.AuthorUserID,
		CreatedAt:    n.CreatedAt,
	}
}

func mapEvent(e domain.ChangeEvent) ActivityEvent {
	return ActivityEvent{
		ID:         e.ID,
		TaskID:     e.TaskID,
		Operation:  string(e.Operation),
		ActorID:    e.ActorID,
		Metadata:   e.Metadata,
		OccurredAt: e.OccurredAt,
	}
}

func mapIssue(v app.IssueView) Issue {
	out := Issue{
		TaskID:            v.TaskID,
		ProjectID:         v.ProjectID,
		ProjectName:       v.ProjectName,
		TaskDescription:   v.TaskDescription,
		OwnerNames:        append([]string{}, v.OwnerNames...),
		Kind:              string(v.Kind),
		Severity:          string(v.Severity),
		Summary:           v.Summary,
		DaysSinceMovement: v.DaysSinceMovement,
		DaysPastCadence:   v.DaysPastCadence,
		WaitingDays:       v.WaitingDays,
		GateOwnerName:     v.GateOwnerName,
	}
	if v.Gate != nil {
		out.GateName = v.Gate.Name
	}
	return out
}

func mapBugReport(v app.BugReportView) BugReport {
	r := v.Report
	return BugReport{
		ID:             r.ID,
		ReporterUserID: r.ReporterUserID,
		Description:    r.Description,
		PageURL:        r.PageURL,
		Status:         string(r.Status),
		ScreenshotURL:  v.ScreenshotURL,
		CreatedAt:      r.CreatedAt,
		ResolvedAt:     r.ResolvedAt,
	}
}

func companyStrings(ids []domain.CompanyID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func companyIDs(raw []string) []domain.CompanyID {
	out := make([]domain.CompanyID, 0, len(raw))
	for _, id := range raw {
		out = append(out, domain.CompanyID(id))
	}
	return out
}
