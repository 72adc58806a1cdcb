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

// ContactRef is a contact id with its current display name.
type ContactRef struct {
	ID   string
	Name string
}

// GateView is a gate with its owner's display name resolved.
type GateView struct {
	domain.Gate
	OwnerName string
	Active    bool
}

// TaskView is a task plus the derived fields list views render.
type TaskView struct {
	Task              domain.Task
	ProjectName       string
	Owners            []ContactRef
	Gates             []GateView
	ActiveGate        *GateView
	DaysSinceMovement int
	IsStale           bool
}

// CreateTaskInput holds values for task creation.
type CreateTaskInput struct {
	ProjectID   string
	Description string
	NextStep    string
	CadenceDays int
	OwnerIDs    []string
	Gates       []NewGateInput
}

// NewGateInput describes a gate to add.
type NewGateInput struct {
	Name           string
	OwnerContactID string
}

// CreateTask creates a task in a visible project. The actor's own contact is
// always assigned as an owner.
func (s *Service) CreateTask(ctx context.Context, actor domain.ActorContext, in CreateTaskInput) (domain.Task, error) {
	project, err := s.visibleProject(ctx, actor, in.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if in.CadenceDays < 0 {
		return domain.Task{}, domain.ErrInvalidCadence
	}
	cadence := in.CadenceDays
	if cadence == 0 {
		cadence = s.cfg.DefaultCadenceDays
	}

	owners := make([]string, 0, len(in.OwnerIDs)+1)
	if actor.ContactID != "" {
		owners = append(owners, actor.ContactID)
	}
	for _, id := range in.OwnerIDs {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(owners, id) {
			owners = append(owners, id)
		}
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	for _, id := range owners {
		if id == actor.ContactID {
			continue
		}
		if err := checkAssignable(contacts, project, actor, id); err != nil {
			return domain.Task{}, err
		}
	}
	gates := make([]domain.Gate, 0, len(in.Gates))
	for _, g := range in.Gates {
		if g.OwnerContactID != "" {
			if err := checkAssignable(contacts, project, actor, g.OwnerContactID); err != nil {
				return domain.Task{}, err
			}
		}
		gate, err := domain.NewGate(domain.GateInput{ID: s.idGen(), Name: g.Name, OwnerContactID: g.OwnerContactID})
		if err != nil {
			return domain.Task{}, err
		}
		gates = append(gates, gate)
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		ProjectID:   project.ID,
		Description: in.Description,
		NextStep:    in.NextStep,
		CadenceDays: cadence,
		OwnerIDs:    owners,
		Gates:       gates,
		CreatedBy:   actor.UserID,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(withActor(ctx, actor), task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTaskInput holds optional task edits. Nil fields are left untouched.
type UpdateTaskInput struct {
	Description *string
	NextStep    *string
	CadenceDays *int
}

// UpdateTask edits description, next step, or cadence.
func (s *Service) UpdateTask(ctx context.Context, actor domain.ActorContext, taskID string, in UpdateTaskInput) (domain.Task, error) {
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		description, nextStep := task.Description, task.NextStep
		if in.Description != nil {
			description = *in.Description
		}
		if in.NextStep != nil {
			nextStep = *in.NextStep
		}
		if err := task.SetDetails(description, nextStep, now); err != nil {
			return err
		}
		if in.CadenceDays != nil {
			return task.SetCadence(*in.CadenceDays, now)
		}
		return nil
	})
}

// AddNote appends a note and restarts the task's staleness clock.
func (s *Service) AddNote(ctx context.Context, actor domain.ActorContext, taskID, body string) (domain.Note, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return domain.Note{}, err
	}
	now := s.clock()
	note, err := domain.NewNote(domain.NoteInput{
		ID:           s.idGen(),
		TaskID:       task.ID,
		Body:         body,
		AuthorUserID: actor.UserID,
	}, now)
	if err != nil {
		return domain.Note{}, err
	}
	ctx = withActor(ctx, actor)
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return domain.Note{}, err
	}
	task.Touch(now)
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Note{}, fmt.Errorf("record movement: %w", err)
	}
	return note, nil
}

// ListNotes lists a task's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, actor domain.ActorContext, taskID string) ([]domain.Note, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotes(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(notes, func(a, b domain.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return notes, nil
}

// AddGate inserts a gate at position; a negative position appends.
func (s *Service) AddGate(ctx context.Context, actor domain.ActorContext, taskID string, position int, in NewGateInput) (domain.Task, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if in.OwnerContactID != "" {
		project, err := s.repo.GetProject(ctx, task.ProjectID)
		if err != nil {
			return domain.Task{}, err
		}
		contacts, err := s.repo.ListContacts(ctx)
		if err != nil {
			return domain.Task{}, err
		}
		if err := checkAssignable(contacts, project, actor, in.OwnerContactID); err != nil {
			return domain.Task{}, err
		}
	}
	gate, err := domain.NewGate(domain.GateInput{ID: s.idGen(), Name: in.Name, OwnerContactID: in.OwnerContactID})
	if err != nil {
		return domain.Task{}, err
	}
	if position < 0 {
		position = len(task.Gates)
	}
	if err := task.InsertGate(position, gate, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(withActor(ctx, actor), task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// CompleteGate marks a gate complete.
func (s *Service) CompleteGate(ctx context.Context, actor domain.ActorContext, taskID, gateID string) (domain.Task, error) {
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		return task.CompleteGate(gateID, now)
	})
}

// ReopenGate marks a gate incomplete again.
func (s *Service) ReopenGate(ctx context.Context, actor domain.ActorContext, taskID, gateID string) (domain.Task, error) {
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		return task.ReopenGate(gateID, now)
	})
}

// RemoveGate deletes a gate from the sequence.
func (s *Service) RemoveGate(ctx context.Context, actor domain.ActorContext, taskID, gateID string) (domain.Task, error) {
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		return task.RemoveGate(gateID, now)
	})
}

// AssignOwner adds an assignable contact as task owner.
func (s *Service) AssignOwner(ctx context.Context, actor domain.ActorContext, taskID, contactID string) (domain.Task, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	project, err := s.repo.GetProject(ctx, task.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if err := checkAssignable(contacts, project, actor, contactID); err != nil {
		return domain.Task{}, err
	}
	changed, err := task.AssignOwner(contactID, s.clock())
	if err != nil || !changed {
		return task, err
	}
	if err := s.repo.UpdateTask(withActor(ctx, actor), task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UnassignOwner removes a task owner.
func (s *Service) UnassignOwner(ctx context.Context, actor domain.ActorContext, taskID, contactID string) (domain.Task, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !task.UnassignOwner(contactID, s.clock()) {
		return task, nil
	}
	if err := s.repo.UpdateTask(withActor(ctx, actor), task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// CloseTask closes a task when the actor is an admin; for everyone else it
// files a close request that an admin must approve.
func (s *Service) CloseTask(ctx context.Context, actor domain.ActorContext, taskID string) (domain.Task, error) {
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		if actor.IsAdmin() {
			return task.Close(now)
		}
		return task.RequestClose(actor.UserID, now)
	})
}

// ApproveClose closes a task with a pending close request; admin only.
func (s *Service) ApproveClose(ctx context.Context, actor domain.ActorContext, taskID string) (domain.Task, error) {
	if !actor.IsAdmin() {
		return domain.Task{}, ErrAdminRequired
	}
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		if task.Status != domain.StatusCloseRequested {
			return domain.ErrInvalidTransition
		}
		return task.Close(now)
	})
}

// RejectClose returns a close-requested task to open; admin only.
func (s *Service) RejectClose(ctx context.Context, actor domain.ActorContext, taskID string) (domain.Task, error) {
	if !actor.IsAdmin() {
		return domain.Task{}, ErrAdminRequired
	}
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		return task.RejectClose(now)
	})
}

// ReopenTask reopens a closed task.
func (s *Service) ReopenTask(ctx context.Context, actor domain.ActorContext, taskID string) (domain.Task, error) {
	return s.mutateTask(ctx, actor, taskID, func(task *domain.Task, now time.Time) error {
		return task.Reopen(now)
	})
}

// DeleteTask deletes a task; admins and the project creator may.
func (s *Service) DeleteTask(ctx context.Context, actor domain.ActorContext, taskID string) error {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return err
	}
	project, err := s.repo.GetProject(ctx, task.ProjectID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if !actor.IsAdmin() && project.CreatedBy != actor.UserID {
		return ErrForbidden
	}
	return s.repo.DeleteTask(withActor(ctx, actor), task.ID)
}

// TaskListFilter narrows ListVisibleTasks.
type TaskListFilter struct {
	ProjectID     string
	IncludeClosed bool
	StaleOnly     bool
}

// ListVisibleTasks lists the tasks the actor may see with derived fields.
// Admin role does not widen this list.
func (s *Service) ListVisibleTasks(ctx context.Context, actor domain.ActorContext, filter TaskListFilter) ([]TaskView, error) {
	snap, err := s.loadWorld(ctx, strings.TrimSpace(filter.ProjectID))
	if err != nil {
		return nil, err
	}
	visible := domain.VisibleTasks(snap.tasks, snap.projects, snap.contacts, actor)
	now := s.clock()
	out := make([]TaskView, 0, len(visible))
	for _, task := range visible {
		if !filter.IncludeClosed && task.Status == domain.StatusClosed {
			continue
		}
		view := snap.view(task, now)
		if filter.StaleOnly && !view.IsStale {
			continue
		}
		out = append(out, view)
	}
	slices.SortStableFunc(out, func(a, b TaskView) int {
		if a.IsStale != b.IsStale {
			if a.IsStale {
				return -1
			}
			return 1
		}
		return b.DaysSinceMovement - a.DaysSinceMovement
	})
	return out, nil
}

// GetTaskView returns one task with derived fields.
func (s *Service) GetTaskView(ctx context.Context, actor domain.ActorContext, taskID string) (TaskView, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	project, err := s.repo.GetProject(ctx, task.ProjectID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return TaskView{}, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return TaskView{}, err
	}
	snap := world{
		projects: []domain.Project{project},
		contacts: contacts,
		names:    contactNames(contacts),
	}
	return snap.view(task, s.clock()), nil
}

// ListTaskActivity lists the task's change events, newest first.
func (s *Service) ListTaskActivity(ctx context.Context, actor domain.ActorContext, taskID string, limit int) ([]domain.ChangeEvent, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListTaskChangeEvents(ctx, task.ID, limit)
}

// accessibleTask loads a task the actor may act on: any task for admins,
// otherwise only tasks in the actor's visible list.
func (s *Service) accessibleTask(ctx context.Context, actor domain.ActorContext, taskID string) (domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.Task{}, domain.ErrInvalidID
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if actor.IsAdmin() {
		return task, nil
	}
	project, err := s.repo.GetProject(ctx, task.ProjectID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Task{}, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if !domain.CanViewTask(task, project.CreatedBy, domain.VoidedContactIDs(contacts), actor) {
		return domain.Task{}, ErrNotFound
	}
	return task, nil
}

// mutateTask loads, mutates, and persists one task.
func (s *Service) mutateTask(ctx context.Context, actor domain.ActorContext, taskID string, fn func(*domain.Task, time.Time) error) (domain.Task, error) {
	task, err := s.accessibleTask(ctx, actor, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := fn(&task, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(withActor(ctx, actor), task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func checkAssignable(contacts []domain.Contact, project domain.Project, actor domain.ActorContext, contactID string) error {
	contactID = strings.TrimSpace(contactID)
	idx := slices.IndexFunc(contacts, func(c domain.Contact) bool { return c.ID == contactID })
	if idx < 0 {
		return fmt.Errorf("contact %q: %w", contactID, ErrNotFound)
	}
	if !domain.PolicyFor(actor).CanAssignContact(contacts[idx], project, actor) {
		return fmt.Errorf("contact %q: %w", contactID, ErrContactNotAssignable)
	}
	return nil
}

// world is one request's fetch of rows that filters and views run over.
type world struct {
	projects []domain.Project
	contacts []domain.Contact
	tasks    []domain.Task
	names    map[string]string
}

func (s *Service) loadWorld(ctx context.Context, projectID string) (world, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return world{}, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return world{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, projectID)
	if err != nil {
		return world{}, err
	}
	return world{
		projects: projects,
		contacts: contacts,
		tasks:    tasks,
		names:    contactNames(contacts),
	}, nil
}

func (w world) projectName(id string) string {
	for _, p := range w.projects {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

func (w world) view(task domain.Task, now time.Time) TaskView {
	view := TaskView{
		Task:              task,
		ProjectName:       w.projectName(task.ProjectID),
		DaysSinceMovement: domain.DaysSinceMovement(task, now),
		IsStale:           domain.IsStale(task, now),
		Owners:            make([]ContactRef, 0, len(task.OwnerIDs)),
		Gates:             make([]GateView, 0, len(task.Gates)),
	}
	for _, id := range task.OwnerIDs {
		view.Owners = append(view.Owners, ContactRef{ID: id, Name: w.names[id]})
	}
	active := domain.ActiveGateIndex(task.Gates)
	for i, g := range task.Gates {
		view.Gates = append(view.Gates, GateView{Gate: g, OwnerName: w.names[g.OwnerContactID], Active: i == active})
	}
	if active >= 0 {
		gv := view.Gates[active]
		view.ActiveGate = &gv
	}
	return view
}
