package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

// TrackerService is the transport surface shared by the HTTP and MCP adapters.
// Every call runs as the actor attached to ctx.
type TrackerService interface {
	Me(ctx context.Context) (Actor, error)

	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, projectID string) (Project, error)
	CreateProject(ctx context.Context, in CreateProjectRequest) (Project, error)
	UpdateProject(ctx context.Context, projectID string, in UpdateProjectRequest) (Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	ListAssignableContacts(ctx context.Context, projectID string) ([]Contact, error)

	ListContacts(ctx context.Context) ([]Contact, error)
	CreateContact(ctx context.Context, in CreateContactRequest) (Contact, error)
	UpdateContact(ctx context.Context, contactID string, in UpdateContactRequest) (Contact, error)
	SetContactVoided(ctx context.Context, contactID string, voided bool) (Contact, error)
	MergeContacts(ctx context.Context, sourceID, targetID string) (MergeResult, error)
	DeleteContact(ctx context.Context, contactID string, cascade bool) error

	ListTasks(ctx context.Context, in ListTasksRequest) ([]Task, error)
	GetTask(ctx context.Context, taskID string) (Task, error)
	CreateTask(ctx context.Context, in CreateTaskRequest) (Task, error)
	UpdateTask(ctx context.Context, taskID string, in UpdateTaskRequest) (Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	AddNote(ctx context.Context, taskID string, in NoteRequest) (Note, error)
	ListNotes(ctx context.Context, taskID string) ([]Note, error)
	AddGate(ctx context.Context, taskID string, in GateRequest) (Task, error)
	CompleteGate(ctx context.Context, taskID, gateID string) (Task, error)
	ReopenGate(ctx context.Context, taskID, gateID string) (Task, error)
	RemoveGate(ctx context.Context, taskID, gateID string) (Task, error)
	AssignOwner(ctx context.Context, taskID, contactID string) (Task, error)
	UnassignOwner(ctx context.Context, taskID, contactID string) (Task, error)
	CloseTask(ctx context.Context, taskID string) (Task, error)
	ApproveClose(ctx context.Context, taskID string) (Task, error)
	RejectClose(ctx context.Context, taskID string) (Task, error)
	ReopenTask(ctx context.Context, taskID string) (Task, error)
	ListActivity(ctx context.Context, taskID string, limit int) ([]ActivityEvent, error)

	ListIssues(ctx context.Context, all bool) ([]Issue, error)

	SubmitBugReport(ctx context.Context, in BugReportRequest) (BugReport, error)
	ListBugReports(ctx context.Context) ([]BugReport, error)
	ResolveBugReport(ctx context.Context, reportID string) (BugReport, error)
}

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

var _ TrackerService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// begin resolves the request actor and checks the adapter is wired.
func (a *AppServiceAdapter) begin(ctx context.Context) (domain.ActorContext, error) {
	if a == nil || a.service == nil {
		return domain.ActorContext{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return requireActor(ctx)
}

// Me reports the calling actor.
func (a *AppServiceAdapter) Me(ctx context.Context) (Actor, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Actor{}, err
	}
	return mapActor(actor), nil
}

// ListProjects lists the projects the caller can see.
func (a *AppServiceAdapter) ListProjects(ctx context.Context) ([]Project, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := a.service.ListVisibleProjects(ctx, actor)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, mapProject(p))
	}
	return out, nil
}

// GetProject returns one visible project.
func (a *AppServiceAdapter) GetProject(ctx context.Context, projectID string) (Project, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Project{}, err
	}
	project, err := a.service.GetProject(ctx, actor, projectID)
	if err != nil {
		return Project{}, mapAppError("get project", err)
	}
	return mapProject(project), nil
}

// CreateProject creates a project owned by the caller.
func (a *AppServiceAdapter) CreateProject(ctx context.Context, in CreateProjectRequest) (Project, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Project{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Project{}, err
	}
	project, err := a.service.CreateProject(ctx, actor, app.CreateProjectInput{
		Name:            in.Name,
		Description:     in.Description,
		Visibility:      domain.Visibility(in.Visibility),
		Affiliations:    companyIDs(in.Affiliations),
		SharedContactID: in.SharedContactID,
	})
	if err != nil {
		return Project{}, mapAppError("create project", err)
	}
	return mapProject(project), nil
}

// UpdateProject applies optional project changes.
func (a *AppServiceAdapter) UpdateProject(ctx context.Context, projectID string, in UpdateProjectRequest) (Project, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Project{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Project{}, err
	}
	update := app.UpdateProjectInput{
		Name:            in.Name,
		Description:     in.Description,
		SharedContactID: in.SharedContactID,
	}
	if in.Visibility != nil {
		v := domain.Visibility(*in.Visibility)
		update.Visibility = &v
	}
	if in.Affiliations != nil {
		ids := companyIDs(*in.Affiliations)
		update.Affiliations = &ids
	}
	project, err := a.service.UpdateProject(ctx, actor, projectID, update)
	if err != nil {
		return Project{}, mapAppError("update project", err)
	}
	return mapProject(project), nil
}

// DeleteProject removes an empty project.
func (a *AppServiceAdapter) DeleteProject(ctx context.Context, projectID string) error {
	actor, err := a.begin(ctx)
	if err != nil {
		return err
	}
	return mapAppError("delete project", a.service.DeleteProject(ctx, actor, projectID))
}

// ListAssignableContacts lists contacts that may own tasks in a project.
func (a *AppServiceAdapter) ListAssignableContacts(ctx context.Context, projectID string) ([]Contact, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	contacts, err := a.service.ListAssignableContacts(ctx, actor, projectID)
	if err != nil {
		return nil, mapAppError("list assignable contacts", err)
	}
	return mapContacts(contacts), nil
}

// ListContacts lists the contacts the caller can see.
func (a *AppServiceAdapter) ListContacts(ctx context.Context) ([]Contact, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	contacts, err := a.service.ListVisibleContacts(ctx, actor)
	if err != nil {
		return nil, mapAppError("list contacts", err)
	}
	return mapContacts(contacts), nil
}

// CreateContact creates a contact.
func (a *AppServiceAdapter) CreateContact(ctx context.Context, in CreateContactRequest) (Contact, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Contact{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Contact{}, err
	}
	contact, err := a.service.CreateContact(ctx, actor, app.CreateContactInput{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Affiliations: companyIDs(in.Affiliations),
		IsVendor:     in.IsVendor,
		IsPrivate:    in.IsPrivate,
	})
	if err != nil {
		return Contact{}, mapAppError("create contact", err)
	}
	return mapContact(contact), nil
}

// UpdateContact applies optional contact changes.
func (a *AppServiceAdapter) UpdateContact(ctx context.Context, contactID string, in UpdateContactRequest) (Contact, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Contact{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Contact{}, err
	}
	update := app.UpdateContactInput{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		IsVendor:  in.IsVendor,
		IsPrivate: in.IsPrivate,
	}
	if len(in.Companies) > 0 {
		update.Companies = make(map[domain.CompanyID]bool, len(in.Companies))
		for id, on := range in.Companies {
			update.Companies[domain.CompanyID(id)] = on
		}
	}
	contact, err := a.service.UpdateContact(ctx, actor, contactID, update)
	if err != nil {
		return Contact{}, mapAppError("update contact", err)
	}
	return mapContact(contact), nil
}

// SetContactVoided voids or restores a contact.
func (a *AppServiceAdapter) SetContactVoided(ctx context.Context, contactID string, voided bool) (Contact, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Contact{}, err
	}
	contact, err := a.service.SetContactVoided(ctx, actor, contactID, voided)
	if err != nil {
		return Contact{}, mapAppError("void contact", err)
	}
	return mapContact(contact), nil
}

// MergeContacts folds source into target.
func (a *AppServiceAdapter) MergeContacts(ctx context.Context, sourceID, targetID string) (MergeResult, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	if err := ValidateRequest(MergeContactRequest{TargetID: targetID}); err != nil {
		return MergeResult{}, err
	}
	res, err := a.service.MergeContacts(ctx, actor, sourceID, targetID)
	if err != nil {
		return MergeResult{}, mapAppError("merge contacts", err)
	}
	return MergeResult{
		Target:        mapContact(res.Target),
		TasksUpdated:  res.TasksUpdated,
		UsersRelinked: res.UsersRelinked,
	}, nil
}

// DeleteContact removes a contact, optionally unlinking its references.
func (a *AppServiceAdapter) DeleteContact(ctx context.Context, contactID string, cascade bool) error {
	actor, err := a.begin(ctx)
	if err != nil {
		return err
	}
	return mapAppError("delete contact", a.service.DeleteContact(ctx, actor, contactID, cascade))
}

// ListTasks lists visible tasks, stalest first.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, in ListTasksRequest) ([]Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	views, err := a.service.ListVisibleTasks(ctx, actor, app.TaskListFilter{
		ProjectID:     in.ProjectID,
		IncludeClosed: in.IncludeClosed,
		StaleOnly:     in.StaleOnly,
	})
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	out := make([]Task, 0, len(views))
	for _, v := range views {
		out = append(out, mapTask(v))
	}
	return out, nil
}

// GetTask returns one task with derived fields.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Task{}, err
	}
	return a.taskView(ctx, actor, "get task", taskID)
}

// CreateTask creates a task in a visible project.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Task{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Task{}, err
	}
	gates := make([]app.NewGateInput, 0, len(in.Gates))
	for _, g := range in.Gates {
		gates = append(gates, app.NewGateInput{Name: g.Name, OwnerContactID: g.OwnerContactID})
	}
	task, err := a.service.CreateTask(ctx, actor, app.CreateTaskInput{
		ProjectID:   in.ProjectID,
		Description: in.Description,
		NextStep:    in.NextStep,
		CadenceDays: in.CadenceDays,
		OwnerIDs:    in.OwnerIDs,
		Gates:       gates,
	})
	if err != nil {
		return Task{}, mapAppError("create task", err)
	}
	return a.mutatedView(ctx, actor, "create task", task)
}

// UpdateTask applies optional task changes.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, taskID string, in UpdateTaskRequest) (Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Task{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Task{}, err
	}
	task, err := a.service.UpdateTask(ctx, actor, taskID, app.UpdateTaskInput{
		Description: in.Description,
		NextStep:    in.NextStep,
		CadenceDays: in.CadenceDays,
	})
	if err != nil {
		return Task{}, mapAppError("update task", err)
	}
	return a.mutatedView(ctx, actor, "update task", task)
}

// DeleteTask removes a task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, taskID string) error {
	actor, err := a.begin(ctx)
	if err != nil {
		return err
	}
	return mapAppError("delete task", a.service.DeleteTask(ctx, actor, taskID))
}

// AddNote appends a note to a task.
func (a *AppServiceAdapter) AddNote(ctx context.Context, taskID string, in NoteRequest) (Note, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Note{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Note{}, err
	}
	note, err := a.service.AddNote(ctx, actor, taskID, in.Body)
	if err != nil {
		return Note{}, mapAppError("add note", err)
	}
	return mapNote(note), nil
}

// ListNotes lists a task's notes, newest first.
func (a *AppServiceAdapter) ListNotes(ctx context.Context, taskID string) ([]Note, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := a.service.ListNotes(ctx, actor, taskID)
	if err != nil {
		return nil, mapAppError("list notes", err)
	}
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, mapNote(n))
	}
	return out, nil
}

// AddGate inserts a gate; a missing position appends.
func (a *AppServiceAdapter) AddGate(ctx context.Context, taskID string, in GateRequest) (Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Task{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return Task{}, err
	}
	position := -1
	if in.Position != nil {
		position = *in.Position
	}
	task, err := a.service.AddGate(ctx, actor, taskID, position, app.NewGateInput{
		Name:           in.Name,
		OwnerContactID: in.OwnerContactID,
	})
	if err != nil {
		return Task{}, mapAppError("add gate", err)
	}
	return a.mutatedView(ctx, actor, "add gate", task)
}

// CompleteGate marks a gate complete.
func (a *AppServiceAdapter) CompleteGate(ctx context.Context, taskID, gateID string) (Task, error) {
	return a.gateOp(ctx, "complete gate", taskID, gateID, (*app.Service).CompleteGate)
}

// ReopenGate clears a gate's completion.
func (a *AppServiceAdapter) ReopenGate(ctx context.Context, taskID, gateID string) (Task, error) {
	return a.gateOp(ctx, "reopen gate", taskID, gateID, (*app.Service).ReopenGate)
}

// RemoveGate deletes a gate.
func (a *AppServiceAdapter) RemoveGate(ctx context.Context, taskID, gateID string) (Task, error) {
	return a.gateOp(ctx, "remove gate", taskID, gateID, (*app.Service).RemoveGate)
}

// AssignOwner adds an owner to a task.
func (a *AppServiceAdapter) AssignOwner(ctx context.Context, taskID, contactID string) (Task, error) {
	if err := ValidateRequest(OwnerRequest{ContactID: contactID}); err != nil {
		return Task{}, err
	}
	return a.gateOp(ctx, "assign owner", taskID, contactID, (*app.Service).AssignOwner)
}

// UnassignOwner removes an owner from a task.
func (a *AppServiceAdapter) UnassignOwner(ctx context.Context, taskID, contactID string) (Task, error) {
	return a.gateOp(ctx, "unassign owner", taskID, contactID, (*app.Service).UnassignOwner)
}

// CloseTask closes a task for admins and files a close request otherwise.
func (a *AppServiceAdapter) CloseTask(ctx context.Context, taskID string) (Task, error) {
	return a.statusOp(ctx, "close task", taskID, (*app.Service).CloseTask)
}

// ApproveClose accepts a pending close request.
func (a *AppServiceAdapter) ApproveClose(ctx context.Context, taskID string) (Task, error) {
	return a.statusOp(ctx, "approve close", taskID, (*app.Service).ApproveClose)
}

// RejectClose sends a close request back to open.
func (a *AppServiceAdapter) RejectClose(ctx context.Context, taskID string) (Task, error) {
	return a.statusOp(ctx, "reject close", taskID, (*app.Service).RejectClose)
}

// ReopenTask reopens a closed task.
func (a *AppServiceAdapter) ReopenTask(ctx context.Context, taskID string) (Task, error) {
	return a.statusOp(ctx, "reopen task", taskID, (*app.Service).ReopenTask)
}

// ListActivity lists a task's change events, newest first.
func (a *AppServiceAdapter) ListActivity(ctx context.Context, taskID string, limit int) ([]ActivityEvent, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	events, err := a.service.ListTaskActivity(ctx, actor, taskID, limit)
	if err != nil {
		return nil, mapAppError("list activity", err)
	}
	out := make([]ActivityEvent, 0, len(events))
	for _, e := range events {
		out = append(out, mapEvent(e))
	}
	return out, nil
}

// ListIssues runs the issue aggregator; all widens the scope for admins.
func (a *AppServiceAdapter) ListIssues(ctx context.Context, all bool) ([]Issue, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	scope := app.IssueScopeVisible
	if all {
		scope = app.IssueScopeAll
	}
	issues, err := a.service.ListIssues(ctx, actor, scope)
	if err != nil {
		return nil, mapAppError("list issues", err)
	}
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, mapIssue(issue))
	}
	return out, nil
}

// SubmitBugReport files a bug report.
func (a *AppServiceAdapter) SubmitBugReport(ctx context.Context, in BugReportRequest) (BugReport, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return BugReport{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return BugReport{}, err
	}
	if len(in.Screenshot) > 0 && strings.TrimSpace(in.ScreenshotContentType) == "" {
		return BugReport{}, fmt.Errorf("screenshot_content_type is required with a screenshot: %w", ErrInvalidRequest)
	}
	report, err := a.service.SubmitBugReport(ctx, actor, app.BugReportSubmission{
		Description:           in.Description,
		PageURL:               in.PageURL,
		Screenshot:            in.Screenshot,
		ScreenshotContentType: in.ScreenshotContentType,
	})
	if err != nil {
		return BugReport{}, mapAppError("submit bug report", err)
	}
	return mapBugReport(app.BugReportView{Report: report}), nil
}

// ListBugReports lists the bug inbox; admin only.
func (a *AppServiceAdapter) ListBugReports(ctx context.Context) ([]BugReport, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := a.service.ListBugReports(ctx, actor)
	if err != nil {
		return nil, mapAppError("list bug reports", err)
	}
	out := make([]BugReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, mapBugReport(r))
	}
	return out, nil
}

// ResolveBugReport marks a report resolved; admin only.
func (a *AppServiceAdapter) ResolveBugReport(ctx context.Context, reportID string) (BugReport, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return BugReport{}, err
	}
	report, err := a.service.ResolveBugReport(ctx, actor, reportID)
	if err != nil {
		return BugReport{}, mapAppError("resolve bug report", err)
	}
	return mapBugReport(app.BugReportView{Report: report}), nil
}

type taskPairOp func(*app.Service, context.Context, domain.ActorContext, string, string) (domain.Task, error)

type taskOp func(*app.Service, context.Context, domain.ActorContext, string) (domain.Task, error)

func (a *AppServiceAdapter) gateOp(ctx context.Context, operation, taskID, otherID string, op taskPairOp) (Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Task{}, err
	}
	task, err := op(a.service, ctx, actor, taskID, otherID)
	if err != nil {
		return Task{}, mapAppError(operation, err)
	}
	return a.mutatedView(ctx, actor, operation, task)
}

func (a *AppServiceAdapter) statusOp(ctx context.Context, operation, taskID string, op taskOp) (Task, error) {
	actor, err := a.begin(ctx)
	if err != nil {
		return Task{}, err
	}
	task, err := op(a.service, ctx, actor, taskID)
	if err != nil {
		return Task{}, mapAppError(operation, err)
	}
	return a.mutatedView(ctx, actor, operation, task)
}

// taskView re-reads a task so responses carry derived fields.
func (a *AppServiceAdapter) taskView(ctx context.Context, actor domain.ActorContext, operation, taskID string) (Task, error) {
	view, err := a.service.GetTaskView(ctx, actor, taskID)
	if err != nil {
		return Task{}, mapAppError(operation, err)
	}
	return mapTask(view), nil
}

// mutatedView is taskView for writes. A write can drop the task out of the
// caller's view (unassigning yourself), so fall back to the bare task.
func (a *AppServiceAdapter) mutatedView(ctx context.Context, actor domain.ActorContext, operation string, task domain.Task) (Task, error) {
	out, err := a.taskView(ctx, actor, operation, task.ID)
	if errors.Is(err, ErrNotFound) {
		return mapTask(app.TaskView{Task: task}), nil
	}
	return out, err
}

func mapContacts(contacts []domain.Contact) []Contact {
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, mapContact(c))
	}
	return out
}

// mapAppError joins app and domain failures with the transport sentinel the
// adapters map to status codes.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidRequest):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, app.ErrNotFound), errors.Is(err, domain.ErrGateNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrForbidden),
		errors.Is(err, app.ErrAdminRequired),
		errors.Is(err, app.ErrAlreadyImpersonating):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrForbidden, err))
	case errors.Is(err, app.ErrDuplicateName),
		errors.Is(err, app.ErrProjectNotEmpty),
		errors.Is(err, app.ErrContactInUse),
		errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrScreenshotsDisabled),
		errors.Is(err, app.ErrNotifierUnavailable):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidCompanyID),
		errors.Is(err, domain.ErrContactUnscoped),
		errors.Is(err, domain.ErrInvalidPrivateOwner),
		errors.Is(err, domain.ErrInvalidVisibility),
		errors.Is(err, domain.ErrInvalidSharedContact),
		errors.Is(err, domain.ErrInvalidProjectID),
		errors.Is(err, domain.ErrInvalidDescription),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidCadence),
		errors.Is(err, domain.ErrInvalidGateName),
		errors.Is(err, domain.ErrInvalidGatePosition),
		errors.Is(err, domain.ErrInvalidBody),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidBugStatus),
		errors.Is(err, app.ErrContactNotAssignable),
		errors.Is(err, app.ErrUnknownCompany),
		errors.Is(err, app.ErrSelfMerge),
		errors.Is(err, app.ErrScreenshotTooLarge),
		errors.Is(err, app.ErrInvalidImport),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

// ErrorCode names the transport class of err for HTTP and MCP responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal_error"
	}
}
