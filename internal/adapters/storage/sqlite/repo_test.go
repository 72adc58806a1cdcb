package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func seedProject(t *testing.T, repo *Repository, id string) domain.Project {
	t.Helper()
	p, err := domain.NewProject(domain.ProjectInput{
		ID:           id,
		Name:         "Project " + id,
		Visibility:   domain.VisibilityShared,
		Affiliations: []domain.CompanyID{"acme", "bolt"},
		CreatedBy:    "u1",
	}, testNow)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := repo.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func TestRepository_UserAndContactRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	contact, err := domain.NewContact(domain.ContactInput{
		ID:           "c1",
		Name:         "Ana",
		Email:        "ana@acme.test",
		Affiliations: []domain.CompanyID{"acme", "g3"},
		IsVendor:     true,
	}, testNow)
	if err != nil {
		t.Fatalf("NewContact() error = %v", err)
	}
	if err := repo.CreateContact(ctx, contact); err != nil {
		t.Fatalf("CreateContact() error = %v", err)
	}
	got, err := repo.GetContact(ctx, "c1")
	if err != nil {
		t.Fatalf("GetContact() error = %v", err)
	}
	if got.Name != "Ana" || !got.IsVendor || got.Affiliations.String() != "acme,g3" || !got.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected contact %#v", got)
	}

	got.Voided = true
	got.Affiliations = got.Affiliations.Without("g3")
	if err := repo.UpdateContact(ctx, got); err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}
	again, _ := repo.GetContact(ctx, "c1")
	if !again.Voided || again.Affiliations.String() != "acme" {
		t.Fatalf("unexpected updated contact %#v", again)
	}

	user, _ := domain.NewUser(domain.UserInput{ID: "u1", Email: "ana@acme.test", Role: domain.RoleAdmin, ContactID: "c1"}, testNow)
	if err := repo.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	user.DisplayName = "Ana A."
	if err := repo.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser() second error = %v", err)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].DisplayName != "Ana A." || users[0].Role != domain.RoleAdmin {
		t.Fatalf("unexpected users %#v", users)
	}

	if err := repo.DeleteContact(ctx, "c1"); err != nil {
		t.Fatalf("DeleteContact() error = %v", err)
	}
	if _, err := repo.GetContact(ctx, "c1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteContact(ctx, "c1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
	if _, err := repo.GetUser(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}
}

func TestRepository_TaskLifecycleAndLedger(t *testing.T) {
	ctx := app.WithMutationActor(context.Background(), app.MutationActor{ActorID: "u1"})
	repo := openTestRepo(t)
	project := seedProject(t, repo, "p1")

	gate, _ := domain.NewGate(domain.GateInput{ID: "g1", Name: "legal", OwnerContactID: "c2"})
	task, err := domain.NewTask(domain.TaskInput{
		ID:          "t1",
		ProjectID:   project.ID,
		Description: "sign lease",
		OwnerIDs:    []string{"c1"},
		Gates:       []domain.Gate{gate},
		CreatedBy:   "u1",
	}, testNow)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	loaded, err := repo.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if !loaded.Gated() || loaded.Gates[0].OwnerContactID != "c2" || loaded.CadenceDays != domain.DefaultCadenceDays {
		t.Fatalf("unexpected loaded task %#v", loaded)
	}
	if !loaded.LastMovementAt.Equal(testNow) || len(loaded.OwnerIDs) != 1 {
		t.Fatalf("unexpected movement/owners %#v", loaded)
	}

	later := testNow.Add(2 * time.Hour)
	if err := loaded.CompleteGate("g1", later); err != nil {
		t.Fatalf("CompleteGate() error = %v", err)
	}
	if err := repo.UpdateTask(ctx, loaded); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	note, _ := domain.NewNote(domain.NoteInput{ID: "n1", TaskID: "t1", Body: "landlord signed", AuthorUserID: "u1"}, later.Add(time.Minute))
	if err := repo.CreateNote(ctx, note); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	impersonated := app.WithMutationActor(context.Background(), app.MutationActor{ActorID: "u2", ImpersonatorID: "u-admin"})
	if err := loaded.RequestClose("u2", later.Add(time.Hour)); err != nil {
		t.Fatalf("RequestClose() error = %v", err)
	}
	if err := repo.UpdateTask(impersonated, loaded); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	reloaded, _ := repo.GetTask(ctx, "t1")
	if reloaded.Gated() || reloaded.Gates[0].CompletedAt == nil || reloaded.Status != domain.StatusCloseRequested {
		t.Fatalf("unexpected reloaded task %#v", reloaded)
	}
	if reloaded.CloseRequestedAt == nil || reloaded.CloseRequestedBy != "u2" {
		t.Fatalf("expected close request persisted, got %#v", reloaded)
	}

	events, err := repo.ListTaskChangeEvents(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("ListTaskChangeEvents() error = %v", err)
	}
	wantOps := []domain.ChangeOperation{
		domain.ChangeOperationStatus,
		domain.ChangeOperationNote,
		domain.ChangeOperationGate,
		domain.ChangeOperationCreate,
	}
	if len(events) != len(wantOps) {
		t.Fatalf("expected %d events, got %#v", len(wantOps), events)
	}
	for i, want := range wantOps {
		if events[i].Operation != want {
			t.Fatalf("event %d: expected %q, got %q", i, want, events[i].Operation)
		}
	}
	if events[0].ActorID != "u2" || events[0].Metadata["impersonator_id"] != "u-admin" || events[0].Metadata["to"] != "close_requested" {
		t.Fatalf("unexpected status event %#v", events[0])
	}
	if events[3].ActorID != "u1" {
		t.Fatalf("unexpected create actor %q", events[3].ActorID)
	}

	notes, err := repo.ListNotes(ctx, "t1")
	if err != nil || len(notes) != 1 || notes[0].Body != "landlord signed" {
		t.Fatalf("ListNotes() = %#v, %v", notes, err)
	}

	if err := repo.DeleteTask(context.Background(), "t1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := repo.GetTask(ctx, "t1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	notes, _ = repo.ListNotes(ctx, "t1")
	if len(notes) != 0 {
		t.Fatalf("expected notes removed with task, got %d", len(notes))
	}
	events, _ = repo.ListTaskChangeEvents(ctx, "t1", 1)
	if len(events) != 1 || events[0].Operation != domain.ChangeOperationDelete || events[0].ActorID != app.SystemActorID {
		t.Fatalf("expected delete event kept, got %#v", events)
	}
}

func TestRepository_ListTasksByProjectAndCascade(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	p1 := seedProject(t, repo, "p1")
	p2 := seedProject(t, repo, "p2")

	for i, tc := range []struct{ id, project string }{{"t1", p1.ID}, {"t2", p2.ID}, {"t3", p1.ID}} {
		task, _ := domain.NewTask(domain.TaskInput{ID: tc.id, ProjectID: tc.project, Description: "d", CreatedBy: "u1"}, testNow.Add(time.Duration(i)*time.Minute))
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", tc.id, err)
		}
	}

	all, err := repo.ListTasks(ctx, "")
	if err != nil || len(all) != 3 || all[0].ID != "t1" || all[2].ID != "t3" {
		t.Fatalf("ListTasks(all) = %#v, %v", all, err)
	}
	inP1, _ := repo.ListTasks(ctx, p1.ID)
	if len(inP1) != 2 {
		t.Fatalf("expected 2 tasks in p1, got %d", len(inP1))
	}

	loaded, _ := repo.GetProject(ctx, p1.ID)
	if loaded.Affiliations.String() != "acme,bolt" || loaded.Visibility != domain.VisibilityShared || loaded.Slug == "" {
		t.Fatalf("unexpected project %#v", loaded)
	}
	if err := repo.DeleteProject(ctx, p1.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	rest, _ := repo.ListTasks(ctx, "")
	if len(rest) != 1 || rest[0].ID != "t2" {
		t.Fatalf("expected project tasks cascaded, got %#v", rest)
	}
	if err := repo.UpdateProject(ctx, loaded); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating deleted project, got %v", err)
	}
}

func TestRepository_BugReports(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	report, err := domain.NewBugReport(domain.BugReportInput{ID: "b1", ReporterUserID: "u1", Description: "broken", ScreenshotKey: "bug-reports/b1.png"}, testNow)
	if err != nil {
		t.Fatalf("NewBugReport() error = %v", err)
	}
	if err := repo.CreateBugReport(ctx, report); err != nil {
		t.Fatalf("CreateBugReport() error = %v", err)
	}
	if err := report.Resolve(testNow.Add(time.Hour)); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := repo.UpdateBugReport(ctx, report); err != nil {
		t.Fatalf("UpdateBugReport() error = %v", err)
	}
	got, err := repo.GetBugReport(ctx, "b1")
	if err != nil || got.Status != domain.BugStatusResolved || got.ResolvedAt == nil || got.ScreenshotKey != "bug-reports/b1.png" {
		t.Fatalf("GetBugReport() = %#v, %v", got, err)
	}
	list, _ := repo.ListBugReports(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one report, got %d", len(list))
	}
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tornado.db")
	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path to fail")
	}
}

func TestServiceOverSQLite(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	clock := testNow
	ids := 0
	svc := app.NewService(repo, func() string {
		ids++
		return fmt.Sprintf("id-%03d", ids)
	}, func() time.Time { return clock }, app.ServiceConfig{})

	contact, _ := domain.NewContact(domain.ContactInput{ID: "c-ana", Name: "Ana", Affiliations: []domain.CompanyID{"acme"}}, clock)
	_ = repo.CreateContact(ctx, contact)
	user, _ := domain.NewUser(domain.UserInput{ID: "u-ana", ContactID: "c-ana"}, clock)
	_ = repo.UpsertUser(ctx, user)
	actor, err := svc.ResolveActor(ctx, "u-ana")
	if err != nil {
		t.Fatalf("ResolveActor() error = %v", err)
	}

	project, err := svc.CreateProject(ctx, actor, app.CreateProjectInput{Name: "Launch"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, actor, app.CreateTaskInput{ProjectID: project.ID, Description: "call venue", CadenceDays: 2})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	clock = clock.Add(4 * 24 * time.Hour)

	issues, err := svc.ListIssues(ctx, actor, app.IssueScopeVisible)
	if err != nil || len(issues) != 1 || issues[0].Kind != domain.IssueOverdue {
		t.Fatalf("ListIssues() = %#v, %v", issues, err)
	}
	if _, err := svc.AddNote(ctx, actor, task.ID, "left a message"); err != nil {
		t.Fatalf("AddNote() error = %v", err)
	}
	issues, _ = svc.ListIssues(ctx, actor, app.IssueScopeVisible)
	if len(issues) != 0 {
		t.Fatalf("expected note to clear the overdue issue, got %#v", issues)
	}
	activity, err := svc.ListTaskActivity(ctx, actor, task.ID, 0)
	if err != nil || len(activity) != 3 {
		t.Fatalf("ListTaskActivity() = %#v, %v", activity, err)
	}
}
