package postgres

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"

	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// openTestRepo runs the gorm repository over pure-Go SQLite so tests need no server.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenDialector(sqlite.Open(filepath.Join(t.TempDir(), "tornado.db")))
	if err != nil {
		t.Fatalf("OpenDialector() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected empty dsn to fail")
	}
}

func TestRepository_ContactsAndProjects(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	bo, _ := domain.NewContact(domain.ContactInput{ID: "c2", Name: "bo", Affiliations: []domain.CompanyID{"bolt"}}, testNow)
	ana, _ := domain.NewContact(domain.ContactInput{ID: "c1", Name: "Ana", IsPrivate: true, PrivateOwnerID: "u1"}, testNow)
	for _, c := range []domain.Contact{bo, ana} {
		if err := repo.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact(%s) error = %v", c.ID, err)
		}
	}
	contacts, err := repo.ListContacts(ctx)
	if err != nil {
		t.Fatalf("ListContacts() error = %v", err)
	}
	if len(contacts) != 2 || contacts[0].ID != "c1" || contacts[1].Affiliations.String() != "bolt" {
		t.Fatalf("unexpected contacts %#v", contacts)
	}
	if !contacts[0].IsPrivate || contacts[0].PrivateOwnerID != "u1" {
		t.Fatalf("expected private flag kept, got %#v", contacts[0])
	}

	bo.Voided = true
	bo.UpdatedAt = testNow.Add(time.Hour)
	if err := repo.UpdateContact(ctx, bo); err != nil {
		t.Fatalf("UpdateContact() error = %v", err)
	}
	got, _ := repo.GetContact(ctx, "c2")
	if !got.Voided || !got.UpdatedAt.Equal(testNow.Add(time.Hour)) || !got.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected updated contact %#v", got)
	}
	missing := bo
	missing.ID = "c9"
	if err := repo.UpdateContact(ctx, missing); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	project, _ := domain.NewProject(domain.ProjectInput{
		ID:              "p1",
		Name:            "Ana and Bo",
		Visibility:      domain.VisibilityOneOnOne,
		SharedContactID: "c2",
		CreatedBy:       "u1",
	}, testNow)
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	loaded, err := repo.GetProject(ctx, "p1")
	if err != nil || loaded.Visibility != domain.VisibilityOneOnOne || loaded.SharedContactID != "c2" {
		t.Fatalf("GetProject() = %#v, %v", loaded, err)
	}
	if _, err := repo.GetProject(ctx, "nope"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_TaskLedger(t *testing.T) {
	ctx := app.WithMutationActor(context.Background(), app.MutationActor{ActorID: "u1"})
	repo := openTestRepo(t)
	project, _ := domain.NewProject(domain.ProjectInput{ID: "p1", Name: "Ops", CreatedBy: "u1"}, testNow)
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	gate, _ := domain.NewGate(domain.GateInput{ID: "g1", Name: "approval", OwnerContactID: "c2"})
	task, _ := domain.NewTask(domain.TaskInput{ID: "t1", ProjectID: "p1", Description: "renew", OwnerIDs: []string{"c1"}, Gates: []domain.Gate{gate}, CreatedBy: "u1"}, testNow)
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	loaded, err := repo.GetTask(ctx, "t1")
	if err != nil || !loaded.Gated() || loaded.OwnerIDs[0] != "c1" || !loaded.LastMovementAt.Equal(testNow) {
		t.Fatalf("GetTask() = %#v, %v", loaded, err)
	}

	if _, err := loaded.AssignOwner("c2", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("AssignOwner() error = %v", err)
	}
	if err := repo.UpdateTask(ctx, loaded); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	note, _ := domain.NewNote(domain.NoteInput{ID: "n1", TaskID: "t1", Body: "sent reminder"}, testNow.Add(2*time.Hour))
	if err := repo.CreateNote(ctx, note); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	events, err := repo.ListTaskChangeEvents(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("ListTaskChangeEvents() error = %v", err)
	}
	if len(events) != 3 || events[0].Operation != domain.ChangeOperationNote || events[1].Operation != domain.ChangeOperationOwner {
		t.Fatalf("unexpected events %#v", events)
	}
	if events[1].Metadata["owners"] != "c1,c2" || events[2].ActorID != "u1" {
		t.Fatalf("unexpected event detail %#v", events)
	}

	if err := repo.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if tasks, _ := repo.ListTasks(ctx, ""); len(tasks) != 0 {
		t.Fatalf("expected tasks removed with project, got %d", len(tasks))
	}
	if notes, _ := repo.ListNotes(ctx, "t1"); len(notes) != 0 {
		t.Fatalf("expected notes removed with project, got %d", len(notes))
	}
}

func TestServiceOverGorm(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	clock := testNow
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}, func() time.Time { return clock }, app.ServiceConfig{})

	admin, _ := domain.NewUser(domain.UserInput{ID: "u-admin", Role: domain.RoleAdmin}, clock)
	if err := repo.UpsertUser(ctx, admin); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	actor, err := svc.ResolveActor(ctx, "u-admin")
	if err != nil {
		t.Fatalf("ResolveActor() error = %v", err)
	}
	if _, err := svc.SubmitBugReport(ctx, actor, app.BugReportSubmission{Description: "export button greyed out"}); err != nil {
		t.Fatalf("SubmitBugReport() error = %v", err)
	}
	inbox, err := svc.ListBugReports(ctx, actor)
	if err != nil || len(inbox) != 1 || inbox[0].Report.Status != domain.BugStatusOpen {
		t.Fatalf("ListBugReports() = %#v, %v", inbox, err)
	}
	if _, err := svc.ResolveBugReport(ctx, actor, inbox[0].Report.ID); err != nil {
		t.Fatalf("ResolveBugReport() error = %v", err)
	}
	resolved, _ := repo.GetBugReport(ctx, inbox[0].Report.ID)
	if resolved.Status != domain.BugStatusResolved || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved report %#v", resolved)
	}
}
