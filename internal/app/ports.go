package app

import (
	"context"
	"time"

	"github.com/g3/tornado/internal/domain"
)

// Repository is the persistence port the service depends on.
type Repository interface {
	UpsertUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)

	CreateContact(context.Context, domain.Contact) error
	UpdateContact(context.Context, domain.Contact) error
	GetContact(context.Context, string) (domain.Contact, error)
	ListContacts(context.Context) ([]domain.Contact, error)
	DeleteContact(context.Context, string) error

	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context) ([]domain.Project, error)
	DeleteProject(context.Context, string) error

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	// ListTasks lists tasks for one project, or every task when projectID is empty.
	ListTasks(context.Context, string) ([]domain.Task, error)
	DeleteTask(context.Context, string) error

	CreateNote(context.Context, domain.Note) error
	ListNotes(context.Context, string) ([]domain.Note, error)
	ListTaskChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)

	CreateBugReport(context.Context, domain.BugReport) error
	UpdateBugReport(context.Context, domain.BugReport) error
	GetBugReport(context.Context, string) (domain.BugReport, error)
	ListBugReports(context.Context) ([]domain.BugReport, error)
}

// ObjectStore keeps binary attachments such as bug-report screenshots.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Notifier delivers follow-up digests to an external channel.
type Notifier interface {
	NotifyDigest(context.Context, FollowUpDigest) error
}
