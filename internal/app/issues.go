package app

import (
	"context"

	"github.com/g3/tornado/internal/domain"
)

// IssueScope selects which tasks feed the issues dashboard.
type IssueScope string

// IssueScope values.
const (
	IssueScopeVisible IssueScope = "visible"
	IssueScopeAll     IssueScope = "all"
)

// IssueView is an issue with the labels a dashboard row shows.
type IssueView struct {
	domain.Issue
	TaskDescription string
	ProjectName     string
	OwnerNames      []string
	GateOwnerName   string
}

// ListIssues runs the issue aggregator over the actor's visible tasks, or
// over every task for admins asking for IssueScopeAll.
func (s *Service) ListIssues(ctx context.Context, actor domain.ActorContext, scope IssueScope) ([]IssueView, error) {
	if scope == IssueScopeAll && !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	snap, err := s.loadWorld(ctx, "")
	if err != nil {
		return nil, err
	}
	tasks := snap.tasks
	if scope != IssueScopeAll {
		tasks = domain.VisibleTasks(snap.tasks, snap.projects, snap.contacts, actor)
	}
	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	issues := domain.BuildIssues(tasks, s.clock(), s.cfg.IssueThresholds)
	out := make([]IssueView, 0, len(issues))
	for _, issue := range issues {
		task := byID[issue.TaskID]
		view := IssueView{
			Issue:           issue,
			TaskDescription: task.Description,
			ProjectName:     snap.projectName(task.ProjectID),
			OwnerNames:      make([]string, 0, len(task.OwnerIDs)),
		}
		for _, id := range task.OwnerIDs {
			if name := snap.names[id]; name != "" {
				view.OwnerNames = append(view.OwnerNames, name)
			}
		}
		if issue.Gate != nil {
			view.GateOwnerName = snap.names[issue.Gate.OwnerContactID]
		}
		out = append(out, view)
	}
	return out, nil
}
