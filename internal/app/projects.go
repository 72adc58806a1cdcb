package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/g3/tornado/internal/domain"
)

// CreateProjectInput holds values for project creation.
type CreateProjectInput struct {
	Name            string
	Description     string
	Visibility      domain.Visibility
	Affiliations    []domain.CompanyID
	SharedContactID string
}

// CreateProject creates a project owned by the acting user.
func (s *Service) CreateProject(ctx context.Context, actor domain.ActorContext, in CreateProjectInput) (domain.Project, error) {
	if err := s.checkCompanies(in.Affiliations); err != nil {
		return domain.Project{}, err
	}
	project, err := domain.NewProject(domain.ProjectInput{
		ID:              s.idGen(),
		Name:            in.Name,
		Description:     in.Description,
		Visibility:      in.Visibility,
		Affiliations:    in.Affiliations,
		CreatedBy:       actor.UserID,
		SharedContactID: in.SharedContactID,
	}, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if project.SharedContactID != "" {
		if _, err := s.visibleContact(ctx, actor, project.SharedContactID); err != nil {
			return domain.Project{}, fmt.Errorf("shared contact: %w", err)
		}
	}
	if err := s.assignUniqueSlug(ctx, &project); err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(withActor(ctx, actor), project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// UpdateProjectInput holds optional project changes. Nil fields are left untouched.
type UpdateProjectInput struct {
	Name            *string
	Description     *string
	Visibility      *domain.Visibility
	SharedContactID *string
	Affiliations    *[]domain.CompanyID
}

// UpdateProject edits a project; only its creator or an admin may.
func (s *Service) UpdateProject(ctx context.Context, actor domain.ActorContext, projectID string, in UpdateProjectInput) (domain.Project, error) {
	project, err := s.visibleProject(ctx, actor, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !canManageProject(project, actor) {
		return domain.Project{}, ErrForbidden
	}
	now := s.clock()
	if in.Name != nil {
		if err := project.Rename(*in.Name, now); err != nil {
			return domain.Project{}, err
		}
		if err := s.assignUniqueSlug(ctx, &project); err != nil {
			return domain.Project{}, err
		}
	}
	if in.Description != nil {
		project.SetDescription(*in.Description, now)
	}
	if in.Visibility != nil || in.SharedContactID != nil {
		visibility := project.Visibility
		if in.Visibility != nil {
			visibility = *in.Visibility
		}
		shared := project.SharedContactID
		if in.SharedContactID != nil {
			shared = *in.SharedContactID
		}
		if err := project.SetVisibility(visibility, shared, now); err != nil {
			return domain.Project{}, err
		}
		if project.SharedContactID != "" {
			if _, err := s.visibleContact(ctx, actor, project.SharedContactID); err != nil {
				return domain.Project{}, fmt.Errorf("shared contact: %w", err)
			}
		}
	}
	if in.Affiliations != nil {
		if err := s.checkCompanies(*in.Affiliations); err != nil {
			return domain.Project{}, err
		}
		if err := project.SetAffiliations(*in.Affiliations, now); err != nil {
			return domain.Project{}, err
		}
	}
	if err := s.repo.UpdateProject(withActor(ctx, actor), project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// DeleteProject deletes a project that has no tasks.
func (s *Service) DeleteProject(ctx context.Context, actor domain.ActorContext, projectID string) error {
	project, err := s.visibleProject(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if !canManageProject(project, actor) {
		return ErrForbidden
	}
	tasks, err := s.repo.ListTasks(ctx, project.ID)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		return fmt.Errorf("%w: %d tasks", ErrProjectNotEmpty, len(tasks))
	}
	return s.repo.DeleteProject(withActor(ctx, actor), project.ID)
}

// GetProject returns a project the actor may see.
func (s *Service) GetProject(ctx context.Context, actor domain.ActorContext, projectID string) (domain.Project, error) {
	return s.visibleProject(ctx, actor, projectID)
}

// ListVisibleProjects lists projects the actor may see, ordered by name.
func (s *Service) ListVisibleProjects(ctx context.Context, actor domain.ActorContext) ([]domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := domain.FilterProjects(projects, actor)
	slices.SortStableFunc(out, func(a, b domain.Project) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

func (s *Service) visibleProject(ctx context.Context, actor domain.ActorContext, projectID string) (domain.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Project{}, domain.ErrInvalidProjectID
	}
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !domain.IsProjectVisible(project, actor) {
		return domain.Project{}, ErrNotFound
	}
	return project, nil
}

// assignUniqueSlug suffixes the slug with the id prefix on collision.
func (s *Service) assignUniqueSlug(ctx context.Context, project *domain.Project) error {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return err
	}
	taken := false
	for _, p := range projects {
		if p.ID != project.ID && p.Slug == project.Slug {
			taken = true
			break
		}
	}
	if !taken {
		return nil
	}
	suffix := strings.ReplaceAll(project.ID, "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	project.Slug = project.Slug + "-" + strings.ToLower(suffix)
	return nil
}

func canManageProject(project domain.Project, actor domain.ActorContext) bool {
	return actor.IsAdmin() || (actor.UserID != "" && project.CreatedBy == actor.UserID)
}
