package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Visibility controls who may see a project and its tasks.
type Visibility string

// Visibility values.
const (
	VisibilityShared   Visibility = "shared"
	VisibilityPersonal Visibility = "personal"
	VisibilityOneOnOne Visibility = "one_on_one"
)

var validVisibilities = []Visibility{VisibilityShared, VisibilityPersonal, VisibilityOneOnOne}

// NormalizeVisibility canonicalizes visibility values. Empty means shared.
func NormalizeVisibility(v Visibility) Visibility {
	v = Visibility(strings.ToLower(strings.TrimSpace(string(v))))
	switch v {
	case "":
		return VisibilityShared
	case "one-on-one", "1on1", "oneonone":
		return VisibilityOneOnOne
	}
	return v
}

// IsValidVisibility reports whether the visibility mode is supported.
func IsValidVisibility(v Visibility) bool {
	return slices.Contains(validVisibilities, NormalizeVisibility(v))
}

// Project groups tasks and carries the visibility rules for them.
type Project struct {
	ID              string
	Slug            string
	Name            string
	Description     string
	Visibility      Visibility
	Affiliations    Affiliations
	CreatedBy       string
	SharedContactID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProjectInput holds values for project creation.
type ProjectInput struct {
	ID              string
	Name            string
	Description     string
	Visibility      Visibility
	Affiliations    []CompanyID
	CreatedBy       string
	SharedContactID string
}

// NewProject constructs a normalized project.
func NewProject(in ProjectInput, now time.Time) (Project, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Project{}, ErrInvalidID
	}
	createdBy := strings.TrimSpace(in.CreatedBy)
	if createdBy == "" {
		return Project{}, ErrInvalidID
	}
	affiliations, err := NewAffiliations(in.Affiliations...)
	if err != nil {
		return Project{}, err
	}
	p := Project{
		ID:           in.ID,
		Affiliations: affiliations,
		CreatedBy:    createdBy,
		CreatedAt:    now.UTC(),
	}
	if err := p.Rename(in.Name, now); err != nil {
		return Project{}, err
	}
	p.Description = strings.TrimSpace(in.Description)
	if err := p.SetVisibility(in.Visibility, in.SharedContactID, now); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Rename updates the name and derived slug.
func (p *Project) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	s := slug.Make(name)
	if s == "" {
		return ErrInvalidName
	}
	p.Name = name
	p.Slug = s
	p.UpdatedAt = now.UTC()
	return nil
}

// SetDescription replaces the description.
func (p *Project) SetDescription(description string, now time.Time) {
	p.Description = strings.TrimSpace(description)
	p.UpdatedAt = now.UTC()
}

// SetVisibility switches the visibility mode. One-on-one projects need a shared contact;
// other modes drop it.
func (p *Project) SetVisibility(v Visibility, sharedContactID string, now time.Time) error {
	v = NormalizeVisibility(v)
	if !IsValidVisibility(v) {
		return ErrInvalidVisibility
	}
	sharedContactID = strings.TrimSpace(sharedContactID)
	if v == VisibilityOneOnOne && sharedContactID == "" {
		return ErrInvalidSharedContact
	}
	if v != VisibilityOneOnOne {
		sharedContactID = ""
	}
	p.Visibility = v
	p.SharedContactID = sharedContactID
	p.UpdatedAt = now.UTC()
	return nil
}

// SetAffiliations replaces the company flags.
func (p *Project) SetAffiliations(ids []CompanyID, now time.Time) error {
	affiliations, err := NewAffiliations(ids...)
	if err != nil {
		return err
	}
	p.Affiliations = affiliations
	p.UpdatedAt = now.UTC()
	return nil
}
