package postgres

import (
	"time"

	"github.com/g3/tornado/internal/domain"
)

// Row models carry explicit timestamps from the domain, so gorm's automatic
// CreatedAt/UpdatedAt tracking is switched off on every table.

type userRow struct {
	ID          string    `gorm:"primaryKey"`
	Email       string    `gorm:"not null;default:''"`
	DisplayName string    `gorm:"not null;default:''"`
	Role        string    `gorm:"not null;default:user"`
	ContactID   string    `gorm:"not null;default:'';index"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (userRow) TableName() string { return "users" }

type contactRow struct {
	ID             string    `gorm:"primaryKey"`
	Name           string    `gorm:"not null"`
	Email          string    `gorm:"not null;default:''"`
	Phone          string    `gorm:"not null;default:''"`
	Affiliations   string    `gorm:"not null;default:''"`
	IsVendor       bool      `gorm:"not null;default:false"`
	IsPrivate      bool      `gorm:"not null;default:false"`
	PrivateOwnerID string    `gorm:"not null;default:''"`
	Voided         bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (contactRow) TableName() string { return "contacts" }

type projectRow struct {
	ID              string    `gorm:"primaryKey"`
	Slug            string    `gorm:"not null;index"`
	Name            string    `gorm:"not null"`
	Description     string    `gorm:"not null;default:''"`
	Visibility      string    `gorm:"not null;default:shared"`
	Affiliations    string    `gorm:"not null;default:''"`
	CreatedBy       string    `gorm:"not null"`
	SharedContactID string    `gorm:"not null;default:''"`
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

func (projectRow) TableName() string { return "projects" }

type gateJSON struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OwnerContactID string     `json:"owner_contact_id,omitempty"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type taskRow struct {
	ID               string     `gorm:"primaryKey"`
	ProjectID        string     `gorm:"not null;index"`
	Description      string     `gorm:"not null"`
	NextStep         string     `gorm:"not null;default:''"`
	Status           string     `gorm:"not null;default:open"`
	CadenceDays      int        `gorm:"not null"`
	OwnerIDs         []string   `gorm:"serializer:json"`
	Gates            []gateJSON `gorm:"serializer:json"`
	LastMovementAt   time.Time
	CloseRequestedAt *time.Time
	CloseRequestedBy string `gorm:"not null;default:''"`
	ClosedAt         *time.Time
	CreatedBy        string    `gorm:"not null;default:''"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (taskRow) TableName() string { return "tasks" }

type noteRow struct {
	ID           string    `gorm:"primaryKey"`
	TaskID       string    `gorm:"not null;index"`
	Body         string    `gorm:"not null"`
	AuthorUserID string    `gorm:"not null;default:''"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

func (noteRow) TableName() string { return "notes" }

type changeEventRow struct {
	ID         int64             `gorm:"primaryKey;autoIncrement"`
	ProjectID  string            `gorm:"not null"`
	TaskID     string            `gorm:"not null;index"`
	Operation  string            `gorm:"not null"`
	ActorID    string            `gorm:"not null"`
	Metadata   map[string]string `gorm:"serializer:json"`
	OccurredAt time.Time         `gorm:"index"`
}

func (changeEventRow) TableName() string { return "change_events" }

type bugReportRow struct {
	ID             string    `gorm:"primaryKey"`
	ReporterUserID string    `gorm:"not null;default:''"`
	Description    string    `gorm:"not null"`
	PageURL        string    `gorm:"not null;default:''"`
	ScreenshotKey  string    `gorm:"not null;default:''"`
	Status         string    `gorm:"not null;default:open"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	ResolvedAt     *time.Time
}

func (bugReportRow) TableName() string { return "bug_reports" }

func toUserRow(u domain.User) userRow {
	return userRow{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		ContactID:   u.ContactID,
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Role:        domain.NormalizeRole(domain.Role(r.Role)),
		ContactID:   r.ContactID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func toContactRow(c domain.Contact) contactRow {
	return contactRow{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		Affiliations:   c.Affiliations.String(),
		IsVendor:       c.IsVendor,
		IsPrivate:      c.IsPrivate,
		PrivateOwnerID: c.PrivateOwnerID,
		Voided:         c.Voided,
		CreatedAt:      c.CreatedAt.UTC(),
		UpdatedAt:      c.UpdatedAt.UTC(),
	}
}

func (r contactRow) toDomain() (domain.Contact, error) {
	affiliations, err := domain.ParseAffiliations(r.Affiliations)
	if err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Affiliations:   affiliations,
		IsVendor:       r.IsVendor,
		IsPrivate:      r.IsPrivate,
		PrivateOwnerID: r.PrivateOwnerID,
		Voided:         r.Voided,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

func toProjectRow(p domain.Project) projectRow {
	return projectRow{
		ID:              p.ID,
		Slug:            p.Slug,
		Name:            p.Name,
		Description:     p.Description,
		Visibility:      string(p.Visibility),
		Affiliations:    p.Affiliations.String(),
		CreatedBy:       p.CreatedBy,
		SharedContactID: p.SharedContactID,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func (r projectRow) toDomain() (domain.Project, error) {
	affiliations, err := domain.ParseAffiliations(r.Affiliations)
	if err != nil {
		return domain.Project{}, err
	}
	return domain.Project{
		ID:              r.ID,
		Slug:            r.Slug,
		Name:            r.Name,
		Description:     r.Description,
		Visibility:      domain.NormalizeVisibility(domain.Visibility(r.Visibility)),
		Affiliations:    affiliations,
		CreatedBy:       r.CreatedBy,
		SharedContactID: r.SharedContactID,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}, nil
}

func toTaskRow(t domain.Task) taskRow {
	owners := t.OwnerIDs
	if owners == nil {
		owners = []string{}
	}
	gates := make([]gateJSON, 0, len(t.Gates))
	for _, g := range t.Gates {
		gates = append(gates, gateJSON{
			ID:             g.ID,
			Name:           g.Name,
			OwnerContactID: g.OwnerContactID,
			Completed:      g.Completed,
			CompletedAt:    utcPtr(g.CompletedAt),
		})
	}
	return taskRow{
		ID:               t.ID,
		ProjectID:        t.ProjectID,
		Description:      t.Description,
		NextStep:         t.NextStep,
		Status:           string(t.Status),
		CadenceDays:      t.CadenceDays,
		OwnerIDs:         owners,
		Gates:            gates,
		LastMovementAt:   t.LastMovementAt.UTC(),
		CloseRequestedAt: utcPtr(t.CloseRequestedAt),
		CloseRequestedBy: t.CloseRequestedBy,
		ClosedAt:         utcPtr(t.ClosedAt),
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
}

func (r taskRow) toDomain() domain.Task {
	gates := make([]domain.Gate, 0, len(r.Gates))
	for _, g := range r.Gates {
		gates = append(gates, domain.Gate{
			ID:             g.ID,
			Name:           g.Name,
			OwnerContactID: g.OwnerContactID,
			Completed:      g.Completed,
			CompletedAt:    utcPtr(g.CompletedAt),
		})
	}
	owners := r.OwnerIDs
	if owners == nil {
		owners = []string{}
	}
	return domain.Task{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		Description:      r.Description,
		NextStep:         r.NextStep,
		Status:           domain.NormalizeTaskStatus(domain.TaskStatus(r.Status)),
		CadenceDays:      r.CadenceDays,
		OwnerIDs:         owners,
		Gates:            gates,
		LastMovementAt:   r.LastMovementAt.UTC(),
		CloseRequestedAt: utcPtr(r.CloseRequestedAt),
		CloseRequestedBy: r.CloseRequestedBy,
		ClosedAt:         utcPtr(r.ClosedAt),
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (r bugReportRow) toDomain() domain.BugReport {
	return domain.BugReport{
		ID:             r.ID,
		ReporterUserID: r.ReporterUserID,
		Description:    r.Description,
		PageURL:        r.PageURL,
		ScreenshotKey:  r.ScreenshotKey,
		Status:         domain.BugStatus(r.Status),
		CreatedAt:      r.CreatedAt.UTC(),
		ResolvedAt:     utcPtr(r.ResolvedAt),
	}
}

func toBugReportRow(b domain.BugReport) bugReportRow {
	return bugReportRow{
		ID:             b.ID,
		ReporterUserID: b.ReporterUserID,
		Description:    b.Description,
		PageURL:        b.PageURL,
		ScreenshotKey:  b.ScreenshotKey,
		Status:         string(b.Status),
		CreatedAt:      b.CreatedAt.UTC(),
		ResolvedAt:     utcPtr(b.ResolvedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
