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

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultCadenceDays int
	IssueThresholds    domain.IssueThresholds
	// KnownCompanies restricts affiliation keys when non-empty.
	KnownCompanies     []domain.CompanyID
	ScreenshotURLTTL   time.Duration
	MaxScreenshotBytes int
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceOption wires optional collaborators.
type ServiceOption func(*Service)

// WithObjectStore enables screenshot storage for bug reports.
func WithObjectStore(store ObjectStore) ServiceOption {
	return func(s *Service) {
		s.objects = store
	}
}

// WithNotifier enables follow-up digest delivery.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// Service implements the tracker use-cases over a Repository.
type Service struct {
	repo     Repository
	idGen    IDGenerator
	clock    Clock
	cfg      ServiceConfig
	objects  ObjectStore
	notifier Notifier
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig, opts ...ServiceOption) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultCadenceDays <= 0 {
		cfg.DefaultCadenceDays = domain.DefaultCadenceDays
	}
	def := domain.DefaultIssueThresholds()
	if cfg.IssueThresholds.CriticalOverdueDays <= 0 {
		cfg.IssueThresholds.CriticalOverdueDays = def.CriticalOverdueDays
	}
	if cfg.IssueThresholds.CloseRequestWarningDays <= 0 {
		cfg.IssueThresholds.CloseRequestWarningDays = def.CloseRequestWarningDays
	}
	if cfg.IssueThresholds.InactiveDays <= 0 {
		cfg.IssueThresholds.InactiveDays = def.InactiveDays
	}
	if cfg.ScreenshotURLTTL <= 0 {
		cfg.ScreenshotURLTTL = 15 * time.Minute
	}
	if cfg.MaxScreenshotBytes <= 0 {
		cfg.MaxScreenshotBytes = 5 << 20
	}
	known := make([]domain.CompanyID, 0, len(cfg.KnownCompanies))
	for _, id := range cfg.KnownCompanies {
		if id = domain.NormalizeCompanyID(id); id != "" {
			known = append(known, id)
		}
	}
	cfg.KnownCompanies = known

	s := &Service{
		repo:  repo,
		idGen: idGen,
		clock: clock,
		cfg:   cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// IssueThresholds returns the thresholds the service evaluates issues with.
func (s *Service) IssueThresholds() domain.IssueThresholds {
	return s.cfg.IssueThresholds
}

// ProvisionUser creates the user on first sight or refreshes its profile.
// An empty role keeps the stored role (user for new accounts).
func (s *Service) ProvisionUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	now := s.clock()
	existing, err := s.repo.GetUser(ctx, strings.TrimSpace(in.ID))
	switch {
	case errors.Is(err, ErrNotFound):
		user, err := domain.NewUser(in, now)
		if err != nil {
			return domain.User{}, err
		}
		if user.ContactID != "" {
			if _, err := s.repo.GetContact(ctx, user.ContactID); err != nil {
				return domain.User{}, fmt.Errorf("link contact: %w", err)
			}
		}
		if err := s.repo.UpsertUser(ctx, user); err != nil {
			return domain.User{}, err
		}
		return user, nil
	case err != nil:
		return domain.User{}, err
	}

	if strings.TrimSpace(in.ContactID) == "" {
		in.ContactID = existing.ContactID
	}
	if strings.TrimSpace(string(in.Role)) == "" {
		in.Role = existing.Role
	}
	if strings.TrimSpace(in.Email) == "" {
		in.Email = existing.Email
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		in.DisplayName = existing.DisplayName
	}
	updated, err := domain.NewUser(in, now)
	if err != nil {
		return domain.User{}, err
	}
	if updated.Email == existing.Email && updated.DisplayName == existing.DisplayName &&
		updated.Role == existing.Role && updated.ContactID == existing.ContactID {
		return existing, nil
	}
	updated.CreatedAt = existing.CreatedAt
	if err := s.repo.UpsertUser(ctx, updated); err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

// ResolveActor builds the immutable actor context for a user id.
func (s *Service) ResolveActor(ctx context.Context, userID string) (domain.ActorContext, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ActorContext{}, domain.ErrInvalidID
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return domain.ActorContext{}, err
	}
	var contact domain.Contact
	if user.ContactID != "" {
		contact, err = s.repo.GetContact(ctx, user.ContactID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return domain.ActorContext{}, err
		}
	}
	return domain.NewActorContext(user, contact), nil
}

// Impersonate lets an admin act as another user. The returned context carries
// the target's role and affiliations plus the admin's id for attribution.
func (s *Service) Impersonate(ctx context.Context, admin domain.ActorContext, targetUserID string) (domain.ActorContext, error) {
	if !admin.IsAdmin() {
		return domain.ActorContext{}, ErrAdminRequired
	}
	if admin.Impersonated() {
		return domain.ActorContext{}, ErrAlreadyImpersonating
	}
	target, err := s.ResolveActor(ctx, targetUserID)
	if err != nil {
		return domain.ActorContext{}, err
	}
	return target.WithImpersonator(admin.UserID), nil
}

// SetUserRole changes the role of a user.
func (s *Service) SetUserRole(ctx context.Context, actor domain.ActorContext, userID string, role domain.Role) (domain.User, error) {
	if !actor.IsAdmin() {
		return domain.User{}, ErrAdminRequired
	}
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.User{}, err
	}
	role = domain.NormalizeRole(role)
	if !domain.IsValidRole(role) {
		return domain.User{}, domain.ErrInvalidRole
	}
	user.Role = role
	user.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpsertUser(withActor(ctx, actor), user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// LinkUserContact links a user to its contact record. Users may link
// themselves; linking anyone else requires admin.
func (s *Service) LinkUserContact(ctx context.Context, actor domain.ActorContext, userID, contactID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID != actor.UserID && !actor.IsAdmin() {
		return domain.User{}, ErrForbidden
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	contact, err := s.visibleContact(ctx, actor, contactID)
	if err != nil {
		return domain.User{}, err
	}
	user.ContactID = contact.ID
	user.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpsertUser(withActor(ctx, actor), user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ListUsers lists users; admin only.
func (s *Service) ListUsers(ctx context.Context, actor domain.ActorContext) ([]domain.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
	})
	return users, nil
}

// checkCompanies rejects affiliation keys outside the configured company list.
func (s *Service) checkCompanies(ids []domain.CompanyID) error {
	if len(s.cfg.KnownCompanies) == 0 {
		return nil
	}
	for _, id := range ids {
		if !slices.Contains(s.cfg.KnownCompanies, domain.NormalizeCompanyID(id)) {
			return fmt.Errorf("%w: %q", ErrUnknownCompany, id)
		}
	}
	return nil
}
