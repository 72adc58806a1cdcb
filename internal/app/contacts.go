package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/g3/tornado/internal/domain"
)

// CreateContactInput holds values for contact creation.
type CreateContactInput struct {
	Name         string
	Email        string
	Phone        string
	Affiliations []domain.CompanyID
	IsVendor     bool
	IsPrivate    bool
}

// CreateContact creates a contact. Private contacts belong to the acting user.
func (s *Service) CreateContact(ctx context.Context, actor domain.ActorContext, in CreateContactInput) (domain.Contact, error) {
	if err := s.checkCompanies(in.Affiliations); err != nil {
		return domain.Contact{}, err
	}
	ownerID := ""
	if in.IsPrivate {
		ownerID = actor.UserID
	}
	contact, err := domain.NewContact(domain.ContactInput{
		ID:             s.idGen(),
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Affiliations:   in.Affiliations,
		IsVendor:       in.IsVendor,
		IsPrivate:      in.IsPrivate,
		PrivateOwnerID: ownerID,
	}, s.clock())
	if err != nil {
		return domain.Contact{}, err
	}
	if err := s.ensureUniqueContactName(ctx, contact.Name, ""); err != nil {
		return domain.Contact{}, err
	}
	if err := s.repo.CreateContact(withActor(ctx, actor), contact); err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

// UpdateContactInput holds optional contact changes. Nil fields are left untouched.
type UpdateContactInput struct {
	Name      *string
	Email     *string
	Phone     *string
	Companies map[domain.CompanyID]bool
	IsVendor  *bool
	IsPrivate *bool
}

// UpdateContact renames a contact or toggles its flags. Gate and task
// ownership reference the contact id, so renames need no rewrite.
func (s *Service) UpdateContact(ctx context.Context, actor domain.ActorContext, contactID string, in UpdateContactInput) (domain.Contact, error) {
	contact, err := s.visibleContact(ctx, actor, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	now := s.clock()

	name, email, phone := contact.Name, contact.Email, contact.Phone
	if in.Name != nil {
		name = *in.Name
	}
	if in.Email != nil {
		email = *in.Email
	}
	if in.Phone != nil {
		phone = *in.Phone
	}
	if err := contact.SetDetails(name, email, phone, now); err != nil {
		return domain.Contact{}, err
	}
	if in.Name != nil {
		if err := s.ensureUniqueContactName(ctx, contact.Name, contact.ID); err != nil {
			return domain.Contact{}, err
		}
	}

	// Flags are applied on a copy and validated once so a batch of toggles
	// can move through an intermediate unscoped state.
	next := contact
	companies := make([]domain.CompanyID, 0, len(in.Companies))
	for id := range in.Companies {
		companies = append(companies, id)
	}
	slices.Sort(companies)
	if err := s.checkCompanies(companies); err != nil {
		return domain.Contact{}, err
	}
	for _, id := range companies {
		if in.Companies[id] {
			next.Affiliations = next.Affiliations.With(id)
		} else {
			next.Affiliations = next.Affiliations.Without(id)
		}
	}
	if in.IsVendor != nil {
		next.IsVendor = *in.IsVendor
	}
	if in.IsPrivate != nil {
		next.IsPrivate = *in.IsPrivate
		next.PrivateOwnerID = ""
		if *in.IsPrivate {
			next.PrivateOwnerID = contact.PrivateOwnerID
			if next.PrivateOwnerID == "" {
				next.PrivateOwnerID = actor.UserID
			}
		}
	}
	if err := next.Validate(); err != nil {
		return domain.Contact{}, err
	}
	next.UpdatedAt = now.UTC()

	if err := s.repo.UpdateContact(withActor(ctx, actor), next); err != nil {
		return domain.Contact{}, err
	}
	return next, nil
}

// SetContactVoided voids or restores a contact; admin only.
func (s *Service) SetContactVoided(ctx context.Context, actor domain.ActorContext, contactID string, voided bool) (domain.Contact, error) {
	if !actor.IsAdmin() {
		return domain.Contact{}, ErrAdminRequired
	}
	contact, err := s.repo.GetContact(ctx, strings.TrimSpace(contactID))
	if err != nil {
		return domain.Contact{}, err
	}
	contact.SetVoided(voided, s.clock())
	if err := s.repo.UpdateContact(withActor(ctx, actor), contact); err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

// MergeResult reports what a contact merge touched.
type MergeResult struct {
	Target        domain.Contact
	TasksUpdated  int
	UsersRelinked int
}

// MergeContacts moves every task owner and gate owner reference from source to
// target, relinks users, then deletes source. Admin only.
func (s *Service) MergeContacts(ctx context.Context, actor domain.ActorContext, sourceID, targetID string) (MergeResult, error) {
	if !actor.IsAdmin() {
		return MergeResult{}, ErrAdminRequired
	}
	sourceID = strings.TrimSpace(sourceID)
	targetID = strings.TrimSpace(targetID)
	if sourceID == "" || targetID == "" {
		return MergeResult{}, domain.ErrInvalidID
	}
	if sourceID == targetID {
		return MergeResult{}, ErrSelfMerge
	}
	if _, err := s.repo.GetContact(ctx, sourceID); err != nil {
		return MergeResult{}, fmt.Errorf("merge source: %w", err)
	}
	target, err := s.repo.GetContact(ctx, targetID)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge target: %w", err)
	}

	ctx = withActor(ctx, actor)
	now := s.clock()
	tasks, err := s.repo.ListTasks(ctx, "")
	if err != nil {
		return MergeResult{}, err
	}
	result := MergeResult{Target: target}
	for _, task := range tasks {
		if !task.ReplaceContact(sourceID, targetID, now) {
			continue
		}
		if err := s.repo.UpdateTask(ctx, task); err != nil {
			return result, fmt.Errorf("reassign task %s: %w", task.ID, err)
		}
		result.TasksUpdated++
	}

	relinked, err := s.relinkUsers(ctx, sourceID, targetID)
	if err != nil {
		return result, err
	}
	result.UsersRelinked = relinked

	if err := s.repo.DeleteContact(ctx, sourceID); err != nil {
		return result, err
	}
	return result, nil
}

// DeleteContact deletes an unreferenced contact. With cascade, task and gate
// references and user links are removed first. Admins may delete any contact;
// members only their own private contacts.
func (s *Service) DeleteContact(ctx context.Context, actor domain.ActorContext, contactID string, cascade bool) error {
	contact, err := s.visibleContact(ctx, actor, contactID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !(contact.IsPrivate && contact.PrivateOwnerID == actor.UserID) {
		return ErrForbidden
	}

	ctx = withActor(ctx, actor)
	tasks, err := s.repo.ListTasks(ctx, "")
	if err != nil {
		return err
	}
	referencing := make([]domain.Task, 0)
	for _, task := range tasks {
		if task.References(contact.ID) {
			referencing = append(referencing, task)
		}
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	linked := 0
	for _, u := range users {
		if u.ContactID == contact.ID {
			linked++
		}
	}
	if (len(referencing) > 0 || linked > 0) && !cascade {
		return fmt.Errorf("%w: %d tasks, %d users", ErrContactInUse, len(referencing), linked)
	}

	now := s.clock()
	for _, task := range referencing {
		task.DropContact(contact.ID, now)
		if err := s.repo.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("drop contact from task %s: %w", task.ID, err)
		}
	}
	if _, err := s.relinkUsers(ctx, contact.ID, ""); err != nil {
		return err
	}
	return s.repo.DeleteContact(ctx, contact.ID)
}

// ListVisibleContacts lists contacts the actor may see, ordered by name.
func (s *Service) ListVisibleContacts(ctx context.Context, actor domain.ActorContext) ([]domain.Contact, error) {
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	out := domain.FilterContacts(contacts, actor)
	sortContacts(out)
	return out, nil
}

// ListAssignableContacts lists contacts that may own tasks in the project.
func (s *Service) ListAssignableContacts(ctx context.Context, actor domain.ActorContext, projectID string) ([]domain.Contact, error) {
	project, err := s.visibleProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	out := domain.FilterContactsByProject(contacts, project, actor)
	sortContacts(out)
	return out, nil
}

func (s *Service) visibleContact(ctx context.Context, actor domain.ActorContext, contactID string) (domain.Contact, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return domain.Contact{}, domain.ErrInvalidID
	}
	contact, err := s.repo.GetContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	if !domain.PolicyFor(actor).CanViewContact(contact, actor) {
		return domain.Contact{}, ErrNotFound
	}
	return contact, nil
}

func (s *Service) ensureUniqueContactName(ctx context.Context, name, exceptID string) error {
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return err
	}
	for _, c := range contacts {
		if c.ID != exceptID && domain.SameName(c.Name, name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return nil
}

// relinkUsers points users linked to fromID at toID (or unlinks them when toID is empty).
func (s *Service) relinkUsers(ctx context.Context, fromID, toID string) (int, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, u := range users {
		if u.ContactID != fromID {
			continue
		}
		u.ContactID = toID
		u.UpdatedAt = s.clock().UTC()
		if err := s.repo.UpsertUser(ctx, u); err != nil {
			return count, fmt.Errorf("relink user %s: %w", u.ID, err)
		}
		count++
	}
	return count, nil
}

func sortContacts(contacts []domain.Contact) {
	slices.SortStableFunc(contacts, func(a, b domain.Contact) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

func contactNames(contacts []domain.Contact) map[string]string {
	out := make(map[string]string, len(contacts))
	for _, c := range contacts {
		out[c.ID] = c.Name
	}
	return out
}
