package domain

// VisibilityPolicy decides what an actor may see. Admin bypass is its own
// strategy rather than a branch inside member rules.
type VisibilityPolicy interface {
	CanViewProject(p Project, actor ActorContext) bool
	CanViewContact(c Contact, actor ActorContext) bool
	CanAssignContact(c Contact, p Project, actor ActorContext) bool
}

// AdminPolicy bypasses all company scoping.
type AdminPolicy struct{}

// MemberPolicy scopes projects and contacts by company affiliation.
type MemberPolicy struct{}

var (
	_ VisibilityPolicy = AdminPolicy{}
	_ VisibilityPolicy = MemberPolicy{}
)

// PolicyFor selects the policy matching the actor's role.
func PolicyFor(actor ActorContext) VisibilityPolicy {
	if actor.IsAdmin() {
		return AdminPolicy{}
	}
	return MemberPolicy{}
}

// CanViewProject always allows admins.
func (AdminPolicy) CanViewProject(Project, ActorContext) bool {
	return true
}

// CanViewContact always allows admins.
func (AdminPolicy) CanViewContact(Contact, ActorContext) bool {
	return true
}

// CanAssignContact allows any contact that is not voided.
func (AdminPolicy) CanAssignContact(c Contact, _ Project, _ ActorContext) bool {
	return !c.Voided
}

// CanViewProject applies the visibility mode of the project.
func (MemberPolicy) CanViewProject(p Project, actor ActorContext) bool {
	switch NormalizeVisibility(p.Visibility) {
	case VisibilityPersonal:
		return actor.UserID != "" && p.CreatedBy == actor.UserID
	case VisibilityOneOnOne:
		if actor.UserID != "" && p.CreatedBy == actor.UserID {
			return true
		}
		return actor.ContactID != "" && p.SharedContactID == actor.ContactID
	default:
		// Unscoped shared projects are visible to everyone.
		if p.Affiliations.Empty() {
			return true
		}
		if actor.IsVendor {
			return true
		}
		return p.Affiliations.Intersects(actor.Affiliations)
	}
}

// CanViewContact hides private contacts from everyone but their owner.
func (MemberPolicy) CanViewContact(c Contact, actor ActorContext) bool {
	if !c.IsPrivate {
		return true
	}
	return actor.UserID != "" && c.PrivateOwnerID == actor.UserID
}

// CanAssignContact reports whether the contact may own work in the project.
func (m MemberPolicy) CanAssignContact(c Contact, p Project, actor ActorContext) bool {
	if c.Voided || !m.CanViewContact(c, actor) {
		return false
	}
	if NormalizeVisibility(p.Visibility) != VisibilityShared {
		// Company flags are ignored here; the actor's own private contacts qualify.
		return !c.Affiliations.Empty() || c.IsVendor || c.IsPrivate
	}
	if c.Affiliations.Empty() {
		return false
	}
	if p.Affiliations.Empty() {
		return true
	}
	return c.Affiliations.Intersects(p.Affiliations)
}

// IsProjectVisible reports whether the actor may see the project.
func IsProjectVisible(p Project, actor ActorContext) bool {
	return PolicyFor(actor).CanViewProject(p, actor)
}

// FilterProjects keeps the projects the actor may see, in input order.
func FilterProjects(projects []Project, actor ActorContext) []Project {
	policy := PolicyFor(actor)
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		if policy.CanViewProject(p, actor) {
			out = append(out, p)
		}
	}
	return out
}

// FilterContacts keeps the contacts the actor may see, in input order.
func FilterContacts(contacts []Contact, actor ActorContext) []Contact {
	policy := PolicyFor(actor)
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if policy.CanViewContact(c, actor) {
			out = append(out, c)
		}
	}
	return out
}

// FilterContactsByProject keeps the contacts that may be assigned to tasks in the project.
func FilterContactsByProject(contacts []Contact, p Project, actor ActorContext) []Contact {
	policy := PolicyFor(actor)
	out := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if policy.CanAssignContact(c, p, actor) {
			out = append(out, c)
		}
	}
	return out
}

// CanViewTask reports whether the actor may see the task. The role does not
// matter here: a task is visible to its assignees, unless every assignee has
// been voided, and to the creator of its project.
func CanViewTask(t Task, projectCreatedBy string, voided map[string]bool, actor ActorContext) bool {
	if actor.UserID != "" && projectCreatedBy == actor.UserID {
		return true
	}
	if actor.ContactID == "" || !t.HasOwner(actor.ContactID) {
		return false
	}
	return !allVoided(t.OwnerIDs, voided)
}

// VisibleTasks keeps the tasks the actor may see, in input order.
func VisibleTasks(tasks []Task, projects []Project, contacts []Contact, actor ActorContext) []Task {
	creators := make(map[string]string, len(projects))
	for _, p := range projects {
		creators[p.ID] = p.CreatedBy
	}
	voided := VoidedContactIDs(contacts)
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if CanViewTask(t, creators[t.ProjectID], voided, actor) {
			out = append(out, t)
		}
	}
	return out
}

// VoidedContactIDs indexes the voided contacts by id.
func VoidedContactIDs(contacts []Contact) map[string]bool {
	voided := make(map[string]bool)
	for _, c := range contacts {
		if c.Voided {
			voided[c.ID] = true
		}
	}
	return voided
}

func allVoided(ids []string, voided map[string]bool) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !voided[id] {
			return false
		}
	}
	return true
}
