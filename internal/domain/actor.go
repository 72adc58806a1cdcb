package domain

import "slices"

// ActorContext is the identity every filter and use-case receives explicitly.
// It is built once per request and never mutated afterwards.
type ActorContext struct {
	UserID         string
	ContactID      string
	Role           Role
	Affiliations   Affiliations
	IsVendor       bool
	ImpersonatorID string
}

// NewActorContext derives an actor from a user and the contact linked to it.
// A zero contact yields an actor with no affiliations.
func NewActorContext(user User, contact Contact) ActorContext {
	actor := ActorContext{
		UserID: user.ID,
		Role:   user.Role,
	}
	if contact.ID != "" {
		actor.ContactID = contact.ID
		actor.Affiliations = slices.Clone(contact.Affiliations)
		actor.IsVendor = contact.IsVendor
	}
	return actor
}

// IsAdmin reports whether the actor holds the admin role.
func (a ActorContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Impersonated reports whether an admin is acting as this actor.
func (a ActorContext) Impersonated() bool {
	return a.ImpersonatorID != ""
}

// WithImpersonator returns a copy stamped with the impersonating admin.
func (a ActorContext) WithImpersonator(adminUserID string) ActorContext {
	a.Affiliations = slices.Clone(a.Affiliations)
	a.ImpersonatorID = adminUserID
	return a
}
