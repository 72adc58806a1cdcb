package domain

import (
	"strings"
	"time"
)

// Contact is a person or vendor that can own tasks and gates.
type Contact struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Affiliations   Affiliations
	IsVendor       bool
	IsPrivate      bool
	PrivateOwnerID string
	Voided         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ContactInput holds values for contact creation.
type ContactInput struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Affiliations   []CompanyID
	IsVendor       bool
	IsPrivate      bool
	PrivateOwnerID string
}

// NewContact constructs a contact and enforces the scoping invariant.
func NewContact(in ContactInput, now time.Time) (Contact, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Contact{}, ErrInvalidID
	}
	affiliations, err := NewAffiliations(in.Affiliations...)
	if err != nil {
		return Contact{}, err
	}
	c := Contact{
		ID:             in.ID,
		Affiliations:   affiliations,
		IsVendor:       in.IsVendor,
		IsPrivate:      in.IsPrivate,
		PrivateOwnerID: strings.TrimSpace(in.PrivateOwnerID),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if err := c.SetDetails(in.Name, in.Email, in.Phone, now); err != nil {
		return Contact{}, err
	}
	if err := c.Validate(); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// Validate checks the write-time scoping invariant.
func (c Contact) Validate() error {
	if c.Affiliations.Empty() && !c.IsVendor && !c.IsPrivate {
		return ErrContactUnscoped
	}
	if c.IsPrivate && c.PrivateOwnerID == "" {
		return ErrInvalidPrivateOwner
	}
	return nil
}

// SetDetails updates the display name and optional reach-out fields.
func (c *Contact) SetDetails(name, email, phone string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" && !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	c.Name = name
	c.Email = email
	c.Phone = strings.TrimSpace(phone)
	c.UpdatedAt = now.UTC()
	return nil
}

// SetAffiliation toggles one company flag.
func (c *Contact) SetAffiliation(id CompanyID, on bool, now time.Time) error {
	if NormalizeCompanyID(id) == "" {
		return ErrInvalidCompanyID
	}
	next := *c
	if on {
		next.Affiliations = c.Affiliations.With(id)
	} else {
		next.Affiliations = c.Affiliations.Without(id)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	c.Affiliations = next.Affiliations
	c.UpdatedAt = now.UTC()
	return nil
}

// SetVendor toggles the third-party vendor flag.
func (c *Contact) SetVendor(on bool, now time.Time) error {
	next := *c
	next.IsVendor = on
	if err := next.Validate(); err != nil {
		return err
	}
	c.IsVendor = on
	c.UpdatedAt = now.UTC()
	return nil
}

// SetPrivate toggles the private flag. ownerID is required when turning it on.
func (c *Contact) SetPrivate(on bool, ownerID string, now time.Time) error {
	next := *c
	next.IsPrivate = on
	next.PrivateOwnerID = ""
	if on {
		next.PrivateOwnerID = strings.TrimSpace(ownerID)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	c.IsPrivate = next.IsPrivate
	c.PrivateOwnerID = next.PrivateOwnerID
	c.UpdatedAt = now.UTC()
	return nil
}

// SetVoided marks the contact as administratively voided.
func (c *Contact) SetVoided(voided bool, now time.Time) {
	c.Voided = voided
	c.UpdatedAt = now.UTC()
}

// SameName reports whether two display names collide.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
