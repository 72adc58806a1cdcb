package domain

import (
	"slices"
	"strings"
	"time"
)

// Role is the management role of a signed-in user.
type Role string

// Role values.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var validRoles = []Role{RoleUser, RoleAdmin}

// NormalizeRole canonicalizes a role value.
func NormalizeRole(role Role) Role {
	return Role(strings.ToLower(strings.TrimSpace(string(role))))
}

// IsValidRole reports whether the role is supported.
func IsValidRole(role Role) bool {
	return slices.Contains(validRoles, NormalizeRole(role))
}

// User links an externally authenticated login to its contact record.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	ContactID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput holds values for user provisioning.
type UserInput struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	ContactID   string
}

// NewUser constructs a normalized user.
func NewUser(in UserInput, now time.Time) (User, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return User{}, ErrInvalidID
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" && !strings.Contains(email, "@") {
		return User{}, ErrInvalidEmail
	}
	role := NormalizeRole(in.Role)
	if role == "" {
		role = RoleUser
	}
	if !IsValidRole(role) {
		return User{}, ErrInvalidRole
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = email
	}
	ts := now.UTC()
	return User{
		ID:          in.ID,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		ContactID:   strings.TrimSpace(in.ContactID),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
