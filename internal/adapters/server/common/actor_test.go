package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/g3/tornado/internal/adapters/auth"
	"github.com/g3/tornado/internal/domain"
)

func newTestAuthenticator(t *testing.T, f fixture) (*Authenticator, *auth.Tokens) {
	t.Helper()
	tokens, err := auth.New(auth.Config{Secret: "s3cret", Issuer: "tornado-test"}, auth.WithClock(func() time.Time { return *f.now }))
	if err != nil {
		t.Fatalf("auth.New() error = %v", err)
	}
	return NewAuthenticator(tokens, f.svc), tokens
}

func TestAuthenticatorProvisionsOnFirstSight(t *testing.T) {
	f := newFixture(t)
	authn, tokens := newTestAuthenticator(t, f)

	raw, err := tokens.Issue("u-new", "New@Acme.example", "Newcomer")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	actor, err := authn.Authenticate(context.Background(), "Bearer "+raw)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if actor.UserID != "u-new" || actor.Role != domain.RoleUser || actor.ContactID != "" {
		t.Fatalf("unexpected actor %#v", actor)
	}

	users, err := f.svc.ListUsers(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	found := false
	for _, u := range users {
		if u.ID == "u-new" {
			found = u.Email == "new@acme.example" && u.DisplayName == "Newcomer"
		}
	}
	if !found {
		t.Fatalf("expected provisioned user, got %#v", users)
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	authn, tokens := newTestAuthenticator(t, f)

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		if _, err := authn.Authenticate(context.Background(), header); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("Authenticate(%q) expected ErrUnauthenticated, got %v", header, err)
		}
	}

	raw, _ := tokens.Issue("u-ana", "", "")
	*f.now = f.now.Add(48 * time.Hour)
	if _, err := authn.Authenticate(context.Background(), "Bearer "+raw); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestAuthenticatorImpersonation(t *testing.T) {
	f := newFixture(t)
	authn, _ := newTestAuthenticator(t, f)

	if _, err := authn.Impersonate(WithActor(context.Background(), f.ana), ImpersonateRequest{UserID: "u-admin"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	if _, err := authn.Impersonate(WithActor(context.Background(), f.admin), ImpersonateRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty user, got %v", err)
	}

	grant, err := authn.Impersonate(WithActor(context.Background(), f.admin), ImpersonateRequest{UserID: "u-ana"})
	if err != nil {
		t.Fatalf("Impersonate() error = %v", err)
	}
	if grant.Actor.UserID != "u-ana" || grant.Actor.ImpersonatorID != "u-admin" || grant.Actor.Role != "user" {
		t.Fatalf("unexpected grant actor %#v", grant.Actor)
	}
	if !grant.ExpiresAt.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("expected one hour grant, got %s", grant.ExpiresAt)
	}

	actor, err := authn.Authenticate(context.Background(), "Bearer "+grant.Token)
	if err != nil {
		t.Fatalf("Authenticate(impersonation) error = %v", err)
	}
	if actor.UserID != "u-ana" || actor.ContactID != f.anaID || actor.ImpersonatorID != "u-admin" {
		t.Fatalf("unexpected impersonated actor %#v", actor)
	}

	if _, err := authn.Impersonate(WithActor(context.Background(), actor), ImpersonateRequest{UserID: "u-admin"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected nested impersonation to be forbidden, got %v", err)
	}
}
