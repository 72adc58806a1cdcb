package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/g3/tornado/internal/adapters/auth"
	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
)

// actorContextKey stores the resolved request actor.
type actorContextKey struct{}

// WithActor attaches the resolved actor to ctx.
func WithActor(ctx context.Context, actor domain.ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor attached by WithActor.
func ActorFromContext(ctx context.Context) (domain.ActorContext, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.ActorContext)
	if !ok || actor.UserID == "" {
		return domain.ActorContext{}, false
	}
	return actor, true
}

func requireActor(ctx context.Context) (domain.ActorContext, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.ActorContext{}, fmt.Errorf("request has no actor: %w", ErrUnauthenticated)
	}
	return actor, nil
}

// TokenService verifies and mints bearer tokens.
type TokenService interface {
	Verify(raw string) (auth.Identity, error)
	IssueImpersonation(adminUserID, targetUserID string) (string, error)
}

// IdentityService turns a verified identity into an actor.
type IdentityService interface {
	ProvisionUser(ctx context.Context, in domain.UserInput) (domain.User, error)
	ResolveActor(ctx context.Context, userID string) (domain.ActorContext, error)
	Impersonate(ctx context.Context, admin domain.ActorContext, targetUserID string) (domain.ActorContext, error)
}

// RequestAuthenticator is what transports need from an authenticator.
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, header string) (domain.ActorContext, error)
	Impersonate(ctx context.Context, in ImpersonateRequest) (ImpersonationGrant, error)
}

// Authenticator resolves bearer tokens into actors.
type Authenticator struct {
	tokens   TokenService
	identity IdentityService
}

// NewAuthenticator builds an authenticator over a token verifier and the identity use-cases.
func NewAuthenticator(tokens TokenService, identity IdentityService) *Authenticator {
	return &Authenticator{tokens: tokens, identity: identity}
}

var _ RequestAuthenticator = (*Authenticator)(nil)

// Authenticate verifies an Authorization header value and resolves the actor.
// First sight of a user provisions it. Impersonation tokens resolve the
// admin first and then narrow to the target user.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (domain.ActorContext, error) {
	if a == nil || a.tokens == nil || a.identity == nil {
		return domain.ActorContext{}, fmt.Errorf("authenticator is not configured: %w", ErrUnavailable)
	}
	raw, err := auth.BearerToken(header)
	if err != nil {
		return domain.ActorContext{}, fmt.Errorf("authenticate: %w", errors.Join(ErrUnauthenticated, err))
	}
	id, err := a.tokens.Verify(raw)
	if err != nil {
		return domain.ActorContext{}, fmt.Errorf("authenticate: %w", errors.Join(ErrUnauthenticated, err))
	}

	if id.ImpersonatorID != "" {
		admin, err := a.identity.ResolveActor(ctx, id.ImpersonatorID)
		if err != nil {
			return domain.ActorContext{}, mapAppError("resolve impersonator", unknownUserAsUnauthenticated(err))
		}
		actor, err := a.identity.Impersonate(ctx, admin, id.UserID)
		if err != nil {
			return domain.ActorContext{}, mapAppError("impersonate", err)
		}
		return actor, nil
	}

	if _, err := a.identity.ProvisionUser(ctx, domain.UserInput{
		ID:          id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	}); err != nil {
		return domain.ActorContext{}, mapAppError("provision user", err)
	}
	actor, err := a.identity.ResolveActor(ctx, id.UserID)
	if err != nil {
		return domain.ActorContext{}, mapAppError("resolve actor", err)
	}
	return actor, nil
}

// Impersonate mints a token that lets the calling admin act as another user.
func (a *Authenticator) Impersonate(ctx context.Context, in ImpersonateRequest) (ImpersonationGrant, error) {
	admin, err := requireActor(ctx)
	if err != nil {
		return ImpersonationGrant{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return ImpersonationGrant{}, err
	}
	target, err := a.identity.Impersonate(ctx, admin, in.UserID)
	if err != nil {
		return ImpersonationGrant{}, mapAppError("impersonate", err)
	}
	raw, err := a.tokens.IssueImpersonation(admin.UserID, target.UserID)
	if err != nil {
		return ImpersonationGrant{}, fmt.Errorf("issue impersonation token: %w", err)
	}
	id, err := a.tokens.Verify(raw)
	if err != nil {
		return ImpersonationGrant{}, fmt.Errorf("verify impersonation token: %w", err)
	}
	return ImpersonationGrant{Token: raw, Actor: mapActor(target), ExpiresAt: id.ExpiresAt.UTC().Truncate(time.Second)}, nil
}

func unknownUserAsUnauthenticated(err error) error {
	if errors.Is(err, app.ErrNotFound) {
		return errors.Join(ErrUnauthenticated, err)
	}
	return err
}
