// Package auth verifies bearer tokens from the hosted auth provider and issues
// short-lived impersonation and development tokens signed with the same secret.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	ImpersonatorID string `json:"impersonator_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller behind a token.
type Identity struct {
	UserID         string
	Email          string
	DisplayName    string
	ImpersonatorID string
	ExpiresAt      time.Time
}

// Config holds token settings.
type Config struct {
	Secret           string
	Issuer           string
	TokenTTL         time.Duration
	ImpersonationTTL time.Duration
}

// Tokens signs and verifies HS256 tokens.
type Tokens struct {
	secret           []byte
	issuer           string
	tokenTTL         time.Duration
	impersonationTTL time.Duration
	now              func() time.Time
}

// Option customizes Tokens.
type Option func(*Tokens)

// WithClock overrides the time source used for issuing and validation.
func WithClock(now func() time.Time) Option {
	return func(t *Tokens) {
		if now != nil {
			t.now = now
		}
	}
}

// New constructs Tokens. An empty secret is rejected.
func New(cfg Config, opts ...Option) (*Tokens, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	t := &Tokens{
		secret:           []byte(secret),
		issuer:           strings.TrimSpace(cfg.Issuer),
		tokenTTL:         cfg.TokenTTL,
		impersonationTTL: cfg.ImpersonationTTL,
		now:              time.Now,
	}
	if t.tokenTTL <= 0 {
		t.tokenTTL = 24 * time.Hour
	}
	if t.impersonationTTL <= 0 {
		t.impersonationTTL = time.Hour
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID, email, name string) (string, error) {
	return t.sign(Claims{Email: email, Name: name}, userID, t.tokenTTL)
}

// IssueImpersonation signs a token that lets adminID act as targetUserID.
// Whether adminID is allowed to is decided when the token is used.
func (t *Tokens) IssueImpersonation(adminID, targetUserID string) (string, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return "", fmt.Errorf("%w: impersonator is required", ErrInvalidToken)
	}
	return t.sign(Claims{ImpersonatorID: adminID}, targetUserID, t.impersonationTTL)
}

func (t *Tokens) sign(claims Claims, subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	now := t.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a raw token and returns the caller identity.
func (t *Tokens) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(t.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{
		UserID:         strings.TrimSpace(claims.Subject),
		Email:          strings.TrimSpace(claims.Email),
		DisplayName:    strings.TrimSpace(claims.Name),
		ImpersonatorID: strings.TrimSpace(claims.ImpersonatorID),
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return id, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
