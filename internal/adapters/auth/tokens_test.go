package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokens(t *testing.T, now *time.Time) *Tokens {
	t.Helper()
	tokens, err := New(Config{Secret: "s3cret", Issuer: "tornado-test"}, WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tokens
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(Config{Secret: "  "}); err == nil {
		t.Fatal("expected empty secret to fail")
	}
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, &now)

	raw, err := tokens.Issue("u-ana", "ana@acme.example", "Ana")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	id, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != "u-ana" || id.Email != "ana@acme.example" || id.DisplayName != "Ana" || id.ImpersonatorID != "" {
		t.Fatalf("unexpected identity %#v", id)
	}
	if !id.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expected default 24h expiry, got %s", id.ExpiresAt)
	}

	now = now.Add(25 * time.Hour)
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestIssueImpersonation(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, &now)

	raw, err := tokens.IssueImpersonation("u-admin", "u-bo")
	if err != nil {
		t.Fatalf("IssueImpersonation() error = %v", err)
	}
	id, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != "u-bo" || id.ImpersonatorID != "u-admin" || !id.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected identity %#v", id)
	}
	if _, err := tokens.IssueImpersonation("", "u-bo"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing impersonator, got %v", err)
	}
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tokens := newTestTokens(t, &now)

	other, _ := New(Config{Secret: "different", Issuer: "tornado-test"}, WithClock(func() time.Time { return now }))
	wrongKey, _ := other.Issue("u-ana", "", "")

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-ana",
		Issuer:    "elsewhere",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString([]byte("s3cret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u-ana",
		Issuer:  "tornado-test",
	}}).SignedString([]byte("s3cret"))

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "tornado-test",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString([]byte("s3cret"))

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: " ", want: ErrMissingToken},
		{name: "garbage", raw: "not-a-jwt", want: ErrInvalidToken},
		{name: "wrong key", raw: wrongKey, want: ErrInvalidToken},
		{name: "wrong issuer", raw: wrongIssuer, want: ErrInvalidToken},
		{name: "no expiry", raw: noExpiry, want: ErrInvalidToken},
		{name: "no subject", raw: noSubject, want: ErrInvalidToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tokens.Verify(tc.raw); !errors.Is(err, tc.want) {
				t.Fatalf("Verify() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    error
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer  abc ", want: "abc"},
		{header: "", err: ErrMissingToken},
		{header: "Basic abc", err: ErrInvalidToken},
		{header: "Bearer", err: ErrInvalidToken},
	}
	for _, tc := range tests {
		got, err := BearerToken(tc.header)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, got, err, tc.want, tc.err)
		}
	}
}
