package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/g3/tornado/internal/adapters/auth"
	"github.com/g3/tornado/internal/adapters/server/common"
	"github.com/g3/tornado/internal/adapters/storage/sqlite"
	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/domain"
	"github.com/google/uuid"
)

// testServer wires real tokens and an in-memory tracker behind the composed handler.
func testServer(t *testing.T, ready func(context.Context) error, logger *charmLog.Logger) (*httptest.Server, *auth.Tokens) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := app.NewService(repo, uuid.NewString, time.Now, app.ServiceConfig{
		DefaultCadenceDays: domain.DefaultCadenceDays,
		IssueThresholds:    domain.DefaultIssueThresholds(),
	})
	tokens, err := auth.New(auth.Config{Secret: "server-test", Issuer: "tornado-test"})
	if err != nil {
		t.Fatalf("auth.New() error = %v", err)
	}
	if ready == nil {
		ready = repo.Ping
	}
	handler, cfg, err := NewHandler(Config{}, Dependencies{
		Tracker:       common.NewAppServiceAdapter(svc),
		Authenticator: common.NewAuthenticator(tokens, svc),
		Ready:         ready,
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.ServerName != "tornado" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, tokens
}

// get sends one GET with an optional bearer token.
func get(t *testing.T, server *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// TestHealthRoutesSkipAuth verifies probes answer without a token.
func TestHealthRoutesSkipAuth(t *testing.T) {
	server, _ := testServer(t, nil, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		if resp := get(t, server, path, ""); resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

// TestReadyzReportsStorageFailure verifies the readiness probe surfaces storage errors.
func TestReadyzReportsStorageFailure(t *testing.T) {
	server, _ := testServer(t, func(context.Context) error { return errors.New("db down") }, nil)
	if resp := get(t, server, "/readyz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", resp.StatusCode)
	}
	if resp := get(t, server, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}
}

// TestAPIRequiresToken verifies both mounted API paths authenticate.
func TestAPIRequiresToken(t *testing.T) {
	server, tokens := testServer(t, nil, nil)

	resp := get(t, server, "/api/v1/me", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Fatalf("WWW-Authenticate = %q", got)
	}

	raw, err := tokens.Issue("u-kim", "kim@g3.example", "Kim")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	resp = get(t, server, "/api/v1/me", raw)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var me common.Actor
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if me.UserID != "u-kim" {
		t.Fatalf("me = %#v, want u-kim", me)
	}

	if resp := get(t, server, "/api/v1", raw); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bare api root status = %d, want 404", resp.StatusCode)
	}
}

// TestMCPRequiresToken verifies the MCP endpoint sits behind the same authenticator.
func TestMCPRequiresToken(t *testing.T) {
	server, tokens := testServer(t, nil, nil)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`

	post := func(token string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/mcp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := server.Client().Do(req)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	if resp := post(""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	raw, _ := tokens.Issue("u-kim", "", "")
	if resp := post(raw); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

// TestRequestLogging verifies one structured line per request at the right level.
func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := charmLog.NewWithOptions(&buf, charmLog.Options{Level: charmLog.DebugLevel})
	server, _ := testServer(t, nil, logger)

	get(t, server, "/healthz", "")
	get(t, server, "/api/v1/tasks", "")

	out := buf.String()
	if !strings.Contains(out, "path=/healthz") || !strings.Contains(out, "status=200") {
		t.Fatalf("missing healthz log line in %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "status=401") {
		t.Fatalf("missing warn line for 401 in %q", out)
	}
}

// TestNewHandlerRequiresDependencies verifies constructor validation.
func TestNewHandlerRequiresDependencies(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("NewHandler() error = nil, want tracker error")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{Tracker: common.NewAppServiceAdapter(nil)}); err == nil {
		t.Fatal("NewHandler() error = nil, want authenticator error")
	}
}

// TestNormalizeConfig verifies defaults and endpoint collision checks.
func TestNormalizeConfig(t *testing.T) {
	cfg, err := normalizeConfig(Config{APIEndpoint: "api/", MCPEndpoint: " /tools/ "})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	if cfg.APIEndpoint != "/api" || cfg.MCPEndpoint != "/tools" || cfg.ServerVersion != "dev" {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if _, err := normalizeConfig(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}); err == nil {
		t.Fatal("normalizeConfig() error = nil, want collision error")
	}
	if got := normalizeEndpoint("/", "/mcp"); got != "/mcp" {
		t.Fatalf("normalizeEndpoint(/) = %q, want /mcp", got)
	}
}
