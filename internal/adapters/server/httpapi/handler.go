// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/g3/tornado/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// maxBugReportBodyBytes leaves room for a base64 screenshot.
const maxBugReportBodyBytes int64 = 8 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	tracker common.TrackerService
	authn   common.RequestAuthenticator
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter. Callers wrap it with
// Authenticate so every route sees a resolved actor.
func NewHandler(tracker common.TrackerService, authn common.RequestAuthenticator) *Handler {
	return &Handler{tracker: tracker, authn: authn}
}

// Authenticate resolves the bearer token on every request and rejects
// unauthenticated callers with a 401 envelope.
func Authenticate(authn common.RequestAuthenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authn == nil {
			writeJSONError(w, http.StatusServiceUnavailable, APIError{
				Code:    "unavailable",
				Message: "authentication is not configured",
			})
			return
		}
		actor, err := authn.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithActor(r.Context(), actor)))
	})
}

// methods maps HTTP methods to the handler for one route.
type methods map[string]func()

// dispatch runs the handler registered for r.Method or writes a 405.
func dispatch(w http.ResponseWriter, r *http.Request, routes methods) {
	if fn, ok := routes[r.Method]; ok {
		fn()
		return
	}
	allowed := make([]string, 0, len(routes))
	for m := range routes {
		allowed = append(allowed, m)
	}
	slices.Sort(allowed)
	writeMethodNotAllowed(w, allowed...)
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.tracker == nil {
		writeErrorFrom(w, fmt.Errorf("tracker service is not configured: %w", common.ErrUnavailable))
		return
	}
	seg := strings.Split(normalizePath(r.URL.Path), "/")
	switch seg[0] {
	case "me":
		if len(seg) == 1 {
			dispatch(w, r, methods{http.MethodGet: func() { h.handleMe(w, r) }})
			return
		}
	case "projects":
		if h.routeProjects(w, r, seg[1:]) {
			return
		}
	case "contacts":
		if h.routeContacts(w, r, seg[1:]) {
			return
		}
	case "tasks":
		if h.routeTasks(w, r, seg[1:]) {
			return
		}
	case "issues":
		if len(seg) == 1 {
			dispatch(w, r, methods{http.MethodGet: func() { h.handleListIssues(w, r) }})
			return
		}
	case "bug-reports":
		if h.routeBugReports(w, r, seg[1:]) {
			return
		}
	case "admin":
		if len(seg) == 2 && seg[1] == "impersonate" {
			dispatch(w, r, methods{http.MethodPost: func() { h.handleImpersonate(w, r) }})
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

func (h *Handler) routeProjects(w http.ResponseWriter, r *http.Request, seg []string) bool {
	switch {
	case len(seg) == 0:
		dispatch(w, r, methods{
			http.MethodGet:  func() { respond(w, http.StatusOK)(h.tracker.ListProjects(r.Context())) },
			http.MethodPost: func() { h.handleCreateProject(w, r) },
		})
	case len(seg) == 1 && seg[0] != "":
		id := seg[0]
		dispatch(w, r, methods{
			http.MethodGet:    func() { respond(w, http.StatusOK)(h.tracker.GetProject(r.Context(), id)) },
			http.MethodPatch:  func() { h.handleUpdateProject(w, r, id) },
			http.MethodDelete: func() { respondEmpty(w, h.tracker.DeleteProject(r.Context(), id)) },
		})
	case len(seg) == 2 && seg[1] == "contacts":
		dispatch(w, r, methods{
			http.MethodGet: func() { respond(w, http.StatusOK)(h.tracker.ListAssignableContacts(r.Context(), seg[0])) },
		})
	default:
		return false
	}
	return true
}

func (h *Handler) routeContacts(w http.ResponseWriter, r *http.Request, seg []string) bool {
	switch {
	case len(seg) == 0:
		dispatch(w, r, methods{
			http.MethodGet:  func() { respond(w, http.StatusOK)(h.tracker.ListContacts(r.Context())) },
			http.MethodPost: func() { h.handleCreateContact(w, r) },
		})
	case len(seg) == 1 && seg[0] != "":
		id := seg[0]
		dispatch(w, r, methods{
			http.MethodPatch:  func() { h.handleUpdateContact(w, r, id) },
			http.MethodDelete: func() { h.handleDeleteContact(w, r, id) },
		})
	case len(seg) == 2 && seg[1] == "merge":
		dispatch(w, r, methods{http.MethodPost: func() { h.handleMergeContact(w, r, seg[0]) }})
	case len(seg) == 2 && seg[1] == "void":
		dispatch(w, r, methods{http.MethodPost: func() { h.handleVoidContact(w, r, seg[0]) }})
	default:
		return false
	}
	return true
}

func (h *Handler) routeTasks(w http.ResponseWriter, r *http.Request, seg []string) bool {
	if len(seg) == 0 {
		dispatch(w, r, methods{
			http.MethodGet:  func() { h.handleListTasks(w, r) },
			http.MethodPost: func() { h.handleCreateTask(w, r) },
		})
		return true
	}
	id := seg[0]
	if id == "" {
		return false
	}
	ctx := r.Context()
	rest := strings.Join(seg[1:], "/")
	switch {
	case rest == "":
		dispatch(w, r, methods{
			http.MethodGet:    func() { respond(w, http.StatusOK)(h.tracker.GetTask(ctx, id)) },
			http.MethodPatch:  func() { h.handleUpdateTask(w, r, id) },
			http.MethodDelete: func() { respondEmpty(w, h.tracker.DeleteTask(ctx, id)) },
		})
	case rest == "notes":
		dispatch(w, r, methods{
			http.MethodGet:  func() { respond(w, http.StatusOK)(h.tracker.ListNotes(ctx, id)) },
			http.MethodPost: func() { h.handleAddNote(w, r, id) },
		})
	case rest == "activity":
		dispatch(w, r, methods{http.MethodGet: func() { h.handleListActivity(w, r, id) }})
	case rest == "gates":
		dispatch(w, r, methods{http.MethodPost: func() { h.handleAddGate(w, r, id) }})
	case len(seg) == 3 && seg[1] == "gates":
		dispatch(w, r, methods{
			http.MethodDelete: func() { respond(w, http.StatusOK)(h.tracker.RemoveGate(ctx, id, seg[2])) },
		})
	case len(seg) == 4 && seg[1] == "gates" && seg[3] == "complete":
		dispatch(w, r, methods{
			http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.CompleteGate(ctx, id, seg[2])) },
		})
	case len(seg) == 4 && seg[1] == "gates" && seg[3] == "reopen":
		dispatch(w, r, methods{
			http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.ReopenGate(ctx, id, seg[2])) },
		})
	case rest == "owners":
		dispatch(w, r, methods{http.MethodPost: func() { h.handleAssignOwner(w, r, id) }})
	case len(seg) == 3 && seg[1] == "owners":
		dispatch(w, r, methods{
			http.MethodDelete: func() { respond(w, http.StatusOK)(h.tracker.UnassignOwner(ctx, id, seg[2])) },
		})
	case rest == "close":
		dispatch(w, r, methods{http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.CloseTask(ctx, id)) }})
	case rest == "close/approve":
		dispatch(w, r, methods{http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.ApproveClose(ctx, id)) }})
	case rest == "close/reject":
		dispatch(w, r, methods{http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.RejectClose(ctx, id)) }})
	case rest == "reopen":
		dispatch(w, r, methods{http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.ReopenTask(ctx, id)) }})
	default:
		return false
	}
	return true
}

func (h *Handler) routeBugReports(w http.ResponseWriter, r *http.Request, seg []string) bool {
	switch {
	case len(seg) == 0:
		dispatch(w, r, methods{
			http.MethodGet:  func() { respond(w, http.StatusOK)(h.tracker.ListBugReports(r.Context())) },
			http.MethodPost: func() { h.handleSubmitBugReport(w, r) },
		})
	case len(seg) == 2 && seg[0] != "" && seg[1] == "resolve":
		dispatch(w, r, methods{
			http.MethodPost: func() { respond(w, http.StatusOK)(h.tracker.ResolveBugReport(r.Context(), seg[0])) },
		})
	default:
		return false
	}
	return true
}

// handleMe serves GET `/me`.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK)(h.tracker.Me(r.Context()))
}

// handleCreateProject serves POST `/projects`.
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req common.CreateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusCreated)(h.tracker.CreateProject(r.Context(), req))
}

// handleUpdateProject serves PATCH `/projects/{id}`.
func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request, projectID string) {
	var req common.UpdateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.UpdateProject(r.Context(), projectID, req))
}

// handleCreateContact serves POST `/contacts`.
func (h *Handler) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req common.CreateContactRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusCreated)(h.tracker.CreateContact(r.Context(), req))
}

// handleUpdateContact serves PATCH `/contacts/{id}`.
func (h *Handler) handleUpdateContact(w http.ResponseWriter, r *http.Request, contactID string) {
	var req common.UpdateContactRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.UpdateContact(r.Context(), contactID, req))
}

// handleDeleteContact serves DELETE `/contacts/{id}?cascade=true`.
func (h *Handler) handleDeleteContact(w http.ResponseWriter, r *http.Request, contactID string) {
	cascade, err := queryBool(r, "cascade")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	respondEmpty(w, h.tracker.DeleteContact(r.Context(), contactID, cascade))
}

// handleMergeContact serves POST `/contacts/{id}/merge`.
func (h *Handler) handleMergeContact(w http.ResponseWriter, r *http.Request, sourceID string) {
	var req common.MergeContactRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.MergeContacts(r.Context(), sourceID, req.TargetID))
}

// handleVoidContact serves POST `/contacts/{id}/void`. An empty body voids.
func (h *Handler) handleVoidContact(w http.ResponseWriter, r *http.Request, contactID string) {
	req := common.VoidContactRequest{Voided: true}
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req, maxRequestBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.SetContactVoided(r.Context(), contactID, req.Voided))
}

// handleListTasks serves GET `/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	includeClosed, err := queryBool(r, "include_closed")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	staleOnly, err := queryBool(r, "stale_only")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.ListTasks(r.Context(), common.ListTasksRequest{
		ProjectID:     strings.TrimSpace(r.URL.Query().Get("project_id")),
		IncludeClosed: includeClosed,
		StaleOnly:     staleOnly,
	}))
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusCreated)(h.tracker.CreateTask(r.Context(), req))
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.UpdateTask(r.Context(), taskID, req))
}

// handleAddNote serves POST `/tasks/{id}/notes`.
func (h *Handler) handleAddNote(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.NoteRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusCreated)(h.tracker.AddNote(r.Context(), taskID, req))
}

// handleAddGate serves POST `/tasks/{id}/gates`.
func (h *Handler) handleAddGate(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.GateRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.AddGate(r.Context(), taskID, req))
}

// handleAssignOwner serves POST `/tasks/{id}/owners`.
func (h *Handler) handleAssignOwner(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.OwnerRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusOK)(h.tracker.AssignOwner(r.Context(), taskID, req.ContactID))
}

// handleListActivity serves GET `/tasks/{id}/activity?limit=N`.
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request, taskID string) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorFrom(w, fmt.Errorf("limit must be a non-negative integer: %w", common.ErrInvalidRequest))
			return
		}
		limit = parsed
	}
	respond(w, http.StatusOK)(h.tracker.ListActivity(r.Context(), taskID, limit))
}

// handleListIssues serves GET `/issues?scope=visible|all`.
func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	scope := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("scope")))
	switch scope {
	case "", "visible":
		respond(w, http.StatusOK)(h.tracker.ListIssues(r.Context(), false))
	case "all":
		respond(w, http.StatusOK)(h.tracker.ListIssues(r.Context(), true))
	default:
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: fmt.Sprintf("unsupported scope %q", scope),
			Hint:    "Use scope=visible or scope=all.",
		})
	}
}

// handleImpersonate serves POST `/admin/impersonate`.
func (h *Handler) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	if h.authn == nil {
		writeErrorFrom(w, fmt.Errorf("impersonation is not configured: %w", common.ErrUnavailable))
		return
	}
	var req common.ImpersonateRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusCreated)(h.authn.Impersonate(r.Context(), req))
}

// handleSubmitBugReport serves POST `/bug-reports`.
func (h *Handler) handleSubmitBugReport(w http.ResponseWriter, r *http.Request) {
	var req common.BugReportRequest
	if err := decodeJSONBodyLimit(r.Context(), w, r, &req, maxBugReportBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	respond(w, http.StatusCreated)(h.tracker.SubmitBugReport(r.Context(), req))
}

// respond returns a writer for a (payload, error) pair.
func respond(w http.ResponseWriter, status int) func(any, error) {
	return func(payload any, err error) {
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, status, payload)
	}
}

// respondEmpty writes 204 on success.
func respondEmpty(w http.ResponseWriter, err error) {
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, common.ErrInvalidRequest)
	}
	return v, nil
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// statusFor maps a transport error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case "unauthenticated":
		return http.StatusUnauthorized
	case "invalid_request":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
		return
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, APIError{
			Code:    "payload_too_large",
			Message: err.Error(),
			Context: map[string]any{"limit_bytes": maxErr.Limit},
		})
		return
	}
	code := common.ErrorCode(err)
	apiErr := APIError{Code: code, Message: err.Error()}
	switch code {
	case "unauthenticated":
		w.Header().Set("WWW-Authenticate", `Bearer realm="tornado"`)
		apiErr.Hint = "Send Authorization: Bearer <token>."
	case "unavailable":
		apiErr.Hint = "The server was started without this backend configured."
	}
	writeJSONError(w, statusFor(code), apiErr)
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	return decodeJSONBodyLimit(ctx, w, r, out, maxRequestBodyBytes)
}

func decodeJSONBodyLimit(ctx context.Context, w http.ResponseWriter, r *http.Request, out any, limit int64) error {
	reader := http.MaxBytesReader(w, r.Body, limit)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any, limit int64) error {
	reader := http.MaxBytesReader(w, r.Body, limit)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
