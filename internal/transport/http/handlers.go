// @title OpenMaint Permission Service API
// @version 1.0.0
// @description Permission resolution and override management for the CMMS

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openmaint/openmaint/internal/access"
	"github.com/openmaint/openmaint/internal/catalog"
	"github.com/openmaint/openmaint/internal/observability/logger"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	accessService *access.Service
	tokenSecret   []byte
}

// NewHandler creates a new HTTP handler
func NewHandler(accessService *access.Service, tokenSecret []byte) *Handler {
	return &Handler{
		accessService: accessService,
		tokenSecret:   tokenSecret,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		// Caller's own effective permissions; the render path of every
		// screen goes through these.
		r.Get("/permissions/me", h.GetMyPermissions)
		r.Get("/permissions/me/{module}", h.GetMyModulePermissions)

		// Override editing is administrator-only.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Route("/users/{userID}/permissions", func(r chi.Router) {
				r.Get("/", h.GetUserPermissions)
				r.Put("/", h.PutUserPermissions)
				r.Delete("/", h.DeleteUserPermissions)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "openmaint-permissions",
	})
}

// matrixPayload is the wire form of a permission matrix:
// { moduleKey: { actionName: bool } }.
type matrixPayload map[catalog.Key]map[catalog.Action]bool

func toPayload(m access.Matrix) matrixPayload {
	out := make(matrixPayload, len(m))
	for key, set := range m {
		actions := make(map[catalog.Action]bool, len(set))
		for action, v := range set {
			actions[action] = v
		}
		out[key] = actions
	}
	return out
}

// GetMyPermissions returns the caller's resolved matrix
// @Summary Effective permissions of the authenticated user
// @Tags Permissions
// @Produce json
// @Success 200 {object} map[string]any
// @Router /permissions/me [get]
func (h *Handler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	role := GetRole(r.Context())

	gate, err := h.accessService.GateFor(r.Context(), userID, role)
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"role":     role,
		"is_admin": gate.IsAdmin(),
		"matrix":   toPayload(gate.Effective()),
	})
}

// GetMyModulePermissions returns the caller's flags for one module
// @Summary Effective permissions for a single module
// @Tags Permissions
// @Produce json
// @Param module path string true "Module key"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /permissions/me/{module} [get]
func (h *Handler) GetMyModulePermissions(w http.ResponseWriter, r *http.Request) {
	key := catalog.Key(chi.URLParam(r, "module"))

	mod, err := catalog.Get(key)
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	gate, err := h.accessService.GateFor(r.Context(), GetUserID(r.Context()), GetRole(r.Context()))
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	actions := make(map[catalog.Action]bool, len(mod.Actions))
	for _, action := range mod.Actions {
		actions[action] = gate.Allows(key, action)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"module":  key,
		"actions": actions,
	})
}

// GetUserPermissions returns the edit seed for a target user: their role,
// effective matrix, stored sparse override, and the version the editor
// must echo back on save.
// @Summary Permission state of a user (admin)
// @Tags Overrides
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/permissions [get]
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	working, err := h.accessService.BeginEdit(r.Context(), userID)
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	override, version, err := h.accessService.StoredOverride(r.Context(), userID)
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"role":      working.Role(),
		"version":   version,
		"effective": toPayload(working.Effective()),
		"override":  toPayload(override),
	})
}

// PutPermissionsRequest carries one editing session's changes. Version is
// the value returned by GET; a concurrent save in between fails the commit.
type PutPermissionsRequest struct {
	Version int64         `json:"version"`
	Changes matrixPayload `json:"changes"`
}

// PutUserPermissions applies edits through the override editor and commits
// @Summary Save permission overrides for a user (admin)
// @Tags Overrides
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param request body PutPermissionsRequest true "Changes"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /users/{userID}/permissions [put]
func (h *Handler) PutUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req PutPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	working, err := h.accessService.BeginEdit(r.Context(), userID)
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	if req.Version != working.Version() {
		respondError(w, http.StatusConflict, "override modified since it was read; reload and retry")
		return
	}

	// Apply edits in catalog order so dependency cascades are
	// deterministic regardless of JSON map iteration.
	for _, mod := range catalog.Modules() {
		changes, ok := req.Changes[mod.Key]
		if !ok {
			continue
		}
		for _, action := range mod.Actions {
			value, ok := changes[action]
			if !ok {
				continue
			}
			if err := working.SetAction(mod.Key, action, value); err != nil {
				respondAccessError(w, r, err)
				return
			}
			delete(changes, action)
		}
		if len(changes) > 0 {
			respondError(w, http.StatusBadRequest, "unsupported action for module "+string(mod.Key))
			return
		}
		delete(req.Changes, mod.Key)
	}
	if len(req.Changes) > 0 {
		respondError(w, http.StatusBadRequest, "unknown module in changes")
		return
	}

	record, err := h.accessService.Commit(r.Context(), GetUserID(r.Context()), working)
	if err != nil {
		respondAccessError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"version":  record.Version,
		"override": toPayload(record.Matrix),
	})
}

// DeleteUserPermissions discards a user's overrides entirely
// @Summary Reset a user to their role defaults (admin)
// @Tags Overrides
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} map[string]string
// @Router /users/{userID}/permissions [delete]
func (h *Handler) DeleteUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.accessService.Reset(r.Context(), GetUserID(r.Context()), userID); err != nil {
		respondAccessError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permissions reset to role defaults",
	})
}

// respondAccessError maps domain errors to HTTP statuses. Resolution
// denials never reach this path; they are ordinary false results.
func respondAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownModule), errors.Is(err, access.ErrInvalidQuery):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, access.ErrStaleOverride):
		respondError(w, http.StatusConflict, "override modified since it was read; reload and retry")
	case errors.Is(err, access.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "permission store unavailable")
	default:
		slog.ErrorContext(r.Context(), "unhandled error", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
