package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/oauth"
	"github.com/shawn/slack-gpt-tenancy/internal/tenantconfig"
	"github.com/shawn/slack-gpt-tenancy/internal/validator"
)

// ConfigStore is the tenant config store as used by the admin API.
type ConfigStore interface {
	Get(ctx context.Context, tenantID string) (tenantconfig.Record, bool)
	Put(ctx context.Context, tenantID string, rec tenantconfig.Record) error
	Delete(ctx context.Context, tenantID string) error
}

// Validator checks a credential before the admin API stores it.
type Validator interface {
	Validate(ctx context.Context, credential, model string) validator.Outcome
}

// TenantConfig is the admin API representation of a tenant's record.
// APIKey is always redacted in responses.
type TenantConfig struct {
	TenantID    string   `json:"tenant_id"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Handler is the HTTP entry point of the multi-tenant service
type Handler struct {
	cfg       *config.Holder
	configs   ConfigStore
	validator Validator
	slack     http.Handler // nil disables /slack/events
	oauth     *oauth.Flow  // nil disables the install flow
}

func New(cfg *config.Holder, configs ConfigStore, v Validator, slackApp http.Handler, flow *oauth.Flow) *Handler {
	return &Handler{cfg: cfg, configs: configs, validator: v, slack: slackApp, oauth: flow}
}

// Router returns the chi router with all routes registered
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	if h.slack != nil {
		r.Post("/slack/events", h.slack.ServeHTTP)
	}
	if h.oauth != nil {
		r.Get(oauth.InstallPath, h.oauth.Install)
		r.Get(oauth.RedirectPath, h.oauth.Redirect)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(h.requireAdmin)
		r.Get("/tenants/{tenantID}/config", h.GetConfig)
		r.Put("/tenants/{tenantID}/config", h.PutConfig)
		r.Delete("/tenants/{tenantID}/config", h.DeleteConfig)
	})
	return r
}

// Healthz returns 200 OK
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.cfg.Current().AdminToken
		if token == "" {
			http.Error(w, "admin API disabled", http.StatusForbidden)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Redact keeps the last four characters of a credential.
func Redact(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "****" + key[len(key)-4:]
}

func view(tenantID string, rec tenantconfig.Record) TenantConfig {
	return TenantConfig{
		TenantID:    tenantID,
		APIKey:      Redact(rec.Credential),
		Model:       rec.Model,
		Temperature: rec.Temperature,
	}
}

// GetConfig returns the tenant's stored config (API key redacted)
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	rec, ok := h.configs.Get(r.Context(), tenantID)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view(tenantID, rec))
}

// PutConfig validates and stores a tenant's config
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	var req struct {
		APIKey      string   `json:"api_key"`
		Model       string   `json:"model"`
		Temperature *float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.Model = strings.TrimSpace(req.Model)
	if req.APIKey == "" {
		http.Error(w, "api_key required", http.StatusBadRequest)
		return
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		http.Error(w, "temperature must be between 0 and 2", http.StatusBadRequest)
		return
	}

	switch h.validator.Validate(r.Context(), req.APIKey, req.Model) {
	case validator.Valid:
	case validator.InvalidCredential:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"field": "api_key", "error": "This API key seems to be invalid"})
		return
	default:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"field": "model", "error": "This model is not yet available for this API key"})
		return
	}

	rec := tenantconfig.Record{Credential: req.APIKey, Model: req.Model, Temperature: req.Temperature}
	if err := h.configs.Put(r.Context(), tenantID, rec); err != nil {
		slog.Error("put tenant config failed", "tenant", tenantID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("tenant config set via admin API", "tenant", tenantID, "model", req.Model)
	writeJSON(w, http.StatusOK, view(tenantID, rec))
}

// DeleteConfig removes a tenant's config. Deleting an absent config succeeds.
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := h.configs.Delete(r.Context(), tenantID); err != nil {
		slog.Error("delete tenant config failed", "tenant", tenantID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
