// Package lifecycle reacts to Slack token revocations and uninstalls by
// removing the tenant's installations and its stored model credential.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/shawn/slack-gpt-tenancy/internal/installation"
	"github.com/shawn/slack-gpt-tenancy/internal/metrics"
)

// TokensRevoked is the tokens_revoked event payload.
type TokensRevoked struct {
	Tokens struct {
		OAuth []string `json:"oauth"`
		Bot   []string `json:"bot"`
	} `json:"tokens"`
}

// ConfigDeleter is the delete side of the tenant config store.
type ConfigDeleter interface {
	Delete(ctx context.Context, tenantID string) error
}

// Handler removes tenant data. Installation and config deletions are
// independent: a failure in one never skips the other. Nothing is retried.
type Handler struct {
	installs installation.Store
	configs  ConfigDeleter
}

func New(installs installation.Store, configs ConfigDeleter) *Handler {
	return &Handler{installs: installs, configs: configs}
}

// TokensRevoked deletes one user installation per revoked user token, the
// bot installation when bot tokens are listed, and the tenant's config
// once when any token is listed.
func (h *Handler) TokensRevoked(ctx context.Context, tenantID string, ev TokensRevoked) {
	metrics.Revocations.WithLabelValues("tokens_revoked").Inc()
	for _, userID := range ev.Tokens.OAuth {
		if err := h.installs.DeleteUser(ctx, tenantID, userID); err != nil {
			h.failed("delete user installation", tenantID, err, "user", userID)
		}
	}
	if len(ev.Tokens.Bot) > 0 {
		if err := h.installs.DeleteBot(ctx, tenantID); err != nil {
			h.failed("delete bot installation", tenantID, err)
		}
	}
	if len(ev.Tokens.OAuth) > 0 || len(ev.Tokens.Bot) > 0 {
		h.deleteConfig(ctx, tenantID)
	}
}

// AppUninstalled deletes every installation of the tenant and its config.
func (h *Handler) AppUninstalled(ctx context.Context, tenantID string) {
	metrics.Revocations.WithLabelValues("app_uninstalled").Inc()
	if err := h.installs.DeleteAll(ctx, tenantID); err != nil {
		h.failed("delete installations", tenantID, err)
	}
	h.deleteConfig(ctx, tenantID)
}

func (h *Handler) deleteConfig(ctx context.Context, tenantID string) {
	if err := h.configs.Delete(ctx, tenantID); err != nil {
		h.failed("delete tenant config", tenantID, err)
		return
	}
	slog.Info("tenant config removed", "tenant", tenantID)
}

func (h *Handler) failed(op, tenantID string, err error, attrs ...any) {
	metrics.Revocations.WithLabelValues("failed").Inc()
	slog.Error("lifecycle: "+op, append([]any{"tenant", tenantID, "err", err}, attrs...)...)
}
