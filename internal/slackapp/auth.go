package slackapp

import (
	"context"
	"fmt"

	"github.com/shawn/slack-gpt-tenancy/internal/installation"
)

// Auth is the result of authorizing a request: the bot identity and a
// Web API client acting as that bot.
type Auth struct {
	BotToken  string
	BotUserID string
	// Scopes is nil when the granted scopes are unknown (single-tenant).
	Scopes []string
	API    API
}

// HasScope reports whether scope was granted. Unknown scopes count as granted.
func (a *Auth) HasScope(scope string) bool {
	if a.Scopes == nil {
		return true
	}
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authorizer finds the bot credentials for a tenant.
type Authorizer interface {
	Authorize(ctx context.Context, tenantID string) (*Auth, error)
}

// InstallationAuthorizer reads bot tokens from the installation store.
type InstallationAuthorizer struct {
	installs installation.Store
	newAPI   APIFactory
}

func NewInstallationAuthorizer(installs installation.Store, newAPI APIFactory) *InstallationAuthorizer {
	return &InstallationAuthorizer{installs: installs, newAPI: newAPI}
}

func (a *InstallationAuthorizer) Authorize(ctx context.Context, tenantID string) (*Auth, error) {
	inst, err := a.installs.FindBot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("find bot installation: %w", err)
	}
	scopes := inst.BotScopes
	if scopes == nil {
		scopes = []string{}
	}
	return &Auth{
		BotToken:  inst.BotToken,
		BotUserID: inst.BotUserID,
		Scopes:    scopes,
		API:       a.newAPI(inst.BotToken),
	}, nil
}

// StaticAuthorizer always returns the same bot, as configured by
// SLACK_BOT_TOKEN.
type StaticAuthorizer struct {
	auth *Auth
}

func NewStaticAuthorizer(token, botUserID string, api API) *StaticAuthorizer {
	return &StaticAuthorizer{auth: &Auth{BotToken: token, BotUserID: botUserID, API: api}}
}

func (a *StaticAuthorizer) Authorize(context.Context, string) (*Auth, error) {
	return a.auth, nil
}

type authKey struct{}

func withAuth(ctx context.Context, a *Auth) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

// AuthFrom returns the Auth attached by the authorize middleware.
func AuthFrom(ctx context.Context) (*Auth, bool) {
	a, ok := ctx.Value(authKey{}).(*Auth)
	return a, ok
}
