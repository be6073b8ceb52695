// Package oauth implements the Slack "Add to Slack" install flow for the
// multi-tenant deployment.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/installation"
	"github.com/slack-go/slack"
)

const (
	authorizeURL = "https://slack.com/oauth/v2/authorize"
	stateTTL     = 10 * time.Minute

	InstallPath  = "/slack/install"
	RedirectPath = "/slack/oauth_redirect"
)

// Exchanger trades an authorization code for tokens.
type Exchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error)
}

// SlackExchanger calls oauth.v2.access.
type SlackExchanger struct {
	HTTPClient *http.Client
}

func (e SlackExchanger) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error) {
	c := e.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	return slack.GetOAuthV2ResponseContext(ctx, c, clientID, clientSecret, code, redirectURI)
}

// Flow serves the install and redirect endpoints.
type Flow struct {
	cfg       *config.Holder
	states    StateStore
	installs  installation.Store
	exchanger Exchanger
}

func NewFlow(cfg *config.Holder, states StateStore, installs installation.Store, exchanger Exchanger) *Flow {
	if exchanger == nil {
		exchanger = SlackExchanger{}
	}
	return &Flow{cfg: cfg, states: states, installs: installs, exchanger: exchanger}
}

func (f *Flow) redirectURI() string {
	base := strings.TrimRight(f.cfg.Current().PublicBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + RedirectPath
}

// Install redirects the browser to Slack's authorize page with a fresh state.
func (f *Flow) Install(w http.ResponseWriter, r *http.Request) {
	state, err := f.states.Issue(r.Context(), stateTTL)
	if err != nil {
		slog.Error("issue oauth state", "err", err)
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	cfg := f.cfg.Current()
	q := url.Values{}
	q.Set("client_id", cfg.SlackClientID)
	q.Set("scope", strings.Join(cfg.SlackScopes, ","))
	q.Set("state", state)
	if uri := f.redirectURI(); uri != "" {
		q.Set("redirect_uri", uri)
	}
	http.Redirect(w, r, authorizeURL+"?"+q.Encode(), http.StatusFound)
}

// Redirect completes the install: it checks the state, exchanges the code
// and stores the installation.
func (f *Flow) Redirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		slog.Info("oauth install cancelled", "error", e)
		http.Error(w, "The installation was cancelled.", http.StatusOK)
		return
	}
	if err := f.states.Consume(r.Context(), q.Get("state")); err != nil {
		if !errors.Is(err, ErrInvalidState) {
			slog.Error("consume oauth state", "err", err)
		}
		http.Error(w, "This installation link has expired. Please start again.", http.StatusBadRequest)
		return
	}

	inst, err := f.complete(r.Context(), q.Get("code"))
	if err != nil {
		slog.Error("oauth install failed", "err", err)
		http.Error(w, "Installation failed. Please try again.", http.StatusBadGateway)
		return
	}
	slog.Info("app installed", "tenant", inst.TenantID, "user", inst.UserID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Thank you! The app is now installed in your workspace.")
}

func (f *Flow) complete(ctx context.Context, code string) (*installation.Installation, error) {
	if code == "" {
		return nil, fmt.Errorf("missing code")
	}
	cfg := f.cfg.Current()
	resp, err := f.exchanger.Exchange(ctx, cfg.SlackClientID, cfg.SlackClientSecret, code, f.redirectURI())
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	inst := FromOAuthResponse(resp)
	if err := f.installs.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("save installation: %w", err)
	}
	return inst, nil
}

// FromOAuthResponse converts an oauth.v2.access response.
func FromOAuthResponse(resp *slack.OAuthV2Response) *installation.Installation {
	inst := &installation.Installation{
		EnterpriseID: resp.Enterprise.ID,
		TeamID:       resp.Team.ID,
		AppID:        resp.AppID,
		UserID:       resp.AuthedUser.ID,
		UserToken:    resp.AuthedUser.AccessToken,
		UserScopes:   splitScopes(resp.AuthedUser.Scope),
		BotUserID:    resp.BotUserID,
		BotToken:     resp.AccessToken,
		BotScopes:    splitScopes(resp.Scope),
		InstalledAt:  time.Now().UTC(),
	}
	if resp.IsEnterpriseInstall {
		inst.TeamID = ""
	}
	inst.TenantID = installation.TenantID(inst.EnterpriseID, inst.TeamID)
	return inst
}

func splitScopes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
