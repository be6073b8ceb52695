package slackapp_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/dialog"
	"github.com/shawn/slack-gpt-tenancy/internal/installation"
	"github.com/shawn/slack-gpt-tenancy/internal/lifecycle"
	"github.com/shawn/slack-gpt-tenancy/internal/objstore"
	"github.com/shawn/slack-gpt-tenancy/internal/relay"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
	"github.com/shawn/slack-gpt-tenancy/internal/slackapp"
	"github.com/shawn/slack-gpt-tenancy/internal/tenantconfig"
	"github.com/shawn/slack-gpt-tenancy/internal/translate"
	"github.com/shawn/slack-gpt-tenancy/internal/validator"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingSecret = "test-signing-secret"

type post struct {
	Channel, Thread, Text string
}

type fakeAPI struct {
	mu        sync.Mutex
	published []slack.HomeTabViewRequest
	opened    []string
	posts     []post
	locale    string
	localeErr error
}

func (f *fakeAPI) OpenView(_ context.Context, triggerID string, _ slack.ModalViewRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, triggerID)
	return nil
}

func (f *fakeAPI) PublishHome(_ context.Context, _ string, view slack.HomeTabViewRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, view)
	return nil
}

func (f *fakeAPI) PostMessage(_ context.Context, channel, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post{channel, threadTS, text})
	return nil
}

func (f *fakeAPI) UserLocale(context.Context, string) (string, error) {
	return f.locale, f.localeErr
}

func (f *fakeAPI) lastHomeText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.published)
	section, ok := f.published[len(f.published)-1].Blocks.BlockSet[0].(*slack.SectionBlock)
	require.True(t, ok)
	return section.Text.Text
}

// fakeReplier captures the effective config and locale seen by the relay.
type fakeReplier struct {
	mu     sync.Mutex
	seen   []resolver.EffectiveConfig
	locale string
	err    error
}

func (f *fakeReplier) Reply(ctx context.Context, msg relay.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	eff, _ := resolver.FromContext(ctx)
	f.seen = append(f.seen, eff)
	f.locale = translate.LocaleFrom(ctx)
	if f.err != nil {
		return "", f.err
	}
	return "echo: " + msg.Text, nil
}

type fakeProber map[string][]string

func (f fakeProber) ProbeModel(_ context.Context, credential, model string) error {
	for _, m := range f[credential] {
		if m == model {
			return nil
		}
	}
	return errors.New("model not found")
}

type fixture struct {
	app      *slackapp.App
	api      *fakeAPI
	backend  *objstore.MemoryStore
	configs  *tenantconfig.Store
	installs *installation.Mock
	replier  *fakeReplier
}

func newMultiTenant(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	c := config.Defaults()
	c.SlackSigningSecret = signingSecret
	if mutate != nil {
		mutate(c)
	}
	holder := config.NewHolder(c, nil)

	f := &fixture{
		api:      &fakeAPI{},
		backend:  objstore.NewMemory(),
		installs: installation.NewMock(),
		replier:  &fakeReplier{},
	}
	f.configs = tenantconfig.New(f.backend)
	require.NoError(t, f.installs.Save(context.Background(), &installation.Installation{
		TeamID: "T1", UserID: "U1", BotToken: "xoxb-1", BotUserID: "UBOT",
		BotScopes: []string{"chat:write", "users:read"},
	}))

	v := validator.New(fakeProber{"sk-good": {"gpt-3.5-turbo", "gpt-4"}})
	f.app = slackapp.New(slackapp.Options{
		Config:     holder,
		Resolver:   resolver.New(holder, f.configs),
		Authorizer: slackapp.NewInstallationAuthorizer(f.installs, func(string) slackapp.API { return f.api }),
		Dialog:     dialog.NewController(v, f.configs, nil),
		Lifecycle:  lifecycle.New(f.installs, f.configs),
		Relay:      f.replier,
	})
	return f
}

func sign(t *testing.T, body []byte, contentType string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + ts + ":"))
	mac.Write(body)

	r := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("X-Slack-Request-Timestamp", ts)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return r
}

func eventBody(t *testing.T, team string, event map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"type":     "event_callback",
		"team_id":  team,
		"event_id": "Ev1",
		"event":    event,
	})
	require.NoError(t, err)
	return b
}

func interactionBody(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return []byte("payload=" + url.QueryEscape(string(b)))
}

func (f *fixture) serve(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.app.ServeHTTP(w, r)
	return w
}

func (f *fixture) event(t *testing.T, team string, event map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return f.serve(t, sign(t, eventBody(t, team, event), "application/json"))
}

func submission(apiKey, model string) map[string]any {
	return map[string]any{
		"type": "view_submission",
		"team": map[string]any{"id": "T1"},
		"user": map[string]any{"id": "U1", "team_id": "T1"},
		"view": map[string]any{
			"callback_id": dialog.CallbackID,
			"state": map[string]any{"values": map[string]any{
				dialog.BlockAPIKey: map[string]any{dialog.ActionInput: map[string]any{
					"type": "plain_text_input", "value": apiKey,
				}},
				dialog.BlockModel: map[string]any{dialog.ActionInput: map[string]any{
					"type": "static_select",
					"selected_option": map[string]any{
						"text":  map[string]any{"type": "plain_text", "text": model},
						"value": model,
					},
				}},
			}},
		},
	}
}

func TestServeHTTP_URLVerification(t *testing.T) {
	f := newMultiTenant(t, nil)
	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)

	w := f.serve(t, sign(t, body, "application/json"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"challenge":"abc123"}`, w.Body.String())
}

func TestServeHTTP_RejectsBadSignature(t *testing.T) {
	f := newMultiTenant(t, nil)
	r := sign(t, []byte(`{"type":"url_verification","challenge":"x"}`), "application/json")
	r.Header.Set("X-Slack-Signature", "v0=deadbeef")

	w := f.serve(t, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHomeOpened_NeedsSetupThenReady(t *testing.T) {
	f := newMultiTenant(t, nil)
	home := map[string]any{"type": "app_home_opened", "user": "U1", "tab": "home"}

	require.Equal(t, http.StatusOK, f.event(t, "T1", home).Code)
	assert.Equal(t, slackapp.SetupMessage, f.api.lastHomeText(t))

	require.NoError(t, f.configs.Put(context.Background(), "T1", tenantconfig.Record{Credential: "sk-good", Model: "gpt-4"}))
	f.event(t, "T1", home)
	assert.Equal(t, slackapp.ReadyMessage, f.api.lastHomeText(t))
	require.Len(t, f.api.published[1].Blocks.BlockSet, 2, "configure button in multi-tenant mode")
}

func TestHomeOpened_StoreOutageShowsNeedsSetup(t *testing.T) {
	f := newMultiTenant(t, nil)
	require.NoError(t, f.configs.Put(context.Background(), "T1", tenantconfig.Record{Credential: "sk-good"}))
	f.backend.Fail = errors.New("bucket unavailable")

	f.event(t, "T1", map[string]any{"type": "app_home_opened", "user": "U1", "tab": "home"})
	assert.Equal(t, slackapp.SetupMessage, f.api.lastHomeText(t))
}

func TestConfigureButton_OpensModal(t *testing.T) {
	f := newMultiTenant(t, nil)
	body := interactionBody(t, map[string]any{
		"type":       "block_actions",
		"trigger_id": "trig-1",
		"team":       map[string]any{"id": "T1"},
		"user":       map[string]any{"id": "U1"},
		"actions": []map[string]any{{
			"action_id": dialog.ActionConfigure, "block_id": "configure", "type": "button",
		}},
	})

	w := f.serve(t, sign(t, body, "application/x-www-form-urlencoded"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"trig-1"}, f.api.opened)
}

func TestConfigureSubmission_ValidIsStoredAfterAck(t *testing.T) {
	f := newMultiTenant(t, nil)
	body := interactionBody(t, submission("sk-good", "gpt-4"))

	w := f.serve(t, sign(t, body, "application/x-www-form-urlencoded"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String(), "empty ack closes the modal")

	rec, ok := f.configs.Get(context.Background(), "T1")
	require.True(t, ok)
	assert.Equal(t, tenantconfig.Record{Credential: "sk-good", Model: "gpt-4"}, rec)

	f.event(t, "T1", map[string]any{"type": "app_mention", "user": "U1", "channel": "C1", "ts": "1.1", "text": "<@UBOT> hi"})
	require.Len(t, f.replier.seen, 1)
	assert.Equal(t, "sk-good", f.replier.seen[0].Credential)
	assert.Equal(t, "gpt-4", f.replier.seen[0].Model)
}

func TestConfigureSubmission_InvalidKey(t *testing.T) {
	f := newMultiTenant(t, nil)
	body := interactionBody(t, submission("sk-bad", "gpt-4"))

	w := f.serve(t, sign(t, body, "application/x-www-form-urlencoded"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response_action":"errors","errors":{"api_key":"This API key seems to be invalid"}}`, w.Body.String())
	assert.Zero(t, f.backend.Len())
}

func TestAppMention_DefaultsWhenUnconfigured(t *testing.T) {
	f := newMultiTenant(t, func(c *config.Config) {
		c.OpenAIAPIKey = "sk-default"
		c.OpenAIModel = "gpt-3.5-turbo"
	})

	f.event(t, "T1", map[string]any{"type": "app_mention", "user": "U1", "channel": "C1", "ts": "1.1", "text": "<@UBOT> hi"})

	require.Len(t, f.replier.seen, 1)
	assert.Equal(t, resolver.SourceDefault, f.replier.seen[0].Source)
	require.Len(t, f.api.posts, 1)
	assert.Equal(t, post{"C1", "1.1", "echo: <@UBOT> hi"}, f.api.posts[0])
}

func TestAppMention_NotConfiguredMessage(t *testing.T) {
	f := newMultiTenant(t, nil)
	f.replier.err = relay.ErrNotConfigured

	f.event(t, "T1", map[string]any{"type": "app_mention", "user": "U1", "channel": "C1", "ts": "1.1", "thread_ts": "0.9", "text": "hi"})

	require.Len(t, f.api.posts, 1)
	assert.Equal(t, "0.9", f.api.posts[0].Thread)
	assert.Contains(t, f.api.posts[0].Text, "not configured")
}

func TestDirectMessage_IgnoresBotsAndSubtypes(t *testing.T) {
	f := newMultiTenant(t, nil)

	f.event(t, "T1", map[string]any{"type": "message", "channel_type": "im", "user": "U1", "channel": "D1", "ts": "1", "text": "hi"})
	f.event(t, "T1", map[string]any{"type": "message", "channel_type": "im", "bot_id": "B1", "channel": "D1", "ts": "2", "text": "bot"})
	f.event(t, "T1", map[string]any{"type": "message", "channel_type": "im", "subtype": "message_changed", "channel": "D1", "ts": "3"})
	f.event(t, "T1", map[string]any{"type": "message", "channel_type": "channel", "user": "U1", "channel": "C1", "ts": "4", "text": "hi"})

	assert.Len(t, f.replier.seen, 1)
}

func TestTokensRevoked_RemovesConfig(t *testing.T) {
	f := newMultiTenant(t, nil)
	ctx := context.Background()
	require.NoError(t, f.configs.Put(ctx, "T1", tenantconfig.Record{Credential: "sk-good"}))

	w := f.event(t, "T1", map[string]any{
		"type":   "tokens_revoked",
		"tokens": map[string]any{"bot": []string{"UBOT"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := f.configs.Get(ctx, "T1")
	assert.False(t, ok)
	assert.False(t, f.installs.Has("T1", ""))
}

func TestAppUninstalled_RunsWithoutBotToken(t *testing.T) {
	f := newMultiTenant(t, nil)
	ctx := context.Background()
	require.NoError(t, f.configs.Put(ctx, "T1", tenantconfig.Record{Credential: "sk-good"}))
	require.NoError(t, f.installs.DeleteBot(ctx, "T1"))

	f.event(t, "T1", map[string]any{"type": "app_uninstalled"})

	assert.Zero(t, f.installs.Count("T1"))
	assert.Zero(t, f.backend.Len())
}

func TestLocale_AttachedWhenEnabled(t *testing.T) {
	f := newMultiTenant(t, func(c *config.Config) {
		c.UseSlackLanguage = true
		c.OpenAIAPIKey = "sk-default"
	})
	f.api.locale = "ja-JP"

	f.event(t, "T1", map[string]any{"type": "app_mention", "user": "U1", "channel": "C1", "ts": "1", "text": "hi"})
	assert.Equal(t, "ja-JP", f.replier.locale)
}

func TestLocale_FailureIgnored(t *testing.T) {
	f := newMultiTenant(t, func(c *config.Config) {
		c.UseSlackLanguage = true
		c.OpenAIAPIKey = "sk-default"
	})
	f.api.localeErr = errors.New("missing_scope")

	f.event(t, "T1", map[string]any{"type": "app_mention", "user": "U1", "channel": "C1", "ts": "1", "text": "hi"})
	require.Len(t, f.replier.seen, 1)
	assert.Empty(t, f.replier.locale)
}

func TestUnauthorizedTenantIsNotProcessed(t *testing.T) {
	f := newMultiTenant(t, nil)

	w := f.event(t, "T-unknown", map[string]any{"type": "app_mention", "user": "U1", "channel": "C1", "ts": "1", "text": "hi"})
	assert.Equal(t, http.StatusOK, w.Code, "events are acked regardless")
	assert.Empty(t, f.replier.seen)
}

func TestSingleTenant_HomeTabWithoutConfigure(t *testing.T) {
	c := config.Defaults()
	c.SlackSigningSecret = signingSecret
	c.OpenAIAPIKey = "sk-static"
	holder := config.NewHolder(c, nil)
	api := &fakeAPI{}
	app := slackapp.New(slackapp.Options{
		Config:     holder,
		Resolver:   resolver.New(holder, nil),
		Authorizer: slackapp.NewStaticAuthorizer("xoxb-static", "UBOT", api),
		Relay:      &fakeReplier{},
	})

	require.NoError(t, app.HandleEvent(context.Background(), eventBody(t, "T1", map[string]any{
		"type": "app_home_opened", "user": "U1", "tab": "home",
	})))

	require.Len(t, api.published, 1)
	assert.Len(t, api.published[0].Blocks.BlockSet, 1)
	assert.Equal(t, slackapp.ReadyMessage, api.lastHomeText(t))
	assert.False(t, app.MultiTenant())
}

func TestLocale_ReloadEnablesTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"準備完了"}}]}`))
	}))
	defer srv.Close()

	base := func(lang bool) *config.Config {
		c := config.Defaults()
		c.SlackSigningSecret = signingSecret
		c.OpenAIAPIBase = srv.URL + "/v1"
		c.UseSlackLanguage = lang
		return c
	}
	holder := config.NewHolder(base(false), func() (*config.Config, []error) { return base(true), nil })

	api := &fakeAPI{locale: "ja-JP"}
	installs := installation.NewMock()
	require.NoError(t, installs.Save(context.Background(), &installation.Installation{
		TeamID: "T1", UserID: "U1", BotToken: "xoxb-1", BotUserID: "UBOT",
		BotScopes: []string{"users:read"},
	}))
	configs := tenantconfig.New(objstore.NewMemory())
	require.NoError(t, configs.Put(context.Background(), "T1", tenantconfig.Record{Credential: "sk-good"}))

	tr := translate.NewCached(holder)
	app := slackapp.New(slackapp.Options{
		Config:     holder,
		Resolver:   resolver.New(holder, configs),
		Authorizer: slackapp.NewInstallationAuthorizer(installs, func(string) slackapp.API { return api }),
		Dialog:     dialog.NewController(validator.New(fakeProber{}), configs, tr),
		Lifecycle:  lifecycle.New(installs, configs),
		Relay:      &fakeReplier{},
		Translator: tr,
	})
	home := eventBody(t, "T1", map[string]any{"type": "app_home_opened", "user": "U1", "tab": "home"})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, sign(t, home, "application/json"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, slackapp.ReadyMessage, api.lastHomeText(t), "no translation while disabled")

	require.Empty(t, holder.Reload())

	w = httptest.NewRecorder()
	app.ServeHTTP(w, sign(t, home, "application/json"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "準備完了", api.lastHomeText(t))
}
