package slackapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shawn/slack-gpt-tenancy/internal/dialog"
	"github.com/shawn/slack-gpt-tenancy/internal/lifecycle"
	"github.com/shawn/slack-gpt-tenancy/internal/relay"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
)

const (
	notConfiguredText = "This app is not configured for this workspace yet. " +
		"Open the app's Home tab to save an OpenAI API key."
	replyFailedText = ":warning: Failed to get a reply from OpenAI. Please try again later."
)

var errNoAuth = errors.New("request is not authorized")

func (a *App) homeOpened(ctx context.Context, req *Request) error {
	if req.Event.Tab != "" && req.Event.Tab != "home" {
		return nil
	}
	auth, ok := AuthFrom(ctx)
	if !ok {
		return errNoAuth
	}
	eff, _ := resolver.FromContext(ctx)

	ready := eff.HasCredential()
	if a.MultiTenant() {
		ready = eff.Configured()
	}
	message := SetupMessage
	if ready {
		message = ReadyMessage
	}
	label := ConfigureLabel
	if eff.HasCredential() {
		message = a.translator.Translate(ctx, eff.Credential, message)
		label = a.translator.Translate(ctx, eff.Credential, label)
	}
	view := HomeTab(message, label, a.MultiTenant())
	if err := auth.API.PublishHome(ctx, req.UserID, view); err != nil {
		return fmt.Errorf("publish home tab: %w", err)
	}
	return nil
}

// existingCredential is the tenant's own stored credential, if any.
func existingCredential(ctx context.Context) string {
	if eff, ok := resolver.FromContext(ctx); ok && eff.Configured() {
		return eff.Credential
	}
	return ""
}

func (a *App) openConfigure(ctx context.Context, req *Request) error {
	if !a.MultiTenant() {
		return nil
	}
	auth, ok := AuthFrom(ctx)
	if !ok {
		return errNoAuth
	}
	view := a.dialog.Modal(ctx, existingCredential(ctx))
	if err := auth.API.OpenView(ctx, req.Interaction.TriggerID, view); err != nil {
		return fmt.Errorf("open configure modal: %w", err)
	}
	return nil
}

func (a *App) submitConfigure(ctx context.Context, req *Request) Result {
	if !a.MultiTenant() {
		return Result{}
	}
	existing := existingCredential(ctx)

	var res dialog.Result
	sub, err := dialog.ParseSubmission(req.Interaction.View.State)
	var fe *dialog.FieldError
	switch {
	case errors.As(err, &fe):
		res = a.dialog.Reject(ctx, existing, fe)
	case err != nil:
		res = a.dialog.Reject(ctx, existing, &dialog.FieldError{Block: dialog.BlockAPIKey, Message: err.Error()})
	default:
		res = a.dialog.Submit(ctx, req.TenantID, existing, sub)
	}

	out := Result{Deferred: res.Deferred}
	if ack := res.Ack(); ack != nil {
		out.Ack = ack
	}
	return out
}

func (a *App) reply(ctx context.Context, req *Request) error {
	auth, ok := AuthFrom(ctx)
	if !ok {
		return errNoAuth
	}
	ev := req.Event
	thread := ev.ThreadTS
	if thread == "" {
		thread = ev.TS
	}

	text, err := a.relay.Reply(ctx, relay.Message{BotUserID: auth.BotUserID, UserID: ev.User, Text: ev.Text})
	switch {
	case errors.Is(err, relay.ErrNotConfigured):
		text = notConfiguredText
	case err != nil:
		slog.Error("relay reply failed", "tenant", req.TenantID, "channel", ev.Channel, "err", err)
		text = replyFailedText
	}
	if err := auth.API.PostMessage(ctx, ev.Channel, thread, text); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	return nil
}

func (a *App) tokensRevoked(ctx context.Context, req *Request) error {
	if a.lifecycle == nil {
		return nil
	}
	var ev lifecycle.TokensRevoked
	if err := json.Unmarshal(req.RawEvent, &ev); err != nil {
		return fmt.Errorf("%w: tokens_revoked: %v", ErrBadPayload, err)
	}
	a.lifecycle.TokensRevoked(ctx, req.TenantID, ev)
	return nil
}
