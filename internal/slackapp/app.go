// Package slackapp receives Slack events and interactions, runs them
// through the authorize, locale and config resolution middleware and
// dispatches them to the configure dialog, home tab, chat relay and
// lifecycle handlers.
package slackapp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/dialog"
	"github.com/shawn/slack-gpt-tenancy/internal/lifecycle"
	"github.com/shawn/slack-gpt-tenancy/internal/relay"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
	"github.com/shawn/slack-gpt-tenancy/internal/tasks"
	"github.com/shawn/slack-gpt-tenancy/internal/translate"
)

// Result is a handler's outcome. Ack is written back to Slack (nil means
// an empty acknowledgement); Deferred runs only after the ack is written.
type Result struct {
	Ack      any
	Deferred []tasks.Task
}

// HandlerFunc handles one parsed request.
type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Replier answers a user message.
type Replier interface {
	Reply(ctx context.Context, msg relay.Message) (string, error)
}

// Options wires the App's collaborators. Dialog and Lifecycle are nil in
// single-tenant mode.
type Options struct {
	Config     *config.Holder
	Resolver   *resolver.Resolver
	Authorizer Authorizer
	Dialog     *dialog.Controller
	Lifecycle  *lifecycle.Handler
	Relay      Replier
	Translator translate.Translator
	Tasks      tasks.Submitter
}

// App is the event dispatcher.
type App struct {
	cfg        *config.Holder
	resolver   *resolver.Resolver
	authz      Authorizer
	dialog     *dialog.Controller
	lifecycle  *lifecycle.Handler
	relay      Replier
	translator translate.Translator
	tasks      tasks.Submitter

	chain HandlerFunc
}

func New(opts Options) *App {
	a := &App{
		cfg:        opts.Config,
		resolver:   opts.Resolver,
		authz:      opts.Authorizer,
		dialog:     opts.Dialog,
		lifecycle:  opts.Lifecycle,
		relay:      opts.Relay,
		translator: opts.Translator,
		tasks:      opts.Tasks,
	}
	if a.translator == nil {
		a.translator = translate.Nop{}
	}
	if a.tasks == nil {
		a.tasks = tasks.Inline{}
	}
	a.chain = chain(a.route, a.authorize, a.locale, a.resolve)
	return a
}

// MultiTenant reports whether tenants configure their own credentials.
func (a *App) MultiTenant() bool {
	return a.dialog != nil
}

// chain applies mws so that the first one runs first.
func chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// HandleEvent processes an event_callback payload on the task runner and
// returns once the work is scheduled.
func (a *App) HandleEvent(ctx context.Context, body []byte) error {
	env, err := parseEnvelope(body)
	if err != nil {
		return err
	}
	return a.dispatchEvent(ctx, env)
}

func (a *App) dispatchEvent(ctx context.Context, env *envelope) error {
	if env.Type != "event_callback" {
		return nil
	}
	req, err := env.request()
	if err != nil || req == nil {
		return err
	}
	a.tasks.Submit(ctx, tasks.Task{
		Name: "event:" + req.Event.Type,
		Run: func(ctx context.Context) error {
			res, err := a.chain(ctx, req)
			a.Defer(ctx, res.Deferred)
			return err
		},
	})
	return nil
}

// HandleInteraction runs an interaction payload synchronously and returns
// the acknowledgement and any work to run after it is written.
func (a *App) HandleInteraction(ctx context.Context, payload []byte) (Result, error) {
	req, err := parseInteraction(payload)
	if err != nil || req == nil {
		return Result{}, err
	}
	return a.chain(ctx, req)
}

// Defer submits work that must run after the ack has been written.
func (a *App) Defer(ctx context.Context, deferred []tasks.Task) {
	for _, t := range deferred {
		a.tasks.Submit(ctx, t)
	}
}

func (a *App) authorize(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) (Result, error) {
		auth, err := a.authz.Authorize(ctx, req.TenantID)
		if err != nil {
			// Revocation events arrive after the bot token is gone.
			if req.isLifecycle() {
				return next(ctx, req)
			}
			return Result{}, fmt.Errorf("authorize tenant %s: %w", req.TenantID, err)
		}
		return next(withAuth(ctx, auth), req)
	}
}

func (a *App) locale(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) (Result, error) {
		if !a.cfg.Current().UseSlackLanguage || req.UserID == "" {
			return next(ctx, req)
		}
		auth, ok := AuthFrom(ctx)
		if !ok || !auth.HasScope("users:read") {
			return next(ctx, req)
		}
		loc, err := auth.API.UserLocale(ctx, req.UserID)
		if err != nil {
			slog.Debug("fetch user locale", "user", req.UserID, "err", err)
			return next(ctx, req)
		}
		return next(translate.WithLocale(ctx, loc), req)
	}
}

func (a *App) resolve(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) (Result, error) {
		return next(a.resolver.Attach(ctx, req.TenantID), req)
	}
}

func (a *App) route(ctx context.Context, req *Request) (Result, error) {
	switch req.Kind {
	case KindEvent:
		return Result{}, a.routeEvent(ctx, req)
	case KindBlockAction:
		for _, act := range req.Interaction.ActionCallback.BlockActions {
			if act.ActionID == dialog.ActionConfigure {
				return Result{}, a.openConfigure(ctx, req)
			}
		}
	case KindViewSubmission:
		if req.Interaction.View.CallbackID == dialog.CallbackID {
			return a.submitConfigure(ctx, req), nil
		}
	}
	return Result{}, nil
}

func (a *App) routeEvent(ctx context.Context, req *Request) error {
	ev := req.Event
	switch ev.Type {
	case EventAppHomeOpened:
		return a.homeOpened(ctx, req)
	case EventAppMention:
		return a.reply(ctx, req)
	case EventMessage:
		if ev.ChannelType == "im" && ev.BotID == "" && ev.Subtype == "" {
			return a.reply(ctx, req)
		}
	case EventTokensRevoked:
		return a.tokensRevoked(ctx, req)
	case EventAppUninstalled:
		if a.lifecycle != nil {
			a.lifecycle.AppUninstalled(ctx, req.TenantID)
		}
	}
	return nil
}
