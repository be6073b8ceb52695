package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/relay"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
	"github.com/shawn/slack-gpt-tenancy/internal/slackapp"
	"github.com/shawn/slack-gpt-tenancy/internal/tasks"
	"github.com/shawn/slack-gpt-tenancy/internal/translate"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

func main() {
	cfg, errs := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	for _, err := range errs {
		slog.Warn("config", "err", err)
	}
	if cfg.SlackAppToken == "" || cfg.SlackBotToken == "" {
		slog.Error("SLACK_APP_TOKEN and SLACK_BOT_TOKEN are required")
		os.Exit(1)
	}
	holder := config.NewHolder(cfg, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	opts := []slack.Option{slack.OptionAppLevelToken(cfg.SlackAppToken)}
	if cfg.SlackAPIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.SlackAPIURL))
	}
	client := slack.New(cfg.SlackBotToken, opts...)
	who, err := client.AuthTestContext(ctx)
	if err != nil {
		slog.Error("auth.test", "err", err)
		os.Exit(1)
	}

	runner := tasks.NewRunner(16, time.Duration(cfg.OpenAITimeoutSeconds+30)*time.Second)
	tr := translate.NewCached(holder)

	// No store: the static OPENAI_* defaults always apply.
	app := slackapp.New(slackapp.Options{
		Config:     holder,
		Resolver:   resolver.New(holder, nil),
		Authorizer: slackapp.NewStaticAuthorizer(cfg.SlackBotToken, who.UserID, slackapp.NewWebAPI(cfg.SlackBotToken, cfg.SlackAPIURL)),
		Relay:      relay.New(holder),
		Translator: tr,
		Tasks:      runner,
	})

	slog.Info("socket mode starting", "bot_user_id", who.UserID, "team_id", who.TeamID)
	if err := app.RunSocketMode(ctx, socketmode.New(client)); err != nil && ctx.Err() == nil {
		slog.Error("socket mode", "err", err)
	}
	runner.Wait()
}
