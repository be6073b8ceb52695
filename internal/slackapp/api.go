package slackapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API used by the handlers.
type API interface {
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	PublishHome(ctx context.Context, userID string, view slack.HomeTabViewRequest) error
	PostMessage(ctx context.Context, channel, threadTS, text string) error
	UserLocale(ctx context.Context, userID string) (string, error)
}

// APIFactory builds an API client for a bot token.
type APIFactory func(token string) API

const maxRateLimitRetries = 2

// WebAPI implements API with slack-go. Rate-limited calls are retried up
// to twice.
type WebAPI struct {
	client *slack.Client
	// Backoff is the base delay between rate-limit retries.
	Backoff time.Duration
}

func NewWebAPI(token, apiURL string) *WebAPI {
	opts := []slack.Option{}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &WebAPI{client: slack.New(token, opts...), Backoff: time.Second}
}

// WebAPIFactory returns an APIFactory pointing at apiURL.
func WebAPIFactory(apiURL string) APIFactory {
	return func(token string) API { return NewWebAPI(token, apiURL) }
}

func (a *WebAPI) do(ctx context.Context, call func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(maxRateLimitRetries, retry.NewExponential(a.Backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := call(ctx)
		var rl *slack.RateLimitedError
		if errors.As(err, &rl) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (a *WebAPI) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	return a.do(ctx, func(ctx context.Context) error {
		if _, err := a.client.OpenViewContext(ctx, triggerID, view); err != nil {
			return fmt.Errorf("views.open: %w", err)
		}
		return nil
	})
}

func (a *WebAPI) PublishHome(ctx context.Context, userID string, view slack.HomeTabViewRequest) error {
	return a.do(ctx, func(ctx context.Context) error {
		if _, err := a.client.PublishViewContext(ctx, userID, view, ""); err != nil {
			return fmt.Errorf("views.publish: %w", err)
		}
		return nil
	})
}

func (a *WebAPI) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	return a.do(ctx, func(ctx context.Context) error {
		if _, _, err := a.client.PostMessageContext(ctx, channel, opts...); err != nil {
			return fmt.Errorf("chat.postMessage: %w", err)
		}
		return nil
	})
}

func (a *WebAPI) UserLocale(ctx context.Context, userID string) (string, error) {
	var locale string
	err := a.do(ctx, func(ctx context.Context) error {
		u, err := a.client.GetUserInfoContext(ctx, userID)
		if err != nil {
			return fmt.Errorf("users.info: %w", err)
		}
		locale = u.Locale
		return nil
	})
	return locale, err
}
