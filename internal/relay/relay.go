// Package relay forwards a Slack message to the chat completion API using
// the configuration resolved for the current event.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/llm"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
)

// ErrNotConfigured means no credential is available for the event.
var ErrNotConfigured = errors.New("no OpenAI API key configured")

// Message is one inbound user message.
type Message struct {
	BotUserID string
	UserID    string
	Text      string
}

// Relay produces replies with go-openai.
type Relay struct {
	cfg *config.Holder
}

func New(cfg *config.Holder) *Relay {
	return &Relay{cfg: cfg}
}

var mentionPrefix = regexp.MustCompile(`^\s*<@[A-Z0-9]+>\s*`)

// Reply asks the model for an answer to msg. The credential, model and
// temperature come from resolver.FromContext.
func (r *Relay) Reply(ctx context.Context, msg Message) (string, error) {
	eff, ok := resolver.FromContext(ctx)
	if !ok || !eff.HasCredential() {
		return "", ErrNotConfigured
	}
	static := r.cfg.Current()

	text := mentionPrefix.ReplaceAllString(msg.Text, "")
	system := strings.ReplaceAll(static.SystemText, "{bot_user_id}", msg.BotUserID)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(static.OpenAITimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := llm.NewClient(eff.Settings(), eff.Credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       eff.Model,
		Temperature: temperature(eff.Temperature),
		User:        msg.UserID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("<@%s>: %s", msg.UserID, text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// temperature maps t onto the request field. The field is omitempty, so a
// zero temperature is sent as the smallest positive float32.
func temperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
