// Package translate renders user-facing strings in the requesting user's
// Slack locale using the tenant's own OpenAI credential.
package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sashabaranov/go-openai"
	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/llm"
	"github.com/shawn/slack-gpt-tenancy/internal/resolver"
)

// Translator returns text in the locale carried by ctx. Implementations
// never fail: on any error the original text is returned.
type Translator interface {
	Translate(ctx context.Context, credential, text string) string
}

type localeKey struct{}

// WithLocale returns a copy of ctx carrying the user's Slack locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFrom returns the locale attached by WithLocale, or "".
func LocaleFrom(ctx context.Context) string {
	l, _ := ctx.Value(localeKey{}).(string)
	return l
}

// NeedsTranslation reports whether text shown to locale must be translated.
func NeedsTranslation(locale string) bool {
	return locale != "" && !strings.HasPrefix(strings.ToLower(locale), "en")
}

var languages = map[string]string{
	"de-DE": "German",
	"es-ES": "Spanish",
	"es-LA": "Spanish",
	"fr-FR": "French",
	"it-IT": "Italian",
	"ja-JP": "Japanese",
	"ko-KR": "Korean",
	"pt-BR": "Portuguese",
	"ru-RU": "Russian",
	"zh-CN": "Simplified Chinese",
	"zh-TW": "Traditional Chinese",
}

// Language maps a Slack locale such as "ja-JP" to a language name.
func Language(locale string) string {
	if name, ok := languages[locale]; ok {
		return name
	}
	return locale
}

// Nop returns text unchanged.
type Nop struct{}

func (Nop) Translate(_ context.Context, _ string, text string) string { return text }

// OpenAI translates with a chat completion. Results are cached per
// locale and text since the same labels are rendered repeatedly.
type OpenAI struct {
	cfg   *config.Holder
	cache *expirable.LRU[string, string]
}

// NewCached returns the translator the binaries use. It is built
// unconditionally: without a locale on the context it returns text
// unchanged, and the locale is only attached while USE_SLACK_LANGUAGE is
// on, so the setting can be toggled by a reload.
func NewCached(cfg *config.Holder) *OpenAI {
	return NewOpenAI(cfg, 1024, time.Hour)
}

func NewOpenAI(cfg *config.Holder, size int, ttl time.Duration) *OpenAI {
	return &OpenAI{
		cfg:   cfg,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (t *OpenAI) Translate(ctx context.Context, credential, text string) string {
	locale := LocaleFrom(ctx)
	if !NeedsTranslation(locale) || credential == "" || strings.TrimSpace(text) == "" {
		return text
	}
	key := locale + "\x00" + text
	if cached, ok := t.cache.Get(key); ok {
		return cached
	}

	static := t.cfg.Current()
	settings, model := llm.SettingsFrom(static), static.OpenAIModel
	if eff, ok := resolver.FromContext(ctx); ok {
		settings, model = eff.Settings(), eff.Model
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(static.OpenAITimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := llm.NewClient(settings, credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You translate short UI strings. Keep the meaning exactly. " +
					"Do not change anything inside <...> or any Slack formatting. " +
					"Reply with the translated text only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Translate into " + Language(locale) + ":\n" + text,
			},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		slog.Debug("translate: falling back to original text", "locale", locale, "err", err)
		return text
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return text
	}
	t.cache.Add(key, out)
	return out
}
