package validator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/llm"
)

// OpenAIProber probes models through the OpenAI "retrieve model" endpoint.
type OpenAIProber struct {
	cfg        *config.Holder
	httpClient *http.Client
}

func NewOpenAIProber(cfg *config.Holder) *OpenAIProber {
	return &OpenAIProber{cfg: cfg, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// ProbeModel retrieves model metadata with credential; any error means
// the model is not usable with that credential.
func (p *OpenAIProber) ProbeModel(ctx context.Context, credential, model string) error {
	c := llm.ClientConfig(llm.SettingsFrom(p.cfg.Current()), credential)
	c.HTTPClient = p.httpClient
	if _, err := openai.NewClientWithConfig(c).GetModel(ctx, model); err != nil {
		return fmt.Errorf("retrieve model %s: %w", model, err)
	}
	return nil
}
