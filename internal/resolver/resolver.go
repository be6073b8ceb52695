// Package resolver decides which model credential, model and temperature
// apply to one inbound event and carries that decision on the context.
package resolver

import (
	"context"

	"github.com/shawn/slack-gpt-tenancy/internal/config"
	"github.com/shawn/slack-gpt-tenancy/internal/llm"
	"github.com/shawn/slack-gpt-tenancy/internal/metrics"
	"github.com/shawn/slack-gpt-tenancy/internal/tenantconfig"
)

// Source tells where an EffectiveConfig's credential came from.
type Source string

const (
	SourceTenant  Source = "tenant"
	SourceDefault Source = "default"
)

// EffectiveConfig is the configuration applied to a single event. It is
// built once per event and never persisted.
type EffectiveConfig struct {
	Credential   string
	Model        string
	Temperature  float64
	APIType      string
	APIBase      string
	APIVersion   string
	DeploymentID string
	Source       Source
}

// Configured reports whether the tenant has its own stored record. The
// home tab shows "ready to use" vs "needs setup" from this.
func (e EffectiveConfig) Configured() bool {
	return e.Source == SourceTenant
}

// HasCredential reports whether any credential (tenant or default) is set.
func (e EffectiveConfig) HasCredential() bool {
	return e.Credential != ""
}

// Settings returns the provider settings for building an OpenAI client.
func (e EffectiveConfig) Settings() llm.Settings {
	return llm.Settings{
		APIType:      e.APIType,
		APIBase:      e.APIBase,
		APIVersion:   e.APIVersion,
		DeploymentID: e.DeploymentID,
	}
}

// RecordGetter is the read side of the tenant config store.
type RecordGetter interface {
	Get(ctx context.Context, tenantID string) (tenantconfig.Record, bool)
}

// Resolver builds EffectiveConfig values. A nil store means single-tenant
// mode: static defaults always apply and no store is consulted.
type Resolver struct {
	cfg   *config.Holder
	store RecordGetter
}

func New(cfg *config.Holder, store RecordGetter) *Resolver {
	return &Resolver{cfg: cfg, store: store}
}

// Resolve returns the configuration for tenantID, preferring the stored
// record and substituting static defaults for anything it omits.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) EffectiveConfig {
	static := r.cfg.Current()
	eff := EffectiveConfig{
		Credential:   static.OpenAIAPIKey,
		Model:        static.OpenAIModel,
		Temperature:  static.OpenAITemperature,
		APIType:      static.OpenAIAPIType,
		APIBase:      static.OpenAIAPIBase,
		APIVersion:   static.OpenAIAPIVersion,
		DeploymentID: static.OpenAIDeploymentID,
		Source:       SourceDefault,
	}
	if r.store != nil {
		if rec, ok := r.store.Get(ctx, tenantID); ok {
			eff.Credential = rec.Credential
			eff.Source = SourceTenant
			if rec.Model != "" {
				eff.Model = rec.Model
			}
			if rec.Temperature != nil {
				eff.Temperature = *rec.Temperature
			}
		}
	}
	metrics.Resolutions.WithLabelValues(string(eff.Source)).Inc()
	return eff
}

// Attach resolves the configuration for tenantID and stores it on ctx.
func (r *Resolver) Attach(ctx context.Context, tenantID string) context.Context {
	return WithEffective(ctx, r.Resolve(ctx, tenantID))
}

type ctxKey struct{}

// WithEffective returns a copy of ctx carrying eff.
func WithEffective(ctx context.Context, eff EffectiveConfig) context.Context {
	return context.WithValue(ctx, ctxKey{}, eff)
}

// FromContext returns the EffectiveConfig attached to ctx. Handlers read
// configuration only from here and never query the store themselves.
func FromContext(ctx context.Context) (EffectiveConfig, bool) {
	eff, ok := ctx.Value(ctxKey{}).(EffectiveConfig)
	return eff, ok
}
