// Package validator checks that a candidate OpenAI credential works and
// has access to the requested model before it is stored.
package validator

import (
	"context"
	"log/slog"

	"github.com/shawn/slack-gpt-tenancy/internal/metrics"
)

// BaselineModel is probed first to test the credential on its own.
const BaselineModel = "gpt-3.5-turbo"

// Outcome is the result of one validation attempt.
type Outcome int

const (
	Valid Outcome = iota
	InvalidCredential
	ModelUnavailableForCredential
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case InvalidCredential:
		return "invalid_credential"
	case ModelUnavailableForCredential:
		return "model_unavailable"
	default:
		return "unknown"
	}
}

// ModelProber checks whether credential can see model upstream.
type ModelProber interface {
	ProbeModel(ctx context.Context, credential, model string) error
}

// Validator runs the two-step probe.
type Validator struct {
	prober ModelProber
}

func New(prober ModelProber) *Validator {
	return &Validator{prober: prober}
}

// Validate probes the baseline model first so a bad credential is never
// reported as a model problem. Upstream errors are not retried.
func (v *Validator) Validate(ctx context.Context, credential, model string) Outcome {
	out := v.validate(ctx, credential, model)
	metrics.Validations.WithLabelValues(out.String()).Inc()
	return out
}

func (v *Validator) validate(ctx context.Context, credential, model string) Outcome {
	if err := v.prober.ProbeModel(ctx, credential, BaselineModel); err != nil {
		slog.Debug("validator: baseline probe failed", "err", err)
		return InvalidCredential
	}
	if model == "" || model == BaselineModel {
		return Valid
	}
	if err := v.prober.ProbeModel(ctx, credential, model); err != nil {
		slog.Debug("validator: model probe failed", "model", model, "err", err)
		return ModelUnavailableForCredential
	}
	return Valid
}
