// Package dialog drives the configure modal: it builds the view, validates
// a submission before acknowledging it and persists the result afterwards.
package dialog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shawn/slack-gpt-tenancy/internal/tasks"
	"github.com/shawn/slack-gpt-tenancy/internal/tenantconfig"
	"github.com/shawn/slack-gpt-tenancy/internal/translate"
	"github.com/shawn/slack-gpt-tenancy/internal/validator"
	"github.com/slack-go/slack"
)

const (
	msgInvalidCredential = "This API key seems to be invalid"
	msgModelUnavailable  = "This model is not yet available for this API key"
)

// Validator checks a candidate credential and model.
type Validator interface {
	Validate(ctx context.Context, credential, model string) validator.Outcome
}

// RecordPutter is the write side of the tenant config store.
type RecordPutter interface {
	Put(ctx context.Context, tenantID string, rec tenantconfig.Record) error
}

// Result is what Submit decided. Errors is empty when the submission was
// accepted; Deferred is then the persistence task to run after the ack.
type Result struct {
	Errors   map[string]string
	Deferred []tasks.Task
}

// Accepted reports whether the submission passed validation.
func (r Result) Accepted() bool { return len(r.Errors) == 0 }

// Ack returns the view submission response. A nil response means an empty
// ack, which closes the modal.
func (r Result) Ack() *slack.ViewSubmissionResponse {
	if r.Accepted() {
		return nil
	}
	return slack.NewErrorsViewSubmissionResponse(r.Errors)
}

// Controller validates and stores configure submissions.
type Controller struct {
	validator  Validator
	store      RecordPutter
	translator translate.Translator
}

func NewController(v Validator, store RecordPutter, tr translate.Translator) *Controller {
	if tr == nil {
		tr = translate.Nop{}
	}
	return &Controller{validator: v, store: store, translator: tr}
}

// Modal builds the configure view for a tenant, translated when the tenant
// already has a credential.
func (c *Controller) Modal(ctx context.Context, existingCredential string) slack.ModalViewRequest {
	return Modal(LabelsFor(ctx, c.translator, existingCredential))
}

// Submit validates sub for tenantID. existingCredential is the tenant's
// current credential, used only to translate error messages; the user's
// locale travels on ctx.
func (c *Controller) Submit(ctx context.Context, tenantID, existingCredential string, sub Submission) Result {
	switch c.validator.Validate(ctx, sub.APIKey, sub.Model) {
	case validator.Valid:
	case validator.InvalidCredential:
		return c.reject(ctx, existingCredential, BlockAPIKey, msgInvalidCredential)
	default:
		return c.reject(ctx, existingCredential, BlockModel, msgModelUnavailable)
	}

	rec := tenantconfig.Record{Credential: sub.APIKey, Model: sub.Model}
	return Result{Deferred: []tasks.Task{{
		Name: "save_tenant_config",
		Run: func(ctx context.Context) error {
			if err := c.store.Put(ctx, tenantID, rec); err != nil {
				return fmt.Errorf("save config for %s: %w", tenantID, err)
			}
			slog.Info("tenant config saved", "tenant", tenantID, "model", rec.Model)
			return nil
		},
	}}}
}

// Reject builds a Result for a submission that could not be parsed.
func (c *Controller) Reject(ctx context.Context, existingCredential string, err *FieldError) Result {
	return c.reject(ctx, existingCredential, err.Block, err.Message)
}

func (c *Controller) reject(ctx context.Context, existingCredential, block, msg string) Result {
	if existingCredential != "" {
		msg = c.translator.Translate(ctx, existingCredential, msg)
	}
	return Result{Errors: map[string]string{block: msg}}
}
