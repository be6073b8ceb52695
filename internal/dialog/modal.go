package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shawn/slack-gpt-tenancy/internal/translate"
	"github.com/slack-go/slack"
)

// Identifiers shared by the modal, the home tab button and the dispatcher.
const (
	CallbackID      = "configure"
	ActionConfigure = "configure"
	BlockAPIKey     = "api_key"
	BlockModel      = "model"
	ActionInput     = "input"
)

// ModelOption is one entry of the model select.
type ModelOption struct {
	Value string
	Label string
}

// Models lists the selectable models. The first entry is preselected.
var Models = []ModelOption{
	{Value: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo"},
	{Value: "gpt-4", Label: "GPT-4 8K"},
	{Value: "gpt-4-32k", Label: "GPT-4 32K"},
}

// IsKnownModel reports whether model is one of Models.
func IsKnownModel(model string) bool {
	for _, m := range Models {
		if m.Value == model {
			return true
		}
	}
	return false
}

// Labels are the translatable strings of the modal.
type Labels struct {
	APIKey string
	Model  string
	Submit string
	Cancel string
}

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		APIKey: "Save your OpenAI API key:",
		Model:  "OpenAI Model",
		Submit: "Submit",
		Cancel: "Cancel",
	}
}

// LabelsFor translates the labels when the tenant already has a credential
// to translate with.
func LabelsFor(ctx context.Context, tr translate.Translator, existingCredential string) Labels {
	l := DefaultLabels()
	if existingCredential == "" || tr == nil {
		return l
	}
	l.APIKey = tr.Translate(ctx, existingCredential, l.APIKey)
	l.Submit = tr.Translate(ctx, existingCredential, l.Submit)
	l.Cancel = tr.Translate(ctx, existingCredential, l.Cancel)
	return l
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

// Modal builds the configure view.
func Modal(l Labels) slack.ModalViewRequest {
	keyInput := slack.NewInputBlock(
		BlockAPIKey, plain(l.APIKey), nil,
		slack.NewPlainTextInputBlockElement(nil, ActionInput),
	)

	options := make([]*slack.OptionBlockObject, 0, len(Models))
	for _, m := range Models {
		options = append(options, slack.NewOptionBlockObject(m.Value, plain(m.Label), nil))
	}
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, ActionInput, options...)
	sel.InitialOption = options[0]
	modelInput := slack.NewInputBlock(BlockModel, plain(l.Model), nil, sel)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackID,
		Title:      plain("OpenAI API Key"),
		Submit:     plain(l.Submit),
		Close:      plain(l.Cancel),
		Blocks:     slack.Blocks{BlockSet: []slack.Block{keyInput, modelInput}},
	}
}

// ErrInvalidSubmission is wrapped by every ParseSubmission error.
var ErrInvalidSubmission = errors.New("invalid configure submission")

// FieldError names the block a submission error belongs to, so it can be
// shown next to that input.
type FieldError struct {
	Block   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Block, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrInvalidSubmission }

// Submission is the typed content of a configure view submission.
type Submission struct {
	APIKey string
	Model  string
}

// ParseSubmission extracts the credential and model from the view state.
func ParseSubmission(state *slack.ViewState) (Submission, error) {
	if state == nil {
		return Submission{}, &FieldError{Block: BlockAPIKey, Message: "missing view state"}
	}
	key, ok := state.Values[BlockAPIKey][ActionInput]
	if !ok || strings.TrimSpace(key.Value) == "" {
		return Submission{}, &FieldError{Block: BlockAPIKey, Message: "API key is required"}
	}
	model, ok := state.Values[BlockModel][ActionInput]
	if !ok || strings.TrimSpace(model.SelectedOption.Value) == "" {
		return Submission{}, &FieldError{Block: BlockModel, Message: "model is required"}
	}
	sub := Submission{
		APIKey: strings.TrimSpace(key.Value),
		Model:  strings.TrimSpace(model.SelectedOption.Value),
	}
	if !IsKnownModel(sub.Model) {
		return Submission{}, &FieldError{Block: BlockModel, Message: fmt.Sprintf("unsupported model %q", sub.Model)}
	}
	return sub, nil
}
