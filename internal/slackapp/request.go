package slackapp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shawn/slack-gpt-tenancy/internal/installation"
	"github.com/slack-go/slack"
)

// ErrBadPayload is wrapped by every parse error.
var ErrBadPayload = errors.New("malformed slack payload")

// Kind distinguishes events from the interactions routed by the app.
type Kind string

const (
	KindEvent          Kind = "event"
	KindBlockAction    Kind = "block_actions"
	KindViewSubmission Kind = "view_submission"
)

// Event types handled by the app.
const (
	EventAppHomeOpened  = "app_home_opened"
	EventAppMention     = "app_mention"
	EventMessage        = "message"
	EventTokensRevoked  = "tokens_revoked"
	EventAppUninstalled = "app_uninstalled"
)

// Event holds the inner event fields the handlers read.
type Event struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
	BotID       string `json:"bot_id"`
	Subtype     string `json:"subtype"`
	Tab         string `json:"tab"`
}

// Request is one inbound event or interaction after parsing.
type Request struct {
	Kind         Kind
	TenantID     string
	EnterpriseID string
	TeamID       string
	UserID       string

	Event    Event
	RawEvent json.RawMessage

	Interaction *slack.InteractionCallback
}

func (r *Request) isLifecycle() bool {
	return r.Kind == KindEvent && (r.Event.Type == EventTokensRevoked || r.Event.Type == EventAppUninstalled)
}

// envelope is the outer Events API body.
type envelope struct {
	Type           string          `json:"type"`
	Challenge      string          `json:"challenge"`
	TeamID         string          `json:"team_id"`
	EnterpriseID   string          `json:"enterprise_id"`
	EventID        string          `json:"event_id"`
	Event          json.RawMessage `json:"event"`
	Authorizations []struct {
		EnterpriseID        string `json:"enterprise_id"`
		TeamID              string `json:"team_id"`
		IsEnterpriseInstall bool   `json:"is_enterprise_install"`
	} `json:"authorizations"`
}

func parseEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &env, nil
}

var routedEvents = map[string]bool{
	EventAppHomeOpened:  true,
	EventAppMention:     true,
	EventMessage:        true,
	EventTokensRevoked:  true,
	EventAppUninstalled: true,
}

// request converts an event_callback envelope. It returns nil for event
// types the app does not handle.
func (env *envelope) request() (*Request, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Event, &head); err != nil {
		return nil, fmt.Errorf("%w: event: %v", ErrBadPayload, err)
	}
	if !routedEvents[head.Type] {
		return nil, nil
	}
	req := &Request{Kind: KindEvent, EnterpriseID: env.EnterpriseID, TeamID: env.TeamID, RawEvent: env.Event}
	if err := json.Unmarshal(env.Event, &req.Event); err != nil {
		return nil, fmt.Errorf("%w: %s event: %v", ErrBadPayload, head.Type, err)
	}
	team := env.TeamID
	if len(env.Authorizations) > 0 {
		a := env.Authorizations[0]
		if req.EnterpriseID == "" {
			req.EnterpriseID = a.EnterpriseID
		}
		if a.IsEnterpriseInstall {
			team = ""
		}
	}
	req.TenantID = installation.TenantID(req.EnterpriseID, team)
	req.UserID = req.Event.User
	return req, nil
}

// interactionIdentity holds the ids used to derive the tenant.
type interactionIdentity struct {
	Team struct {
		ID string `json:"id"`
	} `json:"team"`
	User struct {
		ID     string `json:"id"`
		TeamID string `json:"team_id"`
	} `json:"user"`
	Enterprise struct {
		ID string `json:"id"`
	} `json:"enterprise"`
	IsEnterpriseInstall bool `json:"is_enterprise_install"`
}

func parseInteraction(raw []byte) (*Request, error) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("%w: interaction: %v", ErrBadPayload, err)
	}
	var id interactionIdentity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%w: interaction identity: %v", ErrBadPayload, err)
	}

	req := &Request{
		EnterpriseID: id.Enterprise.ID,
		TeamID:       id.Team.ID,
		UserID:       id.User.ID,
		Interaction:  &cb,
	}
	if req.TeamID == "" {
		req.TeamID = id.User.TeamID
	}
	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		req.Kind = KindBlockAction
	case slack.InteractionTypeViewSubmission:
		req.Kind = KindViewSubmission
	default:
		return nil, nil
	}
	team := req.TeamID
	if id.IsEnterpriseInstall {
		team = ""
	}
	req.TenantID = installation.TenantID(req.EnterpriseID, team)
	return req, nil
}
