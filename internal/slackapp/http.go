package slackapp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"
)

const maxBodyBytes = 1 << 20

// ServeHTTP is the Slack request URL for events and interactions. Events
// are acknowledged at once and processed in the background; interactions
// are handled before the ack and their deferred work is scheduled after it.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := a.verify(r.Header, body); err != nil {
		slog.Warn("slack request rejected", "err", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		a.serveInteraction(w, r, body)
		return
	}

	env, err := parseEnvelope(body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if env.Type == "url_verification" {
		writeJSON(w, map[string]string{"challenge": env.Challenge})
		return
	}
	if err := a.dispatchEvent(r.Context(), env); err != nil {
		slog.Warn("slack event dropped", "event_id", env.EventID, "err", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (a *App) serveInteraction(w http.ResponseWriter, r *http.Request, body []byte) {
	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	res, err := a.HandleInteraction(r.Context(), []byte(form.Get("payload")))
	if err != nil {
		slog.Error("slack interaction failed", "err", err)
		if errors.Is(err, ErrBadPayload) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if res.Ack != nil {
		writeJSON(w, res.Ack)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	a.Defer(r.Context(), res.Deferred)
}

func (a *App) verify(h http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(h, a.cfg.Current().SlackSigningSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
