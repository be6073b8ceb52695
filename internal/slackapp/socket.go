package slackapp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slack-go/slack/socketmode"
)

// Acker acknowledges socket mode requests.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// RunSocketMode receives events over a socket mode connection until ctx
// is cancelled.
func (a *App) RunSocketMode(ctx context.Context, client *socketmode.Client) error {
	go a.ServeSocketEvents(ctx, client, client.Events)
	return client.RunContext(ctx)
}

// ServeSocketEvents handles events until ctx is cancelled or events is
// closed. Interactive requests run on their own goroutine so a slow
// validation does not hold back later events; it returns once they finish.
func (a *App) ServeSocketEvents(ctx context.Context, acker Acker, events <-chan socketmode.Event) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Type == socketmode.EventTypeInteractive {
				wg.Add(1)
				go func() {
					defer wg.Done()
					a.HandleSocketEvent(ctx, acker, evt)
				}()
				continue
			}
			a.HandleSocketEvent(ctx, acker, evt)
		}
	}
}

// HandleSocketEvent processes one socket mode event.
func (a *App) HandleSocketEvent(ctx context.Context, acker Acker, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("socket mode: connecting")
	case socketmode.EventTypeConnected:
		slog.Info("socket mode: connected")
	case socketmode.EventTypeConnectionError:
		slog.Warn("socket mode: connection error", "data", evt.Data)
	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		acker.Ack(*evt.Request)
		if err := a.HandleEvent(ctx, evt.Request.Payload); err != nil {
			slog.Warn("slack event dropped", "err", err)
		}
	case socketmode.EventTypeInteractive:
		if evt.Request == nil {
			return
		}
		res, err := a.HandleInteraction(ctx, evt.Request.Payload)
		if err != nil {
			slog.Error("slack interaction failed", "err", err)
		}
		if res.Ack != nil {
			acker.Ack(*evt.Request, res.Ack)
		} else {
			acker.Ack(*evt.Request)
		}
		a.Defer(ctx, res.Deferred)
	}
}
