package agent

import (
	"context"
	"log/slog"
	"sync"

	"doorbell-signal/internal/push"
	"doorbell-signal/internal/transport"
	"doorbell-signal/pkg/utils"
)

// Agent is the background delivery process. It stays resident independently
// of any application window: it receives push events, renders OS-level
// notifications, and routes user interactions back into open foreground
// router instances (or stages a window-open when none exist).
//
// The agent must never die on a bad payload or a failed display; it only has
// to stop when its host context is cancelled.
type Agent struct {
	notifier Notifier
	broker   Broker
	log      *slog.Logger

	mu      sync.Mutex
	version string
	staged  string
}

// Broker abstracts the client side of the message plane. Production uses the
// Redis bus (receiver count from PUBLISH); tests use mocks or the in-memory
// hub.
type Broker interface {
	// Broadcast sends the route message to every open foreground router and
	// returns how many instances received it.
	Broadcast(ctx context.Context, msg transport.RouteMessage) (int, error)
	// OpenWindow requests a new application window carrying the routing data,
	// used when Broadcast reaches zero instances.
	OpenWindow(ctx context.Context, msg transport.RouteMessage) error
}

// Options wires an Agent.
type Options struct {
	Notifier Notifier
	Broker   Broker
	Logger   *slog.Logger
	Version  string
}

func New(opts Options) *Agent {
	a := &Agent{
		notifier: opts.Notifier,
		broker:   opts.Broker,
		log:      opts.Logger,
		version:  opts.Version,
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// Run processes events until ctx is cancelled. Any of the channels may be
// nil; a nil channel simply never delivers.
func (a *Agent) Run(ctx context.Context, pushes <-chan transport.PushEvent, interactions <-chan Interaction, controls <-chan transport.ControlMessage) error {
	a.log.Info("delivery agent running", "version", a.Version())
	for {
		select {
		case <-ctx.Done():
			a.log.Info("delivery agent stopping")
			return ctx.Err()
		case evt, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			a.HandlePush(ctx, evt)
		case it, ok := <-interactions:
			if !ok {
				interactions = nil
				continue
			}
			a.HandleInteraction(ctx, it)
		case msg, ok := <-controls:
			if !ok {
				controls = nil
				continue
			}
			a.HandleControl(msg)
		}
	}
}

// HandlePush decodes the payload and displays the notification. Decode and
// display happen synchronously within the event so an in-flight delivery is
// never lost to a deferred step; display failure is logged and swallowed.
func (a *Agent) HandlePush(ctx context.Context, evt transport.PushEvent) {
	p := push.Decode(evt.Body)
	n := FromPayload(p)

	if err := a.notifier.Display(ctx, n); err != nil {
		utils.NotificationDisplayFailures.Inc()
		a.log.Error("notification display failed", "tag", n.Tag, "err", err)
		return
	}
	utils.NotificationsDisplayedTotal.Inc()
	a.log.Info("notification displayed", "tag", n.Tag, "title", n.Title)
}

// HandleInteraction reacts to the user acting on (or ignoring) a displayed
// notification.
//
// The notification is closed first in every interactive case. "dismiss" is a
// deliberate ignore: nothing is routed. Every other action identifier,
// including unknown or missing ones, is treated as "open": broadcast to all
// open routers, and when none are reachable, request a new window with the
// same routing data. Exactly one of the two paths fires per interaction.
func (a *Agent) HandleInteraction(ctx context.Context, it Interaction) {
	if it.ClosedWithoutAction {
		a.log.Info("notification ignored", "tag", it.Tag)
		return
	}

	if err := a.notifier.Close(ctx, it.Tag); err != nil {
		a.log.Warn("notification close failed", "tag", it.Tag, "err", err)
	}

	if it.Action == ActionDismiss {
		a.log.Info("notification dismissed", "tag", it.Tag)
		return
	}

	msg := transport.NewRouteMessage(it.Data.RoomName, it.Data.PropertyName)
	n, err := a.broker.Broadcast(ctx, msg)
	if err != nil {
		a.log.Error("route broadcast failed", "tag", it.Tag, "err", err)
		return
	}
	if n > 0 {
		utils.RoutingMessagesTotal.WithLabelValues("broadcast").Inc()
		a.log.Info("routed to open clients", "tag", it.Tag, "clients", n)
		return
	}

	if err := a.broker.OpenWindow(ctx, msg); err != nil {
		a.log.Error("window open request failed", "tag", it.Tag, "err", err)
		return
	}
	utils.RoutingMessagesTotal.WithLabelValues("window_open").Inc()
	a.log.Info("no open clients, requested new window", "tag", it.Tag)
}

// StageUpdate records a new agent version that normally activates only once
// the host reclaims the current one.
func (a *Agent) StageUpdate(version string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged = version
	a.log.Info("agent update staged", "version", version)
}

// HandleControl processes lifecycle messages. SKIP_WAITING activates a staged
// version immediately, superseding the running one without waiting for all
// clients to close.
func (a *Agent) HandleControl(msg transport.ControlMessage) {
	switch msg.Type {
	case transport.TypeSkipWaiting:
		a.mu.Lock()
		if a.staged != "" {
			a.version = a.staged
			a.staged = ""
			a.log.Info("agent activated immediately", "version", a.version)
		}
		a.mu.Unlock()
	default:
		a.log.Warn("unknown control message", "type", msg.Type)
	}
}

// Version returns the currently active agent version.
func (a *Agent) Version() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}
