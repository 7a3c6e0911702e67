package router

import (
	"context"
	"log/slog"
	"sync"

	"doorbell-signal/internal/calls"
	"doorbell-signal/internal/transport"
	"doorbell-signal/pkg/utils"
)

// SessionFactory constructs a fresh call session. Sessions are single-use,
// so the router asks for a new one per incoming call.
type SessionFactory func() *calls.Session

// SurfaceFunc brings the application UI into the call-answering context for
// the named property. It must be cheap and idempotent.
type SurfaceFunc func(propertyName string)

// ControlSender delivers lifecycle control messages to the delivery agent.
type ControlSender interface {
	PublishControl(ctx context.Context, msg transport.ControlMessage) error
}

// Router is the foreground half of the delivery split. It receives routing
// messages from the background delivery agent (or direct in-app triggers)
// and drives the call state machine into the right call context.
//
// It is idempotent against duplicate routing messages: a message for a
// context whose session is already ringing or active does not restart the
// ringer. Push-originated and in-app calls share the same entry path, so the
// session contract is identical regardless of trigger source.
type Router struct {
	mu      sync.Mutex
	session *calls.Session
	room    string

	newSession SessionFactory
	surface    SurfaceFunc
	control    ControlSender
	log        *slog.Logger
}

// Options wires a Router.
type Options struct {
	NewSession SessionFactory
	Surface    SurfaceFunc
	Control    ControlSender
	Logger     *slog.Logger
}

func New(opts Options) *Router {
	r := &Router{
		newSession: opts.NewSession,
		surface:    opts.Surface,
		control:    opts.Control,
		log:        opts.Logger,
	}
	if r.newSession == nil {
		r.newSession = func() *calls.Session { return calls.NewSession(calls.Options{}) }
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Run consumes routing messages until ctx is cancelled.
func (r *Router) Run(ctx context.Context, routes <-chan transport.RouteMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-routes:
			if !ok {
				return nil
			}
			r.HandleRoute(msg)
		}
	}
}

// HandleRoute processes one routing message from the agent.
func (r *Router) HandleRoute(msg transport.RouteMessage) {
	if msg.Type != transport.TypeNotificationClick {
		r.log.Warn("unexpected route message type", "type", msg.Type)
		return
	}
	r.route(msg.RoomName, msg.PropertyName, "", "")
}

// TriggerInAppCall starts an incoming call without any push involved. Same
// path, same idempotence, same session contract.
func (r *Router) TriggerInAppCall(propertyID, propertyName, callerLabel string) bool {
	return r.route("", propertyName, propertyID, callerLabel)
}

func (r *Router) route(roomName, propertyName, propertyID, callerLabel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.surface != nil {
		r.surface(propertyName)
	}

	if r.session != nil && r.session.Live() {
		// Duplicate routing for an in-flight call: at-least-once delivery is
		// expected, the ringer must not restart.
		r.log.Debug("duplicate route ignored", "property", propertyName, "room", roomName)
		return false
	}

	s := r.newSession()
	if !s.StartIncomingCall(propertyID, propertyName, callerLabel) {
		return false
	}
	r.session = s
	r.room = roomName
	utils.ActiveCalls.Inc()
	r.log.Info("routed into call context", "property", propertyName, "room", roomName)
	return true
}

// Answer forwards to the current session; a no-op when none is live.
func (r *Router) Answer() bool {
	if s := r.current(); s != nil {
		return s.Answer()
	}
	return false
}

// Decline forwards to the current session. The context returns to idle.
func (r *Router) Decline() bool {
	s := r.current()
	if s == nil {
		return false
	}
	if s.Decline() {
		r.clearRoom()
		utils.ActiveCalls.Dec()
		return true
	}
	return false
}

// End terminates the active call and returns its duration exactly once; the
// caller persists it to the activity log.
func (r *Router) End() (int, bool) {
	s := r.current()
	if s == nil {
		return 0, false
	}
	dur, ok := s.End()
	if ok {
		r.clearRoom()
		utils.ActiveCalls.Dec()
	}
	return dur, ok
}

// Snapshot reports the current call context, or an idle Info when no session
// is live.
func (r *Router) Snapshot() calls.Info {
	s := r.current()
	if s == nil {
		return calls.Info{State: calls.StateIdle}
	}
	info := s.Snapshot()
	if info.State == calls.StateEnded {
		info.State = calls.StateIdle
	}
	return info
}

// RequestImmediateActivation sends SKIP_WAITING so an updated agent version
// activates without waiting for all clients to close.
func (r *Router) RequestImmediateActivation(ctx context.Context) error {
	if r.control == nil {
		return nil
	}
	return r.control.PublishControl(ctx, transport.ControlMessage{Type: transport.TypeSkipWaiting})
}

// CurrentRoom reports the room the in-flight call was routed to, or "" for
// in-app calls and idle contexts.
func (r *Router) CurrentRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room
}

func (r *Router) clearRoom() {
	r.mu.Lock()
	r.room = ""
	r.mu.Unlock()
}

func (r *Router) current() *calls.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}
