package agent

import (
	"context"

	"doorbell-signal/internal/push"
)

// Stable action identifiers on the rendered notification. Anything else
// (or a missing identifier) is handled as ActionOpen.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

// Notification is the display request handed to the host notification
// surface. It is configured for a doorbell ring: it demands interaction,
// re-notifies instead of collapsing into an existing one, and carries a
// strong attention pattern.
type Notification struct {
	Title string
	Body  string
	Icon  string
	Badge string

	// Tag is unique per delivery; see push.TagSource.
	Tag string

	// Data is forwarded verbatim into the interaction.
	Data push.RoutingData

	// RequireInteraction keeps the notification on screen until acted on.
	RequireInteraction bool
	// Renotify alerts again even if a notification with this tag existed.
	Renotify bool
	// Vibration is the vibration pattern in milliseconds (pulse, pause, ...).
	Vibration []int
	// Silent false keeps the platform alert sound on.
	Silent bool

	Actions []Action
}

// Action is one button on the notification.
type Action struct {
	ID    string
	Title string
}

// FromPayload maps a decoded push payload onto the fixed doorbell
// notification shape.
func FromPayload(p push.Payload) Notification {
	return Notification{
		Title:              p.Title,
		Body:               p.Body,
		Icon:               p.Icon,
		Badge:              p.Badge,
		Tag:                p.Tag,
		Data:               p.Data,
		RequireInteraction: true,
		Renotify:           true,
		Vibration:          []int{300, 100, 300, 100, 300},
		Silent:             false,
		Actions: []Action{
			{ID: ActionOpen, Title: "Answer"},
			{ID: ActionDismiss, Title: "Dismiss"},
		},
	}
}

// Notifier is the OS-notification capability the agent depends on.
// Production adapters render on a real surface (see MQTTNotifier); tests use
// MockNotifier.
type Notifier interface {
	Display(ctx context.Context, n Notification) error
	Close(ctx context.Context, tag string) error
}

// Interaction is the user's reaction to a displayed notification, reported
// back by the host surface.
type Interaction struct {
	Tag    string
	Action string
	Data   push.RoutingData

	// ClosedWithoutAction marks a notification dismissed by the platform or
	// swiped away without choosing an action: a deliberate ignore.
	ClosedWithoutAction bool
}
