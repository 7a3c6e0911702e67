package subscription

import "time"

// Subscription binds one device/browser instance to the push delivery
// channel for a property.
//
// Lifecycle: created on explicit user opt-in, destroyed on opt-out or
// permission revocation. The signaling core only consumes its existence;
// the registration token in Endpoint is opaque here.
type Subscription struct {
	ID         string    `json:"id" db:"id"`
	PropertyID string    `json:"property_id" db:"property_id"`

	// Endpoint is the platform push registration token/URL. It identifies
	// exactly one device instance.
	Endpoint string `json:"endpoint" db:"endpoint"`

	// DeviceInfo is optional browser/device metadata for the owner's device
	// list UI.
	DeviceInfo string `json:"device_info,omitempty" db:"device_info"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Status is the user-visible delivery state for one device on one property.
//
// "Not subscribed" and "permission denied" are distinct on purpose: the UI
// shows an opt-in prompt for the former and a persistent, dismissible
// advisory for the latter.
type Status string

const (
	StatusSubscribed       Status = "subscribed"
	StatusNotSubscribed    Status = "not_subscribed"
	StatusPermissionDenied Status = "permission_denied"
)
