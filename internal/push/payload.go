package push

// NotificationPayload is the value object carried inside a push message.
//
// It is immutable once encoded: produced by the dispatch layer, consumed by
// the background delivery agent. JSON field names follow the wire contract
// used by the client applications (camelCase), not the internal API style.
//
// RoutingData is opaque to this package: it is forwarded verbatim to the
// foreground router and never interpreted beyond pass-through.

type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`

	// Tag is the uniqueness key for the rendered OS notification. It must be
	// distinct per delivery so repeated rings each produce a new, visible
	// notification instead of replacing the previous one. See TagSource.
	Tag string `json:"tag"`

	Data RoutingData `json:"data"`
}

// RoutingData identifies the call context a notification routes back into.
type RoutingData struct {
	RoomName     string `json:"roomName,omitempty"`
	PropertyName string `json:"propertyName,omitempty"`
}

// Defaults applied by Encode and Decode. Every field of an encoded payload is
// concrete and non-empty.
const (
	DefaultTitle = "🔔 Doorbell"
	DefaultBody  = "Someone is at the door."
	DefaultIcon  = "/icons/doorbell-192.png"
	DefaultBadge = "/icons/doorbell-badge.png"
)
