package transport

import (
	"encoding/json"
	"time"
)

// Wire message types exchanged between the background delivery agent and
// foreground routers. Communication is asynchronous message-passing only;
// the two sides share no memory.
const (
	TypeNotificationClick = "NOTIFICATION_CLICK"
	TypeSkipWaiting       = "SKIP_WAITING"
)

// RouteMessage is sent from the agent to foreground routers after a
// notification interaction. Field names follow the client wire contract.
//
// Routers are idempotent against duplicate RouteMessages for the same
// routing data, so the agent may broadcast to every open instance.
type RouteMessage struct {
	Type         string `json:"type"`
	RoomName     string `json:"roomName,omitempty"`
	PropertyName string `json:"propertyName,omitempty"`
}

// NewRouteMessage builds a NOTIFICATION_CLICK message.
func NewRouteMessage(roomName, propertyName string) RouteMessage {
	return RouteMessage{Type: TypeNotificationClick, RoomName: roomName, PropertyName: propertyName}
}

// ControlMessage carries lifecycle control from routers to the agent.
// SKIP_WAITING forces a staged agent version to activate immediately.
type ControlMessage struct {
	Type string `json:"type"`
}

// PushEvent is the envelope a push delivery arrives in. Body holds the raw
// payload bytes exactly as the sender produced them; decoding is the agent's
// job and must never fail the transport.
type PushEvent struct {
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Body           []byte    `json:"body"`
	ReceivedAt     time.Time `json:"received_at"`
}

// MarshalRoute / UnmarshalRoute keep JSON handling in one place so channel
// implementations stay symmetric.

func MarshalRoute(m RouteMessage) ([]byte, error) { return json.Marshal(m) }

func UnmarshalRoute(b []byte) (RouteMessage, error) {
	var m RouteMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

func MarshalPush(e PushEvent) ([]byte, error) { return json.Marshal(e) }

func MarshalControl(m ControlMessage) ([]byte, error) { return json.Marshal(m) }

func UnmarshalControl(b []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

func UnmarshalPush(b []byte) (PushEvent, error) {
	var e PushEvent
	err := json.Unmarshal(b, &e)
	return e, err
}
