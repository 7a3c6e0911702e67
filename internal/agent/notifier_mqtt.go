package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"doorbell-signal/internal/push"
)

// MQTTNotifier renders notifications on the owner's indoor panel by
// publishing display/close commands to its MQTT topics.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// MQTTNotifierOptions configures the panel connection.
type MQTTNotifierOptions struct {
	Broker   string
	ClientID string
	// Topic is the base panel topic, e.g. "doorbell/panel".
	Topic string
	QoS   byte
}

func NewMQTTNotifier(opts MQTTNotifierOptions) (*MQTTNotifier, error) {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(60 * time.Second)

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", opts.Broker, err)
	}
	return &MQTTNotifier{client: client, topic: opts.Topic, qos: opts.QoS}, nil
}

type panelDisplay struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon"`
	Badge              string   `json:"badge"`
	Tag                string   `json:"tag"`
	RequireInteraction bool     `json:"require_interaction"`
	Renotify           bool     `json:"renotify"`
	Vibration          []int    `json:"vibration,omitempty"`
	Silent             bool     `json:"silent"`
	Actions            []Action `json:"actions"`
	RoomName           string   `json:"room_name,omitempty"`
	PropertyName       string   `json:"property_name,omitempty"`
}

func (n *MQTTNotifier) Display(_ context.Context, d Notification) error {
	raw, err := json.Marshal(panelDisplay{
		Title:              d.Title,
		Body:               d.Body,
		Icon:               d.Icon,
		Badge:              d.Badge,
		Tag:                d.Tag,
		RequireInteraction: d.RequireInteraction,
		Renotify:           d.Renotify,
		Vibration:          d.Vibration,
		Silent:             d.Silent,
		Actions:            d.Actions,
		RoomName:           d.Data.RoomName,
		PropertyName:       d.Data.PropertyName,
	})
	if err != nil {
		return err
	}
	token := n.client.Publish(n.topic+"/display", n.qos, false, raw)
	token.Wait()
	return token.Error()
}

func (n *MQTTNotifier) Close(_ context.Context, tag string) error {
	raw, err := json.Marshal(map[string]string{"tag": tag})
	if err != nil {
		return err
	}
	token := n.client.Publish(n.topic+"/close", n.qos, false, raw)
	token.Wait()
	return token.Error()
}

type panelInteraction struct {
	Tag                 string `json:"tag"`
	Action              string `json:"action"`
	RoomName            string `json:"room_name"`
	PropertyName        string `json:"property_name"`
	ClosedWithoutAction bool   `json:"closed_without_action"`
}

// Interactions subscribes to the panel's interaction topic and streams the
// owner's taps back to the agent. The channel is buffered; a burst of taps
// beyond the buffer is dropped rather than blocking the MQTT callback.
func (n *MQTTNotifier) Interactions(ctx context.Context) (<-chan Interaction, error) {
	ch := make(chan Interaction, 16)
	token := n.client.Subscribe(n.topic+"/interaction", n.qos, func(_ mqtt.Client, m mqtt.Message) {
		var pi panelInteraction
		if err := json.Unmarshal(m.Payload(), &pi); err != nil {
			return
		}
		it := Interaction{
			Tag:                 pi.Tag,
			Action:              pi.Action,
			ClosedWithoutAction: pi.ClosedWithoutAction,
			Data: push.RoutingData{
				RoomName:     pi.RoomName,
				PropertyName: pi.PropertyName,
			},
		}
		select {
		case ch <- it:
		case <-ctx.Done():
		default:
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribing to %s/interaction: %w", n.topic, err)
	}
	return ch, nil
}

// Disconnect tears down the MQTT connection.
func (n *MQTTNotifier) Disconnect() {
	n.client.Disconnect(1000)
}
