package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Deduper suppresses redelivered ring events. MQTT at QoS 1 is
// at-least-once; a duplicate button event within the window must not ring
// every device twice.
type Deduper interface {
	// FirstSeen reports whether key is new within the dedupe window.
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// MQTTSource consumes doorbell button events from the device topic and feeds
// them to the Dispatcher.
//
// Devices publish to doorbell/<property_id>/ring with a JSON body:
//
//	{"property_name": "...", "caller_label": "...", "event_id": "..."}
type MQTTSource struct {
	client mqtt.Client
	disp   *Dispatcher
	dedupe Deduper
	log    *slog.Logger
	topic  string
	qos    byte
}

// MQTTSourceOptions configures the device feed.
type MQTTSourceOptions struct {
	Broker   string
	ClientID string
	// TopicFilter defaults to "doorbell/+/ring".
	TopicFilter string
	QoS         byte

	Dispatcher *Dispatcher
	Dedupe     Deduper
	Logger     *slog.Logger
}

type ringMessage struct {
	PropertyName string `json:"property_name"`
	CallerLabel  string `json:"caller_label"`
	EventID      string `json:"event_id"`
}

func NewMQTTSource(opts MQTTSourceOptions) (*MQTTSource, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatch: dispatcher is required")
	}
	if opts.TopicFilter == "" {
		opts.TopicFilter = "doorbell/+/ring"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

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

	s := &MQTTSource{
		client: client,
		disp:   opts.Dispatcher,
		dedupe: opts.Dedupe,
		log:    log,
		topic:  opts.TopicFilter,
		qos:    opts.QoS,
	}
	return s, nil
}

// Start subscribes to the ring topic. Message handling runs on paho's
// callback goroutines.
func (s *MQTTSource) Start(ctx context.Context) error {
	token := s.client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, m mqtt.Message) {
		s.handle(ctx, m)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topic, err)
	}
	s.log.Info("device ring feed subscribed", "topic", s.topic)
	return nil
}

func (s *MQTTSource) handle(ctx context.Context, m mqtt.Message) {
	propertyID := propertyFromTopic(m.Topic())
	if propertyID == "" {
		s.log.Warn("ring on unexpected topic", "topic", m.Topic())
		return
	}

	var msg ringMessage
	if err := json.Unmarshal(m.Payload(), &msg); err != nil {
		// A bare button press with no body still rings.
		s.log.Debug("ring body unparsable, using defaults", "topic", m.Topic())
	}

	if s.dedupe != nil && msg.EventID != "" {
		first, err := s.dedupe.FirstSeen(ctx, "ring:"+propertyID+":"+msg.EventID)
		if err != nil {
			s.log.Warn("ring dedupe check failed", "err", err)
		} else if !first {
			s.log.Debug("duplicate ring suppressed", "property", propertyID, "event", msg.EventID)
			return
		}
	}

	if _, err := s.disp.DispatchRing(ctx, RingEvent{
		PropertyID:   propertyID,
		PropertyName: msg.PropertyName,
		CallerLabel:  msg.CallerLabel,
	}); err != nil {
		s.log.Error("ring dispatch failed", "property", propertyID, "err", err)
	}
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(1000)
}

// propertyFromTopic extracts <property_id> from "doorbell/<property_id>/ring".
func propertyFromTopic(topic string) string {
	const prefix = "doorbell/"
	const suffix = "/ring"
	if len(topic) <= len(prefix)+len(suffix) {
		return ""
	}
	if topic[:len(prefix)] != prefix || topic[len(topic)-len(suffix):] != suffix {
		return ""
	}
	return topic[len(prefix) : len(topic)-len(suffix)]
}
