package tones

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// framePublisher is the slice of mqtt.Client the sink needs. mqtt.Client
// satisfies it; tests substitute a fake.
type framePublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink carries G.711 call-progress frames to the panel's audio topic.
// The panel plays each frame as it arrives; frames are fire-and-forget, a
// dropped frame is a click, not an error worth retrying.
type MQTTSink struct {
	pub   framePublisher
	topic string
	qos   byte

	client mqtt.Client
}

// MQTTSinkOptions configures the panel audio connection.
type MQTTSinkOptions struct {
	Broker   string
	ClientID string
	// Topic is the panel audio topic, e.g. "doorbell/panel/audio".
	Topic string
	QoS   byte
}

func NewMQTTSink(opts MQTTSinkOptions) (*MQTTSink, error) {
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
	return &MQTTSink{pub: client, topic: opts.Topic, qos: opts.QoS, client: client}, nil
}

// WriteFrame publishes one mu-law frame to the panel audio topic.
func (s *MQTTSink) WriteFrame(ulaw []byte) error {
	token := s.pub.Publish(s.topic, s.qos, false, ulaw)
	token.Wait()
	return token.Error()
}

// Disconnect tears down the MQTT connection.
func (s *MQTTSink) Disconnect() {
	if s.client != nil {
		s.client.Disconnect(1000)
	}
}
