package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds outcome-notification broker settings.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTPublisher publishes each audit event as JSON to
// <prefix>/<operation>/<device>, for dashboards and chat bridges.
type MQTTPublisher struct {
	client  pahomqtt.Client
	prefix  string
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "netchange"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTPublisher{client: client, prefix: cfg.TopicPrefix, timeout: 5 * time.Second}, nil
}

// Log publishes the event with QoS 1.
func (p *MQTTPublisher) Log(event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	topic := EventTopic(p.prefix, event)
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// EventTopic is the topic an event is published on. Topic wildcards
// and separators in names are replaced so a device cannot escape its
// level.
func EventTopic(prefix string, event *Event) string {
	clean := strings.NewReplacer("/", "_", "+", "_", "#", "_")
	parts := []string{clean.Replace(event.Operation), clean.Replace(event.Device)}
	if prefix = strings.TrimSuffix(prefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, "/")
}
