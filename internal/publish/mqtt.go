// Package publish sends scoreboard snapshots to an MQTT broker so remote
// displays can follow the game.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/emmett/pingpong/internal/game"
)

// publishTimeout bounds how long a snapshot publish may wait for the broker
const publishTimeout = 5 * time.Second

// Client is the part of mqtt.Client the publisher needs
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// ClientConfig holds MQTT connection settings
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Connect opens a paho connection to the broker
func Connect(config ClientConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("MQTT connection established", "broker", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

// Publisher publishes every snapshot as JSON on a topic. Snapshots are
// retained so a display that connects mid-game sees the current score.
type Publisher struct {
	client Client
	topic  string
	qos    byte

	mu      sync.Mutex
	lastSeq uint64
}

// NewPublisher creates a publisher on topic with QoS 1
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, qos: 1}
}

// WriteSnapshot publishes s unless a newer snapshot was already published
func (p *Publisher) WriteSnapshot(s game.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Seq != 0 && s.Seq <= p.lastSeq {
		return nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing snapshot to %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	p.lastSeq = s.Seq
	slog.Debug("published snapshot", "topic", p.topic, "seq", s.Seq)
	return nil
}

// Close disconnects from the broker
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
