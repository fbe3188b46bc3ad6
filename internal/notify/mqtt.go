// Package notify forwards engine events to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/config"
	"github.com/kozaktomas/pose-guard/internal/pipeline"
)

const publishTimeout = 2 * time.Second

// ErrPublishTimeout is returned when the broker does not acknowledge a message in time.
var ErrPublishTimeout = errors.New("mqtt publish timeout")

// publishClient is the part of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// Publisher sends alert and log events as JSON.
type Publisher struct {
	client publishClient
	topic  string
	logger *zap.Logger

	disconnect func()
}

// newClient is replaced in tests.
var newClient = mqtt.NewClient

const connectTimeout = 5 * time.Second

// Connect dials the broker from cfg. An empty client ID gets a random one.
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "pose-guard-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetCleanSession(true)

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", zap.String("broker", cfg.Broker), zap.Error(err))
	}

	client := newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Stops the background connect retries.
		client.Disconnect(0)
		return nil, errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	p := NewPublisher(client, cfg.Topic, logger)
	p.disconnect = func() { client.Disconnect(250) }
	return p, nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client publishClient, topic string, logger *zap.Logger) *Publisher {
	if topic == "" {
		topic = "pose-guard"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, topic: topic, logger: logger}
}

// Topic returns the topic an event is published to, or "" when it is not published.
func (p *Publisher) Topic(typ pipeline.EventType) string {
	switch typ {
	case pipeline.EventAlertRaised:
		return p.topic + "/alerts"
	case pipeline.EventLogMessage:
		return p.topic + "/log"
	case pipeline.EventOnboardingStep, pipeline.EventOnboardingFinished:
		return p.topic + "/onboarding"
	default:
		return ""
	}
}

// Publish sends one event. Alerts use QoS 1, everything else QoS 0.
func (p *Publisher) Publish(ev pipeline.Event) error {
	topic := p.Topic(ev.Type)
	if topic == "" {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	var qos byte
	if ev.Type == pipeline.EventAlertRaised {
		qos = 1
	}
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Run publishes events until ctx is done or events is closed.
// Publish failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				p.logger.Warn("mqtt publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
			}
		}
	}
}

// Close disconnects from the broker if Connect opened the connection.
func (p *Publisher) Close() {
	if p.disconnect != nil {
		p.disconnect()
	}
}
