package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/config"
	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
	connectRetries = 4
	disconnectMS   = 250
)

// Client is the subset of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher emits simulated valve state changes over MQTT.
type Publisher struct {
	client Client
	prefix string
	logger *zap.Logger
}

// NewPublisher wraps a connected client. Topics are rooted at prefix.
func NewPublisher(client Client, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, prefix: prefix, logger: logger}
}

// Topic returns the topic watering events for a parcel are published on.
func (p *Publisher) Topic(parcelID int64) string {
	return fmt.Sprintf("%s/parcels/%d/watering", p.prefix, parcelID)
}

// PublishWatering sends the event as JSON with QoS 1 and waits for the broker ack.
func (p *Publisher) PublishWatering(ctx context.Context, event models.WateringEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal watering event: %w", err)
	}

	topic := p.Topic(event.ParcelID)
	token := p.client.Publish(topic, qosAtLeastOnce, false, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("watering event published", zap.String("topic", topic), zap.String("state", string(event.State)))
	return nil
}

// Connect dials the broker with exponential backoff and disconnects when ctx is done.
func Connect(ctx context.Context, cfg config.MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.RetryNotify(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectRetries), ctx), func(err error, next time.Duration) {
		logger.Warn("failed to connect to mqtt broker", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		return nil, fmt.Errorf("could not establish mqtt connection after retries: %w", err)
	}

	logger.Info("connected to mqtt broker", zap.String("broker", cfg.BrokerURL))

	go func() {
		<-ctx.Done()
		client.Disconnect(disconnectMS)
		logger.Info("mqtt connection closed")
	}()

	return client, nil
}
