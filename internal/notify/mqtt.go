package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"task-automator-api/internal/domain"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 60 * time.Second
	notificationQoS       = 1
)

// ErrConnectionFailed is returned when the broker cannot be reached at start.
var ErrConnectionFailed = errors.New("mqtt: connection failed")

// Publisher is the part of a paho client the notifier uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTNotifier publishes notifications as JSON to
// {prefix}/notifications/{userId}, or {prefix}/notifications/broadcast when
// the notification has no recipient.
type MQTTNotifier struct {
	client Publisher
	prefix string
	logger *zap.Logger
	close  func()
}

// NewMQTTNotifier wraps an existing publisher.
func NewMQTTNotifier(client Publisher, prefix string, logger *zap.Logger) *MQTTNotifier {
	if prefix == "" {
		prefix = "automation"
	}
	return &MQTTNotifier{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "notify")),
		close:  func() {},
	}
}

// Connect dials the broker and returns a notifier using the connection.
func Connect(brokerURL, clientID, prefix string, logger *zap.Logger) (*MQTTNotifier, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.String("component", "notify"), zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	n := NewMQTTNotifier(client, prefix, logger)
	n.close = func() { client.Disconnect(250) }
	return n, nil
}

// Topic returns the topic a notification for userID is published on.
func (n *MQTTNotifier) Topic(userID string) string {
	if userID == "" {
		userID = "broadcast"
	}
	return n.prefix + "/notifications/" + userID
}

// Notify publishes n and waits for the broker acknowledgement or ctx.
func (n *MQTTNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	topic := n.Topic(msg.UserID)
	token := n.client.Publish(topic, notificationQoS, false, payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %q: %w", topic, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("publishing to %q: %w", topic, ctx.Err())
	}

	n.logger.Debug("notification published", zap.String("topic", topic), zap.String("notification_id", msg.ID.String()))
	return nil
}

// Close disconnects from the broker when the notifier owns the connection.
func (n *MQTTNotifier) Close() {
	n.close()
}
