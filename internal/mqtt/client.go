package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/oshokin/catpoint/internal/logger"
)

// Options configures a broker connection.
type Options struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883.
	Broker string
	// ClientID is the identifier prefix, a random suffix is appended.
	ClientID string
	// Username authenticates against the broker.
	Username string
	// Password authenticates against the broker.
	Password string
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration
	// MaxRetries is the number of reconnect attempts after the first failure.
	MaxRetries uint64
}

// Handler processes one message received on a subscribed topic.
type Handler func(ctx context.Context, topic string, payload []byte) error

const (
	// QoS is the quality of service used for every publish and subscription.
	QoS byte = 1

	// disconnectQuiesce is how long Close waits for in-flight work, in milliseconds.
	disconnectQuiesce uint = 250

	// defaultConnectTimeout applies when Options.ConnectTimeout is zero.
	defaultConnectTimeout = 5 * time.Second

	// maxConnectElapsed caps the total time spent reconnecting.
	maxConnectElapsed = 30 * time.Second
)

var (
	// ErrBrokerRequired is returned when no broker URL is configured.
	ErrBrokerRequired = errors.New("mqtt broker is required")
	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt operation timed out")
)

// Client is a connected MQTT client.
type Client struct {
	// client is the underlying paho client.
	client paho.Client
	// timeout bounds publish and subscribe acknowledgements.
	timeout time.Duration
}

// Connect dials the broker, retrying with exponential backoff until it
// succeeds, the retries run out, or ctx is done.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Broker) == "" {
		return nil, ErrBrokerRequired
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	clientOptions := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(ClientID(opts.ClientID)).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetOrderMatters(false)

	ctx = logger.WithKV(ctx, "broker", opts.Broker)

	clientOptions.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.WarnKV(ctx, "MQTT connection lost", "error", err)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxConnectElapsed

	var client paho.Client

	err := backoff.Retry(func() error {
		client = paho.NewClient(clientOptions)

		if err := connectOnce(ctx, client, timeout); err != nil {
			logger.WarnKV(ctx, "MQTT connect failed", "error", err)

			return err
		}

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, opts.MaxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, err)
	}

	logger.InfoKV(ctx, "Connected to MQTT broker")

	return &Client{
		client:  client,
		timeout: timeout,
	}, nil
}

// ClientID returns prefix with a short random suffix, so several panels
// can share a broker without kicking each other off.
func ClientID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	if prefix == "" {
		return suffix
	}

	return prefix + "-" + suffix
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (c *Client) Publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	if err := wait(ctx, c.client.Publish(topic, QoS, retained, payload), c.timeout); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Subscribe routes every message on topic to handler. Handler errors are logged.
func (c *Client) Subscribe(ctx context.Context, topic string, handler Handler) error {
	callback := func(_ paho.Client, message paho.Message) {
		if err := handler(ctx, message.Topic(), message.Payload()); err != nil {
			logger.WarnKV(ctx, "MQTT message dropped", "topic", message.Topic(), "error", err)
		}
	}

	if err := wait(ctx, c.client.Subscribe(topic, QoS, callback), c.timeout); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	logger.DebugKV(ctx, "Subscribed to MQTT topic", "topic", topic)

	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesce)
	}
}

// wait blocks until token completes, timeout elapses, or ctx is done.
// connectOnce makes one connection attempt. A failed attempt is stopped so
// it cannot finish connecting in the background.
func connectOnce(ctx context.Context, client paho.Client, timeout time.Duration) error {
	if err := wait(ctx, client.Connect(), timeout); err != nil {
		client.Disconnect(0)

		return err
	}

	return nil
}

func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
