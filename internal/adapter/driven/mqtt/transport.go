// Package mqtt implements the RemoteTransport port on an MQTT broker using
// the Eclipse Paho client.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.RemoteTransport = (*Transport)(nil)
	_ driven.RemoteTransport = Offline{}
)

// Config describes the broker connection.
type Config struct {
	Broker      string // e.g. "tcp://10.0.0.5:1883" or "ssl://broker:8883"
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration
	// RetryInterval is the minimum gap between connect attempts.
	RetryInterval time.Duration
	// PublishTimeout bounds the wait for a publish to be handed to the network.
	PublishTimeout time.Duration
	// InboxSize is the number of inbound commands buffered between loop
	// iterations. Commands arriving while the inbox is full are dropped.
	InboxSize int
}

func (c Config) withDefaults() Config {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "gatekeeper"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 3 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = time.Second
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 16
	}
	return c
}

// CommandTopic is where remote commands arrive.
func (c Config) CommandTopic() string { return c.TopicPrefix + "/cmd" }

// EventTopic carries structured event payloads.
func (c Config) EventTopic() string { return c.TopicPrefix + "/event" }

// StatusTopic carries short status strings.
func (c Config) StatusTopic() string { return c.TopicPrefix + "/status" }

// Transport is a RemoteTransport backed by a Paho client. Reconnects are
// driven by the control loop through EnsureConnected; Paho's own automatic
// reconnect is disabled so the loop sees every connect attempt.
type Transport struct {
	cfg    Config
	client paho.Client
	inbox  chan string
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	lastAttempt time.Time
	subscribed  bool
}

// NewTransport creates a Transport for cfg. It does not connect.
func NewTransport(cfg Config, logger *slog.Logger) *Transport {
	cfg = cfg.withDefaults()

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOrderMatters(false)

	if isTLSBroker(cfg.Broker) {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	t := newTransport(cfg, nil, logger)
	opts.SetConnectionLostHandler(t.onConnectionLost)
	t.client = paho.NewClient(opts)
	return t
}

// NewTransportWithClient creates a Transport over an existing Paho client.
// This constructor is intended for testing.
func NewTransportWithClient(cfg Config, client paho.Client, logger *slog.Logger) *Transport {
	return newTransport(cfg.withDefaults(), client, logger)
}

func newTransport(cfg Config, client paho.Client, logger *slog.Logger) *Transport {
	return &Transport{
		cfg:    cfg,
		client: client,
		inbox:  make(chan string, cfg.InboxSize),
		logger: logger,
		now:    time.Now,
	}
}

// EnsureConnected connects and subscribes to the command topic if the link
// is down. Attempts are spaced at least RetryInterval apart; a call inside
// that window returns driven.ErrTransportOffline without touching the network.
// A link that came up after an earlier attempt gave up waiting is subscribed
// here before it is reported as usable.
func (t *Transport) EnsureConnected(ctx context.Context) error {
	if t.client.IsConnected() {
		if t.isSubscribed() {
			return nil
		}
		return t.subscribe(ctx)
	}

	t.mu.Lock()
	t.subscribed = false
	now := t.now()
	if !t.lastAttempt.IsZero() && now.Sub(t.lastAttempt) < t.cfg.RetryInterval {
		t.mu.Unlock()
		return driven.ErrTransportOffline
	}
	t.lastAttempt = now
	t.mu.Unlock()

	if err := t.wait(ctx, t.client.Connect(), t.cfg.ConnectTimeout); err != nil {
		t.client.Disconnect(0)
		return fmt.Errorf("connect to %s: %w", t.cfg.Broker, err)
	}

	return t.subscribe(ctx)
}

func (t *Transport) subscribe(ctx context.Context) error {
	topic := t.cfg.CommandTopic()
	if err := t.wait(ctx, t.client.Subscribe(topic, 1, t.onMessage), t.cfg.ConnectTimeout); err != nil {
		t.client.Disconnect(0)
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	t.mu.Lock()
	t.subscribed = true
	t.mu.Unlock()

	t.logger.Info("mqtt connected", "broker", t.cfg.Broker, "client_id", t.cfg.ClientID, "topic", topic)
	return nil
}

func (t *Transport) isSubscribed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscribed
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.mu.Lock()
	t.subscribed = false
	t.mu.Unlock()
	t.logger.Warn("mqtt connection lost", "broker", t.cfg.Broker, "error", err)
}

// Connected reports whether the Paho client holds a live connection with the
// command topic subscribed.
func (t *Transport) Connected() bool {
	return t.client.IsConnected() && t.isSubscribed()
}

// Receive returns the next buffered command payload without blocking.
func (t *Transport) Receive() (string, bool) {
	select {
	case raw := <-t.inbox:
		return raw, true
	default:
		return "", false
	}
}

// PublishEvent sends payload on the event topic at QoS 0.
func (t *Transport) PublishEvent(payload []byte) error {
	return t.publish(t.cfg.EventTopic(), payload)
}

// PublishStatus sends status on the status topic at QoS 0.
func (t *Transport) PublishStatus(status string) error {
	return t.publish(t.cfg.StatusTopic(), []byte(status))
}

// Close disconnects from the broker.
func (t *Transport) Close() {
	if t.client.IsConnected() {
		t.client.Disconnect(250)
	}
}

func (t *Transport) publish(topic string, payload []byte) error {
	if !t.client.IsConnected() {
		return driven.ErrTransportOffline
	}

	token := t.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(t.cfg.PublishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) onMessage(_ paho.Client, msg paho.Message) {
	raw := string(msg.Payload())
	select {
	case t.inbox <- raw:
	default:
		t.logger.Warn("mqtt command dropped, inbox full", "topic", msg.Topic(), "payload", raw)
	}
}

// wait blocks until token completes, timeout passes or ctx is canceled.
func (t *Transport) wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isTLSBroker(broker string) bool {
	for _, scheme := range []string{"ssl://", "tls://", "mqtts://"} {
		if strings.HasPrefix(broker, scheme) {
			return true
		}
	}
	return false
}

// Offline is the RemoteTransport used when no broker is configured. It never
// connects and rejects every publish.
type Offline struct{}

// EnsureConnected is a no-op.
func (Offline) EnsureConnected(context.Context) error { return nil }

// Connected always reports false.
func (Offline) Connected() bool { return false }

// Receive never yields a command.
func (Offline) Receive() (string, bool) { return "", false }

// PublishEvent always fails with driven.ErrTransportOffline.
func (Offline) PublishEvent([]byte) error { return driven.ErrTransportOffline }

// PublishStatus always fails with driven.ErrTransportOffline.
func (Offline) PublishStatus(string) error { return driven.ErrTransportOffline }
