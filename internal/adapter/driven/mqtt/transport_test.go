package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// --- Fake Paho client ---

type fakeToken struct {
	paho.Token
	err  error
	done chan struct{}
}

func completedToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type fakeClient struct {
	paho.Client
	connected    bool
	connectToken *fakeToken
	subToken     *fakeToken
	connects     int
	disconnects  int
	subscribed   string
	handler      paho.MessageHandler
	published    []published
	publishErr   error
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Connect() paho.Token {
	c.connects++
	if c.connectToken != nil {
		return c.connectToken
	}
	c.connected = true
	return completedToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.disconnects++
	c.connected = false
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	c.subscribed = topic
	c.handler = cb
	if c.subToken != nil {
		return c.subToken
	}
	return completedToken(nil)
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	data, _ := payload.([]byte)
	c.published = append(c.published, published{topic: topic, payload: data})
	return completedToken(c.publishErr)
}

func (c *fakeClient) deliver(payload string) {
	c.handler(c, fakeMessage{topic: c.subscribed, payload: []byte(payload)})
}

// --- Helpers ---

func testConfig() Config {
	return Config{
		Broker:         "tcp://broker.test:1883",
		ClientID:       "door-1",
		TopicPrefix:    "site/door",
		ConnectTimeout: 50 * time.Millisecond,
		RetryInterval:  5 * time.Second,
		InboxSize:      2,
	}
}

func newTestTransport(client *fakeClient) (*Transport, *time.Time) {
	tr := NewTransportWithClient(testConfig(), client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

// --- Tests ---

func TestTransport_ConnectAndSubscribe(t *testing.T) {
	client := &fakeClient{}
	tr, _ := newTestTransport(client)

	require.NoError(t, tr.EnsureConnected(context.Background()))

	assert.True(t, tr.Connected())
	assert.Equal(t, "site/door/cmd", client.subscribed)
	assert.Equal(t, 1, client.connects)

	require.NoError(t, tr.EnsureConnected(context.Background()))
	assert.Equal(t, 1, client.connects, "no reconnect while connected")
}

func TestTransport_ReconnectIsRateLimited(t *testing.T) {
	client := &fakeClient{connectToken: completedToken(errors.New("refused"))}
	tr, now := newTestTransport(client)
	ctx := context.Background()

	err := tr.EnsureConnected(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	err = tr.EnsureConnected(ctx)
	assert.ErrorIs(t, err, driven.ErrTransportOffline)
	assert.Equal(t, 1, client.connects)

	*now = now.Add(5 * time.Second)
	client.connectToken = nil
	require.NoError(t, tr.EnsureConnected(ctx))
	assert.Equal(t, 2, client.connects)
}

func TestTransport_ConnectTimeout(t *testing.T) {
	client := &fakeClient{connectToken: pendingToken()}
	tr, _ := newTestTransport(client)

	err := tr.EnsureConnected(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, tr.Connected())
}

func TestTransport_ConnectTimeoutAbandonsAttempt(t *testing.T) {
	client := &fakeClient{connectToken: pendingToken()}
	tr, _ := newTestTransport(client)

	require.Error(t, tr.EnsureConnected(context.Background()))

	assert.Equal(t, 1, client.disconnects)
	assert.Empty(t, client.subscribed)
}

func TestTransport_LateConnectIsSubscribed(t *testing.T) {
	token := pendingToken()
	client := &fakeClient{connectToken: token}
	tr, _ := newTestTransport(client)
	ctx := context.Background()

	require.Error(t, tr.EnsureConnected(ctx))

	// The connect finishes after the attempt stopped waiting.
	client.connected = true
	close(token.done)
	assert.False(t, tr.Connected(), "not usable before the command topic is subscribed")

	require.NoError(t, tr.EnsureConnected(ctx))

	assert.True(t, tr.Connected())
	assert.Equal(t, "site/door/cmd", client.subscribed)
	assert.Equal(t, 1, client.connects)

	client.deliver("OPEN")
	raw, ok := tr.Receive()
	assert.True(t, ok)
	assert.Equal(t, "OPEN", raw)
}

func TestTransport_ResubscribesAfterConnectionLost(t *testing.T) {
	client := &fakeClient{}
	tr, now := newTestTransport(client)
	ctx := context.Background()
	require.NoError(t, tr.EnsureConnected(ctx))

	client.connected = false
	client.subscribed = ""
	tr.onConnectionLost(client, errors.New("EOF"))
	assert.False(t, tr.Connected())

	*now = now.Add(5 * time.Second)
	require.NoError(t, tr.EnsureConnected(ctx))

	assert.True(t, tr.Connected())
	assert.Equal(t, "site/door/cmd", client.subscribed)
	assert.Equal(t, 2, client.connects)
}

func TestTransport_SubscribeFailureDisconnects(t *testing.T) {
	client := &fakeClient{subToken: completedToken(errors.New("not authorized"))}
	tr, _ := newTestTransport(client)

	err := tr.EnsureConnected(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, client.disconnects)
	assert.False(t, tr.Connected())
}

func TestTransport_ReceiveBuffersAndDropsWhenFull(t *testing.T) {
	client := &fakeClient{}
	tr, _ := newTestTransport(client)
	require.NoError(t, tr.EnsureConnected(context.Background()))

	client.deliver("OPEN")
	client.deliver("LIST")
	client.deliver("CLEAR")

	raw, ok := tr.Receive()
	assert.True(t, ok)
	assert.Equal(t, "OPEN", raw)
	raw, ok = tr.Receive()
	assert.True(t, ok)
	assert.Equal(t, "LIST", raw)
	_, ok = tr.Receive()
	assert.False(t, ok)
}

func TestTransport_PublishTopics(t *testing.T) {
	client := &fakeClient{connected: true}
	tr, _ := newTestTransport(client)

	require.NoError(t, tr.PublishEvent([]byte(`{"result":"granted"}`)))
	require.NoError(t, tr.PublishStatus("connected"))

	require.Len(t, client.published, 2)
	assert.Equal(t, "site/door/event", client.published[0].topic)
	assert.JSONEq(t, `{"result":"granted"}`, string(client.published[0].payload))
	assert.Equal(t, "site/door/status", client.published[1].topic)
	assert.Equal(t, "connected", string(client.published[1].payload))
}

func TestTransport_PublishOffline(t *testing.T) {
	client := &fakeClient{}
	tr, _ := newTestTransport(client)

	assert.ErrorIs(t, tr.PublishEvent([]byte("{}")), driven.ErrTransportOffline)
	assert.Empty(t, client.published)
}

func TestTransport_PublishError(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: errors.New("broken pipe")}
	tr, _ := newTestTransport(client)

	err := tr.PublishStatus("connected")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "site/door/status")
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, "gatekeeper/cmd", cfg.CommandTopic())
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 16, cfg.InboxSize)
}

func TestIsTLSBroker(t *testing.T) {
	assert.True(t, isTLSBroker("ssl://broker:8883"))
	assert.True(t, isTLSBroker("mqtts://broker:8883"))
	assert.False(t, isTLSBroker("tcp://broker:1883"))
}

func TestOffline(t *testing.T) {
	var tr driven.RemoteTransport = Offline{}

	require.NoError(t, tr.EnsureConnected(context.Background()))
	assert.False(t, tr.Connected())
	_, ok := tr.Receive()
	assert.False(t, ok)
	assert.ErrorIs(t, tr.PublishEvent(nil), driven.ErrTransportOffline)
}
