package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connectErr   error
	connected    bool
	published    []published
	handlers     map[string]pahomqtt.MessageHandler
	disconnected bool
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.connectErr == nil
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.published = append(c.published, published{topic: topic, retained: retained, payload: b})
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]pahomqtt.MessageHandler)
	}
	c.handlers[topic] = cb
	return &fakeToken{}
}

func (c *fakeClient) deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	cb := c.handlers[topic]
	c.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(nil, &fakeMessage{topic: topic, payload: payload})
	return true
}

func (c *fakeClient) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.published {
		out = append(out, p.topic)
	}
	return out
}

func startWithFake(t *testing.T, cfg Config, fc *fakeClient) *Publisher {
	t.Helper()
	pub := New(cfg, nil)
	pub.newClient = func(*pahomqtt.ClientOptions) client { return fc }
	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return pub
}

func TestNewPublisher(t *testing.T) {
	config := Config{
		Enabled:     true,
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "dect/test",
		QoS:         1,
	}

	pub := New(config, nil)
	if pub.config.Broker != config.Broker {
		t.Errorf("Expected broker %s, got %s", config.Broker, pub.config.Broker)
	}
	if pub.config.ClientID != "dect-nwk" {
		t.Errorf("Expected default client ID, got %s", pub.config.ClientID)
	}
}

func TestPublisher_Disabled(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)

	if err := pub.Start(context.Background()); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	if err := pub.PublishPortable(PortableEvent{IPUI: "N:08ae00001", Event: "attach"}); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	if err := pub.PublishCall(CallEvent{CallID: 1, State: "setup"}); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	// Should not panic when stopping without starting
	pub.Stop()
}

func TestPublisher_InvalidQoS(t *testing.T) {
	pub := New(Config{Enabled: true, QoS: 3}, nil)
	if err := pub.Start(context.Background()); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Expected ErrInvalidQoS, got %v", err)
	}
}

func TestPublisher_ConnectFailure(t *testing.T) {
	pub := New(Config{Enabled: true, Broker: "tcp://localhost:1"}, nil)
	fc := &fakeClient{connectErr: errors.New("refused")}
	pub.newClient = func(*pahomqtt.ClientOptions) client { return fc }

	err := pub.Start(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Expected ErrConnectionFailed, got %v", err)
	}
	if err := pub.PublishMessage(MessageEvent{IPUI: "N:08ae00001"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestPublisher_PublishEvents(t *testing.T) {
	fc := &fakeClient{}
	pub := startWithFake(t, Config{Enabled: true, TopicPrefix: "dect/nwk/"}, fc)

	if err := pub.PublishPortable(PortableEvent{IPUI: "N:08ae00001", Extension: "100", Event: "attach"}); err != nil {
		t.Fatalf("PublishPortable failed: %v", err)
	}
	if err := pub.PublishCall(CallEvent{CallID: 7, Caller: "N:08ae00001", State: "connected"}); err != nil {
		t.Fatalf("PublishCall failed: %v", err)
	}
	if err := pub.PublishMessage(MessageEvent{IPUI: "N:08ae00001", Text: "hi"}); err != nil {
		t.Fatalf("PublishMessage failed: %v", err)
	}

	want := []string{
		"dect/nwk/status",
		"dect/nwk/portables/attach",
		"dect/nwk/calls/connected",
		"dect/nwk/messages",
	}
	got := fc.topics()
	if len(got) != len(want) {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	var ev CallEvent
	if err := json.Unmarshal(fc.published[2].payload, &ev); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if ev.CallID != 7 || ev.State != "connected" {
		t.Errorf("unexpected call event: %+v", ev)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("event ID %q is not a UUID: %v", ev.ID, err)
	}

	pub.Stop()
	if !fc.disconnected {
		t.Error("Expected client to be disconnected")
	}
	last := fc.published[len(fc.published)-1]
	if last.topic != "dect/nwk/status" || !last.retained {
		t.Errorf("Expected retained offline status last, got %+v", last)
	}
}

func TestPublisher_Commands(t *testing.T) {
	fc := &fakeClient{}
	pub := New(Config{Enabled: true, TopicPrefix: "dect"}, nil)
	pub.newClient = func(*pahomqtt.ClientOptions) client { return fc }

	got := make(chan []byte, 2)
	// registered before Start, subscribed on connect
	pub.HandleCommand("clms/send", func(payload []byte) error {
		got <- payload
		return nil
	})
	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// registered after Start, subscribed at once
	pub.HandleCommand("detach", func(payload []byte) error {
		return errors.New("ignored")
	})

	if !fc.deliver("dect/clms/send", []byte(`{"extension":"100"}`)) {
		t.Fatal("Expected subscription on dect/clms/send")
	}
	if string(<-got) != `{"extension":"100"}` {
		t.Error("unexpected command payload")
	}
	if !fc.deliver("dect/detach", nil) {
		t.Error("Expected subscription on dect/detach")
	}
}

func TestTopicFormat(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		suffix   string
		expected string
	}{
		{"with prefix", "dect/nwk", "portables/attach", "dect/nwk/portables/attach"},
		{"with trailing slash", "dect/nwk/", "calls/setup", "dect/nwk/calls/setup"},
		{"without prefix", "", "status", "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := New(Config{TopicPrefix: tt.prefix}, nil)
			if topic := pub.formatTopic(tt.suffix); topic != tt.expected {
				t.Errorf("Expected topic %s, got %s", tt.expected, topic)
			}
		})
	}
}
