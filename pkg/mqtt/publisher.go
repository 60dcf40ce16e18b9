// Package mqtt publishes NWK events to an MQTT broker and accepts
// commands from it.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dbehnke/dect-nwk/pkg/logger"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
	maxQoS            = 2
)

var (
	// ErrNotConnected is returned when publishing without a broker session
	ErrNotConnected = errors.New("mqtt: client not connected")
	// ErrConnectionFailed wraps broker connection errors
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	// ErrInvalidQoS rejects QoS levels above 2
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// client is the part of the paho client the publisher uses
type client interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
}

// CommandHandler handles a message received on a command topic. Handlers
// run on paho's goroutines.
type CommandHandler func(payload []byte) error

// Publisher handles MQTT event publishing
type Publisher struct {
	config    Config
	log       *logger.Logger
	newClient func(*pahomqtt.ClientOptions) client

	mu       sync.Mutex
	client   client
	commands map[string]CommandHandler
}

// Event types for MQTT publishing. ID is filled with a random UUID when
// empty so consumers can deduplicate redelivered QoS 1 messages.

// PortableEvent reports an attach, a detach or a subscription change
type PortableEvent struct {
	ID        string    `json:"id"`
	IPUI      string    `json:"ipui"`
	Extension string    `json:"extension,omitempty"`
	TPUI      string    `json:"tpui,omitempty"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// CallEvent reports a call state change
type CallEvent struct {
	ID        string    `json:"id"`
	CallID    uint64    `json:"call_id"`
	Caller    string    `json:"caller"`
	Callee    string    `json:"callee,omitempty"`
	Called    string    `json:"called,omitempty"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageEvent reports a connectionless message from a portable
type MessageEvent struct {
	ID        string    `json:"id"`
	IPUI      string    `json:"ipui"`
	Extension string    `json:"extension,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.ClientID == "" {
		config.ClientID = "dect-nwk"
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
		newClient: func(opts *pahomqtt.ClientOptions) client {
			return pahomqtt.NewClient(opts)
		},
		commands: make(map[string]CommandHandler),
	}
}

func (p *Publisher) options() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetWill(p.formatTopic("status"), statusPayload(p.config.ClientID, "offline"), 1, true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.log.Info("Connected to MQTT broker", logger.String("broker", p.config.Broker))
		p.onConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.log.Warn("MQTT connection lost", logger.Error(err))
	})
	return opts
}

func statusPayload(clientID, status string) string {
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}

// Start connects to the broker. It returns once the first connection
// attempt completed, failed, or ctx was cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}
	if p.config.QoS > maxQoS {
		return ErrInvalidQoS
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	c := p.newClient(p.options())
	token := c.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
	// the connect handler may have run before the client was stored
	p.onConnect()
	return nil
}

// onConnect announces the publisher and restores command subscriptions
func (p *Publisher) onConnect() {
	p.mu.Lock()
	c := p.client
	commands := make(map[string]CommandHandler, len(p.commands))
	for topic, h := range p.commands {
		commands[topic] = h
	}
	p.mu.Unlock()
	if c == nil {
		return
	}

	c.Publish(p.formatTopic("status"), 1, true, statusPayload(p.config.ClientID, "online"))
	for topic, h := range commands {
		p.subscribe(c, topic, h)
	}
}

func (p *Publisher) subscribe(c client, topic string, h CommandHandler) {
	c.Subscribe(topic, p.config.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := h(msg.Payload()); err != nil {
			p.log.Warn("MQTT command failed",
				logger.String("topic", msg.Topic()),
				logger.Error(err))
		}
	})
}

// HandleCommand subscribes h to the command topic below the prefix. It may
// be called before or after Start.
func (p *Publisher) HandleCommand(suffix string, h CommandHandler) {
	if !p.config.Enabled {
		return
	}
	topic := p.formatTopic(suffix)

	p.mu.Lock()
	p.commands[topic] = h
	c := p.client
	p.mu.Unlock()

	if c != nil && c.IsConnected() {
		p.subscribe(c, topic, h)
	}
}

// Stop publishes the offline status and disconnects
func (p *Publisher) Stop() {
	if !p.config.Enabled {
		return
	}

	p.mu.Lock()
	c := p.client
	p.client = nil
	p.mu.Unlock()
	if c == nil {
		return
	}

	p.log.Info("Stopping MQTT publisher")
	if c.IsConnected() {
		token := c.Publish(p.formatTopic("status"), 1, true, statusPayload(p.config.ClientID, "offline"))
		token.WaitTimeout(publishTimeout)
	}
	c.Disconnect(disconnectQuiesce)
}

// PublishPortable publishes a portable event below portables/<event>
func (p *Publisher) PublishPortable(event PortableEvent) error {
	if !p.config.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return p.publish(p.formatTopic("portables/"+event.Event), event)
}

// PublishCall publishes a call event below calls/<state>
func (p *Publisher) PublishCall(event CallEvent) error {
	if !p.config.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return p.publish(p.formatTopic("calls/"+event.State), event)
}

// PublishMessage publishes a connectionless message from a portable
func (p *Publisher) PublishMessage(event MessageEvent) error {
	if !p.config.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return p.publish(p.formatTopic("messages"), event)
}

// publish sends an event without waiting for the broker. Delivery
// failures are logged.
func (p *Publisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	p.mu.Lock()
	c := p.client
	p.mu.Unlock()
	if c == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.Publish(topic, p.config.QoS, p.config.Retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.log.Warn("MQTT publish timed out", logger.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn("MQTT publish failed",
				logger.String("topic", topic),
				logger.Error(err))
		}
	}()
	return nil
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
