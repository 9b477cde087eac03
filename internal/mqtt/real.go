package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config selects the broker and client identity.
type Config struct {
	Broker   string
	ClientID string
	// BufferSize is the outbox capacity used while disconnected.
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. It connects in the
// background; messages published while disconnected are held in an outbox
// and replayed on (re)connect.
type RealPublisher struct {
	client brokerClient

	mu     sync.Mutex
	outbox *outbox
	// live is set once the outbox has been replayed on the current
	// connection. Until then new messages queue behind the held ones.
	live bool
}

// brokerClient is the part of paho.Client the publisher uses.
type brokerClient interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

func newPublisher(size int) *RealPublisher {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RealPublisher{outbox: newOutbox(size)}
}

// NewRealPublisher creates a publisher for the given broker. It does not
// wait for the connection.
func NewRealPublisher(cfg Config) *RealPublisher {
	p := newPublisher(cfg.BufferSize)

	will, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.onConnectionLost(err)
		})

	client := paho.NewClient(opts)
	p.client = client
	client.Connect()
	return p
}

// onConnect replays held messages in order, then lets new messages
// through directly.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	msgs := p.outbox.takeAll()
	tokens := make([]paho.Token, 0, len(msgs))
	for _, m := range msgs {
		tokens = append(tokens, p.client.Publish(m.topic, m.qos, m.retained, m.payload))
	}
	p.live = true
	p.mu.Unlock()

	log.Printf("mqtt: connected, replaying %d messages", len(msgs))
	for i, tok := range tokens {
		if !tok.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: replay to %s timed out", msgs[i].topic)
			continue
		}
		if err := tok.Error(); err != nil {
			log.Printf("mqtt: replay to %s: %v", msgs[i].topic, err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.live = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.live || !p.client.IsConnectionOpen() {
		p.outbox.push(pending{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	token := p.client.Publish(topic, qos, retained, payload)
	p.mu.Unlock()

	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Publish sends a transition. QoS 0, not retained.
func (p *RealPublisher) Publish(event TransitionEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(TopicTransitions, 0, false, payload)
}

// PublishSystem sends a lifecycle event. QoS 1 so startup and shutdown
// are delivered at least once.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
