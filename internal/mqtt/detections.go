package mqtt

import (
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/rover/internal/hostlink"
)

// DefaultDetectionMaxAge is how long a detection stays usable.
const DefaultDetectionMaxAge = 500 * time.Millisecond

// DetectionCache keeps the most recent detection. It implements
// hostlink.Detector.
type DetectionCache struct {
	maxAge time.Duration
	now    func() time.Time

	mu  sync.Mutex
	box hostlink.Box
	ok  bool
	at  time.Time
}

// NewDetectionCache creates a cache whose entries expire after maxAge.
func NewDetectionCache(maxAge time.Duration, now func() time.Time) *DetectionCache {
	return &DetectionCache{maxAge: maxAge, now: now}
}

// Update stores a detection message. Malformed messages clear the cache.
func (c *DetectionCache) Update(payload []byte) error {
	box, ok, err := ParseDetection(payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.box, c.ok, c.at = box, ok && err == nil, c.now()
	return err
}

// Largest returns the cached person if it is fresh.
func (c *DetectionCache) Largest() (hostlink.Box, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok || c.now().Sub(c.at) > c.maxAge {
		return hostlink.Box{}, false
	}
	return c.box, true
}

// DetectionSubscriber feeds a DetectionCache from the detections topic.
type DetectionSubscriber struct {
	*DetectionCache
	client paho.Client
}

// NewDetectionSubscriber connects in the background and (re)subscribes on
// every connect.
func NewDetectionSubscriber(cfg Config, maxAge time.Duration) *DetectionSubscriber {
	s := &DetectionSubscriber{DetectionCache: NewDetectionCache(maxAge, time.Now)}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			tok := c.Subscribe(TopicDetections, 0, s.onMessage)
			if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
				log.Printf("mqtt: subscribe %s: %v", TopicDetections, tok.Error())
				return
			}
			log.Printf("mqtt: subscribed to %s", TopicDetections)
		})

	s.client = paho.NewClient(opts)
	s.client.Connect()
	return s
}

func (s *DetectionSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	if err := s.Update(msg.Payload()); err != nil {
		log.Printf("mqtt: %v", err)
	}
}

// IsConnected reports whether the broker connection is up.
func (s *DetectionSubscriber) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (s *DetectionSubscriber) Close() error {
	s.client.Disconnect(1000)
	return nil
}
