// Package detect implements the controller side of the person-detection
// exchange with the detector host, and the policy that turns a horizontal
// offset into a corrective move.
package detect

import (
	"log"

	"github.com/sweeney/rover/internal/tick"
)

// RequestToken is sent to ask the host for a detection.
const RequestToken = "REQ_DET"

// Channel is the line-oriented link to the detector host.
type Channel interface {
	// ReadLine returns the next complete line without blocking.
	ReadLine() (string, bool)
	// WriteLine sends s followed by a newline.
	WriteLine(s string) error
	// Drain discards any input already received.
	Drain()
}

// ClientConfig holds the request pacing.
type ClientConfig struct {
	RequestIntervalMs uint32
	ReplyTimeoutMs    uint32
}

// DefaultClientConfig requests at most 5 times a second and gives up on a
// reply after 300ms.
var DefaultClientConfig = ClientConfig{
	RequestIntervalMs: 200,
	ReplyTimeoutMs:    300,
}

// Stats counts protocol activity since startup.
type Stats struct {
	Requests  uint64
	Replies   uint64
	Timeouts  uint64
	BadLines  uint64
	LastReply int
}

// Client paces detection requests and holds the latest sample.
// It is driven from the main cycle only.
type Client struct {
	cfg ClientConfig

	lastRequest tick.Millis
	waiting     bool
	sample      int

	stats Stats
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg}
}

// Poll runs one protocol step at now and returns the current sample
// (0 when no target has been reported).
func (c *Client) Poll(now tick.Millis, ch Channel) int {
	if !c.waiting && now.Since(c.lastRequest) > c.cfg.RequestIntervalMs {
		if err := ch.WriteLine(RequestToken); err != nil {
			log.Printf("detect: request failed: %v", err)
		} else {
			c.stats.Requests++
		}
		c.lastRequest = now
		c.waiting = true
	}

	// Stop waiting so the next cycle can ask again.
	if c.waiting && now.Since(c.lastRequest) > c.cfg.ReplyTimeoutMs {
		c.waiting = false
		c.stats.Timeouts++
	}

	if line, ok := ch.ReadLine(); ok {
		ch.Drain()
		v, ok := ParseOffset(line)
		if !ok {
			c.stats.BadLines++
			log.Printf("detect: ignoring reply %q", line)
			return c.sample
		}
		c.sample = v
		c.waiting = false
		c.stats.Replies++
		c.stats.LastReply = v
	}
	return c.sample
}

// Sample returns the current sample without running the protocol.
func (c *Client) Sample() int {
	return c.sample
}

// Waiting reports whether a request is outstanding.
func (c *Client) Waiting() bool {
	return c.waiting
}

// Consume clears the sample after the state machine has acted on it.
func (c *Client) Consume() {
	c.sample = 0
	c.waiting = false
}

// Reset clears the sample and drops replies left over from an earlier
// detection window. Request pacing is kept.
func (c *Client) Reset(ch Channel) {
	c.sample = 0
	ch.Drain()
}

// Stats returns a copy of the protocol counters.
func (c *Client) Stats() Stats {
	return c.stats
}
