// Package hostlink is the detector-host side of the rover serial protocol.
// The host announces itself until the rover acknowledges, then answers
// each detection request with the horizontal offset of the largest person.
package hostlink

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// Protocol tokens.
const (
	HandshakeToken = "PI_ON"
	ReadyToken     = "ARDUINO_READY"
	RequestToken   = "REQ_DET"
)

// Link is a line channel to the rover.
type Link interface {
	ReadLine() (string, bool)
	WriteLine(s string) error
}

// Box is a person bounding box in frame pixels.
type Box struct {
	X1, Y1, X2, Y2 int
	Conf           float64
}

// Width returns the box width.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the box height.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// CenterX returns the horizontal center.
func (b Box) CenterX() int { return (b.X1 + b.X2) / 2 }

// Detector returns the largest person currently in view.
type Detector interface {
	Largest() (Box, bool)
}

// Gate filters boxes too small or too uncertain to act on and converts the
// rest to an offset.
type Gate struct {
	MinWidth   int
	MinHeight  int
	FrameWidth int
	// MinConf is the lowest detector confidence accepted.
	MinConf float64
}

// DefaultGate matches a 640px wide camera.
var DefaultGate = Gate{MinWidth: 120, MinHeight: 160, FrameWidth: 640, MinConf: 0.5}

// Offset returns the box center's offset from the frame center, negative
// meaning left, or 0 when there is no usable box.
func (g Gate) Offset(b Box, ok bool) int {
	if !ok {
		return 0
	}
	if b.Conf < g.MinConf || b.Width() < g.MinWidth || b.Height() < g.MinHeight {
		return 0
	}
	return b.CenterX() - g.FrameWidth/2
}

// Responder answers detection requests.
type Responder struct {
	link Link
	det  Detector
	gate Gate

	answered uint64
}

// NewResponder creates a Responder.
func NewResponder(link Link, det Detector, gate Gate) *Responder {
	return &Responder{link: link, det: det, gate: gate}
}

// Handle processes one line from the rover. It reports whether the line
// was a request.
func (r *Responder) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if line != RequestToken {
		log.Printf("hostlink: rover: %s", line)
		return false
	}

	dx := r.gate.Offset(r.det.Largest())
	if err := r.link.WriteLine(strconv.Itoa(dx)); err != nil {
		log.Printf("hostlink: reply failed: %v", err)
		return true
	}
	r.answered++
	if dx != 0 {
		log.Printf("hostlink: dx=%d", dx)
	}
	return true
}

// Handshake writes the handshake token every interval until the rover
// replies ready or ctx is done. A detection request also ends the
// handshake: the rover left idle during an earlier session and is already
// waiting for answers, so the request is answered straight away.
func (r *Responder) Handshake(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.link.WriteLine(HandshakeToken); err != nil {
			log.Printf("hostlink: handshake write failed: %v", err)
		}
		for {
			line, ok := r.link.ReadLine()
			if !ok {
				break
			}
			switch line = strings.TrimSpace(line); line {
			case ReadyToken:
				log.Printf("hostlink: rover ready")
				return nil
			case RequestToken:
				log.Printf("hostlink: rover already running")
				r.Handle(line)
				return nil
			case "":
			default:
				log.Printf("hostlink: rover: %s", line)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("handshake: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Answered returns the number of replies sent.
func (r *Responder) Answered() uint64 {
	return r.answered
}

// Serve handles queued lines every poll interval until ctx is done.
func (r *Responder) Serve(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		for {
			line, ok := r.link.ReadLine()
			if !ok {
				break
			}
			r.Handle(line)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
