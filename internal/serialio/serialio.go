// Package serialio provides the line-oriented link to the detector host.
// The real implementation runs over a serial port; the fake one allows
// testing without hardware.
package serialio

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaud is the host link speed.
const DefaultBaud = 115200

// queueDepth bounds lines received but not yet consumed.
const queueDepth = 64

// maxLine bounds one line. Longer input is discarded up to the next newline.
const maxLine = 256

// Port is a line-oriented serial link. A reader goroutine splits incoming
// bytes into lines; ReadLine never blocks.
type Port struct {
	rw    io.ReadWriteCloser
	lines chan string
	done  chan struct{}

	wmu sync.Mutex

	mu      sync.Mutex
	dropped uint64
}

// Open opens device at baud (8N1).
func Open(device string, baud int) (*Port, error) {
	sp, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	return newPort(sp), nil
}

func newPort(rw io.ReadWriteCloser) *Port {
	p := &Port{
		rw:    rw,
		lines: make(chan string, queueDepth),
		done:  make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer close(p.done)
	br := bufio.NewReaderSize(p.rw, maxLine)
	skipping := false
	for {
		b, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			if !skipping {
				log.Printf("serial: discarding line longer than %d bytes", maxLine)
				p.drop()
				skipping = true
			}
			continue
		}
		if len(b) > 0 && !skipping {
			p.deliver(strings.TrimRight(string(b), "\r\n"))
		}
		skipping = false
		if err != nil {
			if err != io.EOF {
				log.Printf("serial: read stopped: %v", err)
			}
			return
		}
	}
}

func (p *Port) deliver(line string) {
	select {
	case p.lines <- line:
	default:
		p.drop()
	}
}

func (p *Port) drop() {
	p.mu.Lock()
	p.dropped++
	p.mu.Unlock()
}

// ReadLine returns the next received line, if any.
func (p *Port) ReadLine() (string, bool) {
	select {
	case l := <-p.lines:
		return l, true
	default:
		return "", false
	}
}

// WriteLine sends s terminated by a newline.
func (p *Port) WriteLine(s string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if _, err := io.WriteString(p.rw, s+"\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// Drain discards all lines received so far.
func (p *Port) Drain() {
	for {
		select {
		case <-p.lines:
		default:
			return
		}
	}
}

// Dropped returns how many lines were discarded, either because the queue
// was full or because they exceeded maxLine.
func (p *Port) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close closes the port and waits for the reader to stop.
func (p *Port) Close() error {
	err := p.rw.Close()
	<-p.done
	if err != nil {
		return fmt.Errorf("close serial: %w", err)
	}
	return nil
}
