// Package servo drives a single serial bus servo in wheel (PWM) mode.
// Only register writes are sent; status replies from the servo are ignored.
package servo

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the bus speed of the servo.
const DefaultBaud = 1000000

// Register addresses.
const (
	regMinAngleLimit = 9
	regTorqueEnable  = 40
	regGoalTime      = 44
)

const instWrite = 0x03

// directionBit marks a negative PWM value.
const directionBit = 1 << 10

// maxPWM is the largest magnitude the servo accepts.
const maxPWM = 1000

// PWM holds the signed output per motion command.
type PWM struct {
	Forward   int
	Backward  int
	TurnLeft  int
	TurnRight int
}

// DefaultPWM is the reference tuning. Both turns use the same output.
var DefaultPWM = PWM{
	Forward:   400,
	Backward:  -400,
	TurnLeft:  400,
	TurnRight: 400,
}

// Validate checks that every value is within the servo range.
func (p PWM) Validate() error {
	for _, v := range []int{p.Forward, p.Backward, p.TurnLeft, p.TurnRight} {
		if v > maxPWM || v < -maxPWM {
			return fmt.Errorf("pwm %d out of range ±%d", v, maxPWM)
		}
	}
	return nil
}

// Config describes one servo on a bus.
type Config struct {
	Device string
	Baud   int
	ID     byte
	// Settle is the pause after enabling torque.
	Settle time.Duration
	PWM    PWM
}

// DefaultConfig returns the reference configuration for device.
func DefaultConfig(device string) Config {
	return Config{
		Device: device,
		Baud:   DefaultBaud,
		ID:     0,
		Settle: time.Second,
		PWM:    DefaultPWM,
	}
}

// Driver implements the rover's motion commands on one servo.
type Driver struct {
	mu  sync.Mutex
	w   io.WriteCloser
	id  byte
	pwm PWM
}

// Open opens the servo bus and runs Begin.
func Open(cfg Config) (*Driver, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open servo bus %s: %w", cfg.Device, err)
	}
	d, err := Begin(port, cfg, time.Sleep)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

// Begin puts the servo in PWM mode, enables torque, waits for it to settle
// and zeroes the output.
func Begin(w io.WriteCloser, cfg Config, sleep func(time.Duration)) (*Driver, error) {
	if err := cfg.PWM.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{w: w, id: cfg.ID, pwm: cfg.PWM}

	// Zero angle limits switch the servo to wheel mode.
	if err := d.write(regMinAngleLimit, 0, 0, 0, 0); err != nil {
		return nil, fmt.Errorf("set pwm mode: %w", err)
	}
	if err := d.write(regTorqueEnable, 1); err != nil {
		return nil, fmt.Errorf("enable torque: %w", err)
	}
	sleep(cfg.Settle)
	if err := d.WritePWM(0); err != nil {
		return nil, fmt.Errorf("zero output: %w", err)
	}
	log.Printf("servo: id %d ready", cfg.ID)
	return d, nil
}

// WritePWM sets the signed output of the servo.
func (d *Driver) WritePWM(v int) error {
	if v > maxPWM || v < -maxPWM {
		return fmt.Errorf("pwm %d out of range", v)
	}
	raw := uint16(v)
	if v < 0 {
		raw = uint16(-v) | directionBit
	}
	return d.write(regGoalTime, byte(raw>>8), byte(raw))
}

func (d *Driver) Forward() error   { return d.WritePWM(d.pwm.Forward) }
func (d *Driver) Backward() error  { return d.WritePWM(d.pwm.Backward) }
func (d *Driver) Stop() error      { return d.WritePWM(0) }
func (d *Driver) TurnLeft() error  { return d.WritePWM(d.pwm.TurnLeft) }
func (d *Driver) TurnRight() error { return d.WritePWM(d.pwm.TurnRight) }

// Close stops the servo and closes the bus.
func (d *Driver) Close() error {
	stopErr := d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(stopErr, d.w.Close())
}

func (d *Driver) write(addr byte, data ...byte) error {
	pkt := Packet(d.id, addr, data)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.w.Write(pkt)
	return err
}

// Packet builds a register write instruction packet:
// FF FF id len instr addr data... checksum.
func Packet(id, addr byte, data []byte) []byte {
	pkt := make([]byte, 0, len(data)+7)
	pkt = append(pkt, 0xFF, 0xFF, id, byte(len(data)+3), instWrite, addr)
	pkt = append(pkt, data...)

	var sum byte
	for _, b := range pkt[2:] {
		sum += b
	}
	return append(pkt, ^sum)
}
