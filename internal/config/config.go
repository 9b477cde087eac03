// Package config loads the rover configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the ROVER_CONFIG environment variable, with built-in defaults for anything
// the file leaves out. Command-line flags the user actually sets override
// individual file values. There is no discovery of other files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/rover/internal/detect"
	"github.com/sweeney/rover/internal/fsm"
	"github.com/sweeney/rover/internal/gpio"
	"github.com/sweeney/rover/internal/inputs"
	"github.com/sweeney/rover/internal/logic"
	"github.com/sweeney/rover/internal/mqtt"
	"github.com/sweeney/rover/internal/serialio"
	"github.com/sweeney/rover/internal/servo"
	"github.com/sweeney/rover/internal/status"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "ROVER_CONFIG"

// Config is the complete daemon configuration.
type Config struct {
	// Mode is "host" (detector host on the serial link) or "standalone".
	Mode string `yaml:"mode"`

	// Poll is the control cycle period.
	Poll time.Duration `yaml:"poll"`

	// Heartbeat is the MQTT status report period; 0 disables it.
	Heartbeat time.Duration `yaml:"heartbeat"`

	// HTTPAddr is the status server address; empty disables it.
	HTTPAddr string `yaml:"http_addr"`

	Timing   TimingConfig   `yaml:"timing"`
	Geometry GeometryConfig `yaml:"geometry"`
	Detect   DetectConfig   `yaml:"detect"`
	Inputs   InputsConfig   `yaml:"inputs"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Host     SerialConfig   `yaml:"host"`
	Servo    ServoConfig    `yaml:"servo"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// TimingConfig holds the state time limits in milliseconds.
type TimingConfig struct {
	WanderMs        uint32 `yaml:"wander_ms"`
	DetectMs        uint32 `yaml:"detect_ms"`
	BackUpFlashMs   uint32 `yaml:"back_up_flash_ms"`
	BackUpBumpMs    uint32 `yaml:"back_up_bump_ms"`
	FlashMs         uint32 `yaml:"flash_ms"`
	TurnMs          uint32 `yaml:"turn_ms"`
	SyntheticTurnMs uint32 `yaml:"synthetic_turn_ms"`
}

// GeometryConfig maps a pixel offset to a turn.
type GeometryConfig struct {
	DXMax       int    `yaml:"dx_max"`
	CenteredMax int    `yaml:"centered_max"`
	TurnMinMs   uint32 `yaml:"turn_min_ms"`
	TurnMaxMs   uint32 `yaml:"turn_max_ms"`
}

// DetectConfig paces the detection protocol.
type DetectConfig struct {
	RequestIntervalMs uint32 `yaml:"request_interval_ms"`
	ReplyTimeoutMs    uint32 `yaml:"reply_timeout_ms"`
}

// InputsConfig holds debounce settings.
type InputsConfig struct {
	DebounceMs        uint32 `yaml:"debounce_ms"`
	MinEdgeIntervalUs uint32 `yaml:"min_edge_interval_us"`
	// BumpActive is the raw level of a pressed bump switch: "low" or "high".
	BumpActive string `yaml:"bump_active"`
}

// GPIOConfig names the chip and line offsets.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	HallLeft  int    `yaml:"hall_left"`
	HallRight int    `yaml:"hall_right"`
	BumpLeft  int    `yaml:"bump_left"`
	BumpRight int    `yaml:"bump_right"`
	LED       int    `yaml:"led"`
}

// SerialConfig names a serial device.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// ServoConfig configures the drive servo.
type ServoConfig struct {
	Device string        `yaml:"device"`
	Baud   int           `yaml:"baud"`
	ID     int           `yaml:"id"`
	Settle time.Duration `yaml:"settle"`
	PWM    PWMConfig     `yaml:"pwm"`
}

// PWMConfig is the signed servo output per motion command.
type PWMConfig struct {
	Forward   int `yaml:"forward"`
	Backward  int `yaml:"backward"`
	TurnLeft  int `yaml:"turn_left"`
	TurnRight int `yaml:"turn_right"`
}

// MQTTConfig selects the broker.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	BufferSize int    `yaml:"buffer_size"`
}

// Default returns the reference configuration.
func Default() *Config {
	t := fsm.DefaultTiming
	g := detect.DefaultGeometry
	p := gpio.DefaultPins
	return &Config{
		Mode:      string(fsm.ModeHost),
		Poll:      10 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
		HTTPAddr:  ":80",
		Timing: TimingConfig{
			WanderMs:        t.WanderMs,
			DetectMs:        t.DetectMs,
			BackUpFlashMs:   t.BackUpFlashMs,
			BackUpBumpMs:    t.BackUpBumpMs,
			FlashMs:         t.FlashMs,
			TurnMs:          t.TurnMs,
			SyntheticTurnMs: t.SyntheticTurnMs,
		},
		Geometry: GeometryConfig{
			DXMax:       g.DXMax,
			CenteredMax: g.CenteredMax,
			TurnMinMs:   g.TurnMinMs,
			TurnMaxMs:   g.TurnMaxMs,
		},
		Detect: DetectConfig{
			RequestIntervalMs: detect.DefaultClientConfig.RequestIntervalMs,
			ReplyTimeoutMs:    detect.DefaultClientConfig.ReplyTimeoutMs,
		},
		Inputs: InputsConfig{
			DebounceMs:        logic.DefaultDebounceMs,
			MinEdgeIntervalUs: logic.DefaultMinEdgeIntervalUs,
			BumpActive:        "low",
		},
		GPIO: GPIOConfig{
			Chip:      p.Chip,
			HallLeft:  p.HallLeft,
			HallRight: p.HallRight,
			BumpLeft:  p.BumpLeft,
			BumpRight: p.BumpRight,
			LED:       p.LED,
		},
		Host: SerialConfig{Device: "/dev/ttyAMA0", Baud: serialio.DefaultBaud},
		Servo: ServoConfig{
			Device: "/dev/ttyS0",
			Baud:   servo.DefaultBaud,
			ID:     0,
			Settle: time.Second,
			PWM: PWMConfig{
				Forward:   servo.DefaultPWM.Forward,
				Backward:  servo.DefaultPWM.Backward,
				TurnLeft:  servo.DefaultPWM.TurnLeft,
				TurnRight: servo.DefaultPWM.TurnRight,
			},
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			ClientID:   "rover",
			BufferSize: mqtt.DefaultBufferSize,
		},
	}
}

// LoadFile loads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := fsm.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w", err))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive"))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative"))
	}

	durations := []struct {
		name string
		v    uint32
	}{
		{"timing.wander_ms", c.Timing.WanderMs},
		{"timing.detect_ms", c.Timing.DetectMs},
		{"timing.back_up_flash_ms", c.Timing.BackUpFlashMs},
		{"timing.back_up_bump_ms", c.Timing.BackUpBumpMs},
		{"timing.flash_ms", c.Timing.FlashMs},
		{"timing.turn_ms", c.Timing.TurnMs},
		{"timing.synthetic_turn_ms", c.Timing.SyntheticTurnMs},
		{"geometry.turn_min_ms", c.Geometry.TurnMinMs},
		{"geometry.turn_max_ms", c.Geometry.TurnMaxMs},
		{"detect.request_interval_ms", c.Detect.RequestIntervalMs},
		{"detect.reply_timeout_ms", c.Detect.ReplyTimeoutMs},
		{"inputs.debounce_ms", c.Inputs.DebounceMs},
	}
	for _, d := range durations {
		if d.v == 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}

	if c.Geometry.TurnMinMs > c.Geometry.TurnMaxMs {
		errs = append(errs, fmt.Errorf("geometry.turn_min_ms (%d) exceeds turn_max_ms (%d)",
			c.Geometry.TurnMinMs, c.Geometry.TurnMaxMs))
	}
	if c.Geometry.DXMax <= 0 {
		errs = append(errs, fmt.Errorf("geometry.dx_max must be positive"))
	}
	if c.Geometry.CenteredMax < 0 || c.Geometry.CenteredMax > c.Geometry.DXMax {
		errs = append(errs, fmt.Errorf("geometry.centered_max must be within [0, dx_max]"))
	}
	if _, err := c.bumpActive(); err != nil {
		errs = append(errs, err)
	}
	if c.Servo.ID < 0 || c.Servo.ID > 253 {
		errs = append(errs, fmt.Errorf("servo.id %d out of range", c.Servo.ID))
	}
	if err := c.pwm().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("servo.pwm: %w", err))
	}
	if c.Mode == string(fsm.ModeHost) && c.Host.Device == "" {
		errs = append(errs, fmt.Errorf("host.device is required in host mode"))
	}

	return errors.Join(errs...)
}

func (c *Config) bumpActive() (logic.Level, error) {
	switch c.Inputs.BumpActive {
	case "low":
		return logic.Low, nil
	case "high":
		return logic.High, nil
	}
	return logic.Low, fmt.Errorf("inputs.bump_active must be low or high, got %q", c.Inputs.BumpActive)
}

func (c *Config) pwm() servo.PWM {
	return servo.PWM{
		Forward:   c.Servo.PWM.Forward,
		Backward:  c.Servo.PWM.Backward,
		TurnLeft:  c.Servo.PWM.TurnLeft,
		TurnRight: c.Servo.PWM.TurnRight,
	}
}

// FSM returns the state machine configuration.
func (c *Config) FSM() fsm.Config {
	return fsm.Config{
		Mode: fsm.Mode(c.Mode),
		Timing: fsm.Timing{
			WanderMs:        c.Timing.WanderMs,
			DetectMs:        c.Timing.DetectMs,
			BackUpFlashMs:   c.Timing.BackUpFlashMs,
			BackUpBumpMs:    c.Timing.BackUpBumpMs,
			FlashMs:         c.Timing.FlashMs,
			TurnMs:          c.Timing.TurnMs,
			SyntheticTurnMs: c.Timing.SyntheticTurnMs,
		},
		Geometry: detect.Geometry{
			DXMax:       c.Geometry.DXMax,
			CenteredMax: c.Geometry.CenteredMax,
			TurnMinMs:   c.Geometry.TurnMinMs,
			TurnMaxMs:   c.Geometry.TurnMaxMs,
		},
	}
}

// DetectClient returns the detection protocol pacing.
func (c *Config) DetectClient() detect.ClientConfig {
	return detect.ClientConfig{
		RequestIntervalMs: c.Detect.RequestIntervalMs,
		ReplyTimeoutMs:    c.Detect.ReplyTimeoutMs,
	}
}

// InputSource returns the debounce configuration.
func (c *Config) InputSource() inputs.Config {
	level, _ := c.bumpActive()
	return inputs.Config{DebounceMs: c.Inputs.DebounceMs, PressedLevel: level}
}

// Pins returns the GPIO wiring.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		Chip:      c.GPIO.Chip,
		HallLeft:  c.GPIO.HallLeft,
		HallRight: c.GPIO.HallRight,
		BumpLeft:  c.GPIO.BumpLeft,
		BumpRight: c.GPIO.BumpRight,
		LED:       c.GPIO.LED,
	}
}

// ServoDriver returns the servo configuration.
func (c *Config) ServoDriver() servo.Config {
	return servo.Config{
		Device: c.Servo.Device,
		Baud:   c.Servo.Baud,
		ID:     byte(c.Servo.ID),
		Settle: c.Servo.Settle,
		PWM:    c.pwm(),
	}
}

// Broker returns the MQTT client configuration.
func (c *Config) Broker() mqtt.Config {
	return mqtt.Config{
		Broker:     c.MQTT.Broker,
		ClientID:   c.MQTT.ClientID,
		BufferSize: c.MQTT.BufferSize,
	}
}

// Status returns the configuration shown on the status page.
func (c *Config) Status() status.Config {
	return status.Config{
		Mode:        c.Mode,
		PollMs:      c.Poll.Milliseconds(),
		DebounceMs:  int64(c.Inputs.DebounceMs),
		HeartbeatMs: c.Heartbeat.Milliseconds(),
		Timing:      c.FSM().Timing,
		Broker:      c.MQTT.Broker,
		HTTPAddr:    c.HTTPAddr,
		HostDevice:  c.Host.Device,
		ServoDevice: c.Servo.Device,
	}
}
