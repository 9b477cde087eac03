package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// Flags binds the command-line overrides to a flag set.
type Flags struct {
	fs *pflag.FlagSet

	path        string
	mode        string
	poll        time.Duration
	heartbeat   time.Duration
	httpAddr    string
	broker      string
	hostDevice  string
	servoDevice string
	debounceMs  uint32
}

// AddFlags registers the override flags on fs.
func AddFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.path, "config", "", "path to the YAML config file (default $"+EnvConfig+")")
	fs.StringVar(&f.mode, "mode", d.Mode, `"host" or "standalone"`)
	fs.DurationVar(&f.poll, "poll", d.Poll, "control cycle period")
	fs.DurationVar(&f.heartbeat, "heartbeat", d.Heartbeat, "heartbeat interval (0 to disable)")
	fs.StringVar(&f.httpAddr, "http", d.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&f.broker, "broker", d.MQTT.Broker, "MQTT broker address")
	fs.StringVar(&f.hostDevice, "host-device", d.Host.Device, "serial device of the detector host link")
	fs.StringVar(&f.servoDevice, "servo-device", d.Servo.Device, "serial device of the servo bus")
	fs.Uint32Var(&f.debounceMs, "debounce-ms", d.Inputs.DebounceMs, "bump switch debounce window")
	return f
}

// Path returns the config file in effect: the --config flag, else $ROVER_CONFIG.
func (f *Flags) Path() string {
	if f.path != "" {
		return f.path
	}
	return os.Getenv(EnvConfig)
}

// Load reads the config file (if any), applies the flags the user set and
// validates the result. Call after the flag set has been parsed.
func (f *Flags) Load() (*Config, error) {
	cfg := Default()
	if path := f.Path(); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	set := func(name string, fn func()) {
		if f.fs.Changed(name) {
			fn()
		}
	}
	set("mode", func() { cfg.Mode = f.mode })
	set("poll", func() { cfg.Poll = f.poll })
	set("heartbeat", func() { cfg.Heartbeat = f.heartbeat })
	set("http", func() { cfg.HTTPAddr = f.httpAddr })
	set("broker", func() { cfg.MQTT.Broker = f.broker })
	set("host-device", func() { cfg.Host.Device = f.hostDevice })
	set("servo-device", func() { cfg.Servo.Device = f.servoDevice })
	set("debounce-ms", func() { cfg.Inputs.DebounceMs = f.debounceMs })
}
