// Command rover drives the bump rover: it reads the bump and rotation
// sensors, runs the behavior state machine and commands the drive servo and
// indicator LED. Transitions and lifecycle events are published to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/rover/internal/config"
	"github.com/sweeney/rover/internal/detect"
	"github.com/sweeney/rover/internal/fsm"
	"github.com/sweeney/rover/internal/gpio"
	"github.com/sweeney/rover/internal/inputs"
	"github.com/sweeney/rover/internal/logic"
	"github.com/sweeney/rover/internal/mqtt"
	"github.com/sweeney/rover/internal/serialio"
	"github.com/sweeney/rover/internal/servo"
	"github.com/sweeney/rover/internal/status"
	"github.com/sweeney/rover/internal/tick"
	"github.com/sweeney/rover/internal/web"
)

func main() {
	fs := pflag.NewFlagSet("rover", pflag.ContinueOnError)
	flags := config.AddFlags(fs)
	printInputs := fs.Bool("print-inputs", false, "print current bump levels and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}

	cfg, err := flags.Load()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printInputs); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// devices are the rover's hardware endpoints.
type devices struct {
	reader    gpio.Reader
	hallLeft  *logic.EdgeFilter
	hallRight *logic.EdgeFilter
	drive     fsm.Actuator
	led       fsm.Signal
	// link is nil in standalone mode.
	link fsm.Link
}

func run(cfg *config.Config, printInputs bool) error {
	pins := cfg.Pins()

	reader, err := gpio.NewRealReader(pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printInputs {
		left, right, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("bump left: %s, bump right: %s\n", left, right)
		return nil
	}

	dev := devices{
		reader:    reader,
		hallLeft:  logic.NewEdgeFilter(cfg.Inputs.MinEdgeIntervalUs),
		hallRight: logic.NewEdgeFilter(cfg.Inputs.MinEdgeIntervalUs),
	}

	watcher, err := gpio.NewEdgeWatcher(pins, dev.hallLeft, dev.hallRight)
	if err != nil {
		return fmt.Errorf("init rotation sensors: %w", err)
	}
	defer watcher.Close()

	led, err := gpio.NewLED(pins)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer led.Close()
	dev.led = led

	drive, err := servo.Open(cfg.ServoDriver())
	if err != nil {
		return fmt.Errorf("init servo: %w", err)
	}
	defer drive.Close()
	dev.drive = drive

	if cfg.FSM().Mode == fsm.ModeHost {
		port, err := serialio.Open(cfg.Host.Device, cfg.Host.Baud)
		if err != nil {
			return fmt.Errorf("init host link: %w", err)
		}
		defer port.Close()
		dev.link = port
	}

	broker := mqtt.NewRealPublisher(cfg.Broker())
	// The control cycle only queues; the broker is waited on elsewhere.
	publisher := mqtt.NewAsyncPublisher(broker, cfg.MQTT.BufferSize)
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), cfg.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: mode=%s poll=%v broker=%s heartbeat=%v", cfg.Mode, cfg.Poll, cfg.MQTT.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(cfg, dev, publisher, broker, tracker, time.Now, ticker.C, sigCh)
}

func runLoop(cfg *config.Config, dev devices, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, ticks <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	epoch := tick.NewEpoch(startTime)

	source, err := inputs.NewSource(cfg.InputSource(), dev.reader, dev.hallLeft, dev.hallRight, epoch.Millis(startTime))
	if err != nil {
		return fmt.Errorf("init inputs: %w", err)
	}

	fsmCfg := cfg.FSM()
	var client *detect.Client
	if fsmCfg.Mode == fsm.ModeHost {
		client = detect.NewClient(cfg.DetectClient())
	}
	machine, err := fsm.New(fsmCfg, dev.drive, dev.led, dev.link, client, epoch.Millis(startTime))
	if err != nil {
		return fmt.Errorf("init state machine: %w", err)
	}
	log.Printf("fsm: %s mode, starting in %s", machine.Mode(), machine.State())

	heartbeat := status.NewHeartbeat(cfg.Heartbeat, startTime)
	if tracker != nil {
		tracker.Start(machine.Mode(), machine.State(), startTime)
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := dev.drive.Stop(); err != nil {
				log.Printf("servo: stop failed: %v", err)
			}
			if err := dev.led.Off(); err != nil {
				log.Printf("gpio: led off failed: %v", err)
			}

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-ticks:
			t := now()
			ms := epoch.Millis(t)

			ev, err := source.Poll(ms)
			if err != nil {
				// Rotation edges in ev are still valid.
				log.Printf("gpio read error: %v", err)
			}

			if tr, ok := machine.Step(ev, ms); ok {
				if tracker != nil {
					tracker.RecordTransition(tr, t)
				}
				if err := publisher.Publish(mqtt.TransitionEvent{Timestamp: t, Mode: machine.Mode(), Transition: tr}); err != nil {
					log.Printf("publish error: %v", err)
				}
			}

			if tracker == nil {
				continue
			}
			tracker.UpdateInputs(source.RotationCounts())
			if c := machine.Client(); c != nil {
				tracker.UpdateDetect(c.Stats())
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if heartbeat.Due(t) {
				left, right := source.RotationCounts()
				log.Printf("heartbeat: state=%s rotations=%d/%d", machine.State(), left, right)
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
