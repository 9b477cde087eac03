// Command detector-host runs on the camera computer. It announces itself to
// the rover over the serial link and answers each detection request with the
// offset of the largest person reported on MQTT by the vision process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/rover/internal/hostlink"
	"github.com/sweeney/rover/internal/mqtt"
	"github.com/sweeney/rover/internal/serialio"
)

type options struct {
	device    string
	baud      int
	bootDelay time.Duration
	announce  time.Duration
	poll      time.Duration
	broker    string
	clientID  string
	maxAge    time.Duration
	gate      hostlink.Gate
}

func parseFlags(args []string) (options, error) {
	o := options{gate: hostlink.DefaultGate}
	fs := pflag.NewFlagSet("detector-host", pflag.ContinueOnError)
	fs.StringVar(&o.device, "device", "/dev/ttyACM0", "serial device connected to the rover")
	fs.IntVar(&o.baud, "baud", serialio.DefaultBaud, "serial speed")
	fs.DurationVar(&o.bootDelay, "boot-delay", 2*time.Second, "wait after opening the port before announcing")
	fs.DurationVar(&o.announce, "announce", 100*time.Millisecond, "handshake repeat interval")
	fs.DurationVar(&o.poll, "poll", 10*time.Millisecond, "serial poll interval")
	fs.StringVar(&o.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	fs.StringVar(&o.clientID, "client-id", "rover-detector-host", "MQTT client ID")
	fs.DurationVar(&o.maxAge, "max-age", mqtt.DefaultDetectionMaxAge, "oldest detection still answered")
	fs.IntVar(&o.gate.MinWidth, "min-width", o.gate.MinWidth, "smallest box width in pixels")
	fs.IntVar(&o.gate.MinHeight, "min-height", o.gate.MinHeight, "smallest box height in pixels")
	fs.IntVar(&o.gate.FrameWidth, "frame-width", o.gate.FrameWidth, "camera frame width in pixels")
	fs.Float64Var(&o.gate.MinConf, "min-conf", o.gate.MinConf, "lowest detector confidence acted on")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.gate.FrameWidth <= 0 {
		return o, fmt.Errorf("frame-width must be positive")
	}
	if o.announce <= 0 || o.poll <= 0 {
		return o, fmt.Errorf("announce and poll must be positive")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}
	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	port, err := serialio.Open(o.device, o.baud)
	if err != nil {
		return err
	}
	defer port.Close()

	sub := mqtt.NewDetectionSubscriber(mqtt.Config{Broker: o.broker, ClientID: o.clientID}, o.maxAge)
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-time.After(o.bootDelay):
	case <-ctx.Done():
		return nil
	}
	port.Drain()

	return serve(ctx, port, sub, o)
}

func serve(ctx context.Context, link hostlink.Link, det hostlink.Detector, o options) error {
	r := hostlink.NewResponder(link, det, o.gate)
	if err := r.Handshake(ctx, o.announce); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Printf("handshake complete, waiting for %s", hostlink.RequestToken)

	err := r.Serve(ctx, o.poll)
	log.Printf("shutting down after %d replies", r.Answered())
	return err
}
