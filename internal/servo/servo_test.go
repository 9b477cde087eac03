package servo

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func noSleep(time.Duration) {}

func TestPacket(t *testing.T) {
	got := Packet(1, regGoalTime, []byte{0x01, 0x90})
	// sum = 1 + 5 + 3 + 44 + 1 + 0x90 = 198 = 0xC6
	want := []byte{0xFF, 0xFF, 0x01, 0x05, 0x03, 0x2C, 0x01, 0x90, 0x39}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestPacketChecksumWraps(t *testing.T) {
	got := Packet(0xFE, 0xFF, []byte{0xFF, 0xFF})
	var sum byte
	for _, b := range got[2 : len(got)-1] {
		sum += b
	}
	if got[len(got)-1] != ^sum {
		t.Errorf("checksum %02X, want %02X", got[len(got)-1], ^sum)
	}
}

func TestBegin(t *testing.T) {
	port := &FakePort{}
	var slept time.Duration
	cfg := DefaultConfig("/dev/null")

	if _, err := Begin(port, cfg, func(d time.Duration) { slept = d }); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if slept != time.Second {
		t.Errorf("expected 1s settle, got %v", slept)
	}

	var want []byte
	want = append(want, Packet(0, regMinAngleLimit, []byte{0, 0, 0, 0})...)
	want = append(want, Packet(0, regTorqueEnable, []byte{1})...)
	want = append(want, Packet(0, regGoalTime, []byte{0, 0})...)
	if !bytes.Equal(port.Bytes(), want) {
		t.Errorf("got % X\nwant % X", port.Bytes(), want)
	}
}

func TestBeginWriteError(t *testing.T) {
	port := &FakePort{WriteErr: errors.New("unplugged")}
	if _, err := Begin(port, DefaultConfig(""), noSleep); err == nil {
		t.Error("expected error")
	}
}

func TestBeginRejectsBadPWM(t *testing.T) {
	cfg := DefaultConfig("")
	cfg.PWM.Forward = 1001
	if _, err := Begin(&FakePort{}, cfg, noSleep); err == nil {
		t.Error("expected range error")
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		cmd  func(*Driver) error
		data []byte
	}{
		{"forward", (*Driver).Forward, []byte{0x01, 0x90}},
		{"backward", (*Driver).Backward, []byte{0x05, 0x90}}, // 400 | 1<<10
		{"stop", (*Driver).Stop, []byte{0x00, 0x00}},
		{"turn left", (*Driver).TurnLeft, []byte{0x01, 0x90}},
		{"turn right", (*Driver).TurnRight, []byte{0x01, 0x90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &FakePort{}
			d, err := Begin(port, DefaultConfig(""), noSleep)
			if err != nil {
				t.Fatal(err)
			}
			port.Reset()

			if err := tt.cmd(d); err != nil {
				t.Fatal(err)
			}
			want := Packet(0, regGoalTime, tt.data)
			if !bytes.Equal(port.Bytes(), want) {
				t.Errorf("got % X, want % X", port.Bytes(), want)
			}
		})
	}
}

func TestWritePWMRange(t *testing.T) {
	d, _ := Begin(&FakePort{}, DefaultConfig(""), noSleep)
	if err := d.WritePWM(-1001); err == nil {
		t.Error("expected error below range")
	}
	if err := d.WritePWM(-1000); err != nil {
		t.Errorf("unexpected error at range edge: %v", err)
	}
}

func TestClose(t *testing.T) {
	port := &FakePort{}
	d, _ := Begin(port, DefaultConfig(""), noSleep)
	port.Reset()

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.Closed {
		t.Error("expected port closed")
	}
	if !bytes.Equal(port.Bytes(), Packet(0, regGoalTime, []byte{0, 0})) {
		t.Errorf("expected stop before close, got % X", port.Bytes())
	}
}
