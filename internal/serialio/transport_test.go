package serialio

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDevice is an in-memory serial port: Read serves queued chunks and
// Write records sent bytes.
type fakeDevice struct {
	mu     sync.Mutex
	chunks chan []byte
	writes []string
	closed bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{chunks: make(chan []byte, 64)}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	select {
	case chunk, ok := <-d.chunks:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	case <-time.After(10 * time.Millisecond):
		// mimic a read timeout with no data
		return 0, nil
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errors.New("closed")
	}
	d.writes = append(d.writes, string(p))
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) SetReadTimeout(time.Duration) error { return nil }

func (d *fakeDevice) sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.writes))
	copy(out, d.writes)
	return out
}

// withFakeDevice swaps the open hook for the test's lifetime.
func withFakeDevice(t *testing.T, dev *fakeDevice) {
	t.Helper()
	origOpen, origList := openDevice, listPorts
	openDevice = func(string, int) (device, error) { return dev, nil }
	listPorts = func() ([]portInfo, error) { return nil, errors.New("no enumeration") }
	t.Cleanup(func() {
		openDevice = origOpen
		listPorts = origList
	})
}

func collectLines(mu *sync.Mutex, dst *[]string) func(string) {
	return func(line string) {
		mu.Lock()
		*dst = append(*dst, line)
		mu.Unlock()
	}
}

func waitForLines(t *testing.T, mu *sync.Mutex, got *[]string, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(*got)
		out := make([]string, n)
		copy(out, *got)
		mu.Unlock()
		if n >= want {
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines", want)
	return nil
}

func TestTransport_FramesLinesAndStripsCR(t *testing.T) {
	dev := newFakeDevice()
	withFakeDevice(t, dev)

	var mu sync.Mutex
	var got []string
	tr := Open(Config{Port: "/dev/ttyUSB0", Baud: 115200}, collectLines(&mu, &got), nil)
	defer tr.Close()

	// one line split across chunks, CRLF framed
	dev.chunks <- []byte("Inform door ")
	dev.chunks <- []byte("opened\r\n")
	dev.chunks <- []byte("finger found, ID: 3\r\nnext")
	dev.chunks <- []byte(" part\n")

	lines := waitForLines(t, &mu, &got, 3)
	if lines[0] != "Inform door opened" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if lines[1] != "finger found, ID: 3" {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if lines[2] != "next part" {
		t.Fatalf("line 2 = %q", lines[2])
	}
}

func TestTransport_DropsEmptyAndNoisyLines(t *testing.T) {
	dev := newFakeDevice()
	withFakeDevice(t, dev)

	var mu sync.Mutex
	var got []string
	tr := Open(Config{Port: "/dev/ttyUSB0", Baud: 115200}, collectLines(&mu, &got), nil)
	defer tr.Close()

	dev.chunks <- []byte("\n   \nLED set success\nreal line\n")

	lines := waitForLines(t, &mu, &got, 1)
	if len(lines) != 1 || lines[0] != "real line" {
		t.Fatalf("expected only the real line, got %v", lines)
	}
}

func TestTransport_DispatchPanicDoesNotKillReader(t *testing.T) {
	dev := newFakeDevice()
	withFakeDevice(t, dev)

	var mu sync.Mutex
	var got []string
	dispatch := func(line string) {
		if strings.Contains(line, "boom") {
			panic("listener fault")
		}
		mu.Lock()
		got = append(got, line)
		mu.Unlock()
	}
	tr := Open(Config{Port: "/dev/ttyUSB0", Baud: 115200}, dispatch, nil)
	defer tr.Close()

	dev.chunks <- []byte("boom\nsurvivor\n")

	lines := waitForLines(t, &mu, &got, 1)
	if lines[0] != "survivor" {
		t.Fatalf("expected the line after the panic, got %v", lines)
	}
}

func TestTransport_SetDispatcherAfterOpen(t *testing.T) {
	dev := newFakeDevice()
	withFakeDevice(t, dev)

	var mu sync.Mutex
	var got []string
	tr := Open(Config{Port: "/dev/ttyUSB0", Baud: 115200}, nil, nil)
	defer tr.Close()

	// lines framed before a dispatcher exists are dropped, not queued
	dev.chunks <- []byte("too early\n")
	time.Sleep(50 * time.Millisecond)

	tr.SetDispatcher(collectLines(&mu, &got))
	dev.chunks <- []byte("on time\n")

	lines := waitForLines(t, &mu, &got, 1)
	if len(lines) != 1 || lines[0] != "on time" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestTransport_SendAppendsNewlineAndTrims(t *testing.T) {
	dev := newFakeDevice()
	withFakeDevice(t, dev)

	tr := Open(Config{Port: "/dev/ttyUSB0", Baud: 115200}, func(string) {}, nil)
	defer tr.Close()

	tr.Send("  open manual  ")
	sent := dev.sent()
	if len(sent) != 1 || sent[0] != "open manual\n" {
		t.Fatalf("unexpected writes: %v", sent)
	}
	if !tr.IsConnected() {
		t.Fatalf("expected connected transport")
	}
}

func TestTransport_DisconnectedModeIsInert(t *testing.T) {
	origOpen, origList := openDevice, listPorts
	openDevice = func(string, int) (device, error) { return nil, errors.New("no such port") }
	listPorts = func() ([]portInfo, error) { return nil, errors.New("no enumeration") }
	t.Cleanup(func() {
		openDevice = origOpen
		listPorts = origList
	})

	tr := Open(Config{Port: "/dev/ttyUSB9", Baud: 115200}, func(string) {
		t.Errorf("dispatch must never run in disconnected mode")
	}, nil)
	defer tr.Close()

	if tr.IsConnected() {
		t.Fatalf("expected disconnected transport")
	}
	tr.Send("open manual") // no-op, must not panic
	tr.Close()
	tr.Close() // idempotent
}

func TestAutoDetectPort_PrefersKnownAdapters(t *testing.T) {
	origList := listPorts
	listPorts = func() ([]portInfo, error) {
		return []portInfo{
			{name: "/dev/ttyS0", desc: "PCI Serial"},
			{name: "/dev/ttyUSB0", desc: "CP2102 USB to UART Bridge 10C4:EA60"},
			{name: "/dev/ttyUSB1", desc: "CH340 serial converter"},
		}, nil
	}
	t.Cleanup(func() { listPorts = origList })

	if got := autoDetectPort(); got != "/dev/ttyUSB0" {
		t.Fatalf("expected the highest scoring port, got %q", got)
	}
}

func TestAutoDetectPort_FallsBackToFirstPort(t *testing.T) {
	origList := listPorts
	listPorts = func() ([]portInfo, error) {
		return []portInfo{
			{name: "/dev/ttyS0", desc: "PCI Serial"},
			{name: "/dev/ttyS1", desc: "PCI Serial"},
		}, nil
	}
	t.Cleanup(func() { listPorts = origList })

	if got := autoDetectPort(); got != "/dev/ttyS0" {
		t.Fatalf("expected first enumerated port on tie, got %q", got)
	}
}
