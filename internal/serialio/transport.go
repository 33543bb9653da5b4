package serialio

import (
	"io"
	"strings"
	"sync"
	"time"

	"smartdoor/internal/logger"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Tuning knobs for the reader loop.
const (
	readTimeout      = 100 * time.Millisecond
	readErrorBackoff = 200 * time.Millisecond
	readBufSize      = 256
)

// AutoPort is the sentinel that requests adapter auto-detection.
const AutoPort = "AUTO"

// noisyLines are firmware acknowledgements dropped before dispatch.
var noisyLines = []string{
	"LED set success",
}

// adapterKeywords score enumerated ports during auto-detection. They cover
// the CP210x and CH340 USB-UART bridges by product string and USB vendor id.
var adapterKeywords = []string{"CP210", "CH340", "10C4", "1A86"}

// Config selects the device to open.
type Config struct {
	Port string // device path, empty or "AUTO" to auto-detect
	Baud int
}

// device is the subset of serial.Port the transport uses. Kept as an
// interface so tests can run against an in-memory pipe.
type device interface {
	io.ReadWriteCloser
	SetReadTimeout(d time.Duration) error
}

// openDevice and listPorts are indirections over go.bug.st/serial so the
// reader loop and auto-detection are testable without hardware.
var (
	openDevice = func(port string, baud int) (device, error) {
		p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	listPorts = func() ([]portInfo, error) {
		details, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return nil, err
		}
		out := make([]portInfo, 0, len(details))
		for _, d := range details {
			desc := d.Product
			if d.IsUSB {
				desc += " " + d.VID + ":" + d.PID
			}
			out = append(out, portInfo{name: d.Name, desc: desc})
		}
		return out, nil
	}
)

type portInfo struct {
	name string
	desc string
}

// Transport owns the serial link to the embedded controller and turns its
// byte stream into discrete text lines. Every accepted line is handed to
// exactly one dispatcher; fan-out is the dispatcher's job. When no device can
// be opened the transport stays in disconnected mode: Send becomes a no-op
// and the reader never starts, so the rest of the system runs without
// hardware.
type Transport struct {
	log *logger.Logger

	mu        sync.Mutex
	dispatch  func(line string)
	dev       device
	available bool

	done      chan struct{}
	closeOnce sync.Once
}

// Open connects to the configured port (auto-detecting if asked) and starts
// the background reader. It never fails: any open problem degrades to
// disconnected mode.
func Open(cfg Config, dispatch func(string), log *logger.Logger) *Transport {
	t := &Transport{
		log:      log,
		dispatch: dispatch,
		done:     make(chan struct{}),
	}

	port := strings.TrimSpace(cfg.Port)
	if port == "" || strings.EqualFold(port, AutoPort) {
		port = autoDetectPort()
	}
	if port == "" {
		if log != nil {
			log.Warnw("serial_no_port", "hint", "running in disconnected mode")
		}
		return t
	}

	dev, err := openDevice(port, cfg.Baud)
	if err != nil {
		if log != nil {
			log.Warnw("serial_open_failed", "port", port, "baud", cfg.Baud, "err", err)
		}
		return t
	}
	_ = dev.SetReadTimeout(readTimeout)

	t.dev = dev
	t.available = true
	go t.readLoop(dev)

	if log != nil {
		log.Infow("serial_connected", "port", port, "baud", cfg.Baud)
	}
	return t
}

// autoDetectPort scores enumerated ports against known adapter keywords.
// Ties (including the all-zero case) go to the first enumerated port.
func autoDetectPort() string {
	ports, err := listPorts()
	if err != nil || len(ports) == 0 {
		return ""
	}
	best := 0
	bestScore := -1
	for i, p := range ports {
		score := 0
		desc := strings.ToUpper(p.desc)
		for _, kw := range adapterKeywords {
			if strings.Contains(desc, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return ports[best].name
}

// SetDispatcher installs or replaces the line dispatcher. It may be called
// after Open so the dispatcher can be built around the running transport;
// lines framed before one is installed are dropped.
func (t *Transport) SetDispatcher(fn func(line string)) {
	t.mu.Lock()
	t.dispatch = fn
	t.mu.Unlock()
}

// IsConnected reports whether a device was opened and not yet closed.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available
}

// Send writes one newline-terminated line. Silently ignored when
// disconnected or mid-shutdown; write errors are swallowed so callers stay
// fire-and-forget.
func (t *Transport) Send(line string) {
	t.mu.Lock()
	dev := t.dev
	ok := t.available
	t.mu.Unlock()
	if !ok || dev == nil {
		return
	}
	if _, err := dev.Write([]byte(strings.TrimSpace(line) + "\n")); err != nil && t.log != nil {
		t.log.Debugw("serial_write_failed", "err", err)
	}
}

// Close stops the reader and releases the device. Idempotent.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		if t.dev != nil {
			_ = t.dev.Close()
		}
		t.available = false
		t.mu.Unlock()
	})
}

// readLoop accumulates bytes into lines until the transport is closed.
// Read errors back off and retry rather than terminating: a transient USB
// glitch must not kill line delivery for good.
func (t *Transport) readLoop(dev device) {
	buf := make([]byte, readBufSize)
	var line []byte
	for {
		select {
		case <-t.done:
			return
		default:
		}

		n, err := dev.Read(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			case <-time.After(readErrorBackoff):
				continue
			}
		}
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				t.deliver(string(line))
				line = line[:0]
			case '\r':
				// stripped
			default:
				line = append(line, b)
			}
		}
	}
}

// deliver hands one framed line to the dispatcher, dropping empties and the
// firmware noise denylist. A panicking dispatcher is contained here so the
// next line still gets read.
func (t *Transport) deliver(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}
	for _, noisy := range noisyLines {
		if strings.Contains(line, noisy) {
			return
		}
	}
	t.mu.Lock()
	dispatch := t.dispatch
	t.mu.Unlock()
	if dispatch == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && t.log != nil {
			t.log.Errorw("serial_dispatch_panic", "panic", r, "line", line)
		}
	}()
	dispatch(line)
}
