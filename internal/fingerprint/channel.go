// Package fingerprint provides the synchronous provisioning channel for the
// fingerprint sensor: one command out, one correlated response back, over the
// shared asynchronous serial line stream.
package fingerprint

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Response prefixes, matched case-insensitively.
const (
	okEnroll   = "inform enroll complete, id:"
	okDelete   = "inform delete success"
	okLibrary  = "inform library first empty slot:"
	errEnroll  = "error enroll"
	errDelete  = "error delete"
	errLibrary = "error library"
)

// Queue bound and poll granularity for the blocking wait.
const (
	maxQueuedLines = 200
	pollInterval   = 20 * time.Millisecond
)

const msgNotConnected = "Serial not connected"

// Sender is the outbound command surface (satisfied by *door.Controller and
// by *serialio.Transport alike).
type Sender interface {
	Send(line string)
	IsConnected() bool
}

// Timeouts per operation. Enrolling waits for finger placement on the
// sensor, so it gets the longest deadline. These are configuration, not
// protocol constants.
type Timeouts struct {
	Enroll time.Duration
	Delete time.Duration
	Query  time.Duration
}

// DefaultTimeouts reflect expected hardware latency.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Enroll: 8 * time.Second,
		Delete: 3 * time.Second,
		Query:  3 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Enroll <= 0 {
		t.Enroll = d.Enroll
	}
	if t.Delete <= 0 {
		t.Delete = d.Delete
	}
	if t.Query <= 0 {
		t.Query = d.Query
	}
	return t
}

// Result is the outcome of one provisioning operation. Value carries the
// trailing numeric field when the response has one (enrolled slot id, first
// empty slot).
type Result struct {
	OK      bool   `json:"ok"`
	Value   int    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Channel buffers recently dispatched lines and lets one caller at a time
// block for a correlated response. Feed is the single writer (the transport
// dispatch path); the in-flight operation is the single reader. Callers must
// serialize operations — the design assumes a single-operator UI, not
// concurrent provisioning.
type Channel struct {
	sender   Sender
	timeouts Timeouts

	// observer sees every line the channel consumes, matched or not, for UI
	// echo. Observation never alters the match outcome.
	observer func(line string)

	mu    sync.Mutex
	lines []string
}

// New builds a channel over the given sender. Zero timeouts fall back to
// defaults; observer may be nil.
func New(sender Sender, timeouts Timeouts, observer func(string)) *Channel {
	return &Channel{
		sender:   sender,
		timeouts: timeouts.withDefaults(),
		observer: observer,
	}
}

// Feed appends one dispatched line to the bounded queue, evicting the oldest
// when full. Register it as a secondary listener on the door controller.
func (c *Channel) Feed(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.mu.Lock()
	if len(c.lines) >= maxQueuedLines {
		c.lines = c.lines[1:]
	}
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

// IsConnected reports whether the underlying transport has a device.
func (c *Channel) IsConnected() bool {
	return c.sender != nil && c.sender.IsConnected()
}

// Enroll starts an enrollment on the sensor and waits for its outcome.
// On success Value is the enrolled slot id.
func (c *Channel) Enroll() Result {
	return c.roundTrip("enroll", c.timeouts.Enroll, okEnroll, errEnroll, "enroll complete")
}

// Delete removes one stored template by slot id.
func (c *Channel) Delete(id int) Result {
	return c.roundTrip("delete "+strconv.Itoa(id), c.timeouts.Delete, okDelete, errDelete, "deleted")
}

// DeleteAll wipes the sensor library.
func (c *Channel) DeleteAll() Result {
	return c.roundTrip("delete all", c.timeouts.Enroll, okDelete, errDelete, "all deleted")
}

// FirstEmptySlot asks the sensor for its first free library slot.
func (c *Channel) FirstEmptySlot() Result {
	return c.roundTrip("library", c.timeouts.Query, okLibrary, errLibrary, "ok")
}

// roundTrip drains stale lines, sends the command, then polls the queue
// until a success or failure prefix matches or the deadline passes.
func (c *Channel) roundTrip(cmd string, timeout time.Duration, okPrefix, errPrefix, okMsg string) Result {
	if !c.IsConnected() {
		return Result{OK: false, Message: msgNotConnected}
	}

	c.drain()
	c.sender.Send(cmd)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		line, ok := c.pop(deadline)
		if !ok {
			continue
		}
		if c.observer != nil {
			c.observer(line)
		}

		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, okPrefix) {
			return Result{OK: true, Value: trailingInt(line), Message: okMsg}
		}
		if strings.HasPrefix(lower, errPrefix) {
			return Result{OK: false, Message: line}
		}
		// Unrelated traffic (door events etc.) is observed and skipped.
	}
	return Result{OK: false, Message: "timeout"}
}

// drain clears lines left over from a previous operation so a stale response
// can never satisfy a new command.
func (c *Channel) drain() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// pop waits up to pollInterval (bounded by the deadline) for the next queued
// line.
func (c *Channel) pop(deadline time.Time) (string, bool) {
	for {
		c.mu.Lock()
		if len(c.lines) > 0 {
			line := c.lines[0]
			c.lines = c.lines[1:]
			c.mu.Unlock()
			return line, true
		}
		c.mu.Unlock()
		if !time.Now().Before(deadline) {
			return "", false
		}
		time.Sleep(pollInterval)
	}
}

// trailingInt parses the numeric field after the last ':', e.g. the slot id
// in "Inform enroll complete, ID:7". Returns 0 when absent or malformed.
func trailingInt(line string) int {
	i := strings.LastIndexByte(line, ':')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[i+1:]))
	if err != nil {
		return 0
	}
	return n
}
