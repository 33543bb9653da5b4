package fingerprint

import (
	"sync"
	"testing"
	"time"

	"smartdoor/internal/door"
)

// The door controller is the sender the channel is wired to in practice.
var _ Sender = (*door.Controller)(nil)

type fakeSender struct {
	mu        sync.Mutex
	sent      []string
	connected bool

	// onSend runs after the command is recorded, e.g. to feed the response
	onSend func(cmd string)
}

func (f *fakeSender) Send(line string) {
	f.mu.Lock()
	f.sent = append(f.sent, line)
	cb := f.onSend
	f.mu.Unlock()
	if cb != nil {
		cb(line)
	}
}
func (f *fakeSender) IsConnected() bool { return f.connected }

func (f *fakeSender) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func shortTimeouts() Timeouts {
	return Timeouts{
		Enroll: 500 * time.Millisecond,
		Delete: 500 * time.Millisecond,
		Query:  500 * time.Millisecond,
	}
}

func TestChannel_NotConnectedFailsImmediately(t *testing.T) {
	ch := New(&fakeSender{connected: false}, shortTimeouts(), nil)
	start := time.Now()
	res := ch.Enroll()
	if res.OK {
		t.Fatalf("expected failure when disconnected")
	}
	if res.Message != msgNotConnected {
		t.Fatalf("message=%q", res.Message)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("disconnected failure must not wait for the timeout")
	}
}

func TestChannel_EnrollParsesSlotID(t *testing.T) {
	sender := &fakeSender{connected: true}
	ch := New(sender, shortTimeouts(), nil)
	sender.onSend = func(cmd string) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			ch.Feed("Inform enroll complete, ID:7")
		}()
	}

	res := ch.Enroll()
	if !res.OK || res.Value != 7 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := sender.lines(); len(got) != 1 || got[0] != "enroll" {
		t.Fatalf("unexpected commands: %v", got)
	}
}

func TestChannel_MatchingIsCaseInsensitive(t *testing.T) {
	sender := &fakeSender{connected: true}
	ch := New(sender, shortTimeouts(), nil)
	sender.onSend = func(string) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			ch.Feed("INFORM DELETE SUCCESS")
		}()
	}

	if res := ch.Delete(3); !res.OK {
		t.Fatalf("uppercase response not matched: %+v", res)
	}
	if got := sender.lines(); got[len(got)-1] != "delete 3" {
		t.Fatalf("unexpected command: %v", got)
	}
}

func TestChannel_ErrorResponseFails(t *testing.T) {
	sender := &fakeSender{connected: true}
	ch := New(sender, shortTimeouts(), nil)
	sender.onSend = func(string) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			ch.Feed("Error delete: no such id")
		}()
	}

	res := ch.Delete(99)
	if res.OK {
		t.Fatalf("error response treated as success: %+v", res)
	}
	if res.Message != "Error delete: no such id" {
		t.Fatalf("message=%q", res.Message)
	}
}

func TestChannel_TimesOutWithoutResponse(t *testing.T) {
	sender := &fakeSender{connected: true}
	ch := New(sender, shortTimeouts(), nil)

	start := time.Now()
	res := ch.FirstEmptySlot()
	if res.OK || res.Message != "timeout" {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("returned before the deadline: %v", elapsed)
	}
}

func TestChannel_StaleLinesCannotSatisfyNewCommand(t *testing.T) {
	sender := &fakeSender{connected: true}
	ch := New(sender, shortTimeouts(), nil)

	// response left over from an earlier operation
	ch.Feed("Inform delete success")

	res := ch.Delete(1)
	if res.OK {
		t.Fatalf("stale response satisfied a fresh command")
	}
}

func TestChannel_UnrelatedTrafficIsObservedAndSkipped(t *testing.T) {
	sender := &fakeSender{connected: true}
	var mu sync.Mutex
	var seen []string
	ch := New(sender, shortTimeouts(), func(line string) {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
	})
	sender.onSend = func(string) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			ch.Feed("Inform door opened")
			ch.Feed("Inform library first empty slot: 12")
		}()
	}

	res := ch.FirstEmptySlot()
	if !res.OK || res.Value != 12 {
		t.Fatalf("unexpected result: %+v", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "Inform door opened" {
		t.Fatalf("observer missed traffic: %v", seen)
	}
}

func TestChannel_QueueEvictsOldestWhenFull(t *testing.T) {
	ch := New(&fakeSender{connected: true}, shortTimeouts(), nil)
	for i := 0; i < maxQueuedLines+10; i++ {
		ch.Feed("filler")
	}
	ch.mu.Lock()
	n := len(ch.lines)
	ch.mu.Unlock()
	if n != maxQueuedLines {
		t.Fatalf("queue length=%d, want %d", n, maxQueuedLines)
	}
}

func TestTimeouts_ZeroValuesFallBackToDefaults(t *testing.T) {
	got := Timeouts{}.withDefaults()
	want := DefaultTimeouts()
	if got != want {
		t.Fatalf("defaults not applied: %+v", got)
	}

	partial := Timeouts{Enroll: time.Second}.withDefaults()
	if partial.Enroll != time.Second || partial.Delete != want.Delete {
		t.Fatalf("partial defaults wrong: %+v", partial)
	}
}

func TestTrailingInt(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"Inform enroll complete, ID:7", 7},
		{"Inform library first empty slot: 12", 12},
		{"Inform delete success", 0},
		{"ID: notanumber", 0},
	}
	for _, c := range cases {
		if got := trailingInt(c.line); got != c.want {
			t.Fatalf("trailingInt(%q)=%d, want %d", c.line, got, c.want)
		}
	}
}
