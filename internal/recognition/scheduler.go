// Package recognition runs the periodic face-recognition loop: sample a
// frame, run one match, hold a first hit for a confirmation window, then
// commit it exactly once. The loop suspends while the door is busy and fully
// resets its memory on resume so a reopened door never inherits a stale
// detection.
package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartdoor"
	"smartdoor/internal/logger"
)

// Overlay colors (RGB): confirmed match vs. unknown face.
var (
	colorMatch   = smartdoor.RGB{R: 60, G: 220, B: 100}
	colorUnknown = smartdoor.RGB{R: 60, G: 180, B: 255}
)

// FrameSource supplies the most recent camera frame, pull-based.
type FrameSource interface {
	Latest() (smartdoor.Frame, bool)
}

// Match is one matcher decision. Box is nil when no face region was located.
type Match struct {
	Matched  bool
	Name     string
	Distance float64
	Box      *smartdoor.Box
}

// Matcher runs one recognition pass over a frame. The embedding/matching
// engine behind it is external to this core.
type Matcher interface {
	MatchWithBox(f smartdoor.Frame, threshold float64) (Match, error)
}

// DisabledMatcher is the integration point placeholder: it locates nothing
// and matches nothing. Deployments wire a real engine here.
type DisabledMatcher struct{}

func (DisabledMatcher) MatchWithBox(smartdoor.Frame, float64) (Match, error) {
	return Match{}, nil
}

// SettingsSource supplies the face-recognition toggle.
type SettingsSource interface {
	Get() (smartdoor.Settings, error)
}

// Config tunes the loop. Zero values fall back to defaults; the period is
// floored so a misconfigured tiny period cannot spin the CPU.
type Config struct {
	Period        time.Duration
	Threshold     float64
	MatchHold     time.Duration // confirmation window before a hit commits
	MatchCooldown time.Duration // min spacing between armed matches
	DenyCooldown  time.Duration // min spacing between "no match" statuses
}

const minPeriod = 300 * time.Millisecond

func (c Config) withDefaults() Config {
	if c.Period < minPeriod {
		c.Period = 800 * time.Millisecond
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.30
	}
	if c.MatchHold <= 0 {
		c.MatchHold = 2 * time.Second
	}
	if c.MatchCooldown <= 0 {
		c.MatchCooldown = 2 * time.Second
	}
	if c.DenyCooldown <= 0 {
		c.DenyCooldown = 5 * time.Second
	}
	return c
}

// Deps are the scheduler's injected collaborators and callbacks.
type Deps struct {
	Frames   FrameSource
	Matcher  Matcher
	Settings SettingsSource
	Log      *logger.Logger

	// OnStatus receives rate-limited, human-readable loop status.
	OnStatus func(status string)
	// OnHit fires exactly once per confirmed match; the scheduler pauses
	// itself right after, and the consumer is expected to Resume() later.
	OnHit func(name string, distance float64)
	// OnVisual publishes the live overlay; nil means no face region.
	OnVisual func(o *smartdoor.Overlay)
}

// Scheduler is the confirm-then-commit polling loop.
type Scheduler struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	mu           sync.Mutex
	paused       bool
	pendingName  string
	pendingDist  float64
	pendingSince time.Time
	lastMatch    time.Time
	lastDeny     time.Time
}

func NewScheduler(cfg Config, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:  cfg.withDefaults(),
		deps: deps,
		now:  time.Now,
	}
}

// Run ticks until ctx is canceled. Each tick measures its own work time and
// sleeps only the remainder of the period, so the loop does not drift.
// Cancellation is observed within at most one period.
func (s *Scheduler) Run(ctx context.Context) {
	s.status("face: ready")
	for {
		t0 := s.now()
		s.tick()
		rest := s.cfg.Period - s.now().Sub(t0)
		if rest < 0 {
			rest = 0
		}
		select {
		case <-ctx.Done():
			s.visual(nil)
			s.status("face: stopped")
			return
		case <-time.After(rest):
		}
	}
}

// Pause suspends recognition, clears any pending match, and clears the
// overlay. Idempotent and safe in any state.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.clearPendingLocked()
	s.mu.Unlock()
	s.visual(nil)
}

// Resume restarts recognition with a clean slate: pending match and both
// cooldowns are cleared, so door events fully reset recognition memory.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.clearPendingLocked()
	s.lastMatch = time.Time{}
	s.lastDeny = time.Time{}
	s.mu.Unlock()
	s.status("face: resumed")
}

func (s *Scheduler) clearPendingLocked() {
	s.pendingName = ""
	s.pendingDist = 0
	s.pendingSince = time.Time{}
}

// tick runs one recognition pass. Any failure inside is contained and
// reported as a status event; the next tick proceeds normally.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			if s.deps.Log != nil {
				s.deps.Log.Errorw("recognition_tick_panic", "panic", r)
			}
			s.status("face: error")
		}
	}()

	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		return
	}

	// Feature toggle: behaves like pause but stays resumable without an
	// explicit Resume(). A settings outage leaves the feature on.
	enabled := true
	if s.deps.Settings != nil {
		if st, err := s.deps.Settings.Get(); err == nil {
			enabled = st.FaceEnabled
		}
	}
	if !enabled {
		s.mu.Lock()
		s.clearPendingLocked()
		s.lastMatch = time.Time{}
		s.lastDeny = time.Time{}
		s.mu.Unlock()
		s.visual(nil)
		s.status("face: disabled")
		return
	}

	frame, ok := s.deps.Frames.Latest()
	if !ok {
		s.status("face: no frame")
		s.visual(nil)
		return
	}

	s.mu.Lock()
	pendingName, pendingSince := s.pendingName, s.pendingSince
	s.mu.Unlock()

	// Armed: recompute the overlay for live feedback but never re-decide.
	if pendingName != "" {
		holdLeft := s.cfg.MatchHold - s.now().Sub(pendingSince)
		if holdLeft <= 0 {
			// Commit only if the match is still pending and nothing paused
			// us mid-tick: a door already in motion must win this race.
			s.mu.Lock()
			name, dist := s.pendingName, s.pendingDist
			commit := !s.paused && name != ""
			s.clearPendingLocked()
			s.mu.Unlock()
			if commit {
				s.hit(name, dist)
				s.Pause()
			}
			return
		}
		s.status(fmt.Sprintf("face: %s — opening in %.1fs", pendingName, holdLeft.Seconds()))
		if m, err := s.deps.Matcher.MatchWithBox(frame, s.cfg.Threshold); err == nil && m.Box != nil {
			s.visual(&smartdoor.Overlay{Box: *m.Box, Label: pendingName, Color: colorMatch, TS: unix(s.now())})
		} else {
			s.visual(nil)
		}
		return
	}

	// Idle: run one match.
	m, err := s.deps.Matcher.MatchWithBox(frame, s.cfg.Threshold)
	if err != nil {
		if s.deps.Log != nil {
			s.deps.Log.Warnw("recognition_match_failed", "err", err)
		}
		s.status("face: error")
		return
	}

	if m.Box != nil {
		label, color := "Unknown", colorUnknown
		if m.Matched && m.Name != "" {
			label, color = m.Name, colorMatch
		}
		s.visual(&smartdoor.Overlay{Box: *m.Box, Label: label, Color: color, TS: unix(s.now())})
	} else {
		s.visual(nil)
	}

	now := s.now()
	if m.Matched && m.Name != "" {
		s.mu.Lock()
		armed := now.Sub(s.lastMatch) >= s.cfg.MatchCooldown
		if armed {
			s.lastMatch = now
			s.pendingName = m.Name
			s.pendingDist = m.Distance
			s.pendingSince = now
		}
		s.mu.Unlock()
		if armed {
			s.status(fmt.Sprintf("face: %s — opening in %.1fs", m.Name, s.cfg.MatchHold.Seconds()))
		}
		return
	}

	s.mu.Lock()
	deny := now.Sub(s.lastDeny) >= s.cfg.DenyCooldown
	if deny {
		s.lastDeny = now
	}
	s.mu.Unlock()
	if deny {
		s.status("face: no match")
	}
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Callback wrappers: a faulty consumer must not take the loop down.

func (s *Scheduler) status(msg string) {
	if s.deps.OnStatus == nil {
		return
	}
	defer func() { _ = recover() }()
	s.deps.OnStatus(msg)
}

func (s *Scheduler) visual(o *smartdoor.Overlay) {
	if s.deps.OnVisual == nil {
		return
	}
	defer func() { _ = recover() }()
	s.deps.OnVisual(o)
}

func (s *Scheduler) hit(name string, dist float64) {
	if s.deps.OnHit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && s.deps.Log != nil {
			s.deps.Log.Errorw("recognition_hit_panic", "panic", r)
		}
	}()
	s.deps.OnHit(name, dist)
}
