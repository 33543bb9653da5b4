package door

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"smartdoor"
	"smartdoor/internal/logger"
)

// Commands sent to the embedded controller. State changes are driven only by
// subsequent inbound lines, never by the act of sending.
const (
	cmdOpenManual   = "open manual"
	cmdOpenFace     = "open face"
	cmdOpenPasscode = "open passcode"
	cmdClose        = "close"
)

// Inbound line vocabulary. Door and finger events are substring-matched;
// the keypad line is prefix-matched so the code can be sliced off.
const (
	passcodePrefix    = "Inform passcode"
	patFingerFound    = "finger found"
	patFingerNotFound = "finger not found"
	patDoorOpening    = "door opening"
	patDoorOpened     = "door opened"
	patDoorClosing    = "door closing"
	patDoorClosed     = "door closed"
)

var fingerIDPattern = regexp.MustCompile(`ID[: ]+(\d+)`)

// LineSender is the outbound half of the transport.
type LineSender interface {
	Send(line string)
	IsConnected() bool
}

// CredentialStore answers passcode checks. The controller only reads and
// requests a single mutation (MarkUsed).
type CredentialStore interface {
	VerifyMain(code string) (bool, error)
	ListActiveGuests() ([]smartdoor.GuestCode, error)
	RevealGuest(id int64) (string, error)
	MarkUsed(id int64) error
}

// AccessLog records completed verification attempts, best-effort.
type AccessLog interface {
	Record(e smartdoor.AccessEntry) error
}

// SettingsSource supplies the runtime toggles and hold time.
type SettingsSource interface {
	Get() (smartdoor.Settings, error)
}

// Deps are the controller's injected collaborators.
type Deps struct {
	Credentials CredentialStore
	AccessLog   AccessLog
	Settings    SettingsSource
	Log         *logger.Logger

	// OnEvent is the primary per-line callback, run after internal logic
	// and before secondary listeners.
	OnEvent func(line string)
	// OnStateChange fires on every door state transition. Wired to the
	// recognition scheduler's pause/resume and the persisted door state.
	OnStateChange func(s State)
}

// Controller is the door protocol state machine. It interprets inbound
// lines, issues open/close commands, owns the auto-close timer, and runs the
// passcode verification pipeline. All mutation happens on the dispatch path
// or inside the timer callback, both serialized by c.mu.
type Controller struct {
	sender LineSender
	deps   Deps
	log    *logger.Logger

	mu       sync.Mutex
	state    State
	holdTime int // seconds; <=0 disables auto-close
	timer    *time.Timer
	timerGen uint64

	lmu       sync.Mutex
	listeners []func(line string)
}

// New builds a controller around an already-open transport. The initial hold
// time comes from settings when the store can answer, otherwise the provided
// default.
func New(sender LineSender, defaultHoldSec int, deps Deps) *Controller {
	c := &Controller{
		sender:   sender,
		deps:     deps,
		log:      deps.Log,
		state:    StateClosed,
		holdTime: maxInt(0, defaultHoldSec),
	}
	if deps.Settings != nil {
		if s, err := deps.Settings.Get(); err == nil && s.HoldTimeSec >= 0 {
			c.holdTime = s.HoldTimeSec
		}
	}
	return c
}

func maxInt(a, b int) int {
	if a >= b {
		return a
	}
	return b
}

// ---------- public command API ----------

// IsConnected reports whether the underlying transport has a device.
func (c *Controller) IsConnected() bool {
	return c.sender != nil && c.sender.IsConnected()
}

// OpenDoor requests a manual open. Fire-and-forget.
func (c *Controller) OpenDoor() { c.send(cmdOpenManual) }

// OpenFace requests an open on the face-recognition channel.
func (c *Controller) OpenFace() { c.send(cmdOpenFace) }

// CloseDoor requests a close.
func (c *Controller) CloseDoor() { c.send(cmdClose) }

// Send passes an opaque provisioning command through unchanged
// (e.g. "enroll", "delete all", "library").
func (c *Controller) Send(cmd string) { c.send(cmd) }

// State returns the current door state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HoldTime returns the configured auto-close delay in seconds.
func (c *Controller) HoldTime() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holdTime
}

// SetHoldTime updates the auto-close delay at runtime. Negative values clamp
// to zero (auto-close disabled). An already-armed timer keeps its old
// deadline; the new value applies from the next "door opened".
func (c *Controller) SetHoldTime(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdTime = maxInt(0, seconds)
}

// AddListener registers a secondary per-line callback. Listeners run after
// the primary callback, in registration order.
func (c *Controller) AddListener(cb func(line string)) {
	if cb == nil {
		return
	}
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.listeners = append(c.listeners, cb)
}

// Shutdown cancels any pending auto-close. The transport itself is closed by
// whoever opened it.
func (c *Controller) Shutdown() {
	c.cancelAutoClose()
}

func (c *Controller) send(line string) {
	if c.sender == nil {
		return
	}
	c.sender.Send(line)
}

// ---------- line dispatch ----------

// HandleLine is the transport dispatcher: internal logic first, then the
// primary callback, then every secondary listener in registration order.
// A fault in any stage is contained so later stages and the next line still
// run.
func (c *Controller) HandleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.supervise("logic", func() { c.processLine(line) })
	if c.deps.OnEvent != nil {
		c.supervise("primary", func() { c.deps.OnEvent(line) })
	}
	c.lmu.Lock()
	listeners := make([]func(string), len(c.listeners))
	copy(listeners, c.listeners)
	c.lmu.Unlock()
	for _, cb := range listeners {
		cb := cb
		c.supervise("listener", func() { cb(line) })
	}
}

// supervise runs one dispatch stage with panic containment.
func (c *Controller) supervise(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil && c.log != nil {
			c.log.Errorw("door_dispatch_stage_panic", "stage", stage, "panic", r)
		}
	}()
	fn()
}

func (c *Controller) processLine(line string) {
	// Keypad entry: "Inform passcode 1234" or "Inform passcode: 1234".
	if strings.HasPrefix(line, passcodePrefix) {
		code := strings.TrimSpace(strings.TrimPrefix(line, passcodePrefix))
		code = strings.TrimSpace(strings.TrimPrefix(code, ":"))
		if code != "" {
			c.handlePasscode(code)
		}
		return
	}

	// Fingerprint results are informational: the device already decided and
	// opens autonomously on a match, so no command is sent either way.
	if strings.Contains(line, patFingerNotFound) {
		c.record(smartdoor.AccessEntry{Method: smartdoor.MethodFingerprint, Result: smartdoor.ResultDenied})
		return
	}
	if strings.Contains(line, patFingerFound) {
		if m := fingerIDPattern.FindStringSubmatch(line); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil && c.log != nil {
				c.log.Infow("fingerprint_match", "finger_id", id)
			}
		}
		c.record(smartdoor.AccessEntry{Method: smartdoor.MethodFingerprint, Result: smartdoor.ResultGranted})
		return
	}

	switch {
	case strings.Contains(line, patDoorOpening):
		c.setState(StateOpening)
	case strings.Contains(line, patDoorOpened):
		c.setState(StateOpenHold)
		c.armAutoClose()
	case strings.Contains(line, patDoorClosing):
		c.cancelAutoClose()
		c.setState(StateClosing)
	case strings.Contains(line, patDoorClosed):
		c.cancelAutoClose()
		c.setState(StateClosed)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.deps.OnStateChange != nil {
		c.supervise("state-change", func() { c.deps.OnStateChange(s) })
	}
}

// ---------- auto-close timer ----------

// armAutoClose replaces any outstanding timer with a fresh one (the later
// arm wins). The generation counter makes cancel/fire race-free: a timer
// whose generation no longer matches never sends.
func (c *Controller) armAutoClose() {
	c.mu.Lock()
	c.timerGen++
	gen := c.timerGen
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	hold := c.holdTime
	if hold > 0 {
		c.timer = time.AfterFunc(time.Duration(hold)*time.Second, func() { c.autoClose(gen) })
	}
	c.mu.Unlock()
}

func (c *Controller) cancelAutoClose() {
	c.mu.Lock()
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

func (c *Controller) autoClose(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()
	c.supervise("auto-close", func() { c.CloseDoor() })
}

// ---------- passcode pipeline ----------

// maskCode is what gets written to the access log. Kept equal to the entered
// code so the UI can show guest codes as-is; change here for ****-style
// masking.
func maskCode(code string) string { return code }

func (c *Controller) handlePasscode(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}

	// Toggle check. A settings outage defaults to enabled; the credential
	// store still has to answer positively before anything opens.
	enabled := true
	if c.deps.Settings != nil {
		if s, err := c.deps.Settings.Get(); err == nil {
			enabled = s.PasscodeEnabled
		}
	}
	if !enabled {
		c.record(smartdoor.AccessEntry{
			Method:     smartdoor.MethodPasscode,
			Result:     smartdoor.ResultBlocked,
			MaskedCode: maskCode(code),
		})
		return
	}

	ok, matched := c.verify(code)

	if ok {
		c.send(cmdOpenPasscode)
		c.record(smartdoor.AccessEntry{
			Method:     smartdoor.MethodPasscode,
			Result:     smartdoor.ResultGranted,
			MaskedCode: maskCode(code),
		})
		if c.log != nil {
			c.log.Infow("passcode_granted", "guest", matched != nil)
		}
		return
	}
	c.record(smartdoor.AccessEntry{
		Method:     smartdoor.MethodPasscode,
		Result:     smartdoor.ResultDenied,
		MaskedCode: maskCode(code),
	})
}

// verify checks main first (main always wins over guests), then active
// guests in store order, first match wins. Every store failure degrades to
// "no match" so access fails closed.
func (c *Controller) verify(code string) (bool, *smartdoor.GuestCode) {
	if c.deps.Credentials == nil {
		return false, nil
	}

	if ok, err := c.deps.Credentials.VerifyMain(code); err == nil && ok {
		return true, nil
	} else if err != nil && c.log != nil {
		c.log.Warnw("passcode_main_check_failed", "err", err)
	}

	guests, err := c.deps.Credentials.ListActiveGuests()
	if err != nil {
		if c.log != nil {
			c.log.Warnw("passcode_guest_list_failed", "err", err)
		}
		return false, nil
	}
	for i := range guests {
		plain, err := c.deps.Credentials.RevealGuest(guests[i].ID)
		if err != nil || plain == "" {
			continue
		}
		if plain != code {
			continue
		}
		if guests[i].IsOneTime {
			// A one-time code must never validate twice. If the used flag
			// cannot be persisted the grant itself is withheld.
			if err := c.deps.Credentials.MarkUsed(guests[i].ID); err != nil {
				if c.log != nil {
					c.log.Errorw("passcode_mark_used_failed", "id", guests[i].ID, "err", err)
				}
				return false, nil
			}
		}
		return true, &guests[i]
	}
	return false, nil
}

func (c *Controller) record(e smartdoor.AccessEntry) {
	if c.deps.AccessLog == nil {
		return
	}
	if err := c.deps.AccessLog.Record(e); err != nil && c.log != nil {
		c.log.Errorw("access_log_record_failed", "method", e.Method, "result", e.Result, "err", err)
	}
}
