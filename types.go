package smartdoor

import "time"

// Access methods and results recorded in the access log.
const (
	MethodPasscode    = "passcode"
	MethodFingerprint = "fingerprint"
	MethodFace        = "face"

	ResultGranted = "granted"
	ResultDenied  = "denied"
	ResultBlocked = "blocked"
)

// AccessEntry is a single access-log record. Exactly one is written per
// completed verification attempt.
type AccessEntry struct {
	EntryID    string    `json:"entry_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Method     string    `json:"method"` // passcode | fingerprint | face
	Result     string    `json:"result"` // granted | denied | blocked
	MaskedCode string    `json:"masked_code,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// Passcode is a stored credential row. The main passcode has no validity
// window; guest codes expire at ValidUntil and one-time codes flip Used on
// their first successful match.
type Passcode struct {
	ID         int64      `json:"id"`
	Masked     string     `json:"masked"`
	IsMain     bool       `json:"is_main"`
	IsOneTime  bool       `json:"is_one_time"`
	Used       bool       `json:"used"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// GuestCode is the active-guest listing shape consumed by the verification
// pipeline and the UI (id, masked code, remaining validity).
type GuestCode struct {
	ID        int64  `json:"id"`
	Masked    string `json:"masked"`
	IsOneTime bool   `json:"is_one_time"`
	RemainSec int    `json:"remain_sec"`
}

// Settings is the single-row runtime configuration.
type Settings struct {
	PasscodeEnabled    bool   `json:"passcode_enabled"`
	FingerprintEnabled bool   `json:"fingerprint_enabled"`
	FaceEnabled        bool   `json:"face_recognition_enabled"`
	HoldTimeSec        int    `json:"hold_time_sec"`
	DoorState          string `json:"door_state"` // open | close
}

// DefaultSettings is the fail-safe snapshot used when the settings store
// cannot answer: features stay enabled so a store outage never disables entry.
func DefaultSettings() Settings {
	return Settings{
		PasscodeEnabled:    true,
		FingerprintEnabled: true,
		FaceEnabled:        true,
		HoldTimeSec:        5,
		DoorState:          "close",
	}
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
}

// Frame is one camera frame as handed to the face matcher. Pixel decoding is
// the matcher's concern; the core only moves frames around.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Box is a face bounding box in frame coordinates.
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// RGB is an overlay color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Overlay is the live-feedback annotation published by the recognition loop.
// A nil *Overlay means "no face region located".
type Overlay struct {
	Box   Box     `json:"box"`
	Label string  `json:"label"`
	Color RGB     `json:"color"`
	TS    float64 `json:"ts"` // unix seconds
}
