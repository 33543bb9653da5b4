package door

// State is the door protocol state. It is owned exclusively by the
// Controller and mutated only by recognized inbound lines.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpenHold
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpenHold:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
