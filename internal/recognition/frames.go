package recognition

import (
	"sync"

	"smartdoor"
)

// LatestFrame holds the most recent published frame and serves it to any
// number of pullers. Older frames are dropped on publish: recognition only
// ever wants the freshest sample, never a backlog.
type LatestFrame struct {
	mu    sync.RWMutex
	frame smartdoor.Frame
	valid bool
}

func NewLatestFrame() *LatestFrame {
	return &LatestFrame{}
}

// Publish replaces the held frame.
func (l *LatestFrame) Publish(f smartdoor.Frame) {
	l.mu.Lock()
	l.frame = f
	l.valid = true
	l.mu.Unlock()
}

// Latest returns the held frame, if any.
func (l *LatestFrame) Latest() (smartdoor.Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame, l.valid
}

// Clear drops the held frame, e.g. when the camera source goes away.
func (l *LatestFrame) Clear() {
	l.mu.Lock()
	l.frame = smartdoor.Frame{}
	l.valid = false
	l.mu.Unlock()
}
