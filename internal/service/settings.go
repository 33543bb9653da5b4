package service

import (
	"sync"

	"smartdoor"
	"smartdoor/internal/repository"
)

// SettingsService fronts the settings row with a last-known-good snapshot:
// if the store cannot answer, callers get the previous snapshot (or the safe
// defaults) instead of an error, so a storage outage never crashes the
// dispatch path or silently disables entry.
type SettingsService struct {
	repo repository.SettingsRepo

	mu       sync.Mutex
	last     smartdoor.Settings
	haveLast bool
}

func NewSettingsService(repo repository.SettingsRepo) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get() (smartdoor.Settings, error) {
	snap, err := s.repo.Get()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.haveLast {
			return s.last, nil
		}
		return smartdoor.DefaultSettings(), nil
	}
	s.last = snap
	s.haveLast = true
	return snap, nil
}

func (s *SettingsService) SetHoldTime(seconds int) error {
	if err := s.repo.SetHoldTime(seconds); err != nil {
		return err
	}
	s.mu.Lock()
	if s.haveLast {
		if seconds < 0 {
			seconds = 0
		}
		s.last.HoldTimeSec = seconds
	}
	s.mu.Unlock()
	return nil
}

func (s *SettingsService) SetToggle(name string, enabled bool) error {
	if err := s.repo.SetToggle(name, enabled); err != nil {
		return err
	}
	s.mu.Lock()
	if s.haveLast {
		switch name {
		case "passcode_enabled":
			s.last.PasscodeEnabled = enabled
		case "fingerprint_enabled":
			s.last.FingerprintEnabled = enabled
		case "face_recognition_enabled":
			s.last.FaceEnabled = enabled
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *SettingsService) SetDoorState(state string) error {
	if err := s.repo.SetDoorState(state); err != nil {
		return err
	}
	s.mu.Lock()
	if s.haveLast {
		s.last.DoorState = state
	}
	s.mu.Unlock()
	return nil
}
