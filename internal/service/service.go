package service

import (
	"time"

	"smartdoor"
	"smartdoor/internal/repository"
	"smartdoor/internal/vault"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Passcodes manages credentials and answers the controller's verification
// pipeline (it satisfies door.CredentialStore).
type Passcodes interface {
	SetMain(code string) error
	CreateGuest(code string, minutesValid int, oneTime bool) (int64, error)
	HasMain() (bool, error)
	ListActiveGuests() ([]smartdoor.GuestCode, error)
	VerifyMain(code string) (bool, error)
	RevealMain() (string, error)
	RevealGuest(id int64) (string, error)
	MarkUsed(id int64) error
	DeleteGuest(id int64) error
}

// AccessLog records attempts and serves the log views (it satisfies
// door.AccessLog).
type AccessLog interface {
	Record(e smartdoor.AccessEntry) error
	RecentOpenings(limit int) ([]smartdoor.AccessEntry, error)
	ListMonth(year int, month time.Month) ([]smartdoor.AccessEntry, error)
	ClearMonth(year int, month time.Month) error
	Delete(id string) error
}

// Settings exposes the runtime toggles with a last-known-good fallback (it
// satisfies door.SettingsSource and recognition.SettingsSource).
type Settings interface {
	Get() (smartdoor.Settings, error)
	SetHoldTime(seconds int) error
	SetToggle(name string, enabled bool) error
	SetDoorState(state string) error
}

// Service aggregates all sub-services.
type Service struct {
	Passcodes
	AccessLog
	Settings
	Authorization
}

// NewService wires the repository layer into concrete services. The vault may
// be nil (reveal disabled); signingKey signs operator JWTs.
func NewService(repos *repository.Repository, v *vault.Vault, signingKey string) *Service {
	return &Service{
		Passcodes:     NewPasscodeService(repos.Passcodes, v),
		AccessLog:     NewAccessLogService(repos.AccessLog),
		Settings:      NewSettingsService(repos.Settings),
		Authorization: NewAuthService(repos.Auth, signingKey),
	}
}
