package repository

import (
	"database/sql"
	"time"

	"smartdoor"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*smartdoor.User, error)
}

// PasscodeRepo persists credential rows. Verification state (hashes, the
// used flag) lives here; plaintext only ever exists inside vault blobs.
// No context parameters: callers sit on the serial dispatch path, which is
// not request-scoped.
type PasscodeRepo interface {
	InsertMain(hash, masked string, enc []byte) (int64, error)
	InsertGuest(hash, masked string, enc []byte, oneTime bool, validUntil time.Time) (int64, error)
	MainHashExists(hash string) (bool, error)
	HasMain() (bool, error)
	ListActiveGuests(now time.Time) ([]smartdoor.GuestCode, error)
	RevealMain() ([]byte, error)
	RevealGuest(id int64) ([]byte, error)
	MarkUsed(id int64) error
	DeleteGuest(id int64) error
}

// AccessLogRepo is the append-mostly access trail.
type AccessLogRepo interface {
	Insert(e smartdoor.AccessEntry) error
	RecentGranted(limit int) ([]smartdoor.AccessEntry, error)
	ListMonth(year int, month time.Month) ([]smartdoor.AccessEntry, error)
	ClearMonth(year int, month time.Month) error
	Delete(id string) error
}

// SettingsRepo owns the single settings row (id=1).
type SettingsRepo interface {
	Get() (smartdoor.Settings, error)
	SetHoldTime(seconds int) error
	SetToggle(name string, enabled bool) error
	SetDoorState(state string) error
}

type Repository struct {
	Passcodes PasscodeRepo
	AccessLog AccessLogRepo
	Settings  SettingsRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Passcodes: NewPasscodeSQLite(db),
		AccessLog: NewAccessLogSQLite(db),
		Settings:  NewSettingsSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
