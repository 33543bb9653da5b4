package repository

import (
	"database/sql"
	"fmt"

	"smartdoor"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite { return &SettingsSQLite{db: db} }

var _ SettingsRepo = (*SettingsSQLite)(nil)

const (
	ensureSettingsRowSQL = `INSERT OR IGNORE INTO settings (id) VALUES (1)`

	selectSettingsSQL = `
		SELECT passcode_enabled, fingerprint_enabled, face_recognition_enabled, hold_time_sec, door_state
		FROM settings WHERE id = 1
	`

	setHoldTimeSQL  = `UPDATE settings SET hold_time_sec = ? WHERE id = 1`
	setDoorStateSQL = `UPDATE settings SET door_state = ? WHERE id = 1`
)

// toggleColumns is the allowlist of boolean settings reachable through
// SetToggle. Column names are interpolated, so the list is closed.
var toggleColumns = map[string]bool{
	"passcode_enabled":         true,
	"fingerprint_enabled":      true,
	"face_recognition_enabled": true,
}

// Get reads the settings row, creating it with defaults on first touch.
func (r *SettingsSQLite) Get() (smartdoor.Settings, error) {
	if _, err := r.db.Exec(ensureSettingsRowSQL); err != nil {
		return smartdoor.Settings{}, fmt.Errorf("ensure settings row: %w", err)
	}

	var s smartdoor.Settings
	err := r.db.QueryRow(selectSettingsSQL).Scan(
		&s.PasscodeEnabled,
		&s.FingerprintEnabled,
		&s.FaceEnabled,
		&s.HoldTimeSec,
		&s.DoorState,
	)
	if err != nil {
		return smartdoor.Settings{}, fmt.Errorf("select settings: %w", err)
	}
	return s, nil
}

func (r *SettingsSQLite) SetHoldTime(seconds int) error {
	if seconds < 0 {
		seconds = 0
	}
	_, err := r.db.Exec(setHoldTimeSQL, seconds)
	return err
}

func (r *SettingsSQLite) SetToggle(name string, enabled bool) error {
	if !toggleColumns[name] {
		return fmt.Errorf("unknown settings toggle %q", name)
	}
	_, err := r.db.Exec(fmt.Sprintf(`UPDATE settings SET %s = ? WHERE id = 1`, name), enabled)
	return err
}

func (r *SettingsSQLite) SetDoorState(state string) error {
	if state != "open" && state != "close" {
		return fmt.Errorf("invalid door state %q", state)
	}
	_, err := r.db.Exec(setDoorStateSQL, state)
	return err
}
