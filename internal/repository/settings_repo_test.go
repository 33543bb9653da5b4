package repository

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newSettingsMock(t *testing.T) (*SettingsSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	return NewSettingsSQLite(db), mock, func() { _ = db.Close() }
}

func TestSettingsGet_EnsuresRowThenSelects(t *testing.T) {
	t.Parallel()
	repo, mock, done := newSettingsMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(ensureSettingsRowSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectSettingsSQL)).
		WillReturnRows(sqlmock.NewRows([]string{
			"passcode_enabled", "fingerprint_enabled", "face_recognition_enabled", "hold_time_sec", "door_state",
		}).AddRow(true, false, true, 7, "close"))

	s, err := repo.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !s.PasscodeEnabled || s.FingerprintEnabled || !s.FaceEnabled {
		t.Fatalf("toggles wrong: %+v", s)
	}
	if s.HoldTimeSec != 7 || s.DoorState != "close" {
		t.Fatalf("values wrong: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestSettingsSetToggle_RejectsUnknownColumn(t *testing.T) {
	t.Parallel()
	repo, _, done := newSettingsMock(t)
	defer done()

	if err := repo.SetToggle("door_state", true); err == nil {
		t.Fatalf("non-boolean column accepted")
	}
	if err := repo.SetToggle("passcode_enabled; DROP TABLE settings", true); err == nil {
		t.Fatalf("injection-shaped name accepted")
	}
}

func TestSettingsSetToggle_UpdatesAllowedColumn(t *testing.T) {
	t.Parallel()
	repo, mock, done := newSettingsMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE settings SET face_recognition_enabled = ? WHERE id = 1`)).
		WithArgs(false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetToggle("face_recognition_enabled", false); err != nil {
		t.Fatalf("SetToggle: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestSettingsSetHoldTime_ClampsNegative(t *testing.T) {
	t.Parallel()
	repo, mock, done := newSettingsMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(setHoldTimeSQL)).
		WithArgs(0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetHoldTime(-5); err != nil {
		t.Fatalf("SetHoldTime: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestSettingsSetDoorState_ValidatesValue(t *testing.T) {
	t.Parallel()
	repo, mock, done := newSettingsMock(t)
	defer done()

	if err := repo.SetDoorState("ajar"); err == nil {
		t.Fatalf("invalid state accepted")
	}

	mock.ExpectExec(regexp.QuoteMeta(setDoorStateSQL)).
		WithArgs("open").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetDoorState("open"); err != nil {
		t.Fatalf("SetDoorState: %v", err)
	}
}
