package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMock(t *testing.T) (*PasscodeSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	return NewPasscodeSQLite(db), mock, func() { _ = db.Close() }
}

func TestInsertMain_DemotesThenInsertsInOneTx(t *testing.T) {
	t.Parallel()
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(demoteMainSQL)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertMainSQL)).
		WithArgs("hash", "1234", []byte("enc"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	id, err := repo.InsertMain("hash", "1234", []byte("enc"))
	if err != nil {
		t.Fatalf("InsertMain: %v", err)
	}
	if id != 3 {
		t.Fatalf("id=%d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestInsertMain_RollsBackOnInsertError(t *testing.T) {
	t.Parallel()
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(demoteMainSQL)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertMainSQL)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := repo.InsertMain("hash", "1234", nil); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestMainHashExists(t *testing.T) {
	t.Parallel()
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(mainHashExistsSQL)).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	ok, err := repo.MainHashExists("deadbeef")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(mainHashExistsSQL)).
		WithArgs("cafebabe").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	ok, err = repo.MainHashExists("cafebabe")
	if err != nil || ok {
		t.Fatalf("no-row case: ok=%v err=%v", ok, err)
	}
}

func TestListActiveGuests_ComputesRemainingSeconds(t *testing.T) {
	t.Parallel()
	repo, mock, done := newMock(t)
	defer done()

	now := time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "code_masked", "is_one_time", "valid_until"}).
		AddRow(int64(1), "1111", false, now.Add(90*time.Second)).
		AddRow(int64(2), "2222", true, now.Add(10*time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta(listActiveGuestsSQL)).
		WithArgs(now.Format(sqliteTimeLayout)).
		WillReturnRows(rows)

	guests, err := repo.ListActiveGuests(now)
	if err != nil {
		t.Fatalf("ListActiveGuests: %v", err)
	}
	if len(guests) != 2 {
		t.Fatalf("len=%d", len(guests))
	}
	if guests[0].ID != 1 || guests[0].RemainSec != 90 {
		t.Fatalf("guest 0: %+v", guests[0])
	}
	if guests[1].ID != 2 || !guests[1].IsOneTime || guests[1].RemainSec != 600 {
		t.Fatalf("guest 1: %+v", guests[1])
	}
}

func TestMarkUsed_SecondCallReportsAlreadyUsed(t *testing.T) {
	t.Parallel()
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(markUsedSQL)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.MarkUsed(9); err != nil {
		t.Fatalf("first MarkUsed: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(markUsedSQL)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.MarkUsed(9); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("second MarkUsed err=%v, want ErrAlreadyUsed", err)
	}
}

func TestRevealMain_NoRowIsNotAnError(t *testing.T) {
	t.Parallel()
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(revealMainSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"code_enc"}))
	blob, err := repo.RevealMain()
	if err != nil {
		t.Fatalf("RevealMain: %v", err)
	}
	if blob != nil {
		t.Fatalf("expected nil blob, got %v", blob)
	}
}
