package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartdoor"
)

type PasscodeSQLite struct {
	db *sql.DB
}

func NewPasscodeSQLite(db *sql.DB) *PasscodeSQLite {
	return &PasscodeSQLite{db: db}
}

var _ PasscodeRepo = (*PasscodeSQLite)(nil)

// ErrAlreadyUsed reports a MarkUsed on a code whose used flag was already
// set. Surfacing this keeps the one-time invariant visible to callers.
var ErrAlreadyUsed = errors.New("passcode already used")

const (
	demoteMainSQL = `UPDATE passcodes SET is_main=0 WHERE is_main=1`

	insertMainSQL = `
		INSERT INTO passcodes (code_hash, code_masked, code_enc, is_main, is_one_time, used, created_at)
		VALUES (?, ?, ?, 1, 0, 0, ?)
	`

	insertGuestSQL = `
		INSERT INTO passcodes (code_hash, code_masked, code_enc, is_main, is_one_time, used, valid_until, created_at)
		VALUES (?, ?, ?, 0, ?, 0, ?, ?)
	`

	mainHashExistsSQL = `SELECT 1 FROM passcodes WHERE is_main=1 AND code_hash=? LIMIT 1`
	hasMainSQL        = `SELECT 1 FROM passcodes WHERE is_main=1 LIMIT 1`

	// Guests are active while unexpired and unused; store order is
	// expiry-ascending, id-ascending. Verification walks this exact order.
	listActiveGuestsSQL = `
		SELECT id, code_masked, is_one_time, valid_until
		FROM passcodes
		WHERE is_main=0 AND used=0
		  AND valid_until IS NOT NULL AND valid_until >= ?
		ORDER BY valid_until ASC, id ASC
	`

	revealMainSQL  = `SELECT code_enc FROM passcodes WHERE is_main=1 ORDER BY id DESC LIMIT 1`
	revealGuestSQL = `SELECT code_enc FROM passcodes WHERE id=? AND is_main=0 LIMIT 1`
	markUsedSQL    = `UPDATE passcodes SET used=1 WHERE id=? AND used=0`
	deleteGuestSQL = `DELETE FROM passcodes WHERE id=? AND is_main=0`
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// InsertMain demotes any current main passcode and inserts the new one in a
// single transaction, so there is never more than one main.
func (r *PasscodeSQLite) InsertMain(hash, masked string, enc []byte) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert main: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(demoteMainSQL); err != nil {
		return 0, fmt.Errorf("demote previous main: %w", err)
	}
	res, err := tx.Exec(insertMainSQL, hash, masked, enc, time.Now().UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("insert main passcode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert main: %w", err)
	}
	return id, nil
}

func (r *PasscodeSQLite) InsertGuest(hash, masked string, enc []byte, oneTime bool, validUntil time.Time) (int64, error) {
	res, err := r.db.Exec(insertGuestSQL,
		hash,
		masked,
		enc,
		oneTime,
		validUntil.UTC().Format(sqliteTimeLayout),
		time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert guest passcode: %w", err)
	}
	return res.LastInsertId()
}

func (r *PasscodeSQLite) MainHashExists(hash string) (bool, error) {
	return r.exists(mainHashExistsSQL, hash)
}

func (r *PasscodeSQLite) HasMain() (bool, error) {
	return r.exists(hasMainSQL)
}

func (r *PasscodeSQLite) exists(query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRow(query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PasscodeSQLite) ListActiveGuests(now time.Time) ([]smartdoor.GuestCode, error) {
	rows, err := r.db.Query(listActiveGuestsSQL, now.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("list active guests: %w", err)
	}
	defer rows.Close()

	out := make([]smartdoor.GuestCode, 0, 8)
	for rows.Next() {
		var (
			g          smartdoor.GuestCode
			validUntil time.Time
		)
		if err := rows.Scan(&g.ID, &g.Masked, &g.IsOneTime, &validUntil); err != nil {
			return nil, err
		}
		if remain := validUntil.Sub(now.UTC()); remain > 0 {
			g.RemainSec = int(remain.Seconds())
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RevealMain returns the encrypted blob of the main passcode, nil when no
// main exists or no blob was stored.
func (r *PasscodeSQLite) RevealMain() ([]byte, error) {
	return r.revealRow(revealMainSQL)
}

func (r *PasscodeSQLite) RevealGuest(id int64) ([]byte, error) {
	return r.revealRow(revealGuestSQL, id)
}

func (r *PasscodeSQLite) revealRow(query string, args ...any) ([]byte, error) {
	var enc []byte
	err := r.db.QueryRow(query, args...).Scan(&enc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// MarkUsed flips the used flag exactly once; a second call for the same id
// returns ErrAlreadyUsed.
func (r *PasscodeSQLite) MarkUsed(id int64) error {
	res, err := r.db.Exec(markUsedSQL, id)
	if err != nil {
		return fmt.Errorf("mark passcode %d used: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyUsed
	}
	return nil
}

func (r *PasscodeSQLite) DeleteGuest(id int64) error {
	_, err := r.db.Exec(deleteGuestSQL, id)
	return err
}
