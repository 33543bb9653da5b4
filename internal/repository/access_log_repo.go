package repository

import (
	"database/sql"
	"fmt"
	"time"

	"smartdoor"

	"github.com/google/uuid"
)

type AccessLogSQLite struct {
	db *sql.DB
}

func NewAccessLogSQLite(db *sql.DB) *AccessLogSQLite { return &AccessLogSQLite{db: db} }

var _ AccessLogRepo = (*AccessLogSQLite)(nil)

const (
	insertAccessSQL = `
		INSERT INTO access_log (id, occurred_at, method, result, passcode_masked, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	recentGrantedSQL = `
		SELECT id, occurred_at, method, result, passcode_masked, confidence
		FROM access_log
		WHERE result = 'granted'
		ORDER BY occurred_at DESC
		LIMIT ?
	`

	listMonthSQL = `
		SELECT id, occurred_at, method, result, passcode_masked, confidence
		FROM access_log
		WHERE strftime('%Y-%m', occurred_at) = ?
		ORDER BY occurred_at DESC, id DESC
	`

	clearMonthSQL  = `DELETE FROM access_log WHERE strftime('%Y-%m', occurred_at) = ?`
	deleteEntrySQL = `DELETE FROM access_log WHERE id = ?`
)

// Insert appends one entry. Missing id/timestamp are filled in, matching the
// invariant that exactly one record exists per completed attempt.
func (r *AccessLogSQLite) Insert(e smartdoor.AccessEntry) error {
	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var masked any
	if e.MaskedCode != "" {
		masked = e.MaskedCode
	}
	var confidence any
	if e.Confidence != nil {
		confidence = *e.Confidence
	}

	_, err := r.db.Exec(insertAccessSQL,
		e.EntryID,
		e.OccurredAt.Format(sqliteTimeLayout),
		e.Method,
		e.Result,
		masked,
		confidence,
	)
	if err != nil {
		return fmt.Errorf("insert access entry: %w", err)
	}
	return nil
}

// RecentGranted returns the latest granted openings, newest first.
func (r *AccessLogSQLite) RecentGranted(limit int) ([]smartdoor.AccessEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(recentGrantedSQL, limit)
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

func (r *AccessLogSQLite) ListMonth(year int, month time.Month) ([]smartdoor.AccessEntry, error) {
	return r.query(listMonthSQL, monthKey(year, month))
}

func (r *AccessLogSQLite) ClearMonth(year int, month time.Month) error {
	_, err := r.db.Exec(clearMonthSQL, monthKey(year, month))
	return err
}

func (r *AccessLogSQLite) Delete(id string) error {
	_, err := r.db.Exec(deleteEntrySQL, id)
	return err
}

func (r *AccessLogSQLite) query(q string, args ...any) ([]smartdoor.AccessEntry, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]smartdoor.AccessEntry, 0, 32)
	for rows.Next() {
		var (
			e          smartdoor.AccessEntry
			masked     sql.NullString
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&e.EntryID, &e.OccurredAt, &e.Method, &e.Result, &masked, &confidence); err != nil {
			return nil, err
		}
		e.OccurredAt = e.OccurredAt.UTC()
		if masked.Valid {
			e.MaskedCode = masked.String
		}
		if confidence.Valid {
			v := confidence.Float64
			e.Confidence = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
