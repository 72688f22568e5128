package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/models"
)

var _ domain.AppointmentStore = (*DB)(nil)

const appointmentColumns = `id, service_id, service_name, service_duration, service_online, service_in_person,
            staff_id, staff_name, start_at, end_at, time_zone, status, comments, meeting_link, created_at`

// ReplaceAppointments swaps one session's cached history for a fresh copy from
// the backend and marks that session's cache fresh. Other sessions are untouched.
func (db *DB) ReplaceAppointments(ctx context.Context, sessionID int64, appointments []models.Appointment) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear appointments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO appointments (session_id, `+appointmentColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range appointments {
		a := &appointments[i]
		var createdAt any
		if !a.CreatedAt.IsZero() {
			createdAt = a.CreatedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			a.ID,
			a.Service.ID,
			a.Service.Name,
			a.Service.DurationMinutes,
			a.Service.Online,
			a.Service.InPerson,
			a.StaffMember.ID,
			a.StaffMember.Name,
			a.Start.UTC(),
			a.End.UTC(),
			a.TimeZone,
			a.Status,
			a.Comments,
			a.MeetingLink,
			createdAt,
		); err != nil {
			return fmt.Errorf("insert appointment %s: %w", a.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_state (session_id, refreshed_at, stale) VALUES (?, ?, 0)
        ON CONFLICT(session_id) DO UPDATE SET refreshed_at = excluded.refreshed_at, stale = 0`,
		sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update cache state: %w", err)
	}

	return tx.Commit()
}

// ListAppointments returns one session's cached history ordered by start time.
func (db *DB) ListAppointments(ctx context.Context, sessionID int64) ([]models.Appointment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE session_id = ? ORDER BY start_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

// GetAppointment returns nil without error when the id is not cached for the session.
func (db *DB) GetAppointment(ctx context.Context, sessionID int64, id string) (*models.Appointment, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE session_id = ? AND id = ?`, sessionID, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkStale forces the session's next read through the service to refetch from the backend.
func (db *DB) MarkStale(ctx context.Context, sessionID int64) error {
	_, err := db.db.ExecContext(ctx, `UPDATE cache_state SET stale = 1 WHERE session_id = ?`, sessionID)
	return err
}

// CacheState reports when the session's cache was last refreshed and whether it
// was invalidated since. A session that was never refreshed is stale.
func (db *DB) CacheState(ctx context.Context, sessionID int64) (refreshedAt time.Time, stale bool, err error) {
	var ts sql.NullTime
	err = db.db.QueryRowContext(ctx,
		`SELECT refreshed_at, stale FROM cache_state WHERE session_id = ?`, sessionID).Scan(&ts, &stale)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, true, nil
	}
	if err != nil {
		return time.Time{}, true, err
	}
	if ts.Valid {
		refreshedAt = ts.Time.UTC()
	}
	return refreshedAt, stale, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (models.Appointment, error) {
	var (
		a           models.Appointment
		timeZone    sql.NullString
		comments    sql.NullString
		meetingLink sql.NullString
		createdAt   sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.Service.ID,
		&a.Service.Name,
		&a.Service.DurationMinutes,
		&a.Service.Online,
		&a.Service.InPerson,
		&a.StaffMember.ID,
		&a.StaffMember.Name,
		&a.Start,
		&a.End,
		&timeZone,
		&a.Status,
		&comments,
		&meetingLink,
		&createdAt,
	)
	if err != nil {
		return models.Appointment{}, err
	}
	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	a.TimeZone = timeZone.String
	a.Comments = comments.String
	a.MeetingLink = meetingLink.String
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time.UTC()
	}
	return a, nil
}
