package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/staff-clock/internal/database"
	"github.com/lib/pq"
)

// ClockEventRepository stores verified clock events in employee_attendance
type ClockEventRepository struct {
	pool *Pool
}

// NewClockEventRepository creates a new PostgreSQL clock event repository
func NewClockEventRepository(pool *Pool) *ClockEventRepository {
	return &ClockEventRepository{pool: pool}
}

// SaveClockEvent inserts ev unless its attempt was already recorded
func (r *ClockEventRepository) SaveClockEvent(ctx context.Context, ev *database.StoredClockEvent) (bool, error) {
	query := `
		INSERT INTO employee_attendance
			(employee_id, type, latitude, longitude, distance_meters, photo, attempt_id, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (attempt_id) DO NOTHING
		RETURNING id, timestamp
	`

	err := r.pool.QueryRow(ctx, query,
		ev.EmployeeID, ev.EventType, ev.Lat, ev.Lng, ev.DistanceMeters, ev.Photo, ev.AttemptID, ev.Verified,
	).Scan(&ev.ID, &ev.Timestamp)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("save clock event: %w", err)
	}

	// Conflict: the attempt was submitted before.
	existing, err := r.GetClockEventByAttempt(ctx, ev.AttemptID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("save clock event: attempt %s conflicted but was not found", ev.AttemptID)
	}
	if existing.EmployeeID != ev.EmployeeID {
		return false, database.ErrAttemptConflict
	}
	*ev = *existing
	return false, nil
}

// GetClockEventByAttempt returns the event recorded for attemptID, nil if none
func (r *ClockEventRepository) GetClockEventByAttempt(ctx context.Context, attemptID string) (*database.StoredClockEvent, error) {
	query := `
		SELECT id, employee_id, type, timestamp, latitude, longitude, distance_meters, attempt_id, verified
		FROM employee_attendance
		WHERE attempt_id = $1
	`

	var ev database.StoredClockEvent
	err := r.pool.QueryRow(ctx, query, attemptID).Scan(
		&ev.ID, &ev.EmployeeID, &ev.EventType, &ev.Timestamp,
		&ev.Lat, &ev.Lng, &ev.DistanceMeters, &ev.AttemptID, &ev.Verified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clock event by attempt: %w", err)
	}
	return &ev, nil
}

// ListClockEvents returns the latest events of an employee, newest first
func (r *ClockEventRepository) ListClockEvents(ctx context.Context, employeeID int64, types []string, limit int) ([]database.StoredClockEvent, error) {
	query := `
		SELECT id, employee_id, type, timestamp, latitude, longitude, distance_meters, attempt_id, verified
		FROM employee_attendance
		WHERE employee_id = $1 AND (cardinality($2::text[]) = 0 OR type = ANY($2::text[]))
		ORDER BY timestamp DESC, id DESC
		LIMIT $3
	`

	if types == nil {
		types = []string{}
	}
	rows, err := r.pool.Query(ctx, query, employeeID, pq.Array(types), limit)
	if err != nil {
		return nil, fmt.Errorf("list clock events: %w", err)
	}
	defer rows.Close()

	var events []database.StoredClockEvent
	for rows.Next() {
		var ev database.StoredClockEvent
		if err := rows.Scan(
			&ev.ID, &ev.EmployeeID, &ev.EventType, &ev.Timestamp,
			&ev.Lat, &ev.Lng, &ev.DistanceMeters, &ev.AttemptID, &ev.Verified,
		); err != nil {
			return nil, fmt.Errorf("scan clock event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clock events: %w", err)
	}
	return events, nil
}
