package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/staff-clock/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmployeeRepository resolves employees from their API token
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new PostgreSQL employee repository
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// GetEmployeeByToken returns the active employee owning token, nil if none
func (r *EmployeeRepository) GetEmployeeByToken(ctx context.Context, token string) (*database.Employee, error) {
	query := `
		SELECT e.id, e.name, s.id, s.name, s.latitude, s.longitude, e.face_descriptor::text
		FROM employees e
		JOIN schools s ON s.id = e.school_id
		WHERE e.api_token_hash = $1 AND e.active
	`

	var emp database.Employee
	var lat, lng sql.NullFloat64
	var descriptor sql.NullString
	err := r.pool.QueryRow(ctx, query, database.HashToken(token)).Scan(
		&emp.ID,
		&emp.Name,
		&emp.SchoolID,
		&emp.SchoolName,
		&lat,
		&lng,
		&descriptor,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee by token: %w", err)
	}

	if lat.Valid {
		emp.AnchorLat = &lat.Float64
	}
	if lng.Valid {
		emp.AnchorLng = &lng.Float64
	}
	if descriptor.Valid {
		var vec pgvector.Vector
		if err := vec.Scan([]byte(descriptor.String)); err != nil {
			return nil, fmt.Errorf("parse face descriptor of employee %d: %w", emp.ID, err)
		}
		emp.FaceDescriptor = vec.Slice()
	}
	return &emp, nil
}
