package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Calibration is a completed calibration lock.
type Calibration struct {
	ID         string
	OffsetX    float64
	OffsetY    float64
	Samples    int
	DurationMs float64
	// LockedRoles names the roles ("left", "right") that had a signature
	// locked.
	LockedRoles []string
	CreatedAt   time.Time
}

// CalibrationRepository records calibration history.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Create inserts a calibration and its locked roles.
func (r *CalibrationRepository) Create(c *Calibration) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO calibrations (id, offset_x, offset_y, samples, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OffsetX, c.OffsetY, c.Samples, c.DurationMs, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert calibration: %w", err)
	}

	for _, role := range c.LockedRoles {
		if _, err := tx.Exec(
			`INSERT INTO calibration_roles (calibration_id, role) VALUES (?, ?)`,
			c.ID, role,
		); err != nil {
			return fmt.Errorf("insert calibration role %q: %w", role, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a calibration by its ID.
func (r *CalibrationRepository) GetByID(id string) (*Calibration, error) {
	c := &Calibration{}
	err := r.db.QueryRow(
		`SELECT id, offset_x, offset_y, samples, duration_ms, created_at
		 FROM calibrations WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.OffsetX, &c.OffsetY, &c.Samples, &c.DurationMs, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if c.LockedRoles, err = r.roles(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Latest returns the most recent calibration.
func (r *CalibrationRepository) Latest() (*Calibration, error) {
	list, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// List returns up to limit calibrations, newest first. A limit of 0 or less
// returns all of them.
func (r *CalibrationRepository) List(limit int) ([]*Calibration, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, offset_x, offset_y, samples, duration_ms, created_at
		 FROM calibrations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calibrations []*Calibration
	for rows.Next() {
		c := &Calibration{}
		if err := rows.Scan(&c.ID, &c.OffsetX, &c.OffsetY, &c.Samples, &c.DurationMs, &c.CreatedAt); err != nil {
			return nil, err
		}
		calibrations = append(calibrations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Roles are loaded after the cursor is closed; the store uses a single
	// connection.
	rows.Close()
	for _, c := range calibrations {
		if c.LockedRoles, err = r.roles(c.ID); err != nil {
			return nil, err
		}
	}
	return calibrations, nil
}

// Delete removes a calibration and its roles.
func (r *CalibrationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM calibrations WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CalibrationRepository) roles(id string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT role FROM calibration_roles WHERE calibration_id = ? ORDER BY role`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
