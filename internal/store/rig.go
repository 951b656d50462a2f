package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateName is returned when a rig name is already registered.
var ErrDuplicateName = errors.New("rig name already exists")

// Part is one bone or mesh part of a rig. Rest is nil unless the rig
// supplies an explicit rest direction for it.
type Part struct {
	Name string      `json:"name"`
	Rest *[3]float64 `json:"rest,omitempty"`
}

// Rig is a registered, flattened rig.
type Rig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Skeleton  bool      `json:"skeleton"`
	Parts     []Part    `json:"parts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RigRepository provides CRUD operations for rigs and their parts.
type RigRepository struct {
	db *sql.DB
}

// Rigs returns the rig repository for this store.
func (s *Store) Rigs() *RigRepository {
	return &RigRepository{db: s.db}
}

// Create inserts a rig and its parts in a single transaction. An empty ID
// is filled with a new UUID.
func (r *RigRepository) Create(rig *Rig) error {
	if rig.ID == "" {
		rig.ID = uuid.NewString()
	}
	now := time.Now()
	rig.CreatedAt = now
	rig.UpdatedAt = now

	if _, err := r.GetByName(rig.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, rig.Name)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO rigs (id, name, skeleton, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rig.ID, rig.Name, rig.Skeleton, rig.CreatedAt, rig.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err := insertParts(tx, rig.ID, rig.Parts); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a rig and its parts by ID.
func (r *RigRepository) GetByID(id string) (*Rig, error) {
	rig, err := r.scanOne(
		`SELECT id, name, skeleton, created_at, updated_at FROM rigs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if rig.Parts, err = r.Parts(rig.ID); err != nil {
		return nil, err
	}
	return rig, nil
}

// GetByName retrieves a rig and its parts by name.
func (r *RigRepository) GetByName(name string) (*Rig, error) {
	rig, err := r.scanOne(
		`SELECT id, name, skeleton, created_at, updated_at FROM rigs WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	if rig.Parts, err = r.Parts(rig.ID); err != nil {
		return nil, err
	}
	return rig, nil
}

func (r *RigRepository) scanOne(query string, arg any) (*Rig, error) {
	rig := &Rig{}
	err := r.db.QueryRow(query, arg).
		Scan(&rig.ID, &rig.Name, &rig.Skeleton, &rig.CreatedAt, &rig.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rig, nil
}

// List retrieves all rigs without their parts, newest first.
func (r *RigRepository) List() ([]*Rig, error) {
	rows, err := r.db.Query(
		`SELECT id, name, skeleton, created_at, updated_at
		 FROM rigs ORDER BY created_at DESC, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rigs []*Rig
	for rows.Next() {
		rig := &Rig{}
		if err := rows.Scan(&rig.ID, &rig.Name, &rig.Skeleton, &rig.CreatedAt, &rig.UpdatedAt); err != nil {
			return nil, err
		}
		rigs = append(rigs, rig)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rigs, nil
}

// Parts returns the parts of a rig ordered by name.
func (r *RigRepository) Parts(rigID string) ([]Part, error) {
	rows, err := r.db.Query(
		`SELECT name, rest_x, rest_y, rest_z FROM rig_parts
		 WHERE rig_id = ? ORDER BY name`,
		rigID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		var p Part
		var x, y, z sql.NullFloat64
		if err := rows.Scan(&p.Name, &x, &y, &z); err != nil {
			return nil, err
		}
		if x.Valid && y.Valid && z.Valid {
			p.Rest = &[3]float64{x.Float64, y.Float64, z.Float64}
		}
		parts = append(parts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return parts, nil
}

// Update changes a rig's name and skeleton flag and replaces its parts.
func (r *RigRepository) Update(rig *Rig) error {
	rig.UpdatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE rigs SET name = ?, skeleton = ?, updated_at = ? WHERE id = ?`,
		rig.Name, rig.Skeleton, rig.UpdatedAt, rig.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM rig_parts WHERE rig_id = ?`, rig.ID); err != nil {
		return err
	}
	if err := insertParts(tx, rig.ID, rig.Parts); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a rig and its parts by ID.
func (r *RigRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM rigs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func insertParts(tx *sql.Tx, rigID string, parts []Part) error {
	if len(parts) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(
		`INSERT INTO rig_parts (rig_id, name, rest_x, rest_y, rest_z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range parts {
		var x, y, z sql.NullFloat64
		if p.Rest != nil {
			x = sql.NullFloat64{Float64: p.Rest[0], Valid: true}
			y = sql.NullFloat64{Float64: p.Rest[1], Valid: true}
			z = sql.NullFloat64{Float64: p.Rest[2], Valid: true}
		}
		if _, err := stmt.Exec(rigID, p.Name, x, y, z); err != nil {
			return fmt.Errorf("part %q: %w", p.Name, err)
		}
	}
	return nil
}
