package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urmzd/linkhub/pkg/insteon"
)

var ErrHouseNotFound = errors.New("house not found")

// House is a stored installation.
type House struct {
	ID        int64
	Name      string
	Timezone  string
	HubID     insteon.ID
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HouseStore provides house CRUD operations.
type HouseStore interface {
	Get(ctx context.Context, id int64) (*House, error)
	GetActive(ctx context.Context) (*House, error)
	List(ctx context.Context) ([]*House, error)
	Create(ctx context.Context, h *House) error
	Update(ctx context.Context, h *House) error
	SetActive(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// Houses returns a HouseStore for this database.
func (db *DB) Houses() HouseStore {
	return &houseStore{db: db}
}

type houseStore struct {
	db *DB
}

const houseColumns = `id, name, timezone, hub_id, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHouse(row scanner) (*House, error) {
	h := &House{}
	var hubID, createdAt, updatedAt string
	if err := row.Scan(&h.ID, &h.Name, &h.Timezone, &hubID, &h.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if hubID != "" {
		id, err := insteon.ParseID(hubID)
		if err != nil {
			return nil, fmt.Errorf("house %d hub: %w", h.ID, err)
		}
		h.HubID = id
	}
	h.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	h.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return h, nil
}

func hubText(id insteon.ID) string {
	if id.IsNull() {
		return ""
	}
	return id.String()
}

func (s *houseStore) Get(ctx context.Context, id int64) (*House, error) {
	h, err := scanHouse(s.db.QueryRowContext(ctx, `SELECT `+houseColumns+` FROM houses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHouseNotFound
	}
	return h, err
}

func (s *houseStore) GetActive(ctx context.Context) (*House, error) {
	h, err := scanHouse(s.db.QueryRowContext(ctx, `SELECT `+houseColumns+` FROM houses WHERE is_active = 1 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHouseNotFound
	}
	return h, err
}

func (s *houseStore) List(ctx context.Context) ([]*House, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+houseColumns+` FROM houses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var houses []*House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, err
		}
		houses = append(houses, h)
	}
	return houses, rows.Err()
}

func (s *houseStore) Create(ctx context.Context, h *House) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO houses (name, timezone, hub_id, is_active)
		VALUES (?, ?, ?, ?)
	`, h.Name, h.Timezone, hubText(h.HubID), h.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create house: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = id
	return nil
}

func (s *houseStore) Update(ctx context.Context, h *House) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE houses SET name = ?, timezone = ?, hub_id = ?, is_active = ?, updated_at = datetime('now')
		WHERE id = ?
	`, h.Name, h.Timezone, hubText(h.HubID), h.IsActive, h.ID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrHouseNotFound)
}

func (s *houseStore) SetActive(ctx context.Context, id int64) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE houses SET is_active = 0`); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `UPDATE houses SET is_active = 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectRow(result, ErrHouseNotFound)
	})
}

func (s *houseStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM houses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrHouseNotFound)
}

// expectRow returns notFound when result touched no row.
func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
