package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

var ErrAPIServerNotFound = errors.New("api server config not found")

// APIServer is the listen configuration of a house's API.
type APIServer struct {
	ID        int64
	HouseID   int64
	Host      string
	Port      int
	CreatedAt time.Time
}

// Address returns the listen address (host:port).
func (a *APIServer) Address() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// APIServerStore provides API server config operations.
type APIServerStore interface {
	Get(ctx context.Context, houseID int64) (*APIServer, error)
	Upsert(ctx context.Context, a *APIServer) error
	Delete(ctx context.Context, houseID int64) error
}

// APIServers returns an APIServerStore for this database.
func (db *DB) APIServers() APIServerStore {
	return &apiServerStore{db: db}
}

type apiServerStore struct {
	db *DB
}

func (s *apiServerStore) Get(ctx context.Context, houseID int64) (*APIServer, error) {
	a := &APIServer{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, house_id, host, port, created_at
		FROM api_servers WHERE house_id = ?
	`, houseID).Scan(&a.ID, &a.HouseID, &a.Host, &a.Port, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAPIServerNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	return a, nil
}

// Upsert creates or replaces the config of a.HouseID.
func (s *apiServerStore) Upsert(ctx context.Context, a *APIServer) error {
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("invalid API port %d", a.Port)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO api_servers (house_id, host, port)
		VALUES (?, ?, ?)
		ON CONFLICT(house_id) DO UPDATE SET host = excluded.host, port = excluded.port
		RETURNING id
	`, a.HouseID, a.Host, a.Port).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to save API server config: %w", err)
	}
	return nil
}

func (s *apiServerStore) Delete(ctx context.Context, houseID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_servers WHERE house_id = ?`, houseID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrAPIServerNotFound)
}
