package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/insteon"
)

// DeviceStore persists the device collection of a house together with each
// device's link table.
type DeviceStore interface {
	// Save replaces the stored devices of houseID with devices.
	Save(ctx context.Context, houseID int64, devices []*house.Device) error
	// Load returns the stored devices of houseID in collection order.
	Load(ctx context.Context, houseID int64) ([]*house.Device, error)
}

// Devices returns a DeviceStore for this database.
func (db *DB) Devices() DeviceStore {
	return &deviceStore{db: db}
}

type deviceStore struct {
	db *DB
}

func (s *deviceStore) Save(ctx context.Context, houseID int64, devices []*house.Device) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE house_id = ?`, houseID); err != nil {
			return fmt.Errorf("failed to clear devices: %w", err)
		}

		insertDevice, err := tx.PrepareContext(ctx, `
			INSERT INTO devices (house_id, id, position, name, category, subcategory, revision, is_gateway, dirty, last_sync)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = insertDevice.Close() }()

		insertRecord, err := tx.PrepareContext(ctx, `
			INSERT INTO link_records (house_id, device_id, slot, destination_id, is_controller, group_num, data1, data2, data3, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = insertRecord.Close() }()

		for pos, d := range devices {
			id := d.ID().String()
			var lastSync sql.NullString
			if !d.LastSync.IsZero() {
				lastSync = sql.NullString{String: d.LastSync.UTC().Format(time.RFC3339Nano), Valid: true}
			}
			if _, err := insertDevice.ExecContext(ctx, houseID, id, pos, d.Name,
				d.Info.Category, d.Info.Subcategory, d.Info.Revision, d.Gateway, d.Dirty, lastSync); err != nil {
				return fmt.Errorf("failed to save device %s: %w", id, err)
			}
			if d.Links == nil {
				continue
			}
			for slot, r := range d.Links.Records() {
				if _, err := insertRecord.ExecContext(ctx, houseID, id, slot, r.DestinationID.String(),
					r.IsController, r.Group, r.Data1, r.Data2, r.Data3, r.Deleted); err != nil {
					return fmt.Errorf("failed to save link %d of %s: %w", slot, id, err)
				}
			}
		}
		return nil
	})
}

func (s *deviceStore) Load(ctx context.Context, houseID int64) ([]*house.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, subcategory, revision, is_gateway, dirty, last_sync
		FROM devices WHERE house_id = ? ORDER BY position
	`, houseID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var devices []*house.Device
	index := make(map[insteon.ID]*house.Device)
	for rows.Next() {
		var (
			idText   string
			lastSync sql.NullString
			d        = &house.Device{Links: insteon.NewLinkDatabase()}
		)
		if err := rows.Scan(&idText, &d.Name, &d.Info.Category, &d.Info.Subcategory, &d.Info.Revision,
			&d.Gateway, &d.Dirty, &lastSync); err != nil {
			return nil, err
		}
		if d.Info.ID, err = insteon.ParseID(idText); err != nil {
			return nil, fmt.Errorf("stored device: %w", err)
		}
		if lastSync.Valid {
			d.LastSync, _ = time.Parse(time.RFC3339Nano, lastSync.String)
		}
		devices = append(devices, d)
		index[d.Info.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadLinks(ctx, houseID, index); err != nil {
		return nil, err
	}
	return devices, nil
}

func (s *deviceStore) loadLinks(ctx context.Context, houseID int64, index map[insteon.ID]*house.Device) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, destination_id, is_controller, group_num, data1, data2, data3, deleted
		FROM link_records WHERE house_id = ? ORDER BY device_id, slot
	`, houseID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			owner, dest string
			r           insteon.LinkRecord
		)
		if err := rows.Scan(&owner, &dest, &r.IsController, &r.Group, &r.Data1, &r.Data2, &r.Data3, &r.Deleted); err != nil {
			return err
		}
		ownerID, err := insteon.ParseID(owner)
		if err != nil {
			return fmt.Errorf("stored link owner: %w", err)
		}
		if r.DestinationID, err = insteon.ParseID(dest); err != nil {
			return fmt.Errorf("stored link of %s: %w", owner, err)
		}
		if d, ok := index[ownerID]; ok {
			d.Links.AddRecord(r)
		}
	}
	return rows.Err()
}
