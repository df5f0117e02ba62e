package plm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
)

// maxRemoteRecords bounds a device table walk when the end marker is missing.
const maxRemoteRecords = 255

// ReadLinkDatabase reads the link table of the modem or of a remote device.
func (m *Modem) ReadLinkDatabase(ctx context.Context, id insteon.ID) (*insteon.LinkDatabase, error) {
	imID, err := m.modemID(ctx)
	if err != nil {
		return nil, err
	}

	var db *insteon.LinkDatabase
	if id == imID {
		db, err = m.readModemDatabase(ctx)
	} else {
		db, err = m.readRemoteDatabase(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("device", id.String()).Int("records", db.Len()).Msg("Link database read")
	return db, nil
}

// WriteLinkDatabase makes the table of id match db. The modem table is
// edited record by record and never holds tombstones. A device table is
// rewritten slot by slot, tombstones included, followed by an end marker.
func (m *Modem) WriteLinkDatabase(ctx context.Context, id insteon.ID, db *insteon.LinkDatabase) error {
	imID, err := m.modemID(ctx)
	if err != nil {
		return err
	}
	if id == imID {
		return m.writeModemDatabase(ctx, db)
	}
	return m.writeRemoteDatabase(ctx, id, db)
}

// FirstRecord resets the modem cursor and returns the first record.
func (m *Modem) FirstRecord(ctx context.Context) (insteon.LinkRecord, bool, error) {
	return m.cursor(ctx, cmdGetFirstAllLink)
}

// NextRecord advances the modem cursor. ok is false past the last record.
func (m *Modem) NextRecord(ctx context.Context) (insteon.LinkRecord, bool, error) {
	return m.cursor(ctx, cmdGetNextAllLink)
}

func (m *Modem) cursor(ctx context.Context, cmd byte) (insteon.LinkRecord, bool, error) {
	drain(m.records)
	if _, err := m.send(ctx, []byte{stx, cmd}); err != nil {
		if errors.Is(err, device.ErrNAK) {
			return insteon.LinkRecord{}, false, nil
		}
		return insteon.LinkRecord{}, false, err
	}
	msg, err := m.await(ctx, m.records, nil)
	if err != nil {
		return insteon.LinkRecord{}, false, fmt.Errorf("waiting for link record: %w", err)
	}
	return decodeRecord(msg[2:10]), true, nil
}

func (m *Modem) readModemDatabase(ctx context.Context) (*insteon.LinkDatabase, error) {
	db := insteon.NewLinkDatabase()
	r, ok, err := m.FirstRecord(ctx)
	for err == nil && ok {
		db.AddRecord(r)
		r, ok, err = m.NextRecord(ctx)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// hitKey is what the modem's delete-first-hit command matches on. The
// controller flag is not part of it, so a controller and a responder record
// for the same device and group collide.
type hitKey struct {
	group byte
	id    insteon.ID
}

func keyOf(r insteon.LinkRecord) hitKey {
	return hitKey{group: r.Group, id: r.DestinationID}
}

func (m *Modem) writeModemDatabase(ctx context.Context, db *insteon.LinkDatabase) error {
	current, err := m.readModemDatabase(ctx)
	if err != nil {
		return err
	}

	// A pair is rewritten whole when any record on it is unwanted or differs.
	dirty := make(map[hitKey]bool)
	onModem := make(map[hitKey]int)
	for _, r := range current.Active() {
		onModem[keyOf(r)]++
		if _, keep := db.TryGetEntry(r, insteon.SameIdentity); !keep {
			dirty[keyOf(r)] = true
		}
	}
	for _, r := range db.Active() {
		if _, same := current.TryGetEntry(r, insteon.ExactMatch); !same {
			dirty[keyOf(r)] = true
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	for _, r := range current.Active() {
		k := keyOf(r)
		if !dirty[k] || onModem[k] == 0 {
			continue
		}
		for ; onModem[k] > 0; onModem[k]-- {
			if err := m.manage(ctx, manageDeleteFirstHit, r); err != nil {
				return fmt.Errorf("delete modem record %s: %w", r, err)
			}
		}
	}

	current, err = m.readModemDatabase(ctx)
	if err != nil {
		return err
	}
	for _, r := range current.Active() {
		if dirty[keyOf(r)] {
			return fmt.Errorf("%w: modem kept record %s after delete", device.ErrNAK, r)
		}
	}

	for _, r := range db.Active() {
		if !dirty[keyOf(r)] {
			continue
		}
		code := byte(manageAddResponder)
		if r.IsController {
			code = manageAddController
		}
		if err := m.manage(ctx, code, r); err != nil {
			return fmt.Errorf("write modem record %s: %w", r, err)
		}
	}
	return nil
}

// manage sends a 0x6F record command.
func (m *Modem) manage(ctx context.Context, code byte, r insteon.LinkRecord) error {
	frame := append([]byte{stx, cmdManageAllLinkRecs, code}, encodeRecord(r)...)
	_, err := m.send(ctx, frame)
	return err
}

func (m *Modem) readRemoteDatabase(ctx context.Context, id insteon.ID) (*insteon.LinkDatabase, error) {
	db := insteon.NewLinkDatabase()
	addr := uint16(aldbFirstRecord)
	for i := 0; i < maxRemoteRecords; i++ {
		r, end, err := m.readRemoteRecord(ctx, id, addr)
		if err != nil {
			return nil, fmt.Errorf("read %s record %#04x: %w", id, addr, err)
		}
		if end {
			return db, nil
		}
		db.AddRecord(r)
		addr -= aldbRecordSize
	}
	log.Warn().Str("device", id.String()).Msg("Link table end marker not found")
	return db, nil
}

// readRemoteRecord fetches one slot. end is true at the first never-used slot.
func (m *Modem) readRemoteRecord(ctx context.Context, id insteon.ID, addr uint16) (insteon.LinkRecord, bool, error) {
	drain(m.inbound)
	req := extendedMessage(id, cmdReadWriteALDB, 0x00, []byte{0x00, aldbRequest, byte(addr >> 8), byte(addr), 0x01})
	if _, err := m.send(ctx, req); err != nil {
		return insteon.LinkRecord{}, false, err
	}
	if err := m.awaitDirectAck(ctx, id, cmdReadWriteALDB); err != nil {
		return insteon.LinkRecord{}, false, err
	}

	msg, err := m.await(ctx, m.inbound, func(msg []byte) bool {
		return msg[1] == msgExtendedReceived && senderOf(msg) == id &&
			msg[9] == cmdReadWriteALDB && msg[12] == aldbResponse
	})
	if err != nil {
		return insteon.LinkRecord{}, false, err
	}

	slot := msg[16:24]
	if slot[0]&flagHighWater == 0 {
		return insteon.LinkRecord{}, true, nil
	}
	return decodeRecord(slot), false, nil
}

func (m *Modem) writeRemoteDatabase(ctx context.Context, id insteon.ID, db *insteon.LinkDatabase) error {
	records := db.Records()
	if len(records) >= maxRemoteRecords {
		return fmt.Errorf("%w: %d records exceed device table", device.ErrValidation, len(records))
	}

	addr := uint16(aldbFirstRecord)
	for _, r := range records {
		if err := m.writeRemoteRecord(ctx, id, addr, encodeRecord(r)); err != nil {
			return fmt.Errorf("write %s record %#04x: %w", id, addr, err)
		}
		addr -= aldbRecordSize
	}
	if err := m.writeRemoteRecord(ctx, id, addr, make([]byte, aldbRecordSize)); err != nil {
		return fmt.Errorf("write %s end marker: %w", id, err)
	}
	return nil
}

func (m *Modem) writeRemoteRecord(ctx context.Context, id insteon.ID, addr uint16, slot []byte) error {
	drain(m.inbound)
	d := append([]byte{0x00, aldbWrite, byte(addr >> 8), byte(addr), aldbRecordSize}, slot...)
	if _, err := m.send(ctx, extendedMessage(id, cmdReadWriteALDB, 0x00, d)); err != nil {
		return err
	}
	return m.awaitDirectAck(ctx, id, cmdReadWriteALDB)
}
