package insteon

// LinkDatabase is the ordered All-Link table of a device. Order mirrors the
// physical memory layout, so records are only ever appended.
//
// A LinkDatabase has a single mutator at a time; callers serialize access.
type LinkDatabase struct {
	records []LinkRecord
}

// NewLinkDatabase returns a database holding a copy of records.
func NewLinkDatabase(records ...LinkRecord) *LinkDatabase {
	db := &LinkDatabase{}
	db.records = append(db.records, records...)
	return db
}

// AddRecord appends record. It does not check for an existing entry with the
// same identity; use TryGetEntry or Upsert for that.
func (db *LinkDatabase) AddRecord(record LinkRecord) {
	db.records = append(db.records, record)
}

// Upsert updates the data bytes of the first undeleted record with the same
// identity, or appends record when there is none. It reports whether a new
// record was appended.
func (db *LinkDatabase) Upsert(record LinkRecord) bool {
	for i := range db.records {
		if !db.records[i].Deleted && SameIdentity(db.records[i], record) {
			db.records[i].Data1 = record.Data1
			db.records[i].Data2 = record.Data2
			db.records[i].Data3 = record.Data3
			return false
		}
	}
	record.Deleted = false
	db.AddRecord(record)
	return true
}

// RemoveRecord tombstones the first undeleted record matching record by
// identity. Position is preserved until Compress. It reports whether a record
// was marked.
func (db *LinkDatabase) RemoveRecord(record LinkRecord) bool {
	for i := range db.records {
		if !db.records[i].Deleted && SameIdentity(db.records[i], record) {
			db.records[i].Deleted = true
			return true
		}
	}
	return false
}

// RemoveMatching tombstones every undeleted record for which match returns
// true and returns how many were marked.
func (db *LinkDatabase) RemoveMatching(match func(LinkRecord) bool) int {
	n := 0
	for i := range db.records {
		if !db.records[i].Deleted && match(db.records[i]) {
			db.records[i].Deleted = true
			n++
		}
	}
	return n
}

// TryGetEntry returns the first undeleted record equal to key under cmp.
func (db *LinkDatabase) TryGetEntry(key LinkRecord, cmp Comparer) (LinkRecord, bool) {
	if cmp == nil {
		cmp = SameIdentity
	}
	for _, r := range db.records {
		if !r.Deleted && cmp(r, key) {
			return r, true
		}
	}
	return LinkRecord{}, false
}

// Compress drops tombstoned records, keeping the relative order of the rest.
func (db *LinkDatabase) Compress() {
	kept := db.records[:0]
	for _, r := range db.records {
		if !r.Deleted {
			kept = append(kept, r)
		}
	}
	// clear the tail so dropped records are not retained by the backing array
	for i := len(kept); i < len(db.records); i++ {
		db.records[i] = LinkRecord{}
	}
	db.records = kept
}

// Records returns a copy of all records, tombstones included.
func (db *LinkDatabase) Records() []LinkRecord {
	out := make([]LinkRecord, len(db.records))
	copy(out, db.records)
	return out
}

// Active returns a copy of the undeleted records in table order.
func (db *LinkDatabase) Active() []LinkRecord {
	out := make([]LinkRecord, 0, len(db.records))
	for _, r := range db.records {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of slots, tombstones included.
func (db *LinkDatabase) Len() int {
	return len(db.records)
}

// TombstoneCount returns the number of deleted records awaiting compression.
func (db *LinkDatabase) TombstoneCount() int {
	n := 0
	for _, r := range db.records {
		if r.Deleted {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (db *LinkDatabase) Clone() *LinkDatabase {
	return NewLinkDatabase(db.records...)
}

// Equal reports whether both databases hold the same undeleted records, with
// the same data bytes, in the same order.
func (db *LinkDatabase) Equal(other *LinkDatabase) bool {
	a, b := db.Active(), other.Active()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ExactMatch(a[i], b[i]) {
			return false
		}
	}
	return true
}

// References reports whether any undeleted record points at id.
func (db *LinkDatabase) References(id ID) bool {
	for _, r := range db.records {
		if !r.Deleted && r.DestinationID == id {
			return true
		}
	}
	return false
}
