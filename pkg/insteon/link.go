package insteon

import "fmt"

// LinkRecord is one entry of a device's All-Link database.
type LinkRecord struct {
	DestinationID ID   `json:"destination_id"`
	IsController  bool `json:"is_controller"`
	Group         byte `json:"group"`
	Data1         byte `json:"data1"`
	Data2         byte `json:"data2"`
	Data3         byte `json:"data3"`
	Deleted       bool `json:"deleted,omitempty"`
}

// LinkKey identifies a record regardless of its data bytes.
type LinkKey struct {
	DestinationID ID
	IsController  bool
	Group         byte
}

// Key returns the identity key of the record.
func (r LinkRecord) Key() LinkKey {
	return LinkKey{DestinationID: r.DestinationID, IsController: r.IsController, Group: r.Group}
}

// Record builds a data-less record carrying only the key, for lookups.
func (k LinkKey) Record() LinkRecord {
	return LinkRecord{DestinationID: k.DestinationID, IsController: k.IsController, Group: k.Group}
}

func (r LinkRecord) String() string {
	role := "responder"
	if r.IsController {
		role = "controller"
	}
	s := fmt.Sprintf("%s %s group %d data %02X %02X %02X", r.DestinationID, role, r.Group, r.Data1, r.Data2, r.Data3)
	if r.Deleted {
		s += " (deleted)"
	}
	return s
}

// Comparer decides whether two records are the same entry.
type Comparer func(a, b LinkRecord) bool

// SameIdentity matches on (destination, controller flag, group) and ignores data bytes.
func SameIdentity(a, b LinkRecord) bool {
	return a.Key() == b.Key()
}

// ExactMatch matches on the identity key and all three data bytes.
func ExactMatch(a, b LinkRecord) bool {
	return SameIdentity(a, b) && a.Data1 == b.Data1 && a.Data2 == b.Data2 && a.Data3 == b.Data3
}
