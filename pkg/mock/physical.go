// Package mock simulates Insteon devices and the interface modem in memory so
// linking and bulk jobs can be driven deterministically without hardware.
package mock

import (
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/linking"
)

// PhysicalDevice is a simulated linkable device.
type PhysicalDevice struct {
	id          insteon.ID
	category    byte
	subcategory byte
	revision    byte
	db          *insteon.LinkDatabase
}

// NewPhysicalDevice creates a simulated device with an empty link table.
func NewPhysicalDevice(id insteon.ID, category, subcategory, revision byte) *PhysicalDevice {
	return &PhysicalDevice{
		id:          id,
		category:    category,
		subcategory: subcategory,
		revision:    revision,
		db:          insteon.NewLinkDatabase(),
	}
}

func (d *PhysicalDevice) ID() insteon.ID                  { return d.id }
func (d *PhysicalDevice) Category() byte                  { return d.category }
func (d *PhysicalDevice) Subcategory() byte               { return d.subcategory }
func (d *PhysicalDevice) Revision() byte                  { return d.revision }
func (d *PhysicalDevice) Database() *insteon.LinkDatabase { return d.db }

// Info returns the identity the device reports on the network.
func (d *PhysicalDevice) Info() device.Info {
	return device.Info{ID: d.id, Category: d.category, Subcategory: d.subcategory, Revision: d.revision}
}

// PhysicalIM is a simulated interface modem. It keeps its table compressed and
// exposes the first/next record cursor.
type PhysicalIM struct {
	PhysicalDevice
	cursor int
}

// NewPhysicalIM creates a simulated modem.
func NewPhysicalIM(id insteon.ID, category, subcategory, revision byte) *PhysicalIM {
	return &PhysicalIM{PhysicalDevice: *NewPhysicalDevice(id, category, subcategory, revision)}
}

// HandleLinkingAction applies the linking transition table to the modem and peer.
func (im *PhysicalIM) HandleLinkingAction(action device.LinkingAction, group byte, deviceID insteon.ID, peer device.PhysicalDevice) device.LinkingCompleted {
	result := linking.Apply(im, action, group, deviceID, peer)
	im.cursor = 0
	return result
}

// FirstRecord rewinds the cursor and returns the first undeleted record.
func (im *PhysicalIM) FirstRecord() (insteon.LinkRecord, bool) {
	im.cursor = 0
	return im.NextRecord()
}

// NextRecord returns the record under the cursor and advances it.
func (im *PhysicalIM) NextRecord() (insteon.LinkRecord, bool) {
	records := im.db.Records()
	for im.cursor < len(records) {
		r := records[im.cursor]
		im.cursor++
		if !r.Deleted {
			return r, true
		}
	}
	return insteon.LinkRecord{}, false
}

var (
	_ device.PhysicalDevice = (*PhysicalDevice)(nil)
	_ device.InterfaceModem = (*PhysicalIM)(nil)
)
