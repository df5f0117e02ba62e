// Package linking applies All-Link actions to a modem and a peer device so
// that the controller and responder records on both sides stay consistent.
package linking

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
)

// Data bytes written by a controller link: the modem's record and the
// responder record installed on the peer.
var (
	ModemControllerData = [3]byte{1, 32, 65}
	PeerResponderData   = [3]byte{255, 28, 1}
)

var now = time.Now

// Normalize resolves CreateAutoLink. Auto-link leaves open which side
// initiates; it is always treated as the modem becoming controller.
func Normalize(action device.LinkingAction) device.LinkingAction {
	if action == device.CreateAutoLink {
		return device.CreateControllerLink
	}
	return action
}

// Apply realizes action between the modem im and the device deviceID on
// group, mutating im's table and, when peer is not nil, the peer's table.
// The modem table is compressed afterwards since the hub never keeps deleted
// slots. Deleting a link that does not exist is a no-op.
func Apply(im device.PhysicalDevice, action device.LinkingAction, group byte, deviceID insteon.ID, peer device.PhysicalDevice) device.LinkingCompleted {
	action = Normalize(action)
	imDB := im.Database()

	switch action {
	case device.DeleteLink:
		key := insteon.LinkRecord{DestinationID: deviceID, IsController: true, Group: group}
		if _, ok := imDB.TryGetEntry(key, insteon.SameIdentity); ok {
			imDB.RemoveRecord(key)
		} else {
			log.Debug().Str("device", deviceID.String()).Uint8("group", group).Msg("No controller link to delete")
		}

	case device.CreateControllerLink:
		upsert(imDB, insteon.LinkRecord{
			DestinationID: deviceID,
			IsController:  true,
			Group:         group,
			Data1:         ModemControllerData[0],
			Data2:         ModemControllerData[1],
			Data3:         ModemControllerData[2],
		})
		if peer != nil {
			upsert(peer.Database(), insteon.LinkRecord{
				DestinationID: im.ID(),
				IsController:  false,
				Group:         group,
				Data1:         PeerResponderData[0],
				Data2:         PeerResponderData[1],
				Data3:         PeerResponderData[2],
			})
		}

	case device.CreateResponderLink:
		upsert(imDB, insteon.LinkRecord{DestinationID: deviceID, IsController: false, Group: group})
		if peer != nil {
			upsert(peer.Database(), insteon.LinkRecord{DestinationID: im.ID(), IsController: true, Group: group})
		}
	}

	imDB.Compress()

	result := device.LinkingCompleted{
		Action:    action,
		Group:     group,
		DeviceID:  deviceID,
		Timestamp: now().UTC(),
	}
	if peer != nil {
		result.Category = peer.Category()
		result.Subcategory = peer.Subcategory()
		result.Revision = peer.Revision()
	}
	return result
}

// upsert adds r unless a record with the same identity is already present,
// in which case its data bytes are refreshed.
func upsert(db *insteon.LinkDatabase, r insteon.LinkRecord) {
	if !db.Upsert(r) {
		log.Debug().Str("record", r.String()).Msg("Link already present, data bytes refreshed")
	}
}
