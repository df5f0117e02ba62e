package house

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/linking"
)

// Hub link groups created when connecting a device: the hub controls the
// device on group 0 and listens to its group 1 broadcasts.
const (
	ConnectControllerGroup byte = 0
	ConnectResponderGroup  byte = 1
)

// ImportDevice replaces the model table of id with the device's physical table.
func (h *House) ImportDevice(ctx context.Context, id insteon.ID) error {
	db, err := h.transport.ReadLinkDatabase(ctx, id)
	if err != nil {
		return fmt.Errorf("reading link database of %s: %w", id, err)
	}
	return h.mutate(id, func(d *Device) {
		d.Links = db
		d.Dirty = false
		d.LastSync = h.now().UTC()
	})
}

// SyncDevice writes the model table of id to the device. Unless force is set,
// clean devices are skipped and devices whose physical table already matches
// are only marked clean.
func (h *House) SyncDevice(ctx context.Context, id insteon.ID, force bool) error {
	d, err := h.Device(id)
	if err != nil {
		return err
	}
	if !d.Dirty && !force {
		return nil
	}

	physical, err := h.transport.ReadLinkDatabase(ctx, id)
	if err != nil {
		return fmt.Errorf("reading link database of %s: %w", id, err)
	}

	want := d.Links
	if d.Gateway {
		want.Compress()
	}
	if !physical.Equal(want) {
		if err := h.transport.WriteLinkDatabase(ctx, id, want); err != nil {
			return fmt.Errorf("writing link database of %s: %w", id, err)
		}
		log.Debug().Str("device", id.String()).Int("records", want.Len()).Msg("Link database written")
	}

	return h.mutate(id, func(live *Device) {
		// a concurrent model edit keeps the device dirty
		if live.Links.Equal(d.Links) {
			live.Links = want
			live.Dirty = false
		}
		live.LastSync = h.now().UTC()
	})
}

// ConnectDevice links the hub and id: hub controller on group 0 and hub
// responder on group 1.
func (h *House) ConnectDevice(ctx context.Context, id insteon.ID) error {
	if _, err := h.Hub(); err != nil {
		return err
	}
	if _, err := h.Link(ctx, device.CreateControllerLink, ConnectControllerGroup, id); err != nil {
		return err
	}
	if _, err := h.Link(ctx, device.CreateResponderLink, ConnectResponderGroup, id); err != nil {
		return err
	}
	return nil
}

// RemoveLinksTo tombstones every record of id's model table whose destination
// is target and marks id dirty if anything changed. It reports the number of
// records removed.
func (h *House) RemoveLinksTo(id, target insteon.ID) (int, error) {
	var n int
	err := h.mutate(id, func(d *Device) {
		n = d.Links.RemoveMatching(func(r insteon.LinkRecord) bool { return r.DestinationID == target })
		if n > 0 {
			d.Dirty = true
		}
	})
	return n, err
}

// OrphanHubDestinations lists, in hub table order, destinations of hub records
// that are not devices of the house.
func (h *House) OrphanHubDestinations() ([]insteon.ID, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hub := h.find(h.hubID)
	if hub == nil {
		return nil, ErrNoGateway
	}

	seen := make(map[insteon.ID]bool)
	var out []insteon.ID
	for _, r := range hub.Links.Active() {
		if seen[r.DestinationID] {
			continue
		}
		seen[r.DestinationID] = true
		if h.find(r.DestinationID) == nil {
			out = append(out, r.DestinationID)
		}
	}
	return out, nil
}

// ApplyLinking applies a completed linking exchange to the model tables of
// the hub and, when it is part of the house, the peer. Applying the same
// result twice leaves the tables unchanged.
func (h *House) ApplyLinking(result device.LinkingCompleted) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hub := h.find(h.hubID)
	if hub == nil {
		log.Warn().Str("device", result.DeviceID.String()).Msg("Linking completed without a hub in the model")
		return
	}

	var peer device.PhysicalDevice
	if d := h.find(result.DeviceID); d != nil && d != hub {
		peer = d
		if d.Info.Category == 0 && d.Info.Subcategory == 0 {
			d.Info.Category = result.Category
			d.Info.Subcategory = result.Subcategory
			d.Info.Revision = result.Revision
		}
	}
	linking.Apply(hub, result.Action, result.Group, result.DeviceID, peer)
}
