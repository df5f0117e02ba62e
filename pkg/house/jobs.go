package house

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
)

// deviceUnits builds one unit per id, in order.
func deviceUnits(ids []insteon.ID, op func(ctx context.Context, id insteon.ID) error) []jobs.Unit {
	units := make([]jobs.Unit, 0, len(ids))
	for _, id := range ids {
		id := id
		units = append(units, jobs.Unit{
			Name: id.String(),
			Run:  func(ctx context.Context) error { return op(ctx, id) },
		})
	}
	return units
}

// ScheduleSyncAll writes every dirty device's model table to the network, or
// every device's when force is set.
func (h *House) ScheduleSyncAll(force bool, onComplete func(bool)) (*jobs.Job, error) {
	ids := h.ids(nil)
	return h.jobs.Schedule(jobs.Plan{
		Kind: jobs.KindSync,
		Units: deviceUnits(ids, func(ctx context.Context, id insteon.ID) error {
			return h.SyncDevice(ctx, id, force)
		}),
	}, onComplete)
}

// ScheduleImportAll replaces every model table with the device's physical one.
func (h *House) ScheduleImportAll(onComplete func(bool)) (*jobs.Job, error) {
	return h.jobs.Schedule(jobs.Plan{
		Kind:  jobs.KindImport,
		Units: deviceUnits(h.ids(nil), h.ImportDevice),
	}, onComplete)
}

// ScheduleConnectAll links the hub with every device that is not a gateway.
func (h *House) ScheduleConnectAll(onComplete func(bool)) (*jobs.Job, error) {
	if _, err := h.Hub(); err != nil {
		return nil, err
	}
	ids := h.ids(func(d *Device) bool { return !d.Gateway })
	return h.jobs.Schedule(jobs.Plan{
		Kind:  jobs.KindConnect,
		Units: deviceUnits(ids, h.ConnectDevice),
	}, onComplete)
}

// ScheduleRemoveDevice removes target from the house. It first purges every
// record pointing at target from the other devices' tables, then, only if the
// purge succeeded, force-syncs every device. onComplete receives the outcome
// of the whole chain.
func (h *House) ScheduleRemoveDevice(target insteon.ID, onComplete func(bool)) (*jobs.Job, error) {
	if _, err := h.Device(target); err != nil {
		return nil, err
	}
	if target == h.HubID() {
		return nil, fmt.Errorf("%w: %s", ErrActiveGateway, target)
	}
	return h.schedulePurge(jobs.KindRemoveDevice, target, func(success bool) {
		if !success {
			complete(onComplete, false)
			return
		}
		if _, err := h.ScheduleSyncAll(true, onComplete); err != nil {
			log.Error().Err(err).Str("device", target.String()).Msg("Failed to schedule resync after removal")
			complete(onComplete, false)
		}
	})
}

// ScheduleRemoveOldGateway removes a retired gateway: records pointing at it
// are purged from every other device and it leaves the house. The active hub
// cannot be removed this way.
func (h *House) ScheduleRemoveOldGateway(old insteon.ID, onComplete func(bool)) (*jobs.Job, error) {
	d, err := h.Device(old)
	if err != nil {
		return nil, err
	}
	if old == h.HubID() {
		return nil, fmt.Errorf("%w: %s", ErrActiveGateway, old)
	}
	if !d.Gateway {
		return nil, fmt.Errorf("%w: %s", ErrNotGateway, old)
	}
	return h.schedulePurge(jobs.KindRemoveGateway, old, onComplete)
}

// schedulePurge tombstones records pointing at target on every other device
// and detaches target once every device was visited.
func (h *House) schedulePurge(kind jobs.Kind, target insteon.ID, onComplete func(bool)) (*jobs.Job, error) {
	ids := h.ids(func(d *Device) bool { return d.ID() != target })
	return h.jobs.Schedule(jobs.Plan{
		Kind: kind,
		Units: deviceUnits(ids, func(_ context.Context, id insteon.ID) error {
			_, err := h.RemoveLinksTo(id, target)
			return err
		}),
		Finish: func(_ context.Context, cancelled bool) error {
			if cancelled {
				return nil
			}
			if !h.detach(target) {
				return fmt.Errorf("%w: %s", ErrDeviceNotFound, target)
			}
			log.Info().Str("device", target.String()).Msg("Device removed from house")
			return nil
		},
	}, onComplete)
}

// SchedulePurgeHubLinks drops hub records whose destination is not a device of
// the house, one destination per unit, then writes the hub table.
func (h *House) SchedulePurgeHubLinks(onComplete func(bool)) (*jobs.Job, error) {
	hubID := h.HubID()
	orphans, err := h.OrphanHubDestinations()
	if err != nil {
		return nil, err
	}
	return h.jobs.Schedule(jobs.Plan{
		Kind: jobs.KindPurgeHubLinks,
		Units: deviceUnits(orphans, func(_ context.Context, orphan insteon.ID) error {
			_, err := h.RemoveLinksTo(hubID, orphan)
			return err
		}),
		Finish: func(ctx context.Context, cancelled bool) error {
			if cancelled {
				return nil
			}
			return h.SyncDevice(ctx, hubID, false)
		},
	}, onComplete)
}

// Params carries the arguments of a job requested by kind.
type Params struct {
	Force  bool
	Device insteon.ID
}

// Schedule starts a job of kind. Device is required by remove-device and
// remove-gateway; Force applies to sync.
func (h *House) Schedule(kind jobs.Kind, p Params, onComplete func(bool)) (*jobs.Job, error) {
	switch kind {
	case jobs.KindSync:
		return h.ScheduleSyncAll(p.Force, onComplete)
	case jobs.KindImport:
		return h.ScheduleImportAll(onComplete)
	case jobs.KindConnect:
		return h.ScheduleConnectAll(onComplete)
	case jobs.KindRemoveDevice:
		return h.ScheduleRemoveDevice(p.Device, onComplete)
	case jobs.KindRemoveGateway:
		return h.ScheduleRemoveOldGateway(p.Device, onComplete)
	case jobs.KindPurgeHubLinks:
		return h.SchedulePurgeHubLinks(onComplete)
	default:
		return nil, fmt.Errorf("%w: %q", jobs.ErrUnknownKind, kind)
	}
}

// Cancel asks job to stop at the next device boundary.
func (h *House) Cancel(job *jobs.Job) error {
	return h.jobs.Cancel(job)
}

// IsRunning reports whether a job of kind is active.
func (h *House) IsRunning(kind jobs.Kind) bool {
	return h.jobs.IsRunning(kind)
}

func complete(fn func(bool), success bool) {
	if fn != nil {
		fn(success)
	}
}
