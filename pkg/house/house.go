// Package house owns the device collection of one installation and turns
// device-level operations into bulk jobs.
package house

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
	"github.com/urmzd/linkhub/pkg/jobs"
)

var (
	// ErrDeviceNotFound indicates the device is not part of the house
	ErrDeviceNotFound = errors.New("device not in house")

	// ErrDeviceExists indicates a device with the same address is already present
	ErrDeviceExists = errors.New("device already in house")

	// ErrActiveGateway indicates an operation that cannot target the active hub
	ErrActiveGateway = errors.New("device is the active gateway")

	// ErrNoGateway indicates the house has no active hub
	ErrNoGateway = errors.New("house has no gateway")

	// ErrNotGateway indicates a gateway operation aimed at an ordinary device
	ErrNotGateway = errors.New("device is not a gateway")
)

// Device is the model of one device: its identity and the link table the
// house expects it to hold.
type Device struct {
	Info     device.Info           `json:"info"`
	Name     string                `json:"name"`
	Gateway  bool                  `json:"gateway"`
	Links    *insteon.LinkDatabase `json:"-"`
	Dirty    bool                  `json:"dirty"`
	LastSync time.Time             `json:"last_sync"`
}

// ID, Category, Subcategory, Revision and Database let a model device stand
// in for a physical one in the linking state machine.
func (d *Device) ID() insteon.ID                  { return d.Info.ID }
func (d *Device) Category() byte                  { return d.Info.Category }
func (d *Device) Subcategory() byte               { return d.Info.Subcategory }
func (d *Device) Revision() byte                  { return d.Info.Revision }
func (d *Device) Database() *insteon.LinkDatabase { return d.Links }

// clone copies the device so callers can read it without holding the lock.
func (d *Device) clone() *Device {
	c := *d
	c.Links = d.Links.Clone()
	return &c
}

var _ device.PhysicalDevice = (*Device)(nil)

// House is the root aggregate: it exclusively owns its devices and their link
// tables, and holds the job slots used to operate on them.
type House struct {
	Name string

	mu        sync.RWMutex
	hubID     insteon.ID
	devices   []*Device
	transport device.Transport
	jobs      *jobs.Scheduler
	now       func() time.Time
}

// New creates a house. transport is serialized so bulk jobs and manual
// linking never overlap on the wire.
func New(name string, hubID insteon.ID, transport device.Transport, scheduler *jobs.Scheduler) *House {
	return &House{
		Name:      name,
		hubID:     hubID,
		transport: device.Serialize(transport),
		jobs:      scheduler,
		now:       time.Now,
	}
}

// Jobs returns the scheduler holding this house's job slots.
func (h *House) Jobs() *jobs.Scheduler {
	return h.jobs
}

// Transport returns the serialized transport.
func (h *House) Transport() device.Transport {
	return h.transport
}

// HubID returns the address of the active gateway.
func (h *House) HubID() insteon.ID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hubID
}

// SetHub makes id the active gateway. The device must already be in the house.
func (h *House) SetHub(id insteon.ID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.find(id)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	d.Gateway = true
	h.hubID = id
	return nil
}

// AddDevice appends d to the collection. A nil link table is replaced by an
// empty one.
func (h *House) AddDevice(d *Device) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.find(d.ID()) != nil {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID())
	}
	if d.Links == nil {
		d.Links = insteon.NewLinkDatabase()
	}
	h.devices = append(h.devices, d)
	return nil
}

// Devices returns copies of every device in collection order.
func (h *House) Devices() []*Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Device, len(h.devices))
	for i, d := range h.devices {
		out[i] = d.clone()
	}
	return out
}

// Gateways returns copies of the hub devices, active and retired.
func (h *House) Gateways() []*Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Device
	for _, d := range h.devices {
		if d.Gateway {
			out = append(out, d.clone())
		}
	}
	return out
}

// Device returns a copy of one device.
func (h *House) Device(id insteon.ID) (*Device, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d := h.find(id)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d.clone(), nil
}

// Hub returns a copy of the active gateway.
func (h *House) Hub() (*Device, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d := h.find(h.hubID)
	if d == nil {
		return nil, ErrNoGateway
	}
	return d.clone(), nil
}

// detach removes a device from the collection.
func (h *House) detach(id insteon.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, d := range h.devices {
		if d.ID() == id {
			h.devices = append(h.devices[:i], h.devices[i+1:]...)
			return true
		}
	}
	return false
}

// ids snapshots device addresses in collection order.
func (h *House) ids(keep func(*Device) bool) []insteon.ID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []insteon.ID
	for _, d := range h.devices {
		if keep == nil || keep(d) {
			out = append(out, d.ID())
		}
	}
	return out
}

// find must be called with h.mu held.
func (h *House) find(id insteon.ID) *Device {
	for _, d := range h.devices {
		if d.ID() == id {
			return d
		}
	}
	return nil
}

// mutate runs fn on the live device under the write lock.
func (h *House) mutate(id insteon.ID, fn func(d *Device)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.find(id)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	fn(d)
	return nil
}

// Link runs a linking action through the transport and mirrors the outcome
// into the model so both sides' tables stay consistent.
func (h *House) Link(ctx context.Context, action device.LinkingAction, group byte, id insteon.ID) (device.LinkingCompleted, error) {
	result, err := h.transport.PerformLinkingAction(ctx, action, group, id)
	if err != nil {
		return device.LinkingCompleted{}, fmt.Errorf("linking %s with %s: %w", action, id, err)
	}
	h.ApplyLinking(result)
	return result, nil
}
