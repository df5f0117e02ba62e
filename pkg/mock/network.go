package mock

import (
	"context"
	"sync"

	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
)

// Network is a device.Transport over simulated devices. Exchanges with a
// device marked unreachable fail with device.ErrTimeout.
type Network struct {
	mu          sync.Mutex
	im          *PhysicalIM
	devices     map[insteon.ID]*PhysicalDevice
	unreachable map[insteon.ID]bool
	exchanges   int
	onExchange  func(id insteon.ID)
	closed      bool

	subscribers   []chan device.LinkingCompleted
	subscribersMu sync.Mutex
}

// NewNetwork creates a network around the modem im.
func NewNetwork(im *PhysicalIM) *Network {
	return &Network{
		im:          im,
		devices:     make(map[insteon.ID]*PhysicalDevice),
		unreachable: make(map[insteon.ID]bool),
	}
}

// IM returns the simulated modem.
func (n *Network) IM() *PhysicalIM {
	return n.im
}

// Add attaches devices to the network.
func (n *Network) Add(devices ...*PhysicalDevice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, d := range devices {
		n.devices[d.ID()] = d
	}
}

// Device returns an attached device.
func (n *Network) Device(id insteon.ID) (*PhysicalDevice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.devices[id]
	return d, ok
}

// SetUnreachable toggles failure injection for a device.
func (n *Network) SetUnreachable(id insteon.ID, unreachable bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if unreachable {
		n.unreachable[id] = true
	} else {
		delete(n.unreachable, id)
	}
}

// OnExchange registers a hook invoked at the start of every device exchange,
// outside the network lock.
func (n *Network) OnExchange(fn func(id insteon.ID)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onExchange = fn
}

// Exchanges returns how many device exchanges were attempted.
func (n *Network) Exchanges() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.exchanges
}

// begin counts an exchange, runs the hook and resolves the target.
func (n *Network) begin(id insteon.ID) (*PhysicalDevice, error) {
	n.mu.Lock()
	n.exchanges++
	hook := n.onExchange
	n.mu.Unlock()

	if hook != nil {
		hook(id)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, device.ErrNotConnected
	}
	if n.unreachable[id] {
		return nil, device.ErrTimeout
	}
	if id == n.im.ID() {
		return &n.im.PhysicalDevice, nil
	}
	d, ok := n.devices[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	return d, nil
}

func (n *Network) Modem(_ context.Context) (device.Info, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return device.Info{}, device.ErrNotConnected
	}
	return n.im.Info(), nil
}

func (n *Network) ReadLinkDatabase(ctx context.Context, id insteon.ID) (*insteon.LinkDatabase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := n.begin(id)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return d.db.Clone(), nil
}

func (n *Network) WriteLinkDatabase(ctx context.Context, id insteon.ID, db *insteon.LinkDatabase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := n.begin(id)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	d.db = db.Clone()
	if id == n.im.ID() {
		d.db.Compress()
		n.im.cursor = 0
	}
	return nil
}

func (n *Network) PerformLinkingAction(ctx context.Context, action device.LinkingAction, group byte, id insteon.ID) (device.LinkingCompleted, error) {
	if err := ctx.Err(); err != nil {
		return device.LinkingCompleted{}, err
	}
	peer, err := n.begin(id)
	if err != nil {
		return device.LinkingCompleted{}, err
	}

	result := n.link(action, group, id, peer)
	result.Solicited = true
	n.publish(result)
	return result, nil
}

// PressSetButton links id with the modem the way holding both set buttons
// does: the tables change and an unsolicited event is published without any
// host exchange.
func (n *Network) PressSetButton(action device.LinkingAction, group byte, id insteon.ID) (device.LinkingCompleted, error) {
	n.mu.Lock()
	peer, ok := n.devices[id]
	n.mu.Unlock()
	if !ok {
		return device.LinkingCompleted{}, device.ErrNotFound
	}

	result := n.link(action, group, id, peer)
	n.publish(result)
	return result, nil
}

func (n *Network) link(action device.LinkingAction, group byte, id insteon.ID, peer *PhysicalDevice) device.LinkingCompleted {
	n.mu.Lock()
	defer n.mu.Unlock()
	if peer == &n.im.PhysicalDevice {
		return n.im.HandleLinkingAction(action, group, id, nil)
	}
	return n.im.HandleLinkingAction(action, group, id, peer)
}

func (n *Network) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.closed
}

func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

// --- device.EventSubscriber interface ---

func (n *Network) Subscribe() chan device.LinkingCompleted {
	ch := make(chan device.LinkingCompleted, 16)
	n.subscribersMu.Lock()
	n.subscribers = append(n.subscribers, ch)
	n.subscribersMu.Unlock()
	return ch
}

func (n *Network) Unsubscribe(ch chan device.LinkingCompleted) {
	n.subscribersMu.Lock()
	defer n.subscribersMu.Unlock()

	for i, sub := range n.subscribers {
		if sub == ch {
			n.subscribers = append(n.subscribers[:i], n.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (n *Network) publish(evt device.LinkingCompleted) {
	n.subscribersMu.Lock()
	defer n.subscribersMu.Unlock()

	for _, ch := range n.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

var (
	_ device.Transport       = (*Network)(nil)
	_ device.EventSubscriber = (*Network)(nil)
)
