// Package plm drives an Insteon PowerLinc Modem over its serial protocol.
package plm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/insteon"
)

const (
	defaultTimeout = 5 * time.Second
	busyRetries    = 3
	busyBackoff    = 200 * time.Millisecond
)

// errBusy is a bare NAK: the modem could not accept the command yet.
var errBusy = errors.New("modem busy")

// Modem implements device.Transport and device.EventSubscriber for a
// PowerLinc Modem. Exchanges are not reentrant; wrap with device.Serialize
// when shared.
type Modem struct {
	port    Port
	timeout time.Duration

	writeMu sync.Mutex

	echo    chan []byte
	inbound chan []byte
	records chan []byte
	linked  chan []byte

	// linkTarget is the device PerformLinkingAction is waiting on.
	linkTarget atomic.Pointer[insteon.ID]

	info   *device.Info
	infoMu sync.Mutex

	subscribers   []chan device.LinkingCompleted
	subscribersMu sync.Mutex

	connected bool
	connMu    sync.RWMutex

	stopChan chan struct{}
	stopped  bool
	stopMu   sync.Mutex
}

// Open opens the serial port at portPath and queries the modem identity.
func Open(portPath string, timeout time.Duration) (*Modem, error) {
	log.Info().Str("port", portPath).Msg("Initializing PLM")
	port, err := OpenSerial(portPath)
	if err != nil {
		return nil, err
	}

	m := New(port, timeout)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	info, err := m.Modem(ctx)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("query modem: %w", err)
	}

	log.Info().
		Str("id", info.ID.String()).
		Uint8("category", info.Category).
		Uint8("subcategory", info.Subcategory).
		Uint8("revision", info.Revision).
		Msg("PLM initialized")

	return m, nil
}

// New starts a modem driver on port. timeout bounds every wait for a reply.
func New(port Port, timeout time.Duration) *Modem {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	m := &Modem{
		port:      port,
		timeout:   timeout,
		echo:      make(chan []byte, 16),
		inbound:   make(chan []byte, 16),
		records:   make(chan []byte, 16),
		linked:    make(chan []byte, 4),
		connected: true,
		stopChan:  make(chan struct{}),
	}
	go m.readLoop()
	return m
}

// readLoop splits the port stream into messages and routes them.
func (m *Modem) readLoop() {
	var p parser
	buf := make([]byte, 1)

	for {
		b, err := readByte(m.port, buf)
		if err != nil {
			if m.isStopped() {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				log.Error().Err(err).Msg("PLM port closed")
				m.setConnected(false)
				return
			}
			log.Error().Err(err).Msg("PLM read error")
			continue
		}

		if msg := p.feed(b); msg != nil {
			m.dispatch(msg)
		}
	}
}

func (m *Modem) dispatch(msg []byte) {
	if len(msg) == 1 {
		deliver(m.echo, msg)
		return
	}

	switch cmd := msg[1]; {
	case cmd == msgStandardReceived || cmd == msgExtendedReceived:
		deliver(m.inbound, msg)
	case cmd == msgAllLinkRecord:
		deliver(m.records, msg)
	case cmd == msgAllLinkCompleted:
		deliver(m.linked, msg)
		evt := linkingCompleted(msg, time.Now())
		if target := m.linkTarget.Load(); target != nil && *target == evt.DeviceID {
			evt.Solicited = true
		}
		m.publish(evt)
	case cmd >= cmdGetIMInfo:
		deliver(m.echo, msg)
	default:
		log.Debug().Hex("message", msg).Msg("Unhandled PLM message")
	}
}

func deliver(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
	default:
		log.Warn().Hex("message", msg).Msg("PLM receive queue full, dropping message")
	}
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// send writes a command and waits for its echo. A busy modem is retried; an
// echo ending in NAK is returned with device.ErrNAK.
func (m *Modem) send(ctx context.Context, frame []byte) ([]byte, error) {
	if !m.IsConnected() {
		return nil, device.ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	for attempt := 1; ; attempt++ {
		drain(m.echo)

		log.Debug().Hex("frame", frame).Msg("PLM TX")
		if _, err := m.port.Write(frame); err != nil {
			return nil, fmt.Errorf("write command %#02x: %w", frame[1], err)
		}

		reply, err := m.awaitEcho(ctx, frame[1])
		if !errors.Is(err, errBusy) {
			return reply, err
		}
		if attempt == busyRetries {
			return nil, fmt.Errorf("%w: command %#02x refused %d times", device.ErrNAK, frame[1], attempt)
		}

		select {
		case <-time.After(busyBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Modem) awaitEcho(ctx context.Context, cmd byte) ([]byte, error) {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-m.echo:
			if len(msg) == 1 {
				return nil, errBusy
			}
			if msg[1] != cmd {
				log.Debug().Hex("message", msg).Msg("PLM stale echo")
				continue
			}
			if msg[len(msg)-1] == nak {
				return msg, fmt.Errorf("%w: command %#02x", device.ErrNAK, cmd)
			}
			return msg, nil
		case <-timer.C:
			return nil, fmt.Errorf("%w: no reply to command %#02x", device.ErrTimeout, cmd)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.stopChan:
			return nil, device.ErrNotConnected
		}
	}
}

// await returns the next message on ch accepted by match.
func (m *Modem) await(ctx context.Context, ch chan []byte, match func([]byte) bool) ([]byte, error) {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-ch:
			if match == nil || match(msg) {
				return msg, nil
			}
		case <-timer.C:
			return nil, device.ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.stopChan:
			return nil, device.ErrNotConnected
		}
	}
}

// awaitDirectAck waits for id to acknowledge a direct command.
func (m *Modem) awaitDirectAck(ctx context.Context, id insteon.ID, cmd1 byte) error {
	msg, err := m.await(ctx, m.inbound, func(msg []byte) bool {
		kind := msg[8] & insteonAckMask
		return msg[1] == msgStandardReceived && senderOf(msg) == id && msg[9] == cmd1 &&
			(kind == insteonDirectAck || kind == insteonDirectNak)
	})
	if err != nil {
		return err
	}
	if msg[8]&insteonAckMask == insteonDirectNak {
		return fmt.Errorf("%w: %s refused command %#02x", device.ErrNAK, id, cmd1)
	}
	return nil
}

// Modem queries the modem identity.
func (m *Modem) Modem(ctx context.Context) (device.Info, error) {
	reply, err := m.send(ctx, []byte{stx, cmdGetIMInfo})
	if err != nil {
		return device.Info{}, err
	}
	info := device.Info{
		ID:          insteon.ID{reply[2], reply[3], reply[4]},
		Category:    reply[5],
		Subcategory: reply[6],
		Revision:    reply[7],
	}

	m.infoMu.Lock()
	m.info = &info
	m.infoMu.Unlock()

	return info, nil
}

func (m *Modem) modemID(ctx context.Context) (insteon.ID, error) {
	m.infoMu.Lock()
	info := m.info
	m.infoMu.Unlock()
	if info != nil {
		return info.ID, nil
	}
	fresh, err := m.Modem(ctx)
	return fresh.ID, err
}

var linkCodes = map[device.LinkingAction]byte{
	device.CreateAutoLink:       linkCodeAuto,
	device.CreateControllerLink: linkCodeController,
	device.CreateResponderLink:  linkCodeResponder,
	device.DeleteLink:           linkCodeDelete,
}

// linkingCompleted decodes a 0x53 message.
func linkingCompleted(msg []byte, at time.Time) device.LinkingCompleted {
	action := device.CreateControllerLink
	switch msg[2] {
	case linkCodeResponder:
		action = device.CreateResponderLink
	case linkCodeDelete:
		action = device.DeleteLink
	}
	return device.LinkingCompleted{
		Action:      action,
		Group:       msg[3],
		DeviceID:    insteon.ID{msg[4], msg[5], msg[6]},
		Category:    msg[7],
		Subcategory: msg[8],
		Revision:    msg[9],
		Timestamp:   at,
	}
}

// PerformLinkingAction puts the modem in linking mode, asks the peer to
// join remotely and waits for the modem to report completion. Auto-link is
// sent as controller.
func (m *Modem) PerformLinkingAction(ctx context.Context, action device.LinkingAction, group byte, id insteon.ID) (device.LinkingCompleted, error) {
	if action == device.CreateAutoLink {
		action = device.CreateControllerLink
	}
	code, ok := linkCodes[action]
	if !ok {
		return device.LinkingCompleted{}, fmt.Errorf("%w: linking action %s", device.ErrValidation, action)
	}

	drain(m.linked)
	m.linkTarget.Store(&id)
	defer m.linkTarget.Store(nil)
	if _, err := m.send(ctx, []byte{stx, cmdStartAllLinking, code, group}); err != nil {
		return device.LinkingCompleted{}, fmt.Errorf("start linking: %w", err)
	}

	imID, err := m.modemID(ctx)
	if err != nil {
		m.cancelLinking()
		return device.LinkingCompleted{}, err
	}
	if id != imID {
		drain(m.inbound)
		if _, err := m.send(ctx, extendedMessage(id, cmdEnterLinkingMode, group, nil)); err != nil {
			m.cancelLinking()
			return device.LinkingCompleted{}, fmt.Errorf("enter linking mode on %s: %w", id, err)
		}
		if err := m.awaitDirectAck(ctx, id, cmdEnterLinkingMode); err != nil {
			m.cancelLinking()
			return device.LinkingCompleted{}, fmt.Errorf("enter linking mode on %s: %w", id, err)
		}
	}

	msg, err := m.await(ctx, m.linked, func(msg []byte) bool {
		return insteon.ID{msg[4], msg[5], msg[6]} == id
	})
	if err != nil {
		m.cancelLinking()
		return device.LinkingCompleted{}, fmt.Errorf("waiting for %s to link: %w", id, err)
	}

	result := linkingCompleted(msg, time.Now())
	result.Solicited = true
	log.Info().
		Str("device", id.String()).
		Str("action", result.Action.String()).
		Uint8("group", group).
		Msg("Linking completed")
	return result, nil
}

// cancelLinking takes the modem out of linking mode. It runs with its own
// deadline since the caller's context may already be done.
func (m *Modem) cancelLinking() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if _, err := m.send(ctx, []byte{stx, cmdCancelAllLinking}); err != nil {
		log.Warn().Err(err).Msg("Failed to cancel linking mode")
	}
}

func (m *Modem) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

func (m *Modem) setConnected(v bool) {
	m.connMu.Lock()
	m.connected = v
	m.connMu.Unlock()
}

func (m *Modem) isStopped() bool {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	return m.stopped
}

func (m *Modem) Close() {
	m.setConnected(false)

	m.stopMu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.stopChan)
	}
	m.stopMu.Unlock()

	if err := m.port.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close serial port")
	}

	log.Info().Msg("PLM closed")
}

// --- device.EventSubscriber interface ---

func (m *Modem) Subscribe() chan device.LinkingCompleted {
	ch := make(chan device.LinkingCompleted, 16)
	m.subscribersMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subscribersMu.Unlock()
	return ch
}

func (m *Modem) Unsubscribe(ch chan device.LinkingCompleted) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Modem) publish(evt device.LinkingCompleted) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

var (
	_ device.Transport       = (*Modem)(nil)
	_ device.EventSubscriber = (*Modem)(nil)
)
