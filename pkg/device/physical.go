package device

import (
	"context"

	"github.com/urmzd/linkhub/pkg/insteon"
)

// PhysicalDevice is a device that can be linked. The linking state machine and
// the job scheduler depend only on this capability, never on whether the device
// is simulated or reached over the modem.
type PhysicalDevice interface {
	// ID returns the device address
	ID() insteon.ID

	// Category, Subcategory and Revision identify the product
	Category() byte
	Subcategory() byte
	Revision() byte

	// Database returns the device's own link table
	Database() *insteon.LinkDatabase
}

// InterfaceModem is the hub/PLM. Its link table is kept compressed and can be
// walked with a cursor, mirroring the modem's "get first / get next" commands.
type InterfaceModem interface {
	PhysicalDevice

	// FirstRecord rewinds the cursor and returns the first undeleted record
	FirstRecord() (insteon.LinkRecord, bool)

	// NextRecord advances the cursor
	NextRecord() (insteon.LinkRecord, bool)

	// HandleLinkingAction applies a linking action to the modem's table and,
	// when peer is not nil, to the peer's table
	HandleLinkingAction(action LinkingAction, group byte, deviceID insteon.ID, peer PhysicalDevice) LinkingCompleted
}

// Transport is the contract to the physical layer. Implementations own the
// wire protocol, timeouts and retries; callers only see capability calls.
type Transport interface {
	// Modem returns the identity of the interface modem behind the transport
	Modem(ctx context.Context) (Info, error)

	// ReadLinkDatabase reads the full link table of a device
	ReadLinkDatabase(ctx context.Context, id insteon.ID) (*insteon.LinkDatabase, error)

	// WriteLinkDatabase replaces the link table of a device
	WriteLinkDatabase(ctx context.Context, id insteon.ID, db *insteon.LinkDatabase) error

	// PerformLinkingAction runs a linking action between the modem and a device
	PerformLinkingAction(ctx context.Context, action LinkingAction, group byte, id insteon.ID) (LinkingCompleted, error)

	// IsConnected returns true if the transport can reach the modem
	IsConnected() bool

	// Close releases the transport
	Close()
}

// EventSubscriber defines the interface for subscribing to linking events
type EventSubscriber interface {
	// Subscribe returns a channel that receives linking-completed events
	Subscribe() chan LinkingCompleted

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan LinkingCompleted)
}
