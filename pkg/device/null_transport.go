package device

import (
	"context"

	"github.com/urmzd/linkhub/pkg/insteon"
)

// NullTransport is a no-op transport used when the modem is unavailable.
// It allows the API to run in limited mode against the persisted model.
type NullTransport struct{}

// NewNullTransport creates a new NullTransport.
func NewNullTransport() *NullTransport {
	return &NullTransport{}
}

func (t *NullTransport) Modem(ctx context.Context) (Info, error) {
	return Info{}, ErrNotConnected
}

func (t *NullTransport) ReadLinkDatabase(ctx context.Context, id insteon.ID) (*insteon.LinkDatabase, error) {
	return nil, ErrNotConnected
}

func (t *NullTransport) WriteLinkDatabase(ctx context.Context, id insteon.ID, db *insteon.LinkDatabase) error {
	return ErrNotConnected
}

func (t *NullTransport) PerformLinkingAction(ctx context.Context, action LinkingAction, group byte, id insteon.ID) (LinkingCompleted, error) {
	return LinkingCompleted{}, ErrNotConnected
}

func (t *NullTransport) IsConnected() bool {
	return false
}

func (t *NullTransport) Close() {}
