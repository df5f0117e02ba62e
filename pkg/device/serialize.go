package device

import (
	"context"
	"sync"

	"github.com/urmzd/linkhub/pkg/insteon"
)

// serialized guards a Transport so that at most one exchange is in flight,
// however many jobs are running.
type serialized struct {
	mu    sync.Mutex
	inner Transport
}

// Serialize wraps t with a single exchange lock. Wrapping an already
// serialized transport returns it unchanged.
func Serialize(t Transport) Transport {
	if s, ok := t.(*serialized); ok {
		return s
	}
	return &serialized{inner: t}
}

func (s *serialized) Modem(ctx context.Context) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Modem(ctx)
}

func (s *serialized) ReadLinkDatabase(ctx context.Context, id insteon.ID) (*insteon.LinkDatabase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ReadLinkDatabase(ctx, id)
}

func (s *serialized) WriteLinkDatabase(ctx context.Context, id insteon.ID, db *insteon.LinkDatabase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.WriteLinkDatabase(ctx, id, db)
}

func (s *serialized) PerformLinkingAction(ctx context.Context, action LinkingAction, group byte, id insteon.ID) (LinkingCompleted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PerformLinkingAction(ctx, action, group, id)
}

func (s *serialized) IsConnected() bool {
	return s.inner.IsConnected()
}

func (s *serialized) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Close()
}
