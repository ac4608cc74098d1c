package memory

import (
	"context"
	"sync"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

// HistoryStore keeps session history in process memory. Used when no
// postgres DSN is configured; history then lives only as long as the
// process.
type HistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Exchange
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{sessions: make(map[string][]domain.Exchange)}
}

func (s *HistoryStore) Append(_ context.Context, exchange domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[exchange.SessionID] = append(s.sessions[exchange.SessionID], exchange)
	return nil
}

// ListRecent returns up to limit exchanges of a session, oldest first.
func (s *HistoryStore) ListRecent(_ context.Context, sessionID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := s.sessions[sessionID]
	if len(exchanges) > limit {
		exchanges = exchanges[len(exchanges)-limit:]
	}
	out := make([]domain.Exchange, len(exchanges))
	copy(out, exchanges)
	return out, nil
}
