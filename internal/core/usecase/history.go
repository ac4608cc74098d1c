package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/ports"
)

// HistoryUseCase records answered queries per caller-owned session. It
// replaces ambient session state: every call is keyed by an explicit
// session id.
type HistoryUseCase struct {
	store       ports.HistoryStore
	recentLimit int
}

func NewHistoryUseCase(store ports.HistoryStore, recentLimit int) *HistoryUseCase {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &HistoryUseCase{store: store, recentLimit: recentLimit}
}

func (uc *HistoryUseCase) Record(ctx context.Context, sessionID string, answered *domain.AnsweredQuery) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record exchange", fmt.Errorf("empty session id"))
	}
	if answered == nil {
		return domain.WrapError(domain.ErrInvalidInput, "record exchange", fmt.Errorf("nil answered query"))
	}

	createdAt := answered.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return uc.store.Append(ctx, domain.Exchange{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Query:       answered.Query,
		Answer:      answered.Answer,
		SourceCount: len(answered.Results),
		CreatedAt:   createdAt,
	})
}

func (uc *HistoryUseCase) Recent(ctx context.Context, sessionID string) ([]domain.Exchange, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list exchanges", fmt.Errorf("empty session id"))
	}
	return uc.store.ListRecent(ctx, sessionID, uc.recentLimit)
}
