package ports

import (
	"context"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

// QueryService is the inbound contract for retrieval-augmented answering.
type QueryService interface {
	Answer(ctx context.Context, query string, cfg domain.SearchConfig) (*domain.AnsweredQuery, error)
	Search(ctx context.Context, query string, cfg domain.SearchConfig) ([]domain.RankedResult, error)
	SystemInfo(ctx context.Context) (*domain.SystemInfo, error)
}

// HistoryService is the inbound read/write model for session history.
type HistoryService interface {
	Record(ctx context.Context, sessionID string, answered *domain.AnsweredQuery) error
	Recent(ctx context.Context, sessionID string) ([]domain.Exchange, error)
}
