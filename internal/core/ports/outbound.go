package ports

import (
	"context"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

// QueryEmbedder maps text to a fixed-dimensional vector. Query-role and
// passage-role encodings carry different textual prefixes, which the
// embedding model depends on.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}

// DenseIndex queries the externally hosted nearest-neighbor vector store.
type DenseIndex interface {
	// Search returns per-document similarity scores for up to topK hits.
	Search(ctx context.Context, queryVector []float32, topK int) (domain.ScoreMap, error)
	// Stats reads the index statistics. Errors propagate to the caller.
	Stats(ctx context.Context) (domain.IndexStats, error)
	// PullCorpus performs the bounded bootstrap metadata pull. The sample
	// cap bounds corpora larger than it; that coverage limitation is
	// deliberate.
	PullCorpus(ctx context.Context, sampleCap int) ([]domain.Document, error)
}

// LexicalIndex ranks corpus documents by keyword overlap. Implementations
// must apply the identical text normalization to documents at build time and
// to queries at search time.
type LexicalIndex interface {
	Search(query string, topK int) domain.ScoreMap
}

// AnswerGenerator sends one (system, user) prompt pair to the external LLM
// endpoint.
type AnswerGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (domain.Generation, error)
}

// HistoryStore persists chat exchanges keyed by session id.
type HistoryStore interface {
	Append(ctx context.Context, exchange domain.Exchange) error
	ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.Exchange, error)
}
