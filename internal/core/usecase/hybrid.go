package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/ports"
)

// HybridRanker fuses the dense and lexical retrieval channels into one
// ranked list. Both channels run over read-only state; a failing dense
// channel degrades to lexical-only results instead of failing the query.
type HybridRanker struct {
	embedder ports.QueryEmbedder
	dense    ports.DenseIndex
	lexical  ports.LexicalIndex
	corpus   *domain.Corpus
}

func NewHybridRanker(
	embedder ports.QueryEmbedder,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	corpus *domain.Corpus,
) *HybridRanker {
	return &HybridRanker{
		embedder: embedder,
		dense:    dense,
		lexical:  lexical,
		corpus:   corpus,
	}
}

// Search runs both channels, min-max normalizes each score map, combines
// them by weighted sum and returns at most cfg.FinalTopK results. The
// weights are trusted as given; their sum is validated at the configuration
// boundary. An empty return means neither channel had a hit — the
// "no relevant documents" case, not an error.
func (r *HybridRanker) Search(ctx context.Context, query string, cfg domain.SearchConfig) []domain.RankedResult {
	vectorRaw := r.denseScores(ctx, query, cfg.VectorTopK)
	lexicalRaw := r.lexical.Search(query, cfg.LexicalTopK)

	vectorNorm := normalizeScores(vectorRaw)
	lexicalNorm := normalizeScores(lexicalRaw)

	hybrid := make(domain.ScoreMap, len(vectorNorm)+len(lexicalNorm))
	for id, score := range vectorNorm {
		hybrid[id] = cfg.VectorWeight * score
	}
	for id, score := range lexicalNorm {
		hybrid[id] += cfg.LexicalWeight * score
	}

	// Map iteration order is not a ranking. Equal hybrid scores break by
	// ascending document id so results are deterministic.
	ids := make([]string, 0, len(hybrid))
	for id := range hybrid {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if hybrid[ids[a]] != hybrid[ids[b]] {
			return hybrid[ids[a]] > hybrid[ids[b]]
		}
		return ids[a] < ids[b]
	})

	if cfg.FinalTopK >= 0 && len(ids) > cfg.FinalTopK {
		ids = ids[:cfg.FinalTopK]
	}

	results := make([]domain.RankedResult, 0, len(ids))
	for rank, id := range ids {
		content, _ := r.corpus.Content(id)
		results = append(results, domain.RankedResult{
			Rank:         rank + 1,
			DocumentID:   id,
			HybridScore:  hybrid[id],
			VectorScore:  vectorRaw[id],
			LexicalScore: lexicalRaw[id],
			Content:      content,
		})
	}
	return results
}

// denseScores wraps the embed+search pair of the dense channel. Any failure
// is logged and degraded to an empty map so the query continues on lexical
// signal alone.
func (r *HybridRanker) denseScores(ctx context.Context, query string, topK int) domain.ScoreMap {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("dense_channel_degraded", "stage", "embed_query", "error", err)
		return domain.ScoreMap{}
	}

	scores, err := r.dense.Search(ctx, vector, topK)
	if err != nil {
		slog.Warn("dense_channel_degraded", "stage", "vector_search", "error", err)
		return domain.ScoreMap{}
	}
	if scores == nil {
		return domain.ScoreMap{}
	}
	return scores
}
