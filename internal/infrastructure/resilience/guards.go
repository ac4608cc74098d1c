package resilience

import (
	"context"

	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/ports"
)

// Port decorators routing every outbound call through the executor. The
// retrieval layer keeps its degrade-to-empty semantics; these only bound how
// hard a failing dependency is hammered first.

type GuardedEmbedder struct {
	inner ports.QueryEmbedder
	exec  *Executor
}

func GuardEmbedder(inner ports.QueryEmbedder, exec *Executor) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, exec: exec}
}

func (g *GuardedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := g.exec.Execute(ctx, "embed_query", func(ctx context.Context) error {
		var innerErr error
		vector, innerErr = g.inner.EmbedQuery(ctx, text)
		return innerErr
	})
	return vector, err
}

func (g *GuardedEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := g.exec.Execute(ctx, "embed_passage", func(ctx context.Context) error {
		var innerErr error
		vector, innerErr = g.inner.EmbedPassage(ctx, text)
		return innerErr
	})
	return vector, err
}

func (g *GuardedEmbedder) Dimension() int { return g.inner.Dimension() }

func (g *GuardedEmbedder) ModelName() string { return g.inner.ModelName() }

type GuardedDenseIndex struct {
	inner ports.DenseIndex
	exec  *Executor
}

func GuardDenseIndex(inner ports.DenseIndex, exec *Executor) *GuardedDenseIndex {
	return &GuardedDenseIndex{inner: inner, exec: exec}
}

func (g *GuardedDenseIndex) Search(ctx context.Context, queryVector []float32, topK int) (domain.ScoreMap, error) {
	var scores domain.ScoreMap
	err := g.exec.Execute(ctx, "vector_search", func(ctx context.Context) error {
		var innerErr error
		scores, innerErr = g.inner.Search(ctx, queryVector, topK)
		return innerErr
	})
	return scores, err
}

func (g *GuardedDenseIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats
	err := g.exec.Execute(ctx, "index_stats", func(ctx context.Context) error {
		var innerErr error
		stats, innerErr = g.inner.Stats(ctx)
		return innerErr
	})
	return stats, err
}

func (g *GuardedDenseIndex) PullCorpus(ctx context.Context, sampleCap int) ([]domain.Document, error) {
	var docs []domain.Document
	err := g.exec.Execute(ctx, "pull_corpus", func(ctx context.Context) error {
		var innerErr error
		docs, innerErr = g.inner.PullCorpus(ctx, sampleCap)
		return innerErr
	})
	return docs, err
}

type GuardedGenerator struct {
	inner ports.AnswerGenerator
	exec  *Executor
}

func GuardGenerator(inner ports.AnswerGenerator, exec *Executor) *GuardedGenerator {
	return &GuardedGenerator{inner: inner, exec: exec}
}

func (g *GuardedGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (domain.Generation, error) {
	var gen domain.Generation
	err := g.exec.Execute(ctx, "generate_answer", func(ctx context.Context) error {
		var innerErr error
		gen, innerErr = g.inner.Complete(ctx, systemPrompt, userPrompt)
		return innerErr
	})
	return gen, err
}
