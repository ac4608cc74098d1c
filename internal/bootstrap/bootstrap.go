package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/univera-lab/univera-rag/internal/config"
	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/ports"
	"github.com/univera-lab/univera-rag/internal/core/usecase"
	"github.com/univera-lab/univera-rag/internal/infrastructure/embedding/e5"
	"github.com/univera-lab/univera-rag/internal/infrastructure/llm/openai"
	"github.com/univera-lab/univera-rag/internal/infrastructure/repository/memory"
	"github.com/univera-lab/univera-rag/internal/infrastructure/repository/postgres"
	"github.com/univera-lab/univera-rag/internal/infrastructure/resilience"
	"github.com/univera-lab/univera-rag/internal/infrastructure/vector/pinecone"
	"github.com/univera-lab/univera-rag/internal/search/lexical"
)

type App struct {
	Config config.Config

	Corpus    *domain.Corpus
	QueryUC   ports.QueryService
	HistoryUC ports.HistoryService

	closeFn func()
}

// New wires the full system. The vector store is the system of record: the
// corpus and the lexical index are derived from its metadata here, once,
// and stay immutable for the process lifetime. An unreachable vector store
// is fatal for the startup attempt — there is no cached fallback corpus.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	dense := resilience.GuardDenseIndex(
		pinecone.New(cfg.PineconeIndexHost, cfg.PineconeAPIKey, cfg.EmbeddingDimension),
		executor,
	)
	embedder := resilience.GuardEmbedder(
		e5.New(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.EmbeddingDimension),
		executor,
	)
	generator := resilience.GuardGenerator(
		openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel,
			cfg.OpenAIMaxTokens, cfg.OpenAITemperature, cfg.OpenAITopP),
		executor,
	)

	docs, err := dense.PullCorpus(ctx, cfg.BootstrapSampleCap)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorpusUnavailable, "bootstrap corpus pull", err)
	}

	corpus := domain.NewCorpus()
	for _, doc := range docs {
		corpus.Add(doc)
	}
	if corpus.Len() == 0 {
		// A fully empty corpus blocks every answer; refuse to start instead
		// of serving a permanently empty index.
		return nil, domain.WrapError(domain.ErrCorpusUnavailable, "bootstrap corpus pull",
			fmt.Errorf("no documents in index (sample cap %d)", cfg.BootstrapSampleCap))
	}
	lexicalIndex := lexical.Build(corpus.Documents())
	slog.Info("corpus_loaded",
		"documents", corpus.Len(),
		"sample_cap", cfg.BootstrapSampleCap,
	)

	ranker := usecase.NewHybridRanker(embedder, dense, lexicalIndex, corpus)
	queryUC := usecase.NewAnswerUseCase(ranker, generator, embedder, dense, corpus)

	historyStore, closeFn, err := newHistoryStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	historyUC := usecase.NewHistoryUseCase(historyStore, cfg.HistoryLimit)

	return &App{
		Config:    cfg,
		Corpus:    corpus,
		QueryUC:   queryUC,
		HistoryUC: historyUC,
		closeFn:   closeFn,
	}, nil
}

func newHistoryStore(ctx context.Context, cfg config.Config) (ports.HistoryStore, func(), error) {
	if cfg.PostgresDSN == "" {
		slog.Info("history_store", "backend", "memory")
		return memory.NewHistoryStore(), func() {}, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewHistoryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure history schema: %w", err)
	}
	slog.Info("history_store", "backend", "postgres")
	return repo, func() { _ = db.Close() }, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
