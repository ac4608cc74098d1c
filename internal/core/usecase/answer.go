package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/ports"
)

const answerSystemPrompt = `당신은 유니베라 회사에 대한 전문 어시스턴트입니다.
주어진 문서들을 바탕으로 사용자의 질문에 정확하고 유용한 답변을 제공하세요.

답변 작성 가이드라인:
1. 주어진 문서 내용만을 바탕으로 답변하세요
2. 구체적이고 정확한 정보를 제공하세요
3. 출처가 되는 문서명을 답변 끝에 명시하세요
4. 문서에 없는 내용은 추측하지 마세요
5. 한국어로 자연스럽게 답변하세요
6. 답변을 구조화하여 가독성을 높이세요`

// GenerationFallback is returned verbatim whenever the generation call
// fails; retrieval results still reach the caller.
const GenerationFallback = "죄송합니다. 답변 생성 중 오류가 발생했습니다."

// AnswerUseCase is the top-level RAG orchestrator: hybrid retrieval, context
// assembly and the generation call.
type AnswerUseCase struct {
	ranker    *HybridRanker
	generator ports.AnswerGenerator
	embedder  ports.QueryEmbedder
	dense     ports.DenseIndex
	corpus    *domain.Corpus
	now       func() time.Time
}

func NewAnswerUseCase(
	ranker *HybridRanker,
	generator ports.AnswerGenerator,
	embedder ports.QueryEmbedder,
	dense ports.DenseIndex,
	corpus *domain.Corpus,
) *AnswerUseCase {
	return &AnswerUseCase{
		ranker:    ranker,
		generator: generator,
		embedder:  embedder,
		dense:     dense,
		corpus:    corpus,
		now:       time.Now,
	}
}

// Answer runs the full pipeline for one question. A generation failure is
// absorbed into the fixed fallback string — retrieval success with degraded
// generation still returns populated results.
func (uc *AnswerUseCase) Answer(ctx context.Context, query string, cfg domain.SearchConfig) (*domain.AnsweredQuery, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("empty query"))
	}

	results := uc.ranker.Search(ctx, query, cfg)
	slog.Info("hybrid_search_done",
		"query", query,
		"results", len(results),
		"vector_weight", cfg.VectorWeight,
		"lexical_weight", cfg.LexicalWeight,
	)

	return &domain.AnsweredQuery{
		Query:     query,
		Results:   results,
		Answer:    uc.generateAnswer(ctx, query, results),
		Timestamp: uc.now().UTC(),
	}, nil
}

// Search exposes retrieval without a generation call.
func (uc *AnswerUseCase) Search(ctx context.Context, query string, cfg domain.SearchConfig) ([]domain.RankedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("empty query"))
	}
	return uc.ranker.Search(ctx, query, cfg), nil
}

// SystemInfo is the read-only health view. A vector store failure propagates
// here — unlike the query path it has no degraded-mode meaning.
func (uc *AnswerUseCase) SystemInfo(ctx context.Context) (*domain.SystemInfo, error) {
	stats, err := uc.dense.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe index stats: %w", err)
	}
	return &domain.SystemInfo{
		DocumentCount:      uc.corpus.Len(),
		EmbeddingModel:     uc.embedder.ModelName(),
		EmbeddingDimension: uc.embedder.Dimension(),
		IndexStats:         stats,
	}, nil
}

func (uc *AnswerUseCase) generateAnswer(ctx context.Context, query string, results []domain.RankedResult) string {
	gen, err := uc.generator.Complete(ctx, answerSystemPrompt, buildUserPrompt(query, buildContext(results)))
	if err != nil {
		slog.Error("generate_answer_failed", "error", err)
		return GenerationFallback
	}
	slog.Info("llm_token_usage",
		"prompt_tokens", gen.PromptTokens,
		"completion_tokens", gen.CompletionTokens,
		"total_tokens", gen.TotalTokens,
	)
	return gen.Text
}

func buildUserPrompt(query, context string) string {
	return fmt.Sprintf(`다음 문서들을 참고하여 질문에 답변해주세요.

질문: %s

참고 문서들:
%s

위 문서들을 바탕으로 질문에 대해 정확하고 상세한 답변을 제공해주세요.`, query, context)
}
