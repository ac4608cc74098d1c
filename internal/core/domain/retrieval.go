package domain

import "time"

// ScoreMap maps document id to a raw relevance score. Scores from different
// channels are not comparable until normalized.
type ScoreMap map[string]float64

// SearchConfig carries per-query retrieval parameters. The weights are
// trusted as given here; sum-to-1.0 validation is a configuration-boundary
// concern.
type SearchConfig struct {
	VectorTopK    int     `json:"vector_top_k"`
	LexicalTopK   int     `json:"lexical_top_k"`
	FinalTopK     int     `json:"final_top_k"`
	VectorWeight  float64 `json:"vector_weight"`
	LexicalWeight float64 `json:"lexical_weight"`
}

// RankedResult is one fused retrieval hit. VectorScore and LexicalScore are
// the raw pre-normalization channel scores, 0.0 when the channel had no hit.
type RankedResult struct {
	Rank         int     `json:"rank"`
	DocumentID   string  `json:"document_id"`
	HybridScore  float64 `json:"hybrid_score"`
	VectorScore  float64 `json:"vector_score"`
	LexicalScore float64 `json:"lexical_score"`
	Content      string  `json:"content"`
}

// AnsweredQuery is the orchestrator output. Ownership passes to the caller.
type AnsweredQuery struct {
	Query     string         `json:"query"`
	Results   []RankedResult `json:"results"`
	Answer    string         `json:"answer"`
	Timestamp time.Time      `json:"timestamp"`
}

// Generation is the raw output of one generation call.
type Generation struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// IndexStats mirrors the vector store's describe_index_stats response.
type IndexStats struct {
	TotalVectorCount int `json:"total_vector_count"`
	Dimension        int `json:"dimension"`
}

// SystemInfo is the read-only health view exposed by the orchestrator.
type SystemInfo struct {
	DocumentCount      int        `json:"document_count"`
	EmbeddingModel     string     `json:"embedding_model"`
	EmbeddingDimension int        `json:"embedding_dimension"`
	IndexStats         IndexStats `json:"index_stats"`
}
