package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

// Metadata keys written by the ingestion pipeline that populated the index.
const (
	metadataFilename = "filename"
	metadataText     = "text"
)

// Client talks to one Pinecone index over its data-plane REST API. The
// vector store is the system of record for the corpus: the lexical index is
// derived from the metadata pulled here, not the other way around.
type Client struct {
	baseURL    string
	apiKey     string
	dimension  int
	httpClient *http.Client
}

func New(indexHost, apiKey string, dimension int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(indexHost, "/"),
		apiKey:     apiKey,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type queryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Search maps each hit's filename metadata field to its similarity score.
// Hits without a filename are skipped; they can never be resolved against
// the corpus and must not crash the query path.
func (c *Client) Search(ctx context.Context, queryVector []float32, topK int) (domain.ScoreMap, error) {
	matches, err := c.query(ctx, queryVector, topK)
	if err != nil {
		return nil, err
	}

	scores := make(domain.ScoreMap, len(matches))
	for _, match := range matches {
		filename := metadataString(match.Metadata, metadataFilename)
		if filename == "" {
			continue
		}
		scores[filename] = match.Score
	}
	return scores, nil
}

// Stats reads describe_index_stats. Errors propagate: the caller decides
// whether missing stats are fatal.
func (c *Client) Stats(ctx context.Context) (domain.IndexStats, error) {
	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Dimension        int `json:"dimension"`
	}
	if err := c.postJSON(ctx, "/describe_index_stats", map[string]any{}, &resp, "describe index stats"); err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		TotalVectorCount: resp.TotalVectorCount,
		Dimension:        resp.Dimension,
	}, nil
}

// PullCorpus performs the bootstrap metadata pull: a dummy zero-vector query
// bounded at min(sampleCap, total vector count), deduplicated by filename
// first-seen-wins. Corpora larger than the cap get incomplete lexical
// coverage — a known sampling limitation, kept on purpose.
func (c *Client) PullCorpus(ctx context.Context, sampleCap int) ([]domain.Document, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.TotalVectorCount == 0 {
		return nil, nil
	}

	topK := sampleCap
	if stats.TotalVectorCount < topK {
		topK = stats.TotalVectorCount
	}

	matches, err := c.query(ctx, make([]float32, c.dimension), topK)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(matches))
	docs := make([]domain.Document, 0, len(matches))
	for _, match := range matches {
		filename := metadataString(match.Metadata, metadataFilename)
		if filename == "" {
			continue
		}
		if _, ok := seen[filename]; ok {
			continue
		}
		seen[filename] = struct{}{}
		docs = append(docs, domain.Document{
			ID:      filename,
			Content: metadataString(match.Metadata, metadataText),
		})
	}
	return docs, nil
}

func (c *Client) query(ctx context.Context, vector []float32, topK int) ([]queryMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}

	var resp struct {
		Matches []queryMatch `json:"matches"`
	}
	if err := c.postJSON(ctx, "/query", reqBody, &resp, "query"); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return fmt.Errorf("pinecone %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("pinecone %s status: %s", operation, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func metadataString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
