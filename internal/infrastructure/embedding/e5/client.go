package e5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// E5-family models are trained with role prefixes; dropping them degrades
// retrieval quality even though the fusion algorithm never sees them.
const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// Client embeds text through a text-embeddings-inference server hosting a
// multilingual E5 model. Vectors come back L2-normalized.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

func New(baseURL, model string, dimension int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, queryPrefix+text)
}

func (c *Client) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, passagePrefix+text)
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) embed(ctx context.Context, input string) ([]float32, error) {
	reqBody := map[string]any{
		"inputs":    []string{input},
		"normalize": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return nil, fmt.Errorf("embedding status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("embedding status: %s", resp.Status)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	if c.dimension > 0 && len(vectors[0]) != c.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vectors[0]), c.dimension)
	}
	return vectors[0], nil
}
