package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/usecase"
	"github.com/univera-lab/univera-rag/internal/observability/metrics"
)

type fakeQueryService struct {
	answered *domain.AnsweredQuery
	results  []domain.RankedResult
	info     *domain.SystemInfo
	err      error

	lastQuery string
	lastCfg   domain.SearchConfig
}

func (f *fakeQueryService) Answer(_ context.Context, query string, cfg domain.SearchConfig) (*domain.AnsweredQuery, error) {
	f.lastQuery = query
	f.lastCfg = cfg
	return f.answered, f.err
}

func (f *fakeQueryService) Search(_ context.Context, query string, cfg domain.SearchConfig) ([]domain.RankedResult, error) {
	f.lastQuery = query
	f.lastCfg = cfg
	return f.results, f.err
}

func (f *fakeQueryService) SystemInfo(context.Context) (*domain.SystemInfo, error) {
	return f.info, f.err
}

type fakeHistoryService struct {
	exchanges []domain.Exchange
	err       error

	recorded []string
}

func (f *fakeHistoryService) Record(_ context.Context, sessionID string, _ *domain.AnsweredQuery) error {
	f.recorded = append(f.recorded, sessionID)
	return f.err
}

func (f *fakeHistoryService) Recent(_ context.Context, sessionID string) ([]domain.Exchange, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.exchanges, nil
}

func testBaseConfig() domain.SearchConfig {
	return domain.SearchConfig{
		VectorTopK:    15,
		LexicalTopK:   10,
		FinalTopK:     5,
		VectorWeight:  0.6,
		LexicalWeight: 0.4,
	}
}

func newTestRouter(query *fakeQueryService, history *fakeHistoryService) http.Handler {
	router := NewRouter(
		query,
		history,
		testBaseConfig(),
		metrics.NewHTTPServerMetrics("api"),
		0, // rate limiting off unless a test opts in
		0,
	)
	return router.Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestAnswerQuery(t *testing.T) {
	query := &fakeQueryService{
		answered: &domain.AnsweredQuery{
			Query:     "설립 연도는?",
			Answer:    "1992년입니다.",
			Results:   []domain.RankedResult{{Rank: 1, DocumentID: "doc_a.md"}},
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	handler := newTestRouter(query, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{"question": "설립 연도는?"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got domain.AnsweredQuery
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Answer != "1992년입니다." || len(got.Results) != 1 {
		t.Errorf("response = %+v", got)
	}
	if query.lastCfg != testBaseConfig() {
		t.Errorf("config = %+v, want base defaults", query.lastCfg)
	}
}

func TestAnswerQueryRecordsSession(t *testing.T) {
	query := &fakeQueryService{answered: &domain.AnsweredQuery{Answer: "답변"}}
	history := &fakeHistoryService{}
	handler := newTestRouter(query, history)

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{
		"question":   "설립 연도는?",
		"session_id": "session-1",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(history.recorded) != 1 || history.recorded[0] != "session-1" {
		t.Fatalf("recorded sessions = %v", history.recorded)
	}
}

func TestAnswerQueryHistoryFailureIsNotFatal(t *testing.T) {
	query := &fakeQueryService{answered: &domain.AnsweredQuery{Answer: "답변"}}
	history := &fakeHistoryService{err: errors.New("db down")}
	handler := newTestRouter(query, history)

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{
		"question":   "설립 연도는?",
		"session_id": "session-1",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("history failure must not fail the response, status = %d", rec.Code)
	}
}

func TestAnswerQueryAppliesOverrides(t *testing.T) {
	query := &fakeQueryService{answered: &domain.AnsweredQuery{Answer: "답변"}}
	handler := newTestRouter(query, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{
		"question":       "설립 연도는?",
		"vector_weight":  0.3,
		"lexical_weight": 0.7,
		"final_top_k":    2,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if query.lastCfg.VectorWeight != 0.3 || query.lastCfg.LexicalWeight != 0.7 {
		t.Errorf("weights = %f/%f", query.lastCfg.VectorWeight, query.lastCfg.LexicalWeight)
	}
	if query.lastCfg.FinalTopK != 2 {
		t.Errorf("final top k = %d", query.lastCfg.FinalTopK)
	}
	if query.lastCfg.VectorTopK != 15 {
		t.Errorf("vector top k = %d, want untouched default", query.lastCfg.VectorTopK)
	}
}

func TestAnswerQueryRejectsBadWeights(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{
		"question":       "설립 연도는?",
		"vector_weight":  0.8,
		"lexical_weight": 0.4,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "1.0") {
		t.Errorf("body = %q, want weight-sum error", rec.Body.String())
	}
}

func TestAnswerQueryRejectsNonPositiveFinalTopK(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{
		"question":    "설립 연도는?",
		"final_top_k": 0,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerQueryRejectsMissingQuestion(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{"question": "   "})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerQueryRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerQueryRejectsGet(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/rag/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestAnswerQueryMapsInvalidInputTo400(t *testing.T) {
	query := &fakeQueryService{err: domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty query"))}
	handler := newTestRouter(query, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{"question": "질문"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerQueryMapsInternalErrorTo500(t *testing.T) {
	query := &fakeQueryService{err: errors.New("boom")}
	handler := newTestRouter(query, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{"question": "질문"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestAnswerQueryFallbackCountsInMetrics(t *testing.T) {
	query := &fakeQueryService{answered: &domain.AnsweredQuery{Answer: usecase.GenerationFallback}}
	handler := newTestRouter(query, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/query", map[string]any{"question": "질문"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	handler.ServeHTTP(metricsRec, metricsReq)

	if !strings.Contains(metricsRec.Body.String(), "univera_rag_rag_generation_fallback_total") {
		t.Error("fallback counter missing from metrics exposition")
	}
}

func TestSearchEndpoint(t *testing.T) {
	query := &fakeQueryService{results: []domain.RankedResult{
		{Rank: 1, DocumentID: "doc_a.md", HybridScore: 0.6},
	}}
	handler := newTestRouter(query, &fakeHistoryService{})

	rec := postJSON(t, handler, "/v1/rag/search", map[string]any{"question": "설립 연도는?"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got struct {
		Query   string                `json:"query"`
		Results []domain.RankedResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Query != "설립 연도는?" || len(got.Results) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestSystemInfoEndpoint(t *testing.T) {
	query := &fakeQueryService{info: &domain.SystemInfo{
		DocumentCount:      42,
		EmbeddingModel:     "intfloat/multilingual-e5-base",
		EmbeddingDimension: 768,
	}}
	handler := newTestRouter(query, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/system/info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got domain.SystemInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.DocumentCount != 42 {
		t.Errorf("document count = %d", got.DocumentCount)
	}
}

func TestSystemInfoMapsErrorTo502(t *testing.T) {
	query := &fakeQueryService{err: errors.New("vector store unreachable")}
	handler := newTestRouter(query, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/system/info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestSessionExchanges(t *testing.T) {
	history := &fakeHistoryService{exchanges: []domain.Exchange{
		{ID: "ex-1", SessionID: "session-1", Query: "질문", Answer: "답변"},
	}}
	handler := newTestRouter(&fakeQueryService{}, history)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/session-1/exchanges", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		SessionID string            `json:"session_id"`
		Exchanges []domain.Exchange `json:"exchanges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID != "session-1" || len(got.Exchanges) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestSessionExchangesEmptyHistory(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/session-1/exchanges", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"exchanges":[]`) {
		t.Errorf("body = %q, want empty array not null", rec.Body.String())
	}
}

func TestSessionExchangesBadPath(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	for _, path := range []string{"/v1/sessions/session-1/other", "/v1/sessions/session-1"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id header")
	}
}

func TestRequestIDHeaderIsPreserved(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id = %q, want caller value kept", got)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	router := NewRouter(
		&fakeQueryService{results: []domain.RankedResult{}},
		&fakeHistoryService{},
		testBaseConfig(),
		metrics.NewHTTPServerMetrics("api"),
		1, // one request per second, burst of one
		1,
	)
	handler := router.Handler()

	first := postJSON(t, handler, "/v1/rag/search", map[string]any{"question": "질문"})
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := postJSON(t, handler, "/v1/rag/search", map[string]any{"question": "질문"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", second.Header().Get("Retry-After"))
	}
}

func TestRateLimitExemptsHealthAndMetrics(t *testing.T) {
	router := NewRouter(
		&fakeQueryService{},
		&fakeHistoryService{},
		testBaseConfig(),
		metrics.NewHTTPServerMetrics("api"),
		1,
		1,
	)
	handler := router.Handler()

	// Drain the bucket with an API request first.
	postJSON(t, handler, "/v1/rag/search", map[string]any{"question": "질문"})

	for i, path := range []string{"/healthz", "/metrics", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("probe %d to %s rate limited", i, path)
		}
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	handler := newTestRouter(&fakeQueryService{}, &fakeHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, metricsReq)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "univera_rag_http_requests_total") {
		t.Error("request counter missing from exposition")
	}
}

func TestSearchConfigOverrideValidation(t *testing.T) {
	router := NewRouter(
		&fakeQueryService{},
		&fakeHistoryService{},
		testBaseConfig(),
		metrics.NewHTTPServerMetrics("api"),
		0,
		0,
	)

	weight := func(v float64) *float64 { return &v }
	topK := func(v int) *int { return &v }

	cases := []struct {
		name    string
		req     ragRequest
		wantErr bool
	}{
		{"defaults", ragRequest{}, false},
		{"valid override", ragRequest{VectorWeight: weight(0.5), LexicalWeight: weight(0.5)}, false},
		{"sum too high", ragRequest{VectorWeight: weight(0.9), LexicalWeight: weight(0.4)}, true},
		{"negative weight", ragRequest{VectorWeight: weight(-0.2), LexicalWeight: weight(1.2)}, true},
		{"zero final top k", ragRequest{FinalTopK: topK(0)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := router.searchConfig(tc.req)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("searchConfig: %v", err)
			}
		})
	}
}

func ExampleNewRouter() {
	router := NewRouter(
		&fakeQueryService{info: &domain.SystemInfo{DocumentCount: 1}},
		&fakeHistoryService{},
		domain.SearchConfig{VectorTopK: 15, LexicalTopK: 10, FinalTopK: 5, VectorWeight: 0.6, LexicalWeight: 0.4},
		metrics.NewHTTPServerMetrics("api"),
		0,
		0,
	)

	server := httptest.NewServer(router.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer resp.Body.Close()
	fmt.Println(resp.StatusCode)
	// Output: 200
}
