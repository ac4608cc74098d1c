package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/univera-lab/univera-rag/internal/config"
	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/core/ports"
	"github.com/univera-lab/univera-rag/internal/core/usecase"
	"github.com/univera-lab/univera-rag/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	queryUC   ports.QueryService
	historyUC ports.HistoryService
	baseCfg   domain.SearchConfig
	metrics   *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
}

func NewRouter(
	queryUC ports.QueryService,
	historyUC ports.HistoryService,
	baseCfg domain.SearchConfig,
	m *metrics.HTTPServerMetrics,
	rateLimitRPS float64,
	rateLimitBurst int,
) *Router {
	return &Router{
		queryUC:        queryUC,
		historyUC:      historyUC,
		baseCfg:        baseCfg,
		metrics:        m,
		rateLimitRPS:   rateLimitRPS,
		rateLimitBurst: rateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/rag/query", rt.answerQuery)
	mux.HandleFunc("/v1/rag/search", rt.searchOnly)
	mux.HandleFunc("/v1/system/info", rt.systemInfo)
	mux.HandleFunc("/v1/sessions/", rt.sessionExchanges)
	mux.Handle("/metrics", rt.metrics.Handler())

	handler := rt.metrics.Middleware(serviceName, mux)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ragRequest struct {
	Question      string   `json:"question"`
	SessionID     string   `json:"session_id"`
	VectorWeight  *float64 `json:"vector_weight"`
	LexicalWeight *float64 `json:"lexical_weight"`
	FinalTopK     *int     `json:"final_top_k"`
}

// searchConfig layers the per-request overrides over the configured
// defaults and validates the result. Weight validation happens here, at the
// presentation boundary — the hybrid ranker trusts what it receives.
func (rt *Router) searchConfig(req ragRequest) (domain.SearchConfig, error) {
	cfg := rt.baseCfg
	if req.VectorWeight != nil {
		cfg.VectorWeight = *req.VectorWeight
	}
	if req.LexicalWeight != nil {
		cfg.LexicalWeight = *req.LexicalWeight
	}
	if req.FinalTopK != nil {
		cfg.FinalTopK = *req.FinalTopK
	}

	if err := config.ValidateWeights(cfg.VectorWeight, cfg.LexicalWeight); err != nil {
		return domain.SearchConfig{}, err
	}
	if cfg.FinalTopK <= 0 {
		return domain.SearchConfig{}, errFinalTopK
	}
	return cfg, nil
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	req, cfg, ok := rt.decodeRAGRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	answered, err := rt.queryUC.Answer(r.Context(), req.Question, cfg)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordRAGObservation(serviceName, "query", len(answered.Results), time.Since(start))
	if answered.Answer == usecase.GenerationFallback {
		rt.metrics.RecordGenerationFallback(serviceName)
	}

	if req.SessionID != "" {
		if err := rt.historyUC.Record(r.Context(), req.SessionID, answered); err != nil {
			slog.Error("record_exchange_failed", "session_id", req.SessionID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, answered)
}

func (rt *Router) searchOnly(w http.ResponseWriter, r *http.Request) {
	req, cfg, ok := rt.decodeRAGRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	results, err := rt.queryUC.Search(r.Context(), req.Question, cfg)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	rt.metrics.RecordRAGObservation(serviceName, "search", len(results), time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Question,
		"results": results,
	})
}

func (rt *Router) systemInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	info, err := rt.queryUC.SystemInfo(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) sessionExchanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, tail, found := strings.Cut(rest, "/")
	if !found || tail != "exchanges" || sessionID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	exchanges, err := rt.historyUC.Recent(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if exchanges == nil {
		exchanges = []domain.Exchange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"exchanges":  exchanges,
	})
}

func (rt *Router) decodeRAGRequest(w http.ResponseWriter, r *http.Request) (ragRequest, domain.SearchConfig, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return ragRequest{}, domain.SearchConfig{}, false
	}

	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return ragRequest{}, domain.SearchConfig{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return ragRequest{}, domain.SearchConfig{}, false
	}

	cfg, err := rt.searchConfig(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return ragRequest{}, domain.SearchConfig{}, false
	}
	return req, cfg, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write_json_response_failed", "error", err)
	}
}
