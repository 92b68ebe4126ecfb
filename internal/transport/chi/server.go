package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/search/query"
	"github.com/kailas-cloud/gradsearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/gradsearch/internal/logger"
	healthuc "github.com/kailas-cloud/gradsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/gradsearch/internal/usecase/search"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest           = "bad_request"
	CodeEmptyQuery           = "empty_query"
	CodeQueryEmbeddingFailed = "query_embedding_failed"
	CodeIndexUnavailable     = "index_unavailable"
	CodeInternalError        = "internal_error"
)

// Searcher answers text queries.
type Searcher interface {
	SearchText(ctx context.Context, text string, topK int) (searchuc.Response, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// SearchItem is one ranked hit.
type SearchItem struct {
	Thema       string  `json:"thema"`
	StudentName string  `json:"student_name"`
	Link        string  `json:"link"`
	Score       float64 `json:"score"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Items []SearchItem `json:"items"`
	Total int          `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchParams holds bound query parameters of GET /search.
type SearchParams struct {
	Q    *string `form:"q,omitempty" json:"q,omitempty"`
	Size *int    `form:"size,omitempty" json:"size,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the query side of an index over HTTP.
type Server struct {
	search        Searcher
	health        HealthChecker
	size          int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. size is the default number of hits per query.
func NewServer(search Searcher, health HealthChecker, size int, logger *zap.Logger) *Server {
	if size <= 0 {
		size = domain.DefaultSearchSize
	}
	return &Server{
		search: search,
		health: health,
		size:   size,
		logger: logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, CodeEmptyQuery),
			sentinelHandler(domain.ErrQueryEmbeddingFailed, http.StatusBadGateway, CodeQueryEmbeddingFailed),
			sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		},
	}
}

// SearchDocuments handles GET /search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &params.Q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter q")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "size", r.URL.Query(), &params.Size); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter size")
		return
	}

	size := s.size
	if params.Size != nil {
		if *params.Size <= 0 || *params.Size > query.MaxTopK {
			writeError(w, http.StatusBadRequest, CodeBadRequest,
				"size must be between 1 and "+strconv.Itoa(query.MaxTopK))
			return
		}
		size = *params.Size
	}

	var text string
	if params.Q != nil {
		text = *params.Q
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.SearchText(ctx, text, size)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchItem(&resp.Results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: items, Total: resp.Total})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func searchItem(r *result.Result) SearchItem {
	return SearchItem{
		Thema:       r.Field("thema"),
		StudentName: r.Field("student_name"),
		Link:        r.Field("link"),
		Score:       r.Score(),
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// handleDomainError maps domain errors to HTTP responses. Internals never reach the client.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			logpkg.FromContext(r.Context(), s.logger).Warn("search failed", zap.Error(err))
			return
		}
	}
	logpkg.FromContext(r.Context(), s.logger).Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
