// Package server exposes the coordinator reports over HTTP: the filtered
// record list, summary counts, distributions and pivot matrices, plus the
// health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/metrics"
	"github.com/jllhz8912/sena/internal/report"
	"github.com/jllhz8912/sena/internal/types"
)

// shutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const shutdownTimeout = 5 * time.Second

// Records is the read side of the record store.
type Records interface {
	All() []types.Request
}

type Server struct {
	srv     *http.Server
	records Records
	catalog *config.Catalog
	logger  *zap.Logger
}

// New builds a server listening on addr. /metrics is registered only when
// exposeMetrics is set.
func New(addr string, exposeMetrics bool, records Records, catalog *config.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{records: records, catalog: catalog, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if exposeMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.HandleFunc("GET /api/records", s.instrument("records", s.handleRecords))
	mux.HandleFunc("GET /api/summary", s.instrument("summary", s.handleSummary))
	mux.HandleFunc("GET /api/distribution", s.instrument("distribution", s.handleDistribution))
	mux.HandleFunc("GET /api/matrix", s.instrument("matrix", s.handleMatrix))
	mux.HandleFunc("GET /api/lots", s.instrument("lots", s.handleLots))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// recordsResponse is the body of /api/records.
type recordsResponse struct {
	Count     int             `json:"count"`
	Materials int             `json:"materials"`
	Records   []types.Request `json:"records"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) int {
	q := r.URL.Query()
	records := report.Filter(s.records.All(), report.Criteria{
		Search:  q.Get("q"),
		Lot:     q.Get("lot"),
		Program: q.Get("program"),
	})
	if records == nil {
		records = []types.Request{}
	}
	return s.writeJSON(w, http.StatusOK, recordsResponse{
		Count:     len(records),
		Materials: types.CountMaterials(records),
		Records:   records,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) int {
	return s.writeJSON(w, http.StatusOK, report.Summarize(s.records.All()))
}

// distributionResponse is the body of /api/distribution.
type distributionResponse struct {
	ByLot     []report.Slice `json:"byLot"`
	ByProgram []report.Slice `json:"byProgram"`
}

func (s *Server) handleDistribution(w http.ResponseWriter, _ *http.Request) int {
	records := s.records.All()
	return s.writeJSON(w, http.StatusOK, distributionResponse{
		ByLot:     report.ByLot(records),
		ByProgram: report.ByProgram(records),
	})
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) int {
	rows := r.URL.Query().Get("rows")
	if rows == "" {
		rows = string(report.RowsByProgram)
	}
	dim, ok := report.ParseRowDimension(rows)
	if !ok {
		return s.writeError(w, http.StatusBadRequest, "rows must be program or training, got "+strconv.Quote(rows))
	}
	return s.writeJSON(w, http.StatusOK, report.BuildMatrix(s.records.All(), dim))
}

func (s *Server) handleLots(w http.ResponseWriter, _ *http.Request) int {
	return s.writeJSON(w, http.StatusOK, report.LotOptions(s.catalog, s.records.All()))
}

// =============================================================================
// HELPERS
// =============================================================================

// instrument adapts a handler returning its status code, counting and
// logging each request.
func (s *Server) instrument(route string, h func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := h(w, r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Debug("http request",
			zap.String("route", route),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) int {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
	return status
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) int {
	return s.writeJSON(w, status, map[string]string{"error": msg})
}
