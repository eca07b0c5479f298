package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/elonfeng/destradar/internal/config"
	"github.com/elonfeng/destradar/internal/metrics"
	"github.com/elonfeng/destradar/internal/store"
	"github.com/elonfeng/destradar/pkg/rank"
)

// Ranker runs the ranking pipeline.
type Ranker interface {
	Run(ctx context.Context, req rank.Request, w rank.Weights) (*rank.Result, error)
}

// Defaults fill the fields a rank request leaves out.
type Defaults struct {
	Search  config.SearchConfig
	Prefs   rank.Prefs
	Weights rank.Weights
}

// RankRequest is the body of POST /api/v1/rank.
type RankRequest struct {
	Origin     string        `json:"origin" validate:"omitempty,alpha,min=3,max=4"`
	StartDate  string        `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string        `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Candidates []string      `json:"candidates" validate:"omitempty,max=100,dive,alpha,min=3,max=4"`
	Currency   string        `json:"currency" validate:"omitempty,alpha,len=3"`
	Weights    *rank.Weights `json:"weights"`
	Prefs      *rank.Prefs   `json:"prefs"`
}

// Server provides the HTTP API.
type Server struct {
	ranker   Ranker
	store    store.Store
	defaults Defaults
	validate *validator.Validate
	logger   *zap.Logger
	port     int
	now      func() time.Time
}

// New creates a new HTTP server.
func New(r Ranker, s store.Store, defaults Defaults, port int, logger *zap.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ranker:   r,
		store:    s,
		defaults: defaults,
		validate: validator.New(),
		logger:   logger,
		port:     port,
		now:      time.Now,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/v1/rank", s.handleRank)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/csv", s.handleRunCSV)
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("destradar server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	// prefs merge over the defaults; weights replace them whole
	prefs := s.defaults.Prefs
	prefs.Categories = slices.Clone(s.defaults.Prefs.Categories)
	body := RankRequest{Prefs: &prefs}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	req, weights := s.buildRequest(body)

	started := time.Now()
	res, err := s.ranker.Run(r.Context(), req, weights)
	metrics.ObserveRun(metrics.TriggerAPI, started, res, err)
	if errors.Is(err, rank.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("rank request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID, err := s.store.SaveRun(r.Context(), res, metrics.TriggerAPI)
	if err != nil {
		s.logger.Error("save run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dropped := res.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	ranked := res.Ranked
	if ranked == nil {
		ranked = []rank.Ranked{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"request": res.Request,
		"weights": res.Weights,
		"data":    ranked,
		"count":   len(ranked),
		"dropped": dropped,
	})
}

// buildRequest fills missing fields from the configured defaults.
func (s *Server) buildRequest(body RankRequest) (rank.Request, rank.Weights) {
	d := s.defaults
	req := rank.Request{
		Origin:       body.Origin,
		StartDate:    body.StartDate,
		EndDate:      body.EndDate,
		Destinations: body.Candidates,
		Currency:     body.Currency,
		Prefs:        d.Prefs,
	}
	if body.Prefs != nil {
		req.Prefs = *body.Prefs
	}
	req.Prefs.Categories = slices.Clone(req.Prefs.Categories)
	if req.Origin == "" {
		req.Origin = d.Search.Origin
	}
	if req.StartDate == "" || req.EndDate == "" {
		start, end := d.Search.Dates(s.now())
		if req.StartDate == "" {
			req.StartDate = start
		}
		if req.EndDate == "" {
			req.EndDate = end
		}
	}
	if len(req.Destinations) == 0 {
		req.Destinations = d.Search.Candidates
	}
	if req.Currency == "" {
		req.Currency = d.Search.Currency
	}

	weights := d.Weights
	if body.Weights != nil {
		weights = *body.Weights
	}
	return req, weights
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%d.csv", run.ID))
	if err := rank.WriteCSV(w, run.Ranked); err != nil {
		s.logger.Error("write csv failed", zap.Int64("run_id", run.ID), zap.Error(err))
	}
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("field %s failed %q validation", fe.Namespace(), fe.Tag())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
