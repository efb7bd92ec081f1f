package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/steerpoint/internal/config"
	"github.com/copyleftdev/steerpoint/internal/logging"
	"github.com/copyleftdev/steerpoint/internal/metrics"
	"github.com/copyleftdev/steerpoint/internal/optimization"
	"github.com/copyleftdev/steerpoint/internal/optimization/distance"
	"github.com/copyleftdev/steerpoint/internal/optimization/genetic"
	"github.com/copyleftdev/steerpoint/internal/planner"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

var errJobNotFound = errors.New("optimization not found")

// JobState tracks one route optimization job. Fields are guarded by the
// server's jobsMu.
type JobState struct {
	ID          string
	Status      string
	Strategy    planner.Strategy
	StartTime   time.Time
	EndTime     *time.Time
	Progress    float64
	Outcome     *planner.Outcome
	Err         string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

func (j *JobState) terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// OptimizeRequest is the body of POST /api/v1/optimize and the params
// object of route.optimize.
type OptimizeRequest struct {
	Waypoints []optimization.Waypoint `json:"waypoints"`
	Strategy  string                  `json:"strategy,omitempty"`
	Genetic   *GeneticParams          `json:"genetic,omitempty"`
}

// GeneticParams overrides the configured genetic defaults per request.
type GeneticParams struct {
	PopulationSize *int     `json:"population_size,omitempty"`
	EliteSize      *int     `json:"elite_size,omitempty"`
	MutationRate   *float64 `json:"mutation_rate,omitempty"`
	Generations    *int     `json:"generations,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
}

func (p *GeneticParams) apply(c genetic.Config) genetic.Config {
	if p == nil {
		return c
	}
	if p.PopulationSize != nil {
		c.PopulationSize = *p.PopulationSize
	}
	if p.EliteSize != nil {
		c.EliteSize = *p.EliteSize
	}
	if p.MutationRate != nil {
		c.MutationRate = *p.MutationRate
	}
	if p.Generations != nil {
		c.Generations = *p.Generations
	}
	if p.Seed != nil {
		c.Seed = *p.Seed
	}
	return c
}

type jobRef struct {
	OptimizationID string `json:"optimization_id"`
}

// Server implements the HTTP and JSON-RPC API for route optimization jobs.
type Server struct {
	cfg     *config.Config
	logger  Logger
	planner *planner.Planner

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
}

// NewServer creates a server whose planner logs through logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	zl := logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "planner"}))
	return &Server{
		cfg:     cfg,
		logger:  logger,
		planner: planner.New(cfg.Optimization.WorkerCount, zl),
		jobs:    make(map[string]*JobState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/matrix/{id}", s.handleMatrix)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "route.optimize":
		var req OptimizeRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startJob(req)
		}
	case "route.status":
		var ref jobRef
		if err = decodeParams(request.Params, &ref); err == nil {
			result, err = s.jobStatus(ref.OptimizationID)
		}
	case "route.cancel":
		var ref jobRef
		if err = decodeParams(request.Params, &ref); err == nil {
			err = s.cancelJob(ref.OptimizationID)
			result = map[string]string{"status": "cancellation requested"}
		}
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := codeServerError
		if _, ok := optimization.IsOptimizationError(err); ok {
			code = codeInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func decodeParams(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return optimization.NewValidationError("missing required parameters")
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return optimization.WrapError(err, optimization.KindValidation, "invalid parameter format, expected object")
	}
	return nil
}

// startJob validates the request and launches it in the background.
// Validation and configuration errors are returned before a job exists.
func (s *Server) startJob(req OptimizeRequest) (map[string]interface{}, error) {
	if len(req.Waypoints) == 0 {
		return nil, optimization.NewValidationError("waypoints are required")
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = s.cfg.Optimization.Strategy
	}
	st, err := planner.ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	gc := req.Genetic.apply(s.cfg.GeneticConfig())
	if st != planner.StrategyGreedy {
		if err := gc.Validate(); err != nil {
			return nil, err
		}
	}
	if err := distance.Validate(req.Waypoints); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Optimization.JobTimeout)
	now := time.Now()
	state := &JobState{
		ID:          id,
		Status:      StatusPending,
		Strategy:    st,
		StartTime:   now,
		CancelFunc:  cancel,
		LastUpdated: now,
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.pruneLocked()
	s.jobsMu.Unlock()

	gc.Progress = func(gs genetic.GenerationStats) {
		if gs.Generations == 0 {
			return
		}
		s.jobsMu.Lock()
		state.Progress = float64(gs.Generation) / float64(gs.Generations)
		state.LastUpdated = time.Now()
		s.jobsMu.Unlock()
	}
	go s.runJob(ctx, state, planner.Request{
		Waypoints: req.Waypoints,
		Strategy:  st,
		Genetic:   gc,
	})

	return map[string]interface{}{
		"optimization_id": id,
		"status":          StatusPending,
	}, nil
}

// runJob executes the plan and records its outcome.
func (s *Server) runJob(ctx context.Context, state *JobState, req planner.Request) {
	defer state.CancelFunc()
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	s.jobsMu.Lock()
	if state.Status == StatusCancelled {
		s.jobsMu.Unlock()
		return
	}
	state.Status = StatusRunning
	s.jobsMu.Unlock()

	outcome, err := s.planner.Plan(ctx, req)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	state.LastUpdated = now
	if state.Status == StatusCancelled {
		return
	}
	state.EndTime = &now
	if err != nil {
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": state.ID,
			"error":           err.Error(),
		})
		state.Status = StatusFailed
		state.Err = err.Error()
		return
	}
	state.Status = StatusCompleted
	state.Progress = 1
	state.Outcome = outcome
	s.logger.Info("Optimization completed", map[string]interface{}{
		"optimization_id": state.ID,
		"strategy":        outcome.Best.Strategy,
		"cost":            outcome.Best.Cost,
	})
}

// pruneLocked drops the oldest finished jobs once the registry exceeds
// MaxJobs. Running jobs are never dropped.
func (s *Server) pruneLocked() {
	limit := s.cfg.Optimization.MaxJobs
	if limit <= 0 || len(s.jobs) <= limit {
		return
	}
	var done []*JobState
	for _, j := range s.jobs {
		if j.terminal() {
			done = append(done, j)
		}
	}
	sort.Slice(done, func(a, b int) bool {
		return done[a].LastUpdated.Before(done[b].LastUpdated)
	})
	for _, j := range done {
		if len(s.jobs) <= limit {
			break
		}
		delete(s.jobs, j.ID)
	}
}

// jobStatus returns the current status and results of a job.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	if id == "" {
		return nil, optimization.NewValidationError("optimization_id is required")
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, errJobNotFound
	}

	response := map[string]interface{}{
		"optimization_id": state.ID,
		"status":          state.Status,
		"strategy":        state.Strategy,
		"progress":        state.Progress,
		"start_time":      state.StartTime.Format(time.RFC3339),
		"last_update":     state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Err != "" {
		response["error"] = state.Err
	}
	if out := state.Outcome; out != nil {
		response["best"] = out.Best
		if out.Greedy != nil {
			response["greedy"] = out.Greedy
		}
		if out.Genetic != nil {
			response["genetic"] = out.Genetic
		}
	}
	return response, nil
}

// cancelJob cancels a job that has not finished yet.
func (s *Server) cancelJob(id string) error {
	if id == "" {
		return optimization.NewValidationError("optimization_id is required")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return errJobNotFound
	}
	if state.terminal() {
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	state.Status = StatusCancelled
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

// Close cancels every running job.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleOptimize handles POST /api/v1/optimize
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": fmt.Sprintf("Invalid request body: %v", err),
		})
		return
	}

	result, err := s.startJob(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMatrix handles GET /api/v1/matrix/{id} by streaming the job's
// distance matrix as CSV.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.jobsMu.RLock()
	state, exists := s.jobs[id]
	var m *distance.Matrix
	if exists && state.Outcome != nil {
		m = state.Outcome.Matrix
	}
	s.jobsMu.RUnlock()

	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "matrix not available"})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := m.WriteCSV(w); err != nil {
		s.logger.Error("Matrix export failed", map[string]interface{}{
			"optimization_id": id,
			"error":           err.Error(),
		})
	}
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.cancelJob(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, errJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
	}
}
