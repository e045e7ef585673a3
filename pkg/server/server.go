// Package server exposes skill dispatch, trend detection and stored outcomes
// over an HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/presenter"
	"github.com/agentskills/skillkit/pkg/skills"
	"github.com/agentskills/skillkit/pkg/trends"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// maxBatchSize bounds the requests accepted by one dispatch call.
const maxBatchSize = 32

// maxListLimit bounds the limit query parameter of outcome listings.
const maxListLimit = 200

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	config   *Config
	registry *skills.Registry
	svc      skilltypes.ServiceClient
	store    skilltypes.Store
	detector *trends.Detector
	opts     []skills.Option
	server   *http.Server
}

// Config holds the configuration for the API server
type Config struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Deps are the collaborators every request is served with.
type Deps struct {
	Registry *skills.Registry
	Service  skilltypes.ServiceClient
	Store    skilltypes.Store
	Detector *trends.Detector
	Options  []skills.Option
}

// NewServer creates a new API server
func NewServer(config *Config, deps Deps) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if deps.Registry == nil || deps.Service == nil || deps.Store == nil || deps.Detector == nil {
		return nil, errors.New("registry, service, store and detector are required")
	}

	s := &Server{
		router:   mux.NewRouter(),
		config:   config,
		registry: deps.Registry,
		svc:      deps.Service,
		store:    deps.Store,
		detector: deps.Detector,
		opts:     deps.Options,
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{name}", s.handleInvokeSkill).Methods("POST")
	api.HandleFunc("/dispatch", s.handleDispatch).Methods("POST")
	api.HandleFunc("/trends/detect", s.handleDetectTrends).Methods("POST")
	api.HandleFunc("/outcomes/{task_id}", s.handleGetOutcome).Methods("GET")
	api.HandleFunc("/agents/{agent_id}/outcomes", s.handleListAgentOutcomes).Methods("GET")
	api.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type skillSummary struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Capability  skilltypes.Capability `json:"capability"`
	InputSchema any                   `json:"input_schema"`
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	defs := s.registry.Definitions()
	summaries := make([]skillSummary, 0, len(defs))
	for _, d := range defs {
		summaries = append(summaries, skillSummary{
			Name:        d.Name,
			Description: d.Description,
			Capability:  d.Capability,
			InputSchema: d.Schema,
		})
	}
	s.writeJSONResponse(r.Context(), w, http.StatusOK, map[string]any{"skills": summaries})
}

// handleInvokeSkill handles POST /api/skills/{name}
func (s *Server) handleInvokeSkill(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	env, err := s.registry.Invoke(r.Context(), name, params, s.svc, s.store, s.opts...)
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusNotFound, fmt.Sprintf("skill %q is not registered", name), nil)
		return
	}
	s.writeJSONResponse(r.Context(), w, envelopeStatus(env), env)
}

// handleDispatch handles POST /api/dispatch. Each envelope carries its own
// outcome so the batch itself always answers 200.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []skills.Request `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if len(body.Requests) == 0 {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "requests must not be empty", nil)
		return
	}
	if len(body.Requests) > maxBatchSize {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, fmt.Sprintf("at most %d requests per dispatch", maxBatchSize), nil)
		return
	}

	envs := s.registry.Dispatch(r.Context(), body.Requests, s.svc, s.store, s.opts...)
	s.writeJSONResponse(r.Context(), w, http.StatusOK, map[string]any{"results": envs})
}

type detectTrendsRequest struct {
	AgentID    string  `json:"agent_id"`
	Platform   string  `json:"platform"`
	Query      *string `json:"query,omitempty"`
	TimeWindow *string `json:"time_window,omitempty"`
}

// handleDetectTrends handles POST /api/trends/detect
func (s *Server) handleDetectTrends(w http.ResponseWriter, r *http.Request) {
	var req detectTrendsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	var opts []trends.QueryOption
	if req.Query != nil {
		opts = append(opts, trends.WithQuery(*req.Query))
	}
	if req.TimeWindow != nil {
		opts = append(opts, trends.WithTimeWindow(*req.TimeWindow))
	}

	result, err := s.detector.DetectTrends(r.Context(), req.AgentID, req.Platform, opts...)
	if err != nil {
		s.writeJSONResponse(r.Context(), w, errorStatus(err), map[string]any{"error": skills.NewErrorBody(err)})
		return
	}
	s.writeJSONResponse(r.Context(), w, http.StatusOK, result)
}

// handleGetOutcome handles GET /api/outcomes/{task_id}
func (s *Server) handleGetOutcome(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	outcome, err := s.store.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, skilltypes.ErrOutcomeNotFound) {
			s.writeErrorResponse(r.Context(), w, http.StatusNotFound, "outcome not found", nil)
			return
		}
		s.writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to get outcome", err)
		return
	}
	s.writeJSONResponse(r.Context(), w, http.StatusOK, outcome)
}

// handleListAgentOutcomes handles GET /api/agents/{agent_id}/outcomes
func (s *Server) handleListAgentOutcomes(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.store.(skilltypes.OutcomeLister)
	if !ok {
		s.writeErrorResponse(r.Context(), w, http.StatusNotImplemented, "outcome store cannot list outcomes", nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			s.writeErrorResponse(r.Context(), w, http.StatusBadRequest,
				fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit), nil)
			return
		}
		limit = n
	}

	outcomes, err := lister.ListByAgent(r.Context(), mux.Vars(r)["agent_id"], limit)
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to list outcomes", err)
		return
	}
	s.writeJSONResponse(r.Context(), w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(r.Context(), w, http.StatusOK, map[string]any{"status": "ok"})
}

// envelopeStatus maps an envelope to its HTTP status. A produced result is
// a success even when recording it failed.
func envelopeStatus(env skills.Envelope) int {
	if env.Status == skills.StatusSucceeded {
		return http.StatusOK
	}
	return errorStatus(env.Err)
}

func errorStatus(err error) int {
	var svcErr *skilltypes.ExternalServiceError
	switch {
	case skilltypes.IsValidation(err):
		return http.StatusUnprocessableEntity
	case skilltypes.IsParameter(err):
		return http.StatusBadRequest
	case errors.As(err, &svcErr):
		if svcErr.Code == skilltypes.CodeTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSONResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode JSON response")
	}
}

func (s *Server) writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(ctx).WithError(err).Warn(message)
	}
	s.writeJSONResponse(ctx, w, statusCode, map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Starting skillkit API on http://%s", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the listener immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
