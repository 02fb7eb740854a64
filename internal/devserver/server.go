package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flowctl/flowctl/internal/flowdef"
	"github.com/flowctl/flowctl/internal/graphcheck"
)

const maxBodyBytes = 8 << 20

// Options configures a Server.
type Options struct {
	// APIKey, when set, must be presented in the X-API-Key header.
	APIKey string
	// StrictGraphs rejects definitions the graph validator reports errors
	// for with 422.
	StrictGraphs bool
	// CORSOrigins enables CORS for browser clients from these origins.
	CORSOrigins []string
}

// Server serves the workflow platform routes from a MemoryStore.
type Server struct {
	store    *MemoryStore
	opts     Options
	logger   *zap.Logger
	validate *validator.Validate
	metrics  *Metrics
}

// NewServer creates a server for store.
func NewServer(store *MemoryStore, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:    store,
		opts:     opts,
		logger:   logger,
		validate: validator.New(),
		metrics:  NewMetrics(),
	}
}

// Metrics returns the server's Prometheus collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

type createWorkflowRequest struct {
	Workflow struct {
		Name        string          `json:"name" validate:"required,max=200"`
		Description string          `json:"description" validate:"max=2000"`
		Status      string          `json:"status" validate:"omitempty,oneof=draft active archived"`
		ProjectID   string          `json:"project_id" validate:"omitempty,max=100"`
		Definition  json.RawMessage `json:"definition"`
	} `json:"workflow"`
}

type patchWorkflowRequest struct {
	Workflow struct {
		Definition  json.RawMessage      `json:"definition" validate:"required"`
		LockVersion *flowdef.LockVersion `json:"lock_version" validate:"omitempty,min=1"`
	} `json:"workflow"`
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.Middleware)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "flowctl-devserver"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/platform/v1/workflows", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/", s.listWorkflows)
		r.Post("/", s.createWorkflow)
		r.Get("/{id}", s.getWorkflow)
		r.Get("/{id}/definition", s.getDefinition)
		r.Patch("/{id}", s.patchWorkflow)
	})
	return r
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.store.List(r.Context()))
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Workflow.Definition) > 0 && !s.checkGraph(w, req.Workflow.Definition) {
		return
	}

	wf, err := s.store.Create(r.Context(), NewWorkflow{
		Name:        req.Workflow.Name,
		Description: req.Workflow.Description,
		Status:      req.Workflow.Status,
		ProjectID:   req.Workflow.ProjectID,
		Definition:  req.Workflow.Definition,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("workflow created", zap.String("id", wf.ID), zap.String("name", wf.Name))
	writeData(w, http.StatusCreated, wf)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, wf)
}

func (s *Server) getDefinition(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetDefinition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, wf)
}

func (s *Server) patchWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req patchWorkflowRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkGraph(w, req.Workflow.Definition) {
		return
	}

	wf, err := s.store.update(id, req.Workflow.Definition, req.Workflow.LockVersion)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.metrics.DefinitionsUpdated.Inc()
	s.logger.Info("workflow definition updated",
		zap.String("id", id),
		zap.Int64("lock_version", int64(wf.LockVersion)),
	)
	writeData(w, http.StatusOK, wf)
}

// decode reads a JSON body into dst and runs struct validation. It writes
// the 400 response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return false
	}
	return true
}

func (s *Server) checkGraph(w http.ResponseWriter, def json.RawMessage) bool {
	if !s.opts.StrictGraphs {
		return true
	}
	report, err := graphcheck.ValidateJSON(def)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if !report.Valid() {
		s.metrics.GraphRejections.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "workflow definition failed validation",
			"errors":   report.Errors,
			"warnings": report.Warnings,
		})
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var conflict *flowdef.ConflictError
	switch {
	case errors.As(err, &conflict):
		s.metrics.LockConflicts.Inc()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                 "Conflict: workflow was modified. Refetch and retry.",
			"expected_lock_version": conflict.Expected,
			"current_lock_version":  conflict.Current,
		})
	case errors.Is(err, ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, ErrInvalidWorkflow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey != "" && r.Header.Get("X-API-Key") != s.opts.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}
