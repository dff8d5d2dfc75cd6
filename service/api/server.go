// Package api serves the assessment HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/dispatch"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// Server is the HTTP surface of the assessment services.
type Server struct {
	deps       Dependencies
	strategies map[model.AssessmentType]dispatch.Strategy
	router     chi.Router
	logger     *slog.Logger
}

// NewServer creates a Server and registers its routes.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps:       deps,
		strategies: make(map[model.AssessmentType]dispatch.Strategy, len(deps.Strategies)),
		router:     chi.NewRouter(),
		logger:     logging.OrDefault(deps.Logger).With("component", "api"),
	}
	for _, strategy := range deps.Strategies {
		s.strategies[strategy.AssessmentType()] = strategy
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{assessmentType}/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{assessmentType}/{jobID}", s.handleDeleteJob)

	r.Post("/delegated-admins", s.handleStartScan(model.AssessmentDelegatedAdmin))
	r.Get("/delegated-admins", s.handleListDelegatedAdmins)

	r.Post("/trusted-services", s.handleStartScan(model.AssessmentTrustedAccess))
	r.Get("/trusted-services", s.handleListTrustedServices)

	r.Post("/resource-based-policies", s.handleStartScan(model.AssessmentResourceBasedPolicy))
	r.Get("/resource-based-policies", s.handleListResourceBasedPolicies)
	r.Get("/scan-configs", s.handleScanConfigs)

	r.Post("/policy-explorer", s.handleStartScan(model.AssessmentPolicyExplorer))
	r.Post("/policy-explorer/scan-single", s.handleStartScan(model.AssessmentPolicyExplorerSingle))
	r.Get("/policy-explorer/{policyType}", s.handleSearchPolicies)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("http_request", "method", r.Method, "path", r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps application errors to status codes. Anything else is a 500
// with a generic message; the cause is only logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.Kind == apperror.KindInternal {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorBody{
			Error:   "Internal Error",
			Message: "An unexpected error occurred. Inspect the logs for more information.",
		})
		return
	}

	status := http.StatusBadRequest
	switch appErr.Kind {
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindConflict:
		status = http.StatusConflict
	}
	s.logger.Warn("client error", "method", r.Method, "path", r.URL.Path, "status", status, "error", appErr.Error())
	writeJSON(w, status, ErrorBody{Error: appErr.Title, Message: appErr.Message})
}

// decodeScanRequest reads an optional JSON body.
func decodeScanRequest(r *http.Request) (model.ScanRequest, error) {
	var req model.ScanRequest
	if r.Body == nil {
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, apperror.Validation("JSONDecodeError", err.Error())
	}
	return req, nil
}
