package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/seoforge/seoforge-backend/internal/domain/errors"
	"github.com/seoforge/seoforge-backend/internal/domain/export"
)

// ResponseEnvelope wraps all API responses.
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse provides structured error information.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ResponseEnvelope{Success: true, Data: data}); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "internal error"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		code = appErr.Code
		message = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ResponseEnvelope{
		Success: false,
		Error:   &ErrorResponse{Code: code, Message: message},
	}); encErr != nil {
		s.logger.Error("failed to encode error response", zap.Error(encErr))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityMetricsResponse is what the dashboard polls every 30 seconds.
type securityMetricsResponse struct {
	Score               int `json:"score"`
	TotalEvents         int `json:"total_events"`
	CriticalAlerts      int `json:"critical_alerts"`
	SuspiciousActivity  int `json:"suspicious_activity"`
	RateLimitViolations int `json:"rate_limit_violations"`
	UnresolvedAlerts    int `json:"unresolved_alerts"`
}

func (s *Server) handleSecurityMetrics(w http.ResponseWriter, r *http.Request) {
	counters := s.security.Snapshot()
	s.writeJSON(w, http.StatusOK, securityMetricsResponse{
		Score:               s.security.Score(),
		TotalEvents:         counters.TotalEvents,
		CriticalAlerts:      counters.CriticalAlerts,
		SuspiciousActivity:  counters.SuspiciousActivity,
		RateLimitViolations: counters.RateLimitViolations,
		UnresolvedAlerts:    len(s.security.UnresolvedAlerts()),
	})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.security.UnresolvedAlerts())
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, apperrors.NewValidationError("INVALID_ALERT_ID", "alert id must be a UUID"))
		return
	}

	s.security.ResolveAlert(id)
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": "resolved"})
}

func (s *Server) handleSecurityReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(s.security.GenerateReport())); err != nil {
		s.logger.Error("failed to write report", zap.Error(err))
	}
}

type exportRequest struct {
	Document *export.Document `json:"document"`
	Options  export.Options   `json:"options"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.allowExport(w) {
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewValidationError("INVALID_BODY", "request body must be valid JSON"))
		return
	}

	if err := s.exports.Export(r.Context(), req.Document, req.Options, nil); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "exported"})
}

type batchExportRequest struct {
	Documents []*export.Document `json:"documents"`
	Options   []export.Options   `json:"options"`
}

func (s *Server) handleBatchExport(w http.ResponseWriter, r *http.Request) {
	if !s.allowExport(w) {
		return
	}

	var req batchExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewValidationError("INVALID_BODY", "request body must be valid JSON"))
		return
	}

	if err := s.exports.BatchExport(r.Context(), req.Documents, req.Options, nil); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "exported",
		"count":  len(req.Documents),
	})
}

// allowExport checks the export rate limit, answering 429 with Retry-After
// on denial.
func (s *Server) allowExport(w http.ResponseWriter) bool {
	if s.limiter.Allow(exportOperation) {
		return true
	}

	retryAfter := s.limiter.TimeUntilReset(exportOperation)
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)+1))
	s.writeError(w, apperrors.NewRateLimitError(exportOperation))
	return false
}

type cachePutRequest struct {
	Value json.RawMessage `json:"value"`
	TTLMs int64           `json:"ttlMs,omitempty"`
}

func (s *Server) handleCachePut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req cachePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewValidationError("INVALID_BODY", "request body must be valid JSON"))
		return
	}

	if err := s.secure.Save(r.Context(), key, req.Value, time.Duration(req.TTLMs)*time.Millisecond); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": "saved"})
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	payload, err := s.secure.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if payload == nil {
		s.writeError(w, apperrors.NewNotFoundError("cache entry"))
		return
	}

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := s.secure.Remove(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": "deleted"})
}
