package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kindred/internal/embedding"
	"github.com/hyperjump/kindred/internal/index"
	"github.com/hyperjump/kindred/internal/match"
	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/profile"
	"github.com/hyperjump/kindred/internal/service"
	"github.com/hyperjump/kindred/internal/storage"
	"github.com/hyperjump/kindred/internal/vector"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	partition, err := req.ResolvePartition(s.partitionQuestion)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("register request",
		zap.String("rollno", req.UserID),
		zap.String("partition", string(partition)),
		zap.Int("responses", len(req.Responses)))

	if err := s.service.Register(r.Context(), req.UserID, req.Responses, partition); err != nil {
		s.respondServiceError(w, "registration failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.RegisterResponse{Status: "success", Message: "User vector stored"})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limits := s.service.Engine().Limits()
	if err := req.Validate(limits.DefaultTopK, limits.MaxTopK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("match request", zap.String("rollno", req.UserID), zap.Int("top_k", req.TopK))

	matches, err := s.service.FindMatches(r.Context(), req.UserID, req.TopK, req.Threshold)
	if err != nil {
		s.respondServiceError(w, "match failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.MatchResponse{Matches: matches})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleUserSubmissions(w http.ResponseWriter, r *http.Request) {
	rollno := chi.URLParam(r, "rollno")
	subs, err := s.service.Submissions(r.Context(), rollno)
	if err != nil {
		s.respondServiceError(w, "list submissions failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SubmissionsResponse{UserID: rollno, Submissions: subs})
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.service.Submission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "get submission failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sub)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, index.ErrUserNotFound),
		errors.Is(err, storage.ErrSubmissionNotFound),
		errors.Is(err, service.ErrStoreDisabled):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, models.ErrInvalidPartition),
		errors.Is(err, profile.ErrEmptyProfile),
		errors.Is(err, vector.ErrDegenerateVector),
		errors.Is(err, match.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
