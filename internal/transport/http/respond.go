package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"live-quiz-service/internal/domain"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error onto its HTTP status. Errors without a kind are
// reported as a generic internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func unauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Kind: "unauthorized", Message: message})
}

// decodeJSON reads a JSON body, reporting malformed input as a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return domain.Validationf("malformed JSON body: %v", err)
	}
	return nil
}
