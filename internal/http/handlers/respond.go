package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/imemory/server/internal/apperr"
)

type errorResponse struct {
	Success bool                `json:"success"`
	Error   apperr.Code         `json:"error"`
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// respondJSON writes v as the JSON response body
func respondJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

// respondWithError maps err onto the error taxonomy. Internal errors are
// logged and answered without detail.
func respondWithError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	e := apperr.As(err)
	status := apperr.HTTPStatus(e.Code)

	switch {
	case status >= http.StatusInternalServerError && e.Code == apperr.CodeInternal:
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		e = apperr.ErrInternal
	case status >= http.StatusInternalServerError:
		log.Warn("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
	}

	respondJSON(w, log, status, errorResponse{
		Error:   e.Code,
		Message: e.Message,
		Errors:  e.Fields,
	})
}

// maxJSONBody caps every JSON request body.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation(apperr.FieldError{Field: "body", Message: "request body too large"})
	}
	return apperr.Validation(apperr.FieldError{Field: "body", Message: "invalid JSON body"})
}
