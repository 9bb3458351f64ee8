package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/imemory/server/internal/apperr"
)

type errorResponse struct {
	Success bool        `json:"success"`
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, code apperr.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(code))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: code, Message: message})
}
