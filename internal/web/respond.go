package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"expense/transaction"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, ErrorResponse{Error: message})
}

// respondWithServiceError maps service errors onto status codes.
// Anything unrecognised is logged and reported as serverMsg with a 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, serverMsg string) {
	var verr *transaction.ValidationError
	switch {
	case errors.Is(err, transaction.ErrInvalidJSON):
		respondWithError(w, http.StatusBadRequest, "Invalid JSON")
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   verr.Message,
			Missing: verr.Missing,
			Invalid: verr.Invalid,
		})
	case errors.Is(err, transaction.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Transaction not found")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg(serverMsg)
		respondWithError(w, http.StatusInternalServerError, serverMsg)
	}
}
