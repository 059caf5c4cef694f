package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/tenant-provisioner/internal/domain"
)

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError maps domain errors onto HTTP statuses. Anything unmapped
// is a 500 with the detail kept out of the response body.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case domain.IsValidation(err):
		respondWithJSON(w, logger, http.StatusBadRequest, errorResponse{Kind: "validation", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		respondWithJSON(w, logger, http.StatusNotFound, errorResponse{Kind: "not_found", Message: "resource not found"})
	case errors.Is(err, domain.ErrDuplicate):
		respondWithJSON(w, logger, http.StatusConflict, errorResponse{Kind: "conflict", Message: "resource already exists"})
	default:
		logger.Error("request failed", "error", err)
		respondWithJSON(w, logger, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: "internal server error"})
	}
}
