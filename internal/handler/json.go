package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ourhaus/ourhaus/internal/homelog"
	"github.com/ourhaus/ourhaus/internal/membership"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service failure kinds to HTTP statuses. Each
// invitation-acceptance failure keeps its own reason string; collapsing them
// would hide why the caller was rejected.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, membership.ErrValidation) || errors.Is(err, homelog.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, homelog.ErrHashMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, membership.ErrNotAuthorized) || errors.Is(err, homelog.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, membership.ErrNotFound) || errors.Is(err, homelog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, membership.ErrInvalidToken):
		writeError(w, http.StatusNotFound, "invalid invitation token")
	case errors.Is(err, membership.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, membership.ErrExpired):
		writeError(w, http.StatusConflict, "invitation expired")
	case errors.Is(err, membership.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, "invitation already used")
	case errors.Is(err, membership.ErrEmailMismatch):
		writeError(w, http.StatusConflict, "invitation was issued to a different email")
	case errors.Is(err, membership.ErrSelfRemoval):
		writeError(w, http.StatusConflict, "cannot remove yourself")
	case errors.Is(err, homelog.ErrSealed):
		writeError(w, http.StatusConflict, "snapshot is sealed")
	default:
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
