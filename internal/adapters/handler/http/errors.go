package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoIdentity):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRoomID),
		errors.Is(err, domain.ErrInvalidTaskID),
		errors.Is(err, domain.ErrRoomNameRequired),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrTaskTitleRequired),
		errors.Is(err, domain.ErrInvalidVoteValue),
		errors.Is(err, domain.ErrInvalidDeck):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		http.Error(w, domain.ErrInternal.Error(), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}
