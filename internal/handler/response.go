package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/chiron/internal/bot"
	"github.com/freeeve/chiron/internal/logger"
	"github.com/freeeve/chiron/internal/service"
	"github.com/freeeve/chiron/pkg/chiron"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorStatus maps service and engine errors to HTTP status codes.
func errorStatus(err error) int {
	var me *chiron.MoveError
	switch {
	case errors.Is(err, service.ErrGameNotFound),
		errors.Is(err, service.ErrUnitNotFound),
		errors.Is(err, service.ErrSaveNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotYourGame),
		errors.Is(err, service.ErrNotYourUnit):
		return http.StatusForbidden
	case errors.Is(err, service.ErrGameNotActive),
		errors.Is(err, chiron.ErrWrongPhase),
		errors.Is(err, chiron.ErrBattleActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownImprovement),
		errors.Is(err, service.ErrUnknownProbeAction),
		errors.Is(err, service.ErrUnknownDecision),
		errors.Is(err, bot.ErrUnknownDifficulty):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSavesDisabled):
		return http.StatusNotImplemented
	case errors.As(err, &me):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with the status errorStatus picks. Rejected
// engine actions also carry the reason code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		reqLog := logger.ForRequest(r.Context())
		reqLog.Error().Err(err).Msg("Request failed")
		writeError(w, status, "internal error")
		return
	}
	var me *chiron.MoveError
	if status == http.StatusUnprocessableEntity && errors.As(err, &me) {
		writeJSON(w, status, map[string]any{"error": me.Error(), "reason": me.Err.Error()})
		return
	}
	writeError(w, status, err.Error())
}
