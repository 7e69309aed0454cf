package handler

import (
	"net/http"

	"github.com/freeeve/chiron/internal/auth"
	"github.com/freeeve/chiron/internal/service"
)

// GameHandler handles game lifecycle, turn and save endpoints.
type GameHandler struct {
	svc *service.GameService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(svc *service.GameService) *GameHandler {
	return &GameHandler{svc: svc}
}

// CreateGame handles POST /api/v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Name          string `json:"name"`
		BotDifficulty string `json:"bot_difficulty,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	view, err := h.svc.CreateGame(r.Context(), req.Name, userID, req.BotDifficulty)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ListGames handles GET /api/v1/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	games, err := h.svc.ListGames(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if games == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	view, err := h.svc.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteGame handles DELETE /api/v1/games/{id}
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if err := h.svc.DeleteGame(r.Context(), r.PathValue("id"), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndTurn handles POST /api/v1/games/{id}/end-turn
func (h *GameHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.svc.EndTurn(r.Context(), gameID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, nil)
}

// ClearDecision handles POST /api/v1/games/{id}/decisions/{kind}/clear
func (h *GameHandler) ClearDecision(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.svc.ClearDecision(r.Context(), gameID, userID, r.PathValue("kind")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, nil)
}

// ConfirmTreatyBreak handles POST /api/v1/games/{id}/treaty/confirm
func (h *GameHandler) ConfirmTreatyBreak(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	out, err := h.svc.ConfirmTreatyBreak(r.Context(), gameID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, map[string]string{"outcome": out.String()})
}

// Save handles POST /api/v1/games/{id}/saves
func (h *GameHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	slot, err := h.svc.Save(r.Context(), r.PathValue("id"), userID, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// ListSaves handles GET /api/v1/games/{id}/saves
func (h *GameHandler) ListSaves(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	slots, err := h.svc.ListSaves(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// LoadSave handles POST /api/v1/games/{id}/saves/{saveId}/load
func (h *GameHandler) LoadSave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	view, err := h.svc.LoadSave(r.Context(), r.PathValue("id"), userID, r.PathValue("saveId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// actionResponse pairs an action's result with the game after it.
type actionResponse struct {
	Result any                `json:"result,omitempty"`
	Game   *service.GameView `json:"game"`
}

// respondWithGame writes result alongside the current game view.
func respondWithGame(w http.ResponseWriter, r *http.Request, svc *service.GameService, gameID string, result any) {
	view, err := svc.Get(r.Context(), gameID, auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Result: result, Game: view})
}
