package handler

import (
	"net/http"
	"strconv"

	"github.com/freeeve/chiron/internal/auth"
	"github.com/freeeve/chiron/internal/service"
	"github.com/freeeve/chiron/pkg/chiron"
)

// UnitHandler handles orders given to a single unit.
type UnitHandler struct {
	svc *service.GameService
}

// NewUnitHandler creates a UnitHandler.
func NewUnitHandler(svc *service.GameService) *UnitHandler {
	return &UnitHandler{svc: svc}
}

type target struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// unitRequest reads the game id, unit id and user from r.
func unitRequest(w http.ResponseWriter, r *http.Request) (gameID, userID string, unitID chiron.UnitID, ok bool) {
	id, err := strconv.Atoi(r.PathValue("unitId"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid unit id")
		return "", "", 0, false
	}
	return r.PathValue("id"), auth.UserIDFromContext(r.Context()), chiron.UnitID(id), true
}

// decodeTarget reads a body carrying x and y plus any extra fields into dst.
func decodeTarget(w http.ResponseWriter, r *http.Request, dst any, t *target) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if t.X == nil || t.Y == nil {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return false
	}
	return true
}

// Move handles POST /api/v1/games/{id}/units/{unitId}/move
func (h *UnitHandler) Move(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	var req target
	if !decodeTarget(w, r, &req, &req) {
		return
	}
	out, err := h.svc.Move(r.Context(), gameID, userID, unitID, *req.X, *req.Y)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, map[string]string{"outcome": out.String()})
}

// Hold handles POST /api/v1/games/{id}/units/{unitId}/hold
func (h *UnitHandler) Hold(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	if err := h.svc.Hold(r.Context(), gameID, userID, unitID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, nil)
}

// Bombard handles POST /api/v1/games/{id}/units/{unitId}/bombard
func (h *UnitHandler) Bombard(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	var req target
	if !decodeTarget(w, r, &req, &req) {
		return
	}
	res, err := h.svc.Bombard(r.Context(), gameID, userID, unitID, *req.X, *req.Y)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, res)
}

// Probe handles POST /api/v1/games/{id}/units/{unitId}/probe
func (h *UnitHandler) Probe(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		target
		Action string `json:"action"`
	}
	if !decodeTarget(w, r, &req, &req.target) {
		return
	}
	res, err := h.svc.Probe(r.Context(), gameID, userID, unitID, *req.X, *req.Y, req.Action)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, res)
}

// Airdrop handles POST /api/v1/games/{id}/units/{unitId}/airdrop
func (h *UnitHandler) Airdrop(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	var req target
	if !decodeTarget(w, r, &req, &req) {
		return
	}
	if err := h.svc.Airdrop(r.Context(), gameID, userID, unitID, *req.X, *req.Y); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, nil)
}

// FoundBase handles POST /api/v1/games/{id}/units/{unitId}/found
func (h *UnitHandler) FoundBase(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	base, err := h.svc.FoundBase(r.Context(), gameID, userID, unitID, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, base)
}

// Terraform handles POST /api/v1/games/{id}/units/{unitId}/terraform
func (h *UnitHandler) Terraform(w http.ResponseWriter, r *http.Request) {
	gameID, userID, unitID, ok := unitRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Improvement string `json:"improvement"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Terraform(r.Context(), gameID, userID, unitID, req.Improvement); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithGame(w, r, h.svc, gameID, nil)
}
