package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ourhaus/ourhaus/internal/auth"
	"github.com/ourhaus/ourhaus/internal/membership"
	"github.com/ourhaus/ourhaus/internal/model"
	ws "github.com/ourhaus/ourhaus/internal/websocket"
)

type HouseholdHandler struct {
	membership *membership.Service
	hub        *ws.Hub
	logger     *slog.Logger
}

func NewHouseholdHandler(ms *membership.Service, hub *ws.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{membership: ms, hub: hub, logger: logger}
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	household, err := h.membership.CreateHousehold(auth.UserID(r.Context()), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("household", "created", household.ID, nil))
	writeJSON(w, http.StatusCreated, household)
}

func (h *HouseholdHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	household, err := h.membership.RenameHousehold(r.PathValue("id"), auth.UserID(r.Context()), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("household", "updated", household.ID, nil))
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) SetPrimaryContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	householdID := r.PathValue("id")
	if err := h.membership.SetPrimaryContact(householdID, auth.UserID(r.Context()), req.UserID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("household", "updated", householdID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.membership.ListHouseholds(auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	household, err := h.membership.GetHousehold(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.membership.ListMembers(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []model.HouseholdMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	householdID := r.PathValue("id")
	targetID := r.PathValue("userId")

	err := h.membership.RemoveMember(householdID, auth.UserID(r.Context()), targetID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("household_member", "removed", householdID,
		map[string]any{"user_id": targetID}))
	h.hub.SendTo(targetID, ws.NewMessage("membership", "revoked", householdID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	householdID := r.PathValue("id")
	member, err := h.membership.UpdateMemberRole(householdID, auth.UserID(r.Context()), r.PathValue("userId"), req.Role)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("household_member", "updated", householdID,
		map[string]any{"user_id": member.UserID, "role": member.Role}))
	writeJSON(w, http.StatusOK, member)
}
