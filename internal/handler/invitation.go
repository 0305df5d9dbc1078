package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ourhaus/ourhaus/internal/auth"
	"github.com/ourhaus/ourhaus/internal/email"
	"github.com/ourhaus/ourhaus/internal/membership"
	"github.com/ourhaus/ourhaus/internal/model"
	ws "github.com/ourhaus/ourhaus/internal/websocket"
)

type InvitationHandler struct {
	membership *membership.Service
	email      *email.Client
	hub        *ws.Hub
	logger     *slog.Logger
}

func NewInvitationHandler(ms *membership.Service, ec *email.Client, hub *ws.Hub, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{membership: ms, email: ec, hub: hub, logger: logger}
}

// Create issues an invitation for the household in the path. When email
// delivery is configured the token goes out by mail; either way the
// response carries it so the inviter can deliver it out-of-band.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	householdID := r.PathValue("id")
	inviterID := auth.UserID(r.Context())

	inv, err := h.membership.InviteMember(householdID, inviterID, req.Email, req.Role)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if h.email.Configured() {
		household, err := h.membership.GetHousehold(householdID, inviterID)
		name := householdID
		if err == nil {
			name = household.Name
		}
		if err := h.email.SendInvitation(inv.Email, inv.Token, name, string(inv.Role)); err != nil {
			// Token still valid; the inviter can share it manually
			h.logger.Error("send invitation email", "invitation_id", inv.ID, "error", err)
		}
	}

	h.hub.Broadcast(ws.NewMessage("invitation", "created", inv.ID,
		map[string]any{"household_id": householdID}))
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	invs, err := h.membership.ListInvitations(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if invs == nil {
		invs = []model.HouseholdInvitation{}
	}
	// The token only goes to the inviter at create time; the list view is
	// visible to every member who can read invitations.
	for i := range invs {
		invs[i].Token = ""
	}
	writeJSON(w, http.StatusOK, invs)
}

// Accept consumes an invitation token for the authenticated user.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	inv, err := h.membership.AcceptInvitation(req.Token, ac.UserID, ac.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("household_member", "added", inv.HouseholdID,
		map[string]any{"user_id": ac.UserID, "role": inv.Role}))
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.membership.CancelInvitation(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
