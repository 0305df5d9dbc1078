package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ourhaus/ourhaus/internal/auth"
	"github.com/ourhaus/ourhaus/internal/homelog"
	"github.com/ourhaus/ourhaus/internal/model"
	ws "github.com/ourhaus/ourhaus/internal/websocket"
)

type HomeHandler struct {
	homelog *homelog.Service
	hub     *ws.Hub
	logger  *slog.Logger
}

func NewHomeHandler(hl *homelog.Service, hub *ws.Hub, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{homelog: hl, hub: hub, logger: logger}
}

func (h *HomeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HouseholdID string        `json:"household_id"`
		Address     model.Address `json:"address"`
		Nickname    string        `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	home, err := h.homelog.CreateHome(auth.UserID(r.Context()), req.HouseholdID, req.Address, req.Nickname)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("home", "created", home.ID, nil))
	writeJSON(w, http.StatusCreated, home)
}

func (h *HomeHandler) List(w http.ResponseWriter, r *http.Request) {
	homes, err := h.homelog.ListHomes(auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if homes == nil {
		homes = []model.Home{}
	}
	writeJSON(w, http.StatusOK, homes)
}

func (h *HomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	home, err := h.homelog.GetHome(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, home)
}

func (h *HomeHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewHouseholdID string `json:"new_household_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	homeID := r.PathValue("id")
	err := h.homelog.TransferOwnership(homeID, auth.UserID(r.Context()), req.NewHouseholdID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("home", "transferred", homeID,
		map[string]any{"new_household_id": req.NewHouseholdID}))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HomeHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HouseholdID string           `json:"household_id"`
		Role        model.AccessRole `json:"role"`
		ExpiresAt   *time.Time       `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err := h.homelog.GrantAccess(r.PathValue("id"), auth.UserID(r.Context()), req.HouseholdID, req.Role, req.ExpiresAt)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HomeHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	err := h.homelog.RevokeAccess(r.PathValue("id"), auth.UserID(r.Context()), r.PathValue("householdId"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HomeHandler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type            model.EventType `json:"type"`
		Category        string          `json:"category"`
		Title           string          `json:"title"`
		Description     string          `json:"description"`
		OccurredAt      time.Time       `json:"occurred_at"`
		Cost            *model.Cost     `json:"cost"`
		CorrectsEventID string          `json:"corrects_event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	homeID := r.PathValue("id")
	userID := auth.UserID(r.Context())

	var event *model.Event
	var err error
	if req.CorrectsEventID != "" {
		event, err = h.homelog.AppendCorrection(homeID, userID, req.CorrectsEventID, req.Title, req.Description)
	} else {
		event, err = h.homelog.AppendEvent(homeID, userID, homelog.EventInput{
			Type:        req.Type,
			Category:    req.Category,
			Title:       req.Title,
			Description: req.Description,
			OccurredAt:  req.OccurredAt,
			Cost:        req.Cost,
		})
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("event", "created", event.ID,
		map[string]any{"home_id": homeID}))
	writeJSON(w, http.StatusCreated, event)
}

func (h *HomeHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.homelog.Timeline(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *HomeHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string             `json:"title"`
		Description string             `json:"description"`
		TakenAt     time.Time          `json:"taken_at"`
		Type        model.SnapshotType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" {
		req.Type = model.SnapshotCustom
	}

	sn, err := h.homelog.CreateSnapshot(r.PathValue("id"), auth.UserID(r.Context()),
		req.Title, req.Description, req.TakenAt, req.Type)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("snapshot", "created", sn.ID,
		map[string]any{"home_id": sn.HomeID}))
	writeJSON(w, http.StatusCreated, sn)
}

func (h *HomeHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.homelog.ListSnapshots(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *HomeHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	sn, err := h.homelog.GetSnapshot(r.PathValue("id"), r.PathValue("snapshotId"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

func (h *HomeHandler) UpdateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		TakenAt     time.Time `json:"taken_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sn, err := h.homelog.UpdateSnapshot(r.PathValue("id"), r.PathValue("snapshotId"),
		auth.UserID(r.Context()), req.Title, req.Description, req.TakenAt)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

// AddSnapshotFile accepts base64 file content, verifies the optional
// expected hash, and attaches the file to an unsealed snapshot.
func (h *HomeHandler) AddSnapshotFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
		Content     string `json:"content"` // base64
		Hash        string `json:"hash"`    // optional expected hex SHA-256
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "content must be base64")
		return
	}

	sn, err := h.homelog.AddSnapshotFile(r.PathValue("id"), r.PathValue("snapshotId"),
		auth.UserID(r.Context()), req.Name, req.URL, req.ContentType, content, req.Hash)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

func (h *HomeHandler) SealSnapshot(w http.ResponseWriter, r *http.Request) {
	sn, err := h.homelog.SealSnapshot(r.PathValue("id"), r.PathValue("snapshotId"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("snapshot", "sealed", sn.ID,
		map[string]any{"home_id": sn.HomeID}))
	writeJSON(w, http.StatusOK, sn)
}
