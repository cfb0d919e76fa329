package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SessionHandler handles session lifecycle and view transitions
type SessionHandler struct {
	store  *session.Store
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store *session.Store, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given router.
// The router should already have the /sessions prefix.
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.CreateSession).Methods("POST")
	r.HandleFunc("/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/{id}/reset", h.ResetSession).Methods("POST")
	r.HandleFunc("/{id}/view", h.SwitchView).Methods("POST")
	r.HandleFunc("/{id}/back", h.BackToList).Methods("POST")
}

// SessionResponse is the state snapshot returned for a session
type SessionResponse struct {
	ID            string       `json:"id"`
	View          session.View `json:"view"`
	Busy          bool         `json:"busy"`
	Error         string       `json:"error,omitempty"`
	ItemCount     int          `json:"item_count"`
	RelationCount int          `json:"relation_count"`
	SelectedItem  *models.Item `json:"selected_item,omitempty"`
}

func sessionResponse(ws *session.Workspace) SessionResponse {
	return SessionResponse{
		ID:            ws.ID(),
		View:          ws.View(),
		Busy:          ws.Busy(),
		Error:         ws.LastError(),
		ItemCount:     len(ws.Items()),
		RelationCount: len(ws.Relations()),
		SelectedItem:  ws.SelectedItem(),
	}
}

// CreateSession starts a new session in the transcript-entry view
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ws := h.store.Create()
	respondJSON(w, http.StatusCreated, sessionResponse(ws))
}

// GetSession returns the session state snapshot
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(ws))
}

// DeleteSession discards a session entirely
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.store.Delete(id)
	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ResetSession returns the session to transcript entry. Items, relations,
// and the error are cleared; OKR definitions and mappings survive.
func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	ws.Reset()
	h.logger.Info("session_reset", zap.String("session_id", ws.ID()))
	respondJSON(w, http.StatusOK, sessionResponse(ws))
}

// SwitchViewRequest selects the list or map presentation
type SwitchViewRequest struct {
	View session.View `json:"view" validate:"required"`
}

// SwitchView switches between the item list and the map
func (h *SessionHandler) SwitchView(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	var req SwitchViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	var err error
	switch req.View {
	case session.ViewItemList:
		err = ws.ShowList()
	case session.ViewItemMap:
		err = ws.ShowMap()
	default:
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "View must be 'item_list' or 'item_map'")
		return
	}
	if err != nil {
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(ws))
}

// BackToList leaves the idea-detail view for the item list
func (h *SessionHandler) BackToList(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	ws.BackToList()
	respondJSON(w, http.StatusOK, sessionResponse(ws))
}
