package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/discoverlab/insight-map/internal/transfer"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// OKRHandler handles the OKR panel: listing objectives with their mapped
// items and recording item→OKR drops.
type OKRHandler struct {
	store  *session.Store
	logger *zap.Logger
}

// NewOKRHandler creates a new OKR handler
func NewOKRHandler(store *session.Store, logger *zap.Logger) *OKRHandler {
	return &OKRHandler{store: store, logger: logger}
}

// RegisterRoutes registers OKR routes on the given router.
// The router should already have the /sessions prefix.
func (h *OKRHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/okrs", h.ListOKRs).Methods("GET")
	r.HandleFunc("/{id}/okrs/{okrID}/drop", h.Drop).Methods("POST")
	r.HandleFunc("/{id}/okrs/mapping/{itemID}", h.Unmap).Methods("DELETE")
}

// OKRZone is one drop zone: the OKR definition plus the items mapped to it
type OKRZone struct {
	OKR         models.OKR     `json:"okr"`
	MappedItems []*models.Item `json:"mapped_items"`
}

// ListOKRs returns every OKR with the items currently mapped to it
func (h *OKRHandler) ListOKRs(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	okrs := ws.OKRs()
	zones := make([]OKRZone, 0, len(okrs))
	for _, o := range okrs {
		zones = append(zones, OKRZone{OKR: o, MappedItems: ws.MappedItems(o.ID)})
	}
	respondJSON(w, http.StatusOK, zones)
}

// DropRequest carries the serialized drag payload released over an OKR zone
type DropRequest struct {
	Payload string `json:"payload"`
}

// Drop deserializes the transferred item record and maps the item to the
// OKR, overwriting any prior mapping for that item. A malformed payload is
// a defensive no-op, not a user-visible error.
func (h *OKRHandler) Drop(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	var req DropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	okrID := mux.Vars(r)["okrID"]
	item, err := transfer.DecodeItem(req.Payload)
	if err != nil {
		h.logger.Debug("drop_payload_ignored",
			zap.String("session_id", ws.ID()),
			zap.String("okr_id", okrID),
			zap.Error(err),
		)
		respondJSON(w, http.StatusOK, map[string]any{"mapped": false})
		return
	}

	if err := ws.MapItemToOKR(item.ID, okrID); err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}

	h.logger.Info("item_mapped_to_okr",
		zap.String("session_id", ws.ID()),
		zap.String("item_id", item.ID),
		zap.String("okr_id", okrID),
	)
	respondJSON(w, http.StatusOK, map[string]any{"mapped": true, "item_id": item.ID, "okr_id": okrID})
}

// Unmap clears an item's OKR association
func (h *OKRHandler) Unmap(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	itemID := mux.Vars(r)["itemID"]
	ws.UnmapItem(itemID)
	respondJSON(w, http.StatusOK, map[string]any{"item_id": itemID})
}
