package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/discoverlab/insight-map/internal/transfer"
	"github.com/discoverlab/insight-map/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ItemHandler handles item review operations: the list presentation,
// inline edits, accept/reject decisions, promotion, and the copy-summary
// and drag-transfer serializations.
type ItemHandler struct {
	store  *session.Store
	logger *zap.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(store *session.Store, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{store: store, logger: logger}
}

// RegisterRoutes registers item routes on the given router.
// The router should already have the /sessions prefix.
func (h *ItemHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/items", h.ListItems).Methods("GET")
	r.HandleFunc("/{id}/items/{itemID}", h.GetItem).Methods("GET")
	r.HandleFunc("/{id}/items/{itemID}", h.UpdateItem).Methods("PATCH")
	r.HandleFunc("/{id}/items/{itemID}/decision", h.DecideItem).Methods("POST")
	r.HandleFunc("/{id}/items/{itemID}/promote", h.PromoteItem).Methods("POST")
	r.HandleFunc("/{id}/items/{itemID}/summary", h.ItemSummary).Methods("GET")
	r.HandleFunc("/{id}/items/{itemID}/transfer", h.ItemTransfer).Methods("GET")
}

// ListItemsResponse groups items into fixed-order category sections
type ListItemsResponse struct {
	Groups []session.ItemGroup `json:"groups"`
	Total  int                 `json:"total"`
}

// ListItems returns the items grouped by category in fixed display order
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	groups := ws.GroupedItems()
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	respondJSON(w, http.StatusOK, ListItemsResponse{Groups: groups, Total: total})
}

// GetItem returns one item
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	item := ws.Item(mux.Vars(r)["itemID"])
	if item == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Item not found")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// UpdateItemRequest carries an inline edit. Omitted fields are unchanged;
// every edit commits, there is no separate cancel path. TagsText is the
// idea-detail form's comma-separated tag field; it is split, trimmed, and
// compacted, and takes precedence over Tags when both are sent.
type UpdateItemRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TagsText    *string  `json:"tags_text,omitempty"`
}

func splitTags(text string) []string {
	tags := []string{}
	for _, tag := range strings.Split(text, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// UpdateItem overwrites an item's editable fields
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	tags := req.Tags
	if req.TagsText != nil {
		tags = splitTags(*req.TagsText)
	}

	itemID := mux.Vars(r)["itemID"]
	if err := ws.UpdateItem(itemID, req.Title, req.Description, tags); err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Item not found")
		return
	}
	respondJSON(w, http.StatusOK, ws.Item(itemID))
}

// DecideItemRequest carries an accept/reject decision
type DecideItemRequest struct {
	Decision models.Decision `json:"decision" validate:"required,item_decision"`
}

// DecideItem overwrites the item's tri-state decision. The value is
// reversible through this endpoint even though the card UI hides the
// controls once decided.
func (h *ItemHandler) DecideItem(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	var req DecideItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.ValidateDecision(string(req.Decision)); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	itemID := mux.Vars(r)["itemID"]
	if err := ws.DecideItem(itemID, req.Decision); err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Item not found")
		return
	}
	respondJSON(w, http.StatusOK, ws.Item(itemID))
}

// PromoteItem transitions to the idea-detail view for an accepted Idea.
// On anything else it is a guarded no-op: the state does not change and the
// response reports promoted=false rather than an error.
func (h *ItemHandler) PromoteItem(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	itemID := mux.Vars(r)["itemID"]
	promoted := ws.PromoteIdea(itemID)
	if !promoted {
		h.logger.Debug("promote_ignored",
			zap.String("session_id", ws.ID()),
			zap.String("item_id", itemID),
		)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"promoted": promoted,
		"view":     ws.View(),
	})
}

// ItemSummary returns the fixed-format text block for the copy-summary
// action. Producing it has no state effect.
func (h *ItemHandler) ItemSummary(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	item := ws.Item(mux.Vars(r)["itemID"])
	if item == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Item not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"summary": item.Summary()})
}

// ItemTransferResponse is the serialized drag payload for an item
type ItemTransferResponse struct {
	Key     string `json:"key"`
	Payload string `json:"payload"`
}

// ItemTransfer serializes the full item record for the drag data channel,
// so a drop target can reconstruct it without a shared in-memory reference.
func (h *ItemHandler) ItemTransfer(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	item := ws.Item(mux.Vars(r)["itemID"])
	if item == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Item not found")
		return
	}
	payload, err := transfer.EncodeItem(item)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to serialize item")
		return
	}
	respondJSON(w, http.StatusOK, ItemTransferResponse{Key: transfer.ItemKey, Payload: payload})
}
