package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/discoverlab/insight-map/internal/canvas"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pointer event types accepted by the map. "leave" is the pointer exiting
// the canvas bounds; it ends the drag exactly like "up" so drag state can
// never get stuck.
const (
	PointerDown  = "down"
	PointerMove  = "move"
	PointerUp    = "up"
	PointerLeave = "leave"
)

// MapHandler exposes the canvas engine: the current layout, relation edges,
// and the pointer-driven drag commands.
type MapHandler struct {
	store  *session.Store
	logger *zap.Logger
}

// NewMapHandler creates a new map handler
func NewMapHandler(store *session.Store, logger *zap.Logger) *MapHandler {
	return &MapHandler{store: store, logger: logger}
}

// RegisterRoutes registers map routes on the given router.
// The router should already have the /sessions prefix.
func (h *MapHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/map", h.GetMap).Methods("GET")
	r.HandleFunc("/{id}/map/pointer", h.PointerEvent).Methods("POST")
}

// MapResponse is the full canvas state: item positions, resolved relation
// edges, and the id of the item being dragged, if any.
type MapResponse struct {
	Positions map[string]canvas.Position `json:"positions"`
	Edges     []canvas.Edge              `json:"edges"`
	Dragging  string                     `json:"dragging,omitempty"`
}

func mapResponse(ws *session.Workspace) MapResponse {
	dragging, _ := ws.Dragging()
	return MapResponse{
		Positions: ws.Layout(),
		Edges:     ws.Edges(),
		Dragging:  dragging,
	}
}

// GetMap returns the current canvas state
func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}
	respondJSON(w, http.StatusOK, mapResponse(ws))
}

// PointerEventRequest is one pointer event in canvas coordinates
type PointerEventRequest struct {
	Type   string  `json:"type" validate:"required"`
	ItemID string  `json:"item_id,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// PointerEvent applies a pointer event to the canvas. Down starts a drag on
// an item, move repositions it to pointer minus the recorded offset, and
// up/leave commit the last position and clear drag state unconditionally.
func (h *MapHandler) PointerEvent(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	var req PointerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	switch req.Type {
	case PointerDown:
		if err := ws.PointerDown(req.ItemID, req.X, req.Y); err != nil {
			switch {
			case errors.Is(err, canvas.ErrUnknownItem):
				respondJSONError(w, http.StatusNotFound, "Not Found", "Item not found on canvas")
			case errors.Is(err, canvas.ErrDragActive):
				respondJSONError(w, http.StatusConflict, "Conflict", "A drag is already active")
			default:
				respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to start drag")
			}
			return
		}
	case PointerMove:
		if err := ws.PointerMove(req.X, req.Y); err != nil {
			respondJSONError(w, http.StatusConflict, "Conflict", "No drag is active")
			return
		}
	case PointerUp, PointerLeave:
		ws.PointerUp()
	default:
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Type must be 'down', 'move', 'up', or 'leave'")
		return
	}

	respondJSON(w, http.StatusOK, mapResponse(ws))
}
