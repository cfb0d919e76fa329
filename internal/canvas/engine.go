// Package canvas implements the map engine: deterministic column layout of
// items, pointer-driven drag repositioning, and resolution of relation edges
// between item centers. Position state is owned here and never shared; the
// session workspace serializes all access.
package canvas

import (
	"errors"

	"github.com/discoverlab/insight-map/internal/models"
)

// Layout constants, in canvas units. Cards are fixed-size; the layout
// guarantees no overlap within a column and no horizontal column overlap.
// Overlap after a manual drag is permitted.
const (
	// ColumnWidth is the horizontal distance between category columns
	ColumnWidth = 320.0
	// RowHeight is the vertical distance between stacked items in a column
	RowHeight = 220.0
	// LayoutMargin offsets the whole layout from the canvas origin
	LayoutMargin = 50.0
	// CardWidth is the fixed rendered width of an item card
	CardWidth = 288.0
	// CardHeight is the approximate rendered height of an item card
	CardHeight = 200.0
)

var (
	// ErrUnknownItem is returned when a pointer-down targets an item with no position
	ErrUnknownItem = errors.New("canvas: unknown item")
	// ErrDragActive is returned when a pointer-down arrives while a drag is in progress
	ErrDragActive = errors.New("canvas: a drag is already active")
	// ErrNoActiveDrag is returned when a pointer-move arrives with no drag in progress
	ErrNoActiveDrag = errors.New("canvas: no active drag")
)

// Position is a 2D coordinate relative to the canvas origin
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge is a resolved relation line between the centers of two items.
// Category is the source item's category and drives the line styling.
type Edge struct {
	SourceID string          `json:"source_id"`
	TargetID string          `json:"target_id"`
	From     Position        `json:"from"`
	To       Position        `json:"to"`
	Category models.Category `json:"category"`
}

// Engine lays items out spatially and tracks a single active drag.
// It is not safe for concurrent use; the owning workspace synchronizes.
type Engine struct {
	positions  map[string]Position
	dragID     string
	dragOffset Position
}

// NewEngine creates an empty engine
func NewEngine() *Engine {
	return &Engine{positions: make(map[string]Position)}
}

// SetItems replaces the entire position mapping with a fresh auto-layout.
// Any previous manual drag positions are discarded; this reset on new data
// is deliberate. An in-progress drag is cancelled.
func (e *Engine) SetItems(items []*models.Item) {
	e.positions = AutoLayout(items)
	e.dragID = ""
	e.dragOffset = Position{}
}

// AutoLayout computes the initial position for every item: items are
// bucketed by category preserving input order, buckets map to columns in
// fixed category order, and items stack top-to-bottom within a column.
// The result is a pure function of the item collection's content and order.
func AutoLayout(items []*models.Item) map[string]Position {
	buckets := make(map[models.Category][]*models.Item, len(models.CategoryOrder))
	for _, item := range items {
		buckets[item.Category] = append(buckets[item.Category], item)
	}

	positions := make(map[string]Position, len(items))
	for col, category := range models.CategoryOrder {
		for row, item := range buckets[category] {
			positions[item.ID] = Position{
				X: float64(col)*ColumnWidth + LayoutMargin,
				Y: float64(row)*RowHeight + LayoutMargin,
			}
		}
	}
	return positions
}

// Positions returns a copy of the current position mapping
func (e *Engine) Positions() map[string]Position {
	out := make(map[string]Position, len(e.positions))
	for id, pos := range e.positions {
		out[id] = pos
	}
	return out
}

// PositionOf returns the current position of an item
func (e *Engine) PositionOf(itemID string) (Position, bool) {
	pos, ok := e.positions[itemID]
	return pos, ok
}

// Dragging returns the id of the item being dragged, if any
func (e *Engine) Dragging() (string, bool) {
	return e.dragID, e.dragID != ""
}

// PointerDown starts a drag on an item. The offset between the pointer and
// the item's top-left corner is recorded so the item tracks the pointer
// exactly during the drag. Only one drag may be active at a time.
func (e *Engine) PointerDown(itemID string, x, y float64) error {
	if e.dragID != "" {
		return ErrDragActive
	}
	pos, ok := e.positions[itemID]
	if !ok {
		return ErrUnknownItem
	}
	e.dragID = itemID
	e.dragOffset = Position{X: x - pos.X, Y: y - pos.Y}
	return nil
}

// PointerMove repositions the dragging item to pointer minus the recorded
// offset. Coordinates are relative to the canvas origin, so the canvas may
// scroll independently of the viewport.
func (e *Engine) PointerMove(x, y float64) error {
	if e.dragID == "" {
		return ErrNoActiveDrag
	}
	e.positions[e.dragID] = Position{X: x - e.dragOffset.X, Y: y - e.dragOffset.Y}
	return nil
}

// PointerUp ends the active drag, committing the last computed position.
// There is no snap-back: releasing outside the canvas commits too. Safe to
// call with no drag active, so a canvas-leave can always clear drag state
// and a phantom drag can never get stuck.
func (e *Engine) PointerUp() {
	e.dragID = ""
	e.dragOffset = Position{}
}

// Edges resolves every relation whose endpoints are both present in the
// current item set into a line between the items' centers. A relation with
// either endpoint unresolved is skipped entirely rather than drawn to an
// undefined point.
func (e *Engine) Edges(items []*models.Item, relations []models.Relation) []Edge {
	byID := make(map[string]*models.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	edges := make([]Edge, 0, len(relations))
	for _, rel := range relations {
		source, ok := byID[rel.SourceID]
		if !ok {
			continue
		}
		if _, ok := byID[rel.TargetID]; !ok {
			continue
		}
		srcPos, ok := e.positions[rel.SourceID]
		if !ok {
			continue
		}
		dstPos, ok := e.positions[rel.TargetID]
		if !ok {
			continue
		}
		edges = append(edges, Edge{
			SourceID: rel.SourceID,
			TargetID: rel.TargetID,
			From:     center(srcPos),
			To:       center(dstPos),
			Category: source.Category,
		})
	}
	return edges
}

func center(pos Position) Position {
	return Position{X: pos.X + CardWidth/2, Y: pos.Y + CardHeight/2}
}
