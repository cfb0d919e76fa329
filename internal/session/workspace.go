// Package session owns all shared discovery state. A Workspace is the single
// owner of items, relations, OKR definitions, and the item→OKR mapping;
// presentations and handlers mutate it only through the named commands below,
// and every command serializes through the workspace mutex.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/discoverlab/insight-map/internal/canvas"
	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/services/ai"
	"github.com/discoverlab/insight-map/internal/validation"
)

// View identifies the active presentation
type View string

const (
	ViewTranscriptEntry View = "transcript_entry"
	ViewItemList        View = "item_list"
	ViewItemMap         View = "item_map"
	ViewIdeaDetail      View = "idea_detail"
)

var (
	// ErrEmptyTranscript is returned when a transcript is empty after trimming
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrExtractionInFlight is returned when a submit arrives while one is pending
	ErrExtractionInFlight = errors.New("an extraction is already in progress")
	// ErrUnknownItem is returned when a command references an item id not in the set
	ErrUnknownItem = errors.New("unknown item")
	// ErrUnknownOKR is returned when a mapping references an OKR id not in the set
	ErrUnknownOKR = errors.New("unknown OKR")
	// ErrInvalidTransition is returned for a view change the state machine does not allow
	ErrInvalidTransition = errors.New("invalid view transition")
)

// Workspace holds one session's discovery state and its view state machine.
// Initial view is transcript entry; there is no terminal state.
type Workspace struct {
	id string

	mu         sync.Mutex
	view       View
	items      []*models.Item
	relations  []models.Relation
	okrs       []models.OKR
	mapping    models.OkrMapping
	selectedID string
	lastError  string
	busy       bool
	generation uint64
	canvas     *canvas.Engine
	createdAt  time.Time
	lastActive time.Time
}

// NewWorkspace creates a workspace in the transcript-entry view. The OKR
// definitions are fixed for the workspace's lifetime.
func NewWorkspace(id string, okrs []models.OKR) *Workspace {
	now := time.Now()
	return &Workspace{
		id:         id,
		view:       ViewTranscriptEntry,
		okrs:       okrs,
		mapping:    make(models.OkrMapping),
		canvas:     canvas.NewEngine(),
		createdAt:  now,
		lastActive: now,
	}
}

// ID returns the workspace id
func (w *Workspace) ID() string { return w.id }

// Touch marks the workspace as recently used
func (w *Workspace) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
}

// IdleSince returns the last time the workspace was used
func (w *Workspace) IdleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// BeginExtraction validates the transcript and marks the workspace busy.
// It returns the generation the caller must pass back to ApplyExtraction or
// FailExtraction; a completion whose generation is no longer current is
// ignored, so a stale response can never clobber newer state.
func (w *Workspace) BeginExtraction(transcript string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if strings.TrimSpace(transcript) == "" {
		return 0, ErrEmptyTranscript
	}
	if w.busy {
		return 0, ErrExtractionInFlight
	}
	w.busy = true
	w.lastError = ""
	w.generation++
	return w.generation, nil
}

// ApplyExtraction installs a successful extraction result and transitions to
// the item list. Returns false when the result is stale (the workspace was
// reset, or a newer submission superseded it) and no state was changed.
func (w *Workspace) ApplyExtraction(generation uint64, result *ai.ExtractionResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if generation != w.generation {
		return false
	}
	w.busy = false
	w.items = result.Items
	w.relations = result.Relations
	w.canvas.SetItems(w.items)
	w.view = ViewItemList
	w.lastError = ""
	return true
}

// FailExtraction records an extraction failure. The view stays on transcript
// entry so the user can retry manually; nothing else changes. Returns false
// when the failure is stale.
func (w *Workspace) FailExtraction(generation uint64, err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if generation != w.generation {
		return false
	}
	w.busy = false
	if err != nil {
		w.lastError = err.Error()
	}
	return true
}

// Busy reports whether an extraction is pending
func (w *Workspace) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// View returns the active view
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

// ShowList switches to the item list. Allowed from the list and map views only.
func (w *Workspace) ShowList() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.view != ViewItemList && w.view != ViewItemMap {
		return ErrInvalidTransition
	}
	w.view = ViewItemList
	return nil
}

// ShowMap switches to the map. Allowed from the list and map views only;
// both read the same shared state, so switching loses nothing.
func (w *Workspace) ShowMap() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.view != ViewItemList && w.view != ViewItemMap {
		return ErrInvalidTransition
	}
	w.view = ViewItemMap
	return nil
}

// UpdateItem overwrites an item's editable fields. A nil field is left
// unchanged. Every edit commits; there is no separate cancel path.
func (w *Workspace) UpdateItem(itemID string, title, description *string, tags []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	item := w.findLocked(itemID)
	if item == nil {
		return ErrUnknownItem
	}
	if title != nil {
		item.Title = validation.SanitizeText(*title)
	}
	if description != nil {
		item.Description = validation.SanitizeText(*description)
	}
	if tags != nil {
		item.Tags = tags
	}
	return nil
}

// DecideItem overwrites the item's tri-state decision. Re-accepting or
// re-rejecting simply replaces the value.
func (w *Workspace) DecideItem(itemID string, decision models.Decision) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	item := w.findLocked(itemID)
	if item == nil {
		return ErrUnknownItem
	}
	item.Decision = decision
	return nil
}

// PromoteIdea transitions to the idea-detail view for an accepted Idea.
// Invoked on anything else it is a guarded no-op and returns false.
func (w *Workspace) PromoteIdea(itemID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.view != ViewItemList && w.view != ViewItemMap {
		return false
	}
	item := w.findLocked(itemID)
	if item == nil || item.Category != models.CategoryIdea || item.Decision != models.DecisionAccepted {
		return false
	}
	w.selectedID = itemID
	w.view = ViewIdeaDetail
	return true
}

// BackToList leaves the idea-detail view. The transition target is always
// the item list, whatever label the client shows.
func (w *Workspace) BackToList() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = ViewItemList
	w.selectedID = ""
}

// SelectedItem returns a copy of the item open in the idea-detail view
func (w *Workspace) SelectedItem() *models.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	item := w.findLocked(w.selectedID)
	if item == nil {
		return nil
	}
	return item.Clone()
}

// Reset returns to transcript entry, discarding items, relations, the error,
// and the selection. OKR definitions and existing OKR mappings survive;
// mappings for discarded item ids simply become unreachable. The generation
// bump makes any still-pending extraction stale.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = nil
	w.relations = nil
	w.selectedID = ""
	w.lastError = ""
	w.busy = false
	w.generation++
	w.canvas.SetItems(nil)
	w.view = ViewTranscriptEntry
}

// LastError returns the surfaced extraction error, or ""
func (w *Workspace) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

// Items returns copies of all items in input order
func (w *Workspace) Items() []*models.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneItems(w.items)
}

// Item returns a copy of one item
func (w *Workspace) Item(itemID string) *models.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	item := w.findLocked(itemID)
	if item == nil {
		return nil
	}
	return item.Clone()
}

// Relations returns a copy of all relations
func (w *Workspace) Relations() []models.Relation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Relation(nil), w.relations...)
}

// ItemGroup is one fixed-order category section of the list presentation
type ItemGroup struct {
	Category models.Category `json:"category"`
	Items    []*models.Item  `json:"items"`
}

// GroupedItems buckets items into category sections in fixed category order,
// preserving each bucket's relative item order.
func (w *Workspace) GroupedItems() []ItemGroup {
	w.mu.Lock()
	defer w.mu.Unlock()

	groups := make([]ItemGroup, 0, len(models.CategoryOrder))
	for _, category := range models.CategoryOrder {
		group := ItemGroup{Category: category, Items: []*models.Item{}}
		for _, item := range w.items {
			if item.Category == category {
				group.Items = append(group.Items, item.Clone())
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// OKRs returns the workspace's OKR definitions
func (w *Workspace) OKRs() []models.OKR {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.OKR(nil), w.okrs...)
}

// MapItemToOKR records an item→OKR association, overwriting any prior
// mapping for that item. One OKR per item; last write wins.
func (w *Workspace) MapItemToOKR(itemID, okrID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if itemID == "" {
		return ErrUnknownItem
	}
	found := false
	for _, okr := range w.okrs {
		if okr.ID == okrID {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownOKR
	}
	w.mapping[itemID] = okrID
	return nil
}

// UnmapItem clears an item's OKR association, if any
func (w *Workspace) UnmapItem(itemID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.mapping, itemID)
}

// Mapping returns a copy of the item→OKR mapping. Entries referencing
// discarded item ids are retained; OKRs are session-scoped metadata.
func (w *Workspace) Mapping() models.OkrMapping {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(models.OkrMapping, len(w.mapping))
	for k, v := range w.mapping {
		out[k] = v
	}
	return out
}

// MappedItems returns copies of the items currently mapped to an OKR,
// found by scanning the item set. Item and OKR counts are small enough
// that no index is worth maintaining.
func (w *Workspace) MappedItems(okrID string) []*models.Item {
	w.mu.Lock()
	defer w.mu.Unlock()

	mapped := []*models.Item{}
	for _, item := range w.items {
		if w.mapping[item.ID] == okrID {
			mapped = append(mapped, item.Clone())
		}
	}
	return mapped
}

// Layout returns the current canvas position of every item
func (w *Workspace) Layout() map[string]canvas.Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas.Positions()
}

// PointerDown starts a canvas drag on an item
func (w *Workspace) PointerDown(itemID string, x, y float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas.PointerDown(itemID, x, y)
}

// PointerMove repositions the dragging item
func (w *Workspace) PointerMove(x, y float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas.PointerMove(x, y)
}

// PointerUp ends the active drag. Also used for the pointer leaving the
// canvas; drag state is cleared unconditionally either way.
func (w *Workspace) PointerUp() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.canvas.PointerUp()
}

// Dragging returns the id of the item being dragged, if any
func (w *Workspace) Dragging() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas.Dragging()
}

// Edges resolves the current relation lines between item centers
func (w *Workspace) Edges() []canvas.Edge {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas.Edges(w.items, w.relations)
}

func (w *Workspace) findLocked(itemID string) *models.Item {
	for _, item := range w.items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

func cloneItems(items []*models.Item) []*models.Item {
	out := make([]*models.Item, 0, len(items))
	for _, item := range items {
		out = append(out, item.Clone())
	}
	return out
}
