package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/okr"
	"github.com/discoverlab/insight-map/internal/services/ai"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// fakeProvider returns a canned extraction result or error
type fakeProvider struct {
	result *ai.ExtractionResult
	err    error
	calls  int
}

func (f *fakeProvider) ExtractTranscript(ctx context.Context, transcript string) (*ai.ExtractionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestRouter(provider ai.ExtractionProvider) (*mux.Router, *session.Store) {
	logger := zap.NewNop()
	store := session.NewStore(okr.Defaults(), time.Hour, logger)

	r := mux.NewRouter()
	sessions := r.PathPrefix("/api/v1/sessions").Subrouter()
	NewSessionHandler(store, logger).RegisterRoutes(sessions)
	NewExtractHandler(store, provider, logger).RegisterRoutes(sessions)
	NewItemHandler(store, logger).RegisterRoutes(sessions)
	NewMapHandler(store, logger).RegisterRoutes(sessions)
	NewOKRHandler(store, logger).RegisterRoutes(sessions)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", envelope)
	}
	return d
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	rec, envelope := doJSON(t, r, http.MethodPost, "/api/v1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d", rec.Code)
	}
	id, _ := data(t, envelope)["id"].(string)
	if id == "" {
		t.Fatal("create session returned no id")
	}
	return id
}

func discoveryResult() *ai.ExtractionResult {
	return &ai.ExtractionResult{
		Items: []*models.Item{
			{
				ID:            "s-1",
				Category:      models.CategorySignal,
				Title:         "Checkout feels slow",
				Description:   "Two participants complained about checkout lag",
				Confidence:    0.9,
				SourceSnippet: "the spinner just sits there",
				Tags:          []string{},
				Decision:      models.DecisionUndecided,
			},
			{
				ID:            "i-1",
				Category:      models.CategoryInsight,
				Title:         "Latency drives abandonment",
				Description:   "Perceived slowness makes users give up before paying",
				Confidence:    0.7,
				SourceSnippet: "",
				Tags:          []string{},
				Decision:      models.DecisionUndecided,
			},
			{
				ID:            "d-1",
				Category:      models.CategoryIdea,
				Title:         "Optimistic checkout confirmation",
				Description:   "Confirm instantly and reconcile in the background",
				Confidence:    0.6,
				SourceSnippet: "",
				Tags:          []string{},
				Decision:      models.DecisionUndecided,
			},
		},
		Relations: []models.Relation{
			{SourceID: "s-1", TargetID: "i-1"},
			{SourceID: "s-1", TargetID: "ghost"},
		},
	}
}

func extractedSession(t *testing.T, r http.Handler) string {
	t.Helper()
	id := createSession(t, r)
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
		map[string]string{"transcript": "interview transcript"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit transcript: status %d body %s", rec.Code, rec.Body.String())
	}
	return id
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(nil)

	id := createSession(t, r)
	if _, ok := store.Get(id); !ok {
		t.Fatal("session not registered in store")
	}

	rec, envelope := doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status %d", rec.Code)
	}
	if view := data(t, envelope)["view"]; view != "transcript_entry" {
		t.Errorf("initial view = %v", view)
	}

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete session: status %d", rec.Code)
	}
	if _, ok := store.Get(id); ok {
		t.Error("session survived delete")
	}

	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted session: status %d, want 404", rec.Code)
	}
}

func TestSubmitTranscript_Success(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{result: discoveryResult()}
	r, _ := newTestRouter(provider)
	id := createSession(t, r)

	rec, envelope := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
		map[string]string{"transcript": "interview transcript"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	d := data(t, envelope)
	if d["view"] != "item_list" {
		t.Errorf("view = %v, want item_list", d["view"])
	}
	if d["item_count"].(float64) != 3 {
		t.Errorf("item_count = %v, want 3", d["item_count"])
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times", provider.calls)
	}
}

func TestSubmitTranscript_Validation(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := createSession(t, r)

	tests := []struct {
		name       string
		transcript string
		wantStatus int
	}{
		{name: "empty", transcript: "", wantStatus: http.StatusBadRequest},
		{name: "whitespace", transcript: "   \n  ", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
			map[string]string{"transcript": tt.transcript})
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status %d, want %d", tt.name, rec.Code, tt.wantStatus)
		}
	}
}

func TestSubmitTranscript_GatewayFailure(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{err: errors.New("model unavailable")})
	id := createSession(t, r)

	rec, envelope := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
		map[string]string{"transcript": "interview transcript"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
	if envelope["error"] != "Extraction Failed" {
		t.Errorf("error = %v", envelope["error"])
	}

	// The session stays on transcript entry with the error surfaced
	_, envelope = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id, nil)
	d := data(t, envelope)
	if d["view"] != "transcript_entry" {
		t.Errorf("view after failure = %v", d["view"])
	}
	if d["error"] != "model unavailable" {
		t.Errorf("surfaced error = %v", d["error"])
	}

	// A manual retry works once the gateway recovers
	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
		map[string]string{"transcript": "interview transcript"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("retry status %d, want 502 from same failing provider", rec.Code)
	}
}

func TestSubmitTranscript_NotConfigured(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(nil)
	id := createSession(t, r)

	rec, envelope := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
		map[string]string{"transcript": "interview transcript"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	if envelope["error"] != "Configuration Error" {
		t.Errorf("error = %v, want Configuration Error", envelope["error"])
	}
}

func TestListItems_GroupedInFixedOrder(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)

	rec, envelope := doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/items", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	d := data(t, envelope)
	if d["total"].(float64) != 3 {
		t.Errorf("total = %v", d["total"])
	}
	groups := d["groups"].([]any)
	if len(groups) != 4 {
		t.Fatalf("got %d groups, want 4", len(groups))
	}
	wantOrder := []string{"Signal", "Insight", "Opportunity", "Idea"}
	for i, g := range groups {
		group := g.(map[string]any)
		if group["category"] != wantOrder[i] {
			t.Errorf("group %d = %v, want %s", i, group["category"], wantOrder[i])
		}
	}
}

func TestEditDecidePromoteFlow(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)
	base := "/api/v1/sessions/" + id

	// Promote before accepting is a no-op
	rec, envelope := doJSON(t, r, http.MethodPost, base+"/items/d-1/promote", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("promote status %d", rec.Code)
	}
	d := data(t, envelope)
	if d["promoted"] != false || d["view"] != "item_list" {
		t.Errorf("premature promote = %v", d)
	}

	// Edit the idea
	newTitle := "Instant checkout confirmation"
	rec, envelope = doJSON(t, r, http.MethodPatch, base+"/items/d-1",
		map[string]any{"title": newTitle})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status %d", rec.Code)
	}
	if data(t, envelope)["title"] != newTitle {
		t.Errorf("title after edit = %v", data(t, envelope)["title"])
	}

	// Accept, then promote for real
	rec, _ = doJSON(t, r, http.MethodPost, base+"/items/d-1/decision",
		map[string]string{"decision": "accepted"})
	if rec.Code != http.StatusOK {
		t.Fatalf("decision status %d", rec.Code)
	}
	rec, envelope = doJSON(t, r, http.MethodPost, base+"/items/d-1/promote", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("promote status %d", rec.Code)
	}
	d = data(t, envelope)
	if d["promoted"] != true || d["view"] != "idea_detail" {
		t.Errorf("promote = %v", d)
	}

	// Back returns to the list and clears the selection
	rec, envelope = doJSON(t, r, http.MethodPost, base+"/back", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("back status %d", rec.Code)
	}
	d = data(t, envelope)
	if d["view"] != "item_list" {
		t.Errorf("view after back = %v", d["view"])
	}
	if _, selected := d["selected_item"]; selected {
		t.Errorf("selection survived back: %v", d)
	}
}

func TestUpdateItem_TagsText(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)

	rec, envelope := doJSON(t, r, http.MethodPatch, "/api/v1/sessions/"+id+"/items/d-1",
		map[string]any{"tags_text": " growth, checkout ,, speed "})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	tags := data(t, envelope)["tags"].([]any)
	want := []string{"growth", "checkout", "speed"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i, tag := range want {
		if tags[i] != tag {
			t.Errorf("tags[%d] = %v, want %s", i, tags[i], tag)
		}
	}

	// An empty field clears the tags
	rec, envelope = doJSON(t, r, http.MethodPatch, "/api/v1/sessions/"+id+"/items/d-1",
		map[string]any{"tags_text": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := data(t, envelope)["tags"].([]any); len(got) != 0 {
		t.Errorf("tags after clear = %v", got)
	}
}

func TestDecideItem_RejectsBadValue(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/items/s-1/decision",
		map[string]string{"decision": "maybe"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestItemSummary(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)

	rec, envelope := doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/items/s-1/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	want := "Type: Signal\nTitle: Checkout feels slow\nDescription: Two participants complained about checkout lag\nSource: \"the spinner just sits there\""
	if got := data(t, envelope)["summary"]; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestMapViewAndDrag(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)
	base := "/api/v1/sessions/" + id

	rec, _ := doJSON(t, r, http.MethodPost, base+"/view", map[string]string{"view": "item_map"})
	if rec.Code != http.StatusOK {
		t.Fatalf("switch view status %d", rec.Code)
	}

	rec, envelope := doJSON(t, r, http.MethodGet, base+"/map", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get map status %d", rec.Code)
	}
	d := data(t, envelope)
	positions := d["positions"].(map[string]any)
	if len(positions) != 3 {
		t.Fatalf("got %d positions, want 3", len(positions))
	}

	s1 := positions["s-1"].(map[string]any)
	if s1["x"].(float64) != 50 || s1["y"].(float64) != 50 {
		t.Errorf("s-1 position = %v, want column 0 row 0", s1)
	}
	i1 := positions["i-1"].(map[string]any)
	if i1["x"].(float64) != 370 || i1["y"].(float64) != 50 {
		t.Errorf("i-1 position = %v, want column 1 row 0", i1)
	}

	// The relation to the unknown item is skipped, not drawn
	edges := d["edges"].([]any)
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	edge := edges[0].(map[string]any)
	if edge["source_id"] != "s-1" || edge["target_id"] != "i-1" {
		t.Errorf("edge = %v", edge)
	}
	if edge["category"] != "Signal" {
		t.Errorf("edge category = %v, want Signal", edge["category"])
	}

	// Drag s-1: grab at its corner, move, release
	pointer := func(evt map[string]any, wantStatus int) map[string]any {
		t.Helper()
		rec, envelope := doJSON(t, r, http.MethodPost, base+"/map/pointer", evt)
		if rec.Code != wantStatus {
			t.Fatalf("pointer %v: status %d, want %d (%s)", evt, rec.Code, wantStatus, rec.Body.String())
		}
		if wantStatus != http.StatusOK {
			return nil
		}
		return data(t, envelope)
	}

	d = pointer(map[string]any{"type": "down", "item_id": "s-1", "x": 60.0, "y": 70.0}, http.StatusOK)
	if d["dragging"] != "s-1" {
		t.Errorf("dragging = %v", d["dragging"])
	}
	d = pointer(map[string]any{"type": "move", "x": 500.0, "y": 600.0}, http.StatusOK)
	moved := d["positions"].(map[string]any)["s-1"].(map[string]any)
	if moved["x"].(float64) != 490 || moved["y"].(float64) != 580 {
		t.Errorf("dragged position = %v, want {490 580}", moved)
	}
	d = pointer(map[string]any{"type": "up", "x": 500.0, "y": 600.0}, http.StatusOK)
	if _, active := d["dragging"]; active {
		t.Errorf("drag survived pointer up: %v", d)
	}

	// Move without a drag is a conflict; leave without a drag is safe
	pointer(map[string]any{"type": "move", "x": 1.0, "y": 1.0}, http.StatusConflict)
	pointer(map[string]any{"type": "leave"}, http.StatusOK)
	pointer(map[string]any{"type": "down", "item_id": "ghost", "x": 0.0, "y": 0.0}, http.StatusNotFound)
}

func TestOKRDropAndUnmap(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)
	base := "/api/v1/sessions/" + id

	// Fetch the drag payload the way a drop target receives it
	rec, envelope := doJSON(t, r, http.MethodGet, base+"/items/i-1/transfer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer status %d", rec.Code)
	}
	d := data(t, envelope)
	if d["key"] != "application/insight-item" {
		t.Errorf("transfer key = %v", d["key"])
	}
	payload := d["payload"].(string)

	rec, envelope = doJSON(t, r, http.MethodPost, base+"/okrs/okr-1/drop",
		map[string]string{"payload": payload})
	if rec.Code != http.StatusOK {
		t.Fatalf("drop status %d", rec.Code)
	}
	if data(t, envelope)["mapped"] != true {
		t.Errorf("drop = %v", data(t, envelope))
	}

	// Dropping onto another OKR overwrites the mapping
	rec, _ = doJSON(t, r, http.MethodPost, base+"/okrs/okr-2/drop",
		map[string]string{"payload": payload})
	if rec.Code != http.StatusOK {
		t.Fatalf("second drop status %d", rec.Code)
	}

	rec, envelope = doJSON(t, r, http.MethodGet, base+"/okrs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list okrs status %d", rec.Code)
	}
	zones := envelope["data"].([]any)
	if len(zones) != 3 {
		t.Fatalf("got %d zones, want 3", len(zones))
	}
	for _, z := range zones {
		zone := z.(map[string]any)
		okrID := zone["okr"].(map[string]any)["id"].(string)
		mapped := zone["mapped_items"].([]any)
		wantCount := 0
		if okrID == "okr-2" {
			wantCount = 1
		}
		if len(mapped) != wantCount {
			t.Errorf("okr %s has %d mapped items, want %d", okrID, len(mapped), wantCount)
		}
	}

	// Unmap clears the association
	rec, _ = doJSON(t, r, http.MethodDelete, base+"/okrs/mapping/i-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unmap status %d", rec.Code)
	}
	_, envelope = doJSON(t, r, http.MethodGet, base+"/okrs", nil)
	for _, z := range envelope["data"].([]any) {
		zone := z.(map[string]any)
		if len(zone["mapped_items"].([]any)) != 0 {
			t.Errorf("mapping survived unmap: %v", zone)
		}
	}
}

func TestOKRDrop_EdgeCases(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)
	base := "/api/v1/sessions/" + id

	// Malformed payload is a silent no-op
	rec, envelope := doJSON(t, r, http.MethodPost, base+"/okrs/okr-1/drop",
		map[string]string{"payload": "not json at all"})
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed drop status %d", rec.Code)
	}
	if data(t, envelope)["mapped"] != false {
		t.Errorf("malformed drop = %v", data(t, envelope))
	}

	// Unknown OKR target is an error
	payload, _ := json.Marshal(map[string]string{"id": "i-1"})
	rec, _ = doJSON(t, r, http.MethodPost, base+"/okrs/okr-404/drop",
		map[string]string{"payload": string(payload)})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown okr drop status %d, want 404", rec.Code)
	}
}

func TestResetPreservesMappings(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := extractedSession(t, r)
	base := "/api/v1/sessions/" + id

	payload, _ := json.Marshal(map[string]string{"id": "s-1"})
	rec, _ := doJSON(t, r, http.MethodPost, base+"/okrs/okr-3/drop",
		map[string]string{"payload": string(payload)})
	if rec.Code != http.StatusOK {
		t.Fatalf("drop status %d", rec.Code)
	}

	rec, envelope := doJSON(t, r, http.MethodPost, base+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status %d", rec.Code)
	}
	d := data(t, envelope)
	if d["view"] != "transcript_entry" || d["item_count"].(float64) != 0 {
		t.Errorf("state after reset = %v", d)
	}

	ws, _ := store.Get(id)
	if ws.Mapping()["s-1"] != "okr-3" {
		t.Error("OKR mapping did not survive reset")
	}
}

func TestSwitchView_InvalidCases(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	// Map is unreachable from transcript entry
	rec, _ := doJSON(t, r, http.MethodPost, base+"/view", map[string]string{"view": "item_map"})
	if rec.Code != http.StatusConflict {
		t.Errorf("switch from entry: status %d, want 409", rec.Code)
	}

	rec, _ = doJSON(t, r, http.MethodPost, base+"/view", map[string]string{"view": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus view: status %d, want 400", rec.Code)
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(nil)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/sessions/nope"},
		{http.MethodPost, "/api/v1/sessions/nope/reset"},
		{http.MethodGet, "/api/v1/sessions/nope/items"},
		{http.MethodGet, "/api/v1/sessions/nope/map"},
		{http.MethodGet, "/api/v1/sessions/nope/okrs"},
	}
	for _, p := range paths {
		rec, _ := doJSON(t, r, p.method, p.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", p.method, p.path, rec.Code)
		}
	}
}

func TestSubmitTranscript_TooLong(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(&fakeProvider{result: discoveryResult()})
	id := createSession(t, r)

	long := make([]byte, MaxTranscriptLength+1)
	for i := range long {
		long[i] = 'a'
	}
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/transcript",
		map[string]string{"transcript": string(long)})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}
