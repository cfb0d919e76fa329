package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/discoverlab/insight-map/internal/services/ai"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/discoverlab/insight-map/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxTranscriptLength is the maximum length for transcript text
	MaxTranscriptLength = 100000
)

// ExtractHandler handles transcript submission. The extraction gateway is
// the application's only network-facing boundary; everything that comes back
// is validated before it reaches workspace state.
type ExtractHandler struct {
	store    *session.Store
	provider ai.ExtractionProvider
	logger   *zap.Logger
}

// NewExtractHandler creates a new extract handler. provider may be nil when
// no credential is configured; submissions then fail with a configuration
// error rather than a gateway failure.
func NewExtractHandler(store *session.Store, provider ai.ExtractionProvider, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{store: store, provider: provider, logger: logger}
}

// RegisterRoutes registers extraction routes on the given router.
// The router should already have the /sessions prefix.
func (h *ExtractHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/transcript", h.SubmitTranscript).Methods("POST")
}

// SubmitTranscriptRequest carries the raw transcript text
type SubmitTranscriptRequest struct {
	Transcript string `json:"transcript" validate:"required"`
}

// SubmitTranscript runs a transcript through the extraction gateway and, on
// success, installs the result and transitions the session to the item list.
// One extraction may be in flight per session; the workspace's generation
// counter discards completions that arrive after a reset superseded them.
func (h *ExtractHandler) SubmitTranscript(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromRequest(h.store, w, r)
	if ws == nil {
		return
	}

	var req SubmitTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	transcript := validation.SanitizeText(req.Transcript)
	if len(transcript) > MaxTranscriptLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Transcript exceeds maximum length")
		return
	}

	generation, err := ws.BeginExtraction(transcript)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyTranscript):
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Transcript is required and cannot be empty")
		case errors.Is(err, session.ErrExtractionInFlight):
			respondJSONError(w, http.StatusConflict, "Conflict", "An extraction is already in progress for this session")
		default:
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to start extraction")
		}
		return
	}

	if h.provider == nil {
		ws.FailExtraction(generation, ai.ErrNotConfigured)
		h.logger.Warn("extraction_not_configured", zap.String("session_id", ws.ID()))
		respondJSONError(w, http.StatusServiceUnavailable, "Configuration Error", ai.ErrNotConfigured.Error())
		return
	}

	ctx := ai.WithSessionID(r.Context(), ws.ID())
	result, err := h.provider.ExtractTranscript(ctx, transcript)
	if err != nil {
		ws.FailExtraction(generation, err)
		h.logger.Error("extraction_failed",
			zap.String("session_id", ws.ID()),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusBadGateway, "Extraction Failed", err.Error())
		return
	}

	if !ws.ApplyExtraction(generation, result) {
		// The session was reset while the call was in flight; the stale
		// result must not clobber newer state.
		h.logger.Info("extraction_result_stale",
			zap.String("session_id", ws.ID()),
			zap.Uint64("generation", generation),
		)
		respondJSONError(w, http.StatusConflict, "Conflict", "Session changed while extraction was in flight")
		return
	}

	h.logger.Info("extraction_applied",
		zap.String("session_id", ws.ID()),
		zap.Int("items", len(result.Items)),
		zap.Int("relations", len(result.Relations)),
	)
	respondJSON(w, http.StatusOK, sessionResponse(ws))
}
