package ai

import (
	"context"
	"errors"

	"github.com/discoverlab/insight-map/internal/models"
)

// ErrNotConfigured is returned when no API credential is configured.
// Callers surface it as a configuration error, distinct from a runtime
// gateway failure, and must not retry automatically.
var ErrNotConfigured = errors.New("extraction provider is not configured: missing API key")

// ExtractionResult is the structured payload produced from one transcript.
type ExtractionResult struct {
	Items     []*models.Item    `json:"items"`
	Relations []models.Relation `json:"relations"`
}

// ExtractionProvider is the interface for extraction gateways. It is the
// sole network-facing boundary of the application: raw transcript text in,
// validated items and relations out.
type ExtractionProvider interface {
	// ExtractTranscript analyzes a transcript and returns the extracted
	// items and their derivation relations. Items come back with tags
	// empty and decision undecided.
	ExtractTranscript(ctx context.Context, transcript string) (*ExtractionResult, error)
}
