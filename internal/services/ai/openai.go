package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/validation"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 60 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements the ExtractionProvider interface using OpenAI's API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI extraction provider
func NewOpenAIProvider(apiKey string, model string) (*OpenAIProvider, error) {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI extraction provider with logger support.
// Returns ErrNotConfigured when apiKey is empty so callers can distinguish a
// configuration error from a runtime gateway failure.
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}, nil
}

// ExtractTranscript analyzes a transcript and returns the extracted items and relations
func (p *OpenAIProvider) ExtractTranscript(ctx context.Context, transcript string) (*ExtractionResult, error) {
	content, err := p.sendExtractionRequest(ctx, transcript)
	if err != nil {
		return nil, err
	}

	result, err := parseExtractionResponse(content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sendExtractionRequest builds the prompt, sends the request, and returns the response content or an error.
func (p *OpenAIProvider) sendExtractionRequest(ctx context.Context, transcript string) (string, error) {
	prompt := buildExtractionPrompt(transcript)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(extractionSystemInstruction),
		openai.UserMessage(prompt),
	}
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		// Temperature omitted - use model default to avoid "unsupported_value" errors
	}

	sessionID := ExtractSessionID(ctx)
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "extract_transcript"),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("session_id", sessionID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "extract_transcript"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("session_id", sessionID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to extract transcript: %w", apiErr)
		}
		return "", fmt.Errorf("failed to extract transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}
	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "extract_transcript"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("session_id", sessionID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}

// parseExtractionResponse parses and validates a model response. Items come
// back with tags defaulted to empty and decision defaulted to undecided.
// Payloads whose items violate the schema (unknown category, confidence
// outside [0,1]) are rejected before reaching workspace state.
func parseExtractionResponse(content string) (*ExtractionResult, error) {
	var payload struct {
		Items []struct {
			ID            string  `json:"id"`
			Category      string  `json:"category"`
			Title         string  `json:"title"`
			Description   string  `json:"description"`
			Confidence    float64 `json:"confidence"`
			SourceSnippet string  `json:"source_snippet"`
		} `json:"items"`
		Relations []struct {
			SourceID string `json:"source_id"`
			TargetID string `json:"target_id"`
		} `json:"relations"`
	}

	raw := content
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Some models wrap the JSON in prose; try the outermost object
		if len(raw) > 0 && raw[0] != '{' {
			start := bytes.Index([]byte(raw), []byte("{"))
			end := bytes.LastIndex([]byte(raw), []byte("}"))
			if start != -1 && end != -1 && end > start {
				raw = raw[start : end+1]
			}
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}

	items := make([]*models.Item, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, &models.Item{
			ID:            it.ID,
			Category:      models.Category(it.Category),
			Title:         it.Title,
			Description:   it.Description,
			Confidence:    it.Confidence,
			SourceSnippet: it.SourceSnippet,
			Tags:          []string{},
			Decision:      models.DecisionUndecided,
		})
	}
	relations := make([]models.Relation, 0, len(payload.Relations))
	for _, rel := range payload.Relations {
		relations = append(relations, models.Relation{
			SourceID: rel.SourceID,
			TargetID: rel.TargetID,
		})
	}

	if err := validation.ValidateExtraction(items, relations); err != nil {
		return nil, fmt.Errorf("invalid extraction payload: %w", err)
	}

	return &ExtractionResult{Items: items, Relations: relations}, nil
}
