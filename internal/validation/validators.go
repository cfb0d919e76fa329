package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("item_category", validateItemCategory); err != nil {
		panic(fmt.Sprintf("failed to register item_category validator: %v", err))
	}
	if err := Validate.RegisterValidation("item_decision", validateItemDecision); err != nil {
		panic(fmt.Sprintf("failed to register item_decision validator: %v", err))
	}
}

// validateItemCategory validates that a string is a valid Category enum value
func validateItemCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	switch models.Category(value) {
	case models.CategorySignal, models.CategoryInsight, models.CategoryOpportunity, models.CategoryIdea:
		return true
	default:
		return false
	}
}

// validateItemDecision validates that a string is a valid Decision enum value
func validateItemDecision(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	switch models.Decision(value) {
	case models.DecisionUndecided, models.DecisionAccepted, models.DecisionRejected:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateCategory validates a Category string value
func ValidateCategory(value string) error {
	switch models.Category(value) {
	case models.CategorySignal, models.CategoryInsight, models.CategoryOpportunity, models.CategoryIdea:
		return nil
	default:
		return fmt.Errorf("invalid category: %s (must be 'Signal', 'Insight', 'Opportunity', or 'Idea')", value)
	}
}

// ValidateDecision validates a Decision string value
func ValidateDecision(value string) error {
	switch models.Decision(value) {
	case models.DecisionUndecided, models.DecisionAccepted, models.DecisionRejected:
		return nil
	default:
		return fmt.Errorf("invalid decision: %s (must be 'undecided', 'accepted', or 'rejected')", value)
	}
}

// ValidateExtraction validates an extraction payload before it is accepted
// into workspace state. Every item must carry a valid category and a
// confidence within [0,1]; relations must reference non-empty ids.
func ValidateExtraction(items []*models.Item, relations []models.Relation) error {
	for i, item := range items {
		if item == nil {
			return fmt.Errorf("item %d: missing", i)
		}
		if err := Validate.Struct(item); err != nil {
			return fmt.Errorf("item %q: %w", item.ID, err)
		}
	}
	for i, rel := range relations {
		if rel.SourceID == "" || rel.TargetID == "" {
			return fmt.Errorf("relation %d: source and target ids are required", i)
		}
	}
	return nil
}
