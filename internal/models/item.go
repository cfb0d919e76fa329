package models

import "fmt"

// Category classifies an extracted item within the discovery hierarchy
type Category string

const (
	CategorySignal      Category = "Signal"
	CategoryInsight     Category = "Insight"
	CategoryOpportunity Category = "Opportunity"
	CategoryIdea        Category = "Idea"
)

// CategoryOrder is the fixed display and layout order for categories.
// Column assignment on the map follows this sequence.
var CategoryOrder = []Category{
	CategorySignal,
	CategoryInsight,
	CategoryOpportunity,
	CategoryIdea,
}

// Decision represents the review state of an item
type Decision string

const (
	DecisionUndecided Decision = "undecided"
	DecisionAccepted  Decision = "accepted"
	DecisionRejected  Decision = "rejected"
)

// Item represents one artifact extracted from a transcript
type Item struct {
	ID            string   `json:"id" validate:"required"`
	Category      Category `json:"category" validate:"required,item_category"`
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description" validate:"required"`
	Confidence    float64  `json:"confidence" validate:"gte=0,lte=1"`
	SourceSnippet string   `json:"source_snippet"`
	Tags          []string `json:"tags"`
	Decision      Decision `json:"decision" validate:"item_decision"`
}

// Summary returns the fixed-format text block used by the copy-summary action.
func (i *Item) Summary() string {
	return fmt.Sprintf("Type: %s\nTitle: %s\nDescription: %s\nSource: %q",
		i.Category, i.Title, i.Description, i.SourceSnippet)
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	if i.Tags != nil {
		c.Tags = append([]string(nil), i.Tags...)
	}
	return &c
}
