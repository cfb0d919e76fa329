package models

// Relation is a directed derivation edge between two items, created only as
// part of an extraction result. Duplicate edges are permitted; each renders
// independently. Ids are not guaranteed to resolve against the item set.
type Relation struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
}
