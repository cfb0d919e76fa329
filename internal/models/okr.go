package models

// OKR is an objective with supporting key results. OKR definitions are
// loaded once at startup and are not editable within a session.
type OKR struct {
	ID         string   `json:"id" yaml:"id" validate:"required"`
	Objective  string   `json:"objective" yaml:"objective" validate:"required"`
	KeyResults []string `json:"key_results" yaml:"key_results"`
}

// OkrMapping maps item id to OKR id. At most one OKR per item; a drop onto
// another OKR overwrites the previous entry. Absence means unmapped.
type OkrMapping map[string]string
