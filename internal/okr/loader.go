// Package okr loads OKR definitions. Definitions are read once at startup
// and are static for every session.
package okr

import (
	"fmt"
	"os"

	"github.com/discoverlab/insight-map/internal/models"
	"github.com/discoverlab/insight-map/internal/validation"
	"gopkg.in/yaml.v3"
)

// File is the YAML shape of an OKR definition file
type File struct {
	OKRs []models.OKR `yaml:"okrs"`
}

// Load reads OKR definitions from a YAML file. An empty path returns the
// built-in defaults.
func Load(path string) ([]models.OKR, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OKR file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates OKR definitions from YAML
func Parse(data []byte) ([]models.OKR, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse OKR file: %w", err)
	}

	seen := make(map[string]bool, len(file.OKRs))
	for i, o := range file.OKRs {
		if err := validation.Validate.Struct(o); err != nil {
			return nil, fmt.Errorf("okr %d: %w", i, err)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("okr %d: duplicate id %q", i, o.ID)
		}
		seen[o.ID] = true
	}
	return file.OKRs, nil
}

// Defaults returns the built-in OKR set used when no file is configured
func Defaults() []models.OKR {
	return []models.OKR{
		{
			ID:        "okr-1",
			Objective: "Improve user engagement by 15% in Q3",
			KeyResults: []string{
				"Increase DAU/MAU ratio to 50%",
				"Increase average session duration by 2 minutes",
			},
		},
		{
			ID:        "okr-2",
			Objective: "Expand market share in EMEA region",
			KeyResults: []string{
				"Launch in 2 new countries",
				"Achieve 10% user growth in EMEA",
			},
		},
		{
			ID:        "okr-3",
			Objective: "Reduce customer churn by 5%",
			KeyResults: []string{
				"Improve customer support satisfaction score to 95%",
				"Implement proactive retention campaigns",
			},
		},
	}
}
