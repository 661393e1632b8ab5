package report

import (
	"encoding/json"
	"fmt"

	"github.com/fangwenqi/rally/pkg/models"
)

// JSONReporter serializes the aggregated report as indented JSON.
type JSONReporter struct {
	runs        []*models.VerificationRun
	destination string
	agg         *Aggregator
}

// NewJSONReporter creates a JSON reporter for the given runs. An empty
// destination means the payload is returned for printing.
func NewJSONReporter(runs []*models.VerificationRun, destination string, cfg Config) *JSONReporter {
	cfg = cfg.withDefaults()
	return &JSONReporter{
		runs:        runs,
		destination: destination,
		agg:         NewAggregator(cfg.JSONTimeFormat, cfg.TrackerHost),
	}
}

// Generate aggregates the runs and returns the report as human-readable JSON.
func (r *JSONReporter) Generate() (*Output, error) {
	raw, err := json.MarshalIndent(r.agg.Aggregate(r.runs), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}
	return outputFor(r.destination, string(raw)), nil
}
