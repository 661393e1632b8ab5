package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fangwenqi/rally/pkg/models"
)

// ReportTemplate is the template name requested from the renderer.
const ReportTemplate = "verification/report.html"

// Durations below this threshold are displayed as "0" and excluded from
// comparison noise.
const durationEpsilon = 0.001

// Renderer assembles the final HTML document from a template name, a
// JSON-serialized context payload and a flag selecting whether static library
// assets are embedded inline.
type Renderer interface {
	Render(name string, data string, includeLibs bool) (string, error)
}

// HTMLReporter renders the aggregated report through a template renderer.
// With includeLibs set, static assets are embedded so the document is a
// single portable file.
type HTMLReporter struct {
	runs        []*models.VerificationRun
	destination string
	renderer    Renderer
	includeLibs bool
	agg         *Aggregator
}

// NewHTMLReporter creates an HTML reporter for the given runs.
func NewHTMLReporter(runs []*models.VerificationRun, destination string, renderer Renderer, includeLibs bool, cfg Config) *HTMLReporter {
	cfg = cfg.withDefaults()
	return &HTMLReporter{
		runs:        runs,
		destination: destination,
		renderer:    renderer,
		includeLibs: includeLibs,
		agg:         NewAggregator(cfg.HTMLTimeFormat, cfg.TrackerHost),
	}
}

// htmlContext is the data payload handed to the renderer. As much processing
// as possible happens here to keep the in-page script simple.
type htmlContext struct {
	UUIDs              []string             `json:"uuids"`
	Verifications      *SummaryMap          `json:"verifications"`
	Tests              map[string]*htmlTest `json:"tests"`
	ShowComparisonNote bool                 `json:"show_comparison_note"`
}

type htmlTest struct {
	Tags           []string               `json:"tags"`
	Name           string                 `json:"name"`
	HasDetails     bool                   `json:"has_details"`
	ByVerification map[string]*htmlResult `json:"by_verification"`
}

type htmlResult struct {
	Status   string  `json:"status"`
	Duration string  `json:"duration"`
	Details  *string `json:"details"`
}

// Generate aggregates the runs, annotates durations against the first run and
// delegates document assembly to the renderer.
func (r *HTMLReporter) Generate() (*Output, error) {
	report := r.agg.Aggregate(r.runs)
	uuids := report.Verifications.UUIDs()

	ctx := &htmlContext{
		UUIDs:         uuids,
		Verifications: report.Verifications,
		Tests:         make(map[string]*htmlTest, len(report.Tests)),
	}

	for testID, entry := range report.Tests {
		test := &htmlTest{
			Tags:           entry.Tags,
			Name:           entry.Name,
			ByVerification: make(map[string]*htmlResult, len(entry.ByVerification)),
		}
		for uuid, res := range entry.ByVerification {
			hres := &htmlResult{
				Status:   res.Status,
				Duration: formatFloat(res.Duration),
			}
			if res.Details != "" {
				details := res.Details
				hres.Details = &details
				test.HasDetails = true
			}
			test.ByVerification[uuid] = hres
		}

		// Walk the runs in input order so every duration is compared against
		// the first run the test appeared in.
		var durations []string
		for _, uuid := range uuids {
			hres, ok := test.ByVerification[uuid]
			if !ok {
				continue
			}
			raw := entry.ByVerification[uuid].Duration
			cur := formatFloat(raw)
			if raw < durationEpsilon {
				// Too little to be worth displaying.
				cur = "0"
				hres.Duration = ""
			}
			durations = append(durations, cur)

			if len(durations) > 1 && !(durations[0] == "0" && cur == "0") {
				first, _ := strconv.ParseFloat(durations[0], 64)
				last, _ := strconv.ParseFloat(cur, 64)
				diff := last - first
				annotated := cur + " ("
				if diff >= 0 {
					annotated += "+"
				}
				hres.Duration = annotated + formatFloat(diff) + ")"
			}
		}

		// The comparison strategy only needs explaining when more than two
		// results of the same test are compared.
		if !ctx.ShowComparisonNote && len(durations) > 2 {
			ctx.ShowComparisonNote = true
		}

		ctx.Tests[testID] = test
	}

	data, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report context: %w", err)
	}

	doc, err := r.renderer.Render(ReportTemplate, string(data), r.includeLibs)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	return outputFor(r.destination, doc), nil
}

// formatFloat renders a duration or diff the way the report displays numbers:
// shortest representation, always with a fractional part. Exponent notation is
// reserved for magnitudes outside [1e-4, 1e16); everything in between stays in
// fixed notation regardless of how many significant digits it carries.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		if exp, err := strconv.Atoi(s[i+1:]); err == nil && exp >= -4 && exp < 16 {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
