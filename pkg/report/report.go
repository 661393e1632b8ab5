// Package report turns verification run records into JSON and HTML reports.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fangwenqi/rally/pkg/models"
)

const (
	// JSONTimeFormat is the ISO 8601 timestamp layout used by the JSON report.
	JSONTimeFormat = "2006-01-02T15:04:05-0700"
	// HTMLTimeFormat drops the "T" separator and the offset, which read poorly
	// in a rendered table.
	HTMLTimeFormat = "2006-01-02 15:04:05"

	// DefaultTrackerHost is the issue tracker referenced by rewritten skip
	// reasons.
	DefaultTrackerHost = "launchpad.net"

	idTagPrefix = "id-"
)

var skipRe = regexp.MustCompile(`^Skipped until Bug: ?(\d+) is resolved.`)

// Config carries reporter tuning shared by every format.
type Config struct {
	// TrackerHost is the host substituted into bug links found in skip
	// reasons.
	TrackerHost string
	// JSONTimeFormat and HTMLTimeFormat override the timestamp layouts of the
	// respective report variants.
	JSONTimeFormat string
	HTMLTimeFormat string
}

func (c Config) withDefaults() Config {
	if c.TrackerHost == "" {
		c.TrackerHost = DefaultTrackerHost
	}
	if c.JSONTimeFormat == "" {
		c.JSONTimeFormat = JSONTimeFormat
	}
	if c.HTMLTimeFormat == "" {
		c.HTMLTimeFormat = HTMLTimeFormat
	}
	return c
}

// Output is the result of report generation. Exactly one form is populated:
// Print when no destination was given, otherwise Files plus Open naming the
// destination the caller may offer to open. The reporter never touches the
// filesystem itself.
type Output struct {
	Print string            `json:"print,omitempty"`
	Files map[string]string `json:"files,omitempty"`
	Open  string            `json:"open,omitempty"`
}

func outputFor(destination, payload string) *Output {
	if destination == "" {
		return &Output{Print: payload}
	}
	return &Output{
		Files: map[string]string{destination: payload},
		Open:  destination,
	}
}

// Reporter produces a report payload from verification runs.
type Reporter interface {
	Generate() (*Output, error)
}

// Summary holds the per-run attributes copied into a report.
type Summary struct {
	StartedAt         string         `json:"started_at"`
	FinishedAt        string         `json:"finished_at"`
	Status            string         `json:"status"`
	RunArgs           map[string]any `json:"run_args"`
	TestsCount        int            `json:"tests_count"`
	TestsDuration     float64        `json:"tests_duration"`
	Skipped           int            `json:"skipped"`
	Success           int            `json:"success"`
	ExpectedFailures  int            `json:"expected_failures"`
	UnexpectedSuccess int            `json:"unexpected_success"`
	Failures          int            `json:"failures"`
}

// SummaryMap is a mapping from run UUID to Summary that marshals its entries
// in insertion order, so the report lists runs in the order they were given.
type SummaryMap struct {
	uuids []string
	items map[string]*Summary
}

// NewSummaryMap returns an empty SummaryMap.
func NewSummaryMap() *SummaryMap {
	return &SummaryMap{items: make(map[string]*Summary)}
}

// Set stores the summary for uuid, appending it to the iteration order on
// first insertion.
func (m *SummaryMap) Set(uuid string, s *Summary) {
	if _, ok := m.items[uuid]; !ok {
		m.uuids = append(m.uuids, uuid)
	}
	m.items[uuid] = s
}

// Get returns the summary stored for uuid.
func (m *SummaryMap) Get(uuid string) (*Summary, bool) {
	s, ok := m.items[uuid]
	return s, ok
}

// UUIDs returns the run identifiers in insertion order.
func (m *SummaryMap) UUIDs() []string {
	uuids := make([]string, len(m.uuids))
	copy(uuids, m.uuids)
	return uuids
}

// Len returns the number of stored summaries.
func (m *SummaryMap) Len() int {
	return len(m.uuids)
}

// MarshalJSON writes the summaries as a JSON object keyed by UUID, preserving
// insertion order.
func (m *SummaryMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, uuid := range m.uuids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(uuid)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.items[uuid])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RunResult is a single test outcome within one run of the aggregate.
type RunResult struct {
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
	Details  string  `json:"details,omitempty"`
}

// TestEntry collects the per-run outcomes of one test across all runs. Tags
// and Name come from the first run that contained the test.
type TestEntry struct {
	Tags           []string              `json:"tags"`
	Name           string                `json:"name"`
	ByVerification map[string]*RunResult `json:"by_verification"`
}

// Report is the aggregate of a sequence of verification runs.
type Report struct {
	Verifications *SummaryMap           `json:"verifications"`
	Tests         map[string]*TestEntry `json:"tests"`
}

// Aggregator merges verification runs into a Report.
type Aggregator struct {
	timeFormat  string
	trackerHost string
}

// NewAggregator returns an aggregator formatting timestamps with timeFormat
// and rewriting skip-reason bug numbers into links on trackerHost.
func NewAggregator(timeFormat, trackerHost string) *Aggregator {
	return &Aggregator{timeFormat: timeFormat, trackerHost: trackerHost}
}

// Aggregate merges the runs, in order, into one Report. Every test identifier
// seen in any run appears exactly once in Tests, with one by_verification
// entry per run it occurred in.
func (a *Aggregator) Aggregate(runs []*models.VerificationRun) *Report {
	report := &Report{
		Verifications: NewSummaryMap(),
		Tests:         make(map[string]*TestEntry),
	}

	for _, v := range runs {
		report.Verifications.Set(v.UUID, &Summary{
			StartedAt:         v.CreatedAt.Format(a.timeFormat),
			FinishedAt:        v.UpdatedAt.Format(a.timeFormat),
			Status:            v.Status,
			RunArgs:           v.RunArgs,
			TestsCount:        v.TestsCount,
			TestsDuration:     v.TestsDuration,
			Skipped:           v.Skipped,
			Success:           v.Success,
			ExpectedFailures:  v.ExpectedFailures,
			UnexpectedSuccess: v.UnexpectedSuccess,
			Failures:          v.Failures,
		})

		for testID, result := range v.Tests {
			entry, ok := report.Tests[testID]
			if !ok {
				// The identifier tags are the ones readers look for first, so
				// they lead the list.
				entry = &TestEntry{
					Tags:           sortTags(result.Tags),
					Name:           result.Name,
					ByVerification: make(map[string]*RunResult),
				}
				report.Tests[testID] = entry
			}

			entry.ByVerification[v.UUID] = &RunResult{
				Status:   result.Status,
				Duration: result.Duration,
				Details:  a.details(result),
			}
		}
	}

	return report
}

// details combines the (possibly rewritten) skip reason and the stripped
// traceback, separated by a blank line only when both are present.
func (a *Aggregator) details(result *models.TestResult) string {
	reason := result.Reason
	if reason != "" {
		if m := skipRe.FindStringSubmatch(reason); m != nil {
			link := fmt.Sprintf("https://%s/bugs/%s", a.trackerHost, m[1])
			reason = strings.ReplaceAll(reason, m[1], link)
		}
	}

	traceback := strings.TrimSpace(result.Traceback)
	sep := ""
	if reason != "" && traceback != "" {
		sep = "\n\n"
	}
	return reason + sep + traceback
}

// sortTags orders tags so that "id-" prefixed ones come first, keeping the
// original relative order within each group.
func sortTags(tags []string) []string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.HasPrefix(sorted[i], idTagPrefix) &&
			!strings.HasPrefix(sorted[j], idTagPrefix)
	})
	return sorted
}
