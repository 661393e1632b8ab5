package report

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fangwenqi/rally/pkg/models"
)

func makeRun(uuid string, tests map[string]*models.TestResult) *models.VerificationRun {
	return &models.VerificationRun{
		UUID:      uuid,
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		Status:    models.StatusFinished,
		RunArgs:   map[string]any{"pattern": "smoke"},

		TestsCount:    len(tests),
		TestsDuration: 12.5,
		Success:       len(tests),
		Tests:         tests,
	}
}

func TestAggregateMergesTestsAcrossRuns(t *testing.T) {
	first := makeRun("run-1", map[string]*models.TestResult{
		"test.one": {Name: "one", Tags: []string{"smoke", "id-111"}, Status: models.TestSuccess, Duration: 1.5},
		"test.two": {Name: "two", Status: models.TestFail, Duration: 0.5},
	})
	second := makeRun("run-2", map[string]*models.TestResult{
		"test.one":   {Name: "one renamed", Tags: []string{"other"}, Status: models.TestFail, Duration: 2.5},
		"test.three": {Name: "three", Status: models.TestSkip, Duration: 0},
	})

	agg := NewAggregator(JSONTimeFormat, DefaultTrackerHost)
	report := agg.Aggregate([]*models.VerificationRun{first, second})

	if got := len(report.Tests); got != 3 {
		t.Fatalf("len(Tests) = %d, want 3", got)
	}

	one := report.Tests["test.one"]
	if len(one.ByVerification) != 2 {
		t.Errorf("test.one has %d entries, want 2", len(one.ByVerification))
	}
	// Name and tags come from the first run that contained the test.
	if one.Name != "one" {
		t.Errorf("test.one name = %q, want %q", one.Name, "one")
	}
	if want := []string{"id-111", "smoke"}; !reflect.DeepEqual(one.Tags, want) {
		t.Errorf("test.one tags = %v, want %v", one.Tags, want)
	}

	if got := len(report.Tests["test.two"].ByVerification); got != 1 {
		t.Errorf("test.two has %d entries, want 1", got)
	}
	if res := report.Tests["test.three"].ByVerification["run-2"]; res == nil || res.Status != models.TestSkip {
		t.Errorf("test.three run-2 entry = %+v, want skip", res)
	}
}

func TestAggregateSummaryFields(t *testing.T) {
	run := makeRun("run-1", nil)
	run.Skipped = 3
	run.ExpectedFailures = 1
	run.UnexpectedSuccess = 2
	run.Failures = 4

	agg := NewAggregator(JSONTimeFormat, DefaultTrackerHost)
	report := agg.Aggregate([]*models.VerificationRun{run})

	summary, ok := report.Verifications.Get("run-1")
	if !ok {
		t.Fatal("summary for run-1 not found")
	}
	if summary.StartedAt != "2026-08-01T10:00:00+0000" {
		t.Errorf("StartedAt = %q, want %q", summary.StartedAt, "2026-08-01T10:00:00+0000")
	}
	if summary.FinishedAt != "2026-08-01T10:30:00+0000" {
		t.Errorf("FinishedAt = %q, want %q", summary.FinishedAt, "2026-08-01T10:30:00+0000")
	}
	if summary.Skipped != 3 || summary.ExpectedFailures != 1 ||
		summary.UnexpectedSuccess != 2 || summary.Failures != 4 {
		t.Errorf("counts not copied verbatim: %+v", summary)
	}
}

func TestSortTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{
			name: "id tags first, group order preserved",
			tags: []string{"foo", "id-2", "bar", "id-1"},
			want: []string{"id-2", "id-1", "foo", "bar"},
		},
		{
			name: "no id tags",
			tags: []string{"b", "a"},
			want: []string{"b", "a"},
		},
		{
			name: "only id tags",
			tags: []string{"id-b", "id-a"},
			want: []string{"id-b", "id-a"},
		},
		{
			name: "empty",
			tags: nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sortTags(tt.tags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sortTags(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestDetails(t *testing.T) {
	tests := []struct {
		name   string
		result models.TestResult
		want   string
	}{
		{
			name:   "bug number rewritten into tracker link",
			result: models.TestResult{Reason: "Skipped until Bug: 12345 is resolved."},
			want:   "Skipped until Bug: https://launchpad.net/bugs/12345 is resolved.",
		},
		{
			name:   "bug pattern without space",
			result: models.TestResult{Reason: "Skipped until Bug:98 is resolved."},
			want:   "Skipped until Bug:https://launchpad.net/bugs/98 is resolved.",
		},
		{
			name:   "plain reason untouched",
			result: models.TestResult{Reason: "flaky"},
			want:   "flaky",
		},
		{
			name:   "reason and traceback joined by blank line",
			result: models.TestResult{Reason: "flaky", Traceback: "Trace\nline2"},
			want:   "flaky\n\nTrace\nline2",
		},
		{
			name:   "traceback only, no leading separator",
			result: models.TestResult{Traceback: "Trace\nline2\n"},
			want:   "Trace\nline2",
		},
		{
			name:   "empty",
			result: models.TestResult{},
			want:   "",
		},
	}

	agg := NewAggregator(JSONTimeFormat, DefaultTrackerHost)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agg.details(&tt.result)
			if got != tt.want {
				t.Errorf("details() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetailsOmittedWhenEmpty(t *testing.T) {
	run := makeRun("run-1", map[string]*models.TestResult{
		"test.ok":   {Name: "ok", Status: models.TestSuccess, Duration: 1},
		"test.skip": {Name: "skip", Status: models.TestSkip, Duration: 0, Reason: "flaky"},
	})

	out, err := NewJSONReporter([]*models.VerificationRun{run}, "", Config{}).Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var decoded struct {
		Tests map[string]struct {
			ByVerification map[string]map[string]any `json:"by_verification"`
		} `json:"tests"`
	}
	if err := json.Unmarshal([]byte(out.Print), &decoded); err != nil {
		t.Fatalf("invalid report JSON: %v", err)
	}

	if _, ok := decoded.Tests["test.ok"].ByVerification["run-1"]["details"]; ok {
		t.Error("details present for test without reason or traceback")
	}
	if _, ok := decoded.Tests["test.skip"].ByVerification["run-1"]["details"]; !ok {
		t.Error("details missing for skipped test with reason")
	}
}

func TestSummaryMapMarshalOrder(t *testing.T) {
	m := NewSummaryMap()
	m.Set("zzz", &Summary{Status: models.StatusFinished})
	m.Set("aaa", &Summary{Status: models.StatusFailed})
	m.Set("mmm", &Summary{Status: models.StatusFinished})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	s := string(data)
	if !(strings.Index(s, `"zzz"`) < strings.Index(s, `"aaa"`) &&
		strings.Index(s, `"aaa"`) < strings.Index(s, `"mmm"`)) {
		t.Errorf("summaries not in insertion order: %s", s)
	}

	if want := []string{"zzz", "aaa", "mmm"}; !reflect.DeepEqual(m.UUIDs(), want) {
		t.Errorf("UUIDs() = %v, want %v", m.UUIDs(), want)
	}
}

func TestJSONReporterOutputContract(t *testing.T) {
	run := makeRun("run-1", nil)

	tests := []struct {
		name        string
		destination string
	}{
		{name: "no destination prints", destination: ""},
		{name: "destination yields files and open", destination: "out/report.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewJSONReporter([]*models.VerificationRun{run}, tt.destination, Config{}).Generate()
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			if tt.destination == "" {
				if out.Print == "" {
					t.Error("Print is empty")
				}
				if out.Files != nil || out.Open != "" {
					t.Errorf("unexpected Files/Open for print form: %+v", out)
				}
				return
			}

			if out.Print != "" {
				t.Errorf("Print = %q, want empty", out.Print)
			}
			if out.Open != tt.destination {
				t.Errorf("Open = %q, want %q", out.Open, tt.destination)
			}
			if _, ok := out.Files[tt.destination]; !ok || len(out.Files) != 1 {
				t.Errorf("Files = %v, want exactly %q", out.Files, tt.destination)
			}
		})
	}
}

func TestJSONReporterIdempotent(t *testing.T) {
	runs := []*models.VerificationRun{
		makeRun("run-1", map[string]*models.TestResult{
			"test.one": {Name: "one", Tags: []string{"id-1", "smoke"}, Status: models.TestSuccess, Duration: 1.25},
			"test.two": {Name: "two", Status: models.TestFail, Duration: 3, Traceback: "boom"},
		}),
		makeRun("run-2", map[string]*models.TestResult{
			"test.one": {Name: "one", Status: models.TestSuccess, Duration: 1.5},
		}),
	}

	reporter := NewJSONReporter(runs, "", Config{})
	first, err := reporter.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := reporter.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if first.Print != second.Print {
		t.Error("repeated generation over identical input is not byte-identical")
	}
}

func TestConfigTrackerHost(t *testing.T) {
	run := makeRun("run-1", map[string]*models.TestResult{
		"test.skip": {Name: "skip", Status: models.TestSkip, Reason: "Skipped until Bug: 7 is resolved."},
	})

	out, err := NewJSONReporter([]*models.VerificationRun{run}, "", Config{TrackerHost: "bugs.example.org"}).Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(out.Print, "https://bugs.example.org/bugs/7") {
		t.Errorf("report does not reference configured tracker host:\n%s", out.Print)
	}
}
