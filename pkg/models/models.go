package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Verification run statuses.
const (
	StatusInit     = "init"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
	StatusCrashed  = "crashed"
)

// Test result statuses.
const (
	TestSuccess           = "success"
	TestFail              = "fail"
	TestSkip              = "skip"
	TestExpectedFail      = "xfail"
	TestUnexpectedSuccess = "uxsuccess"
)

// VerificationRun represents one execution of a test suite with aggregate
// counts and per-test outcomes. Runs are immutable once handed to a reporter.
type VerificationRun struct {
	UUID      string         `json:"uuid"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Status    string         `json:"status"`
	RunArgs   map[string]any `json:"run_args"`

	TestsCount        int     `json:"tests_count"`
	TestsDuration     float64 `json:"tests_duration"`
	Skipped           int     `json:"skipped"`
	Success           int     `json:"success"`
	ExpectedFailures  int     `json:"expected_failures"`
	UnexpectedSuccess int     `json:"unexpected_success"`
	Failures          int     `json:"failures"`

	// Tests maps a stable test identifier to its result in this run.
	Tests map[string]*TestResult `json:"tests"`
}

// TestResult represents the outcome of a single test case within one run.
// Reason and Traceback are optional free text; absent values decode as empty.
type TestResult struct {
	Name      string   `json:"name"`
	Tags      []string `json:"tags,omitempty"`
	Status    string   `json:"status"`
	Duration  float64  `json:"duration"`
	Reason    string   `json:"reason,omitempty"`
	Traceback string   `json:"traceback,omitempty"`
}

// HasFailed reports whether the run finished with failing or unexpectedly
// passing tests.
func (v *VerificationRun) HasFailed() bool {
	return v.Failures > 0 || v.UnexpectedSuccess > 0
}

// DecodeRuns decodes verification runs from a results payload. Both a single
// run object and an array of runs are accepted.
func DecodeRuns(data []byte) ([]*VerificationRun, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty results payload")
	}

	if trimmed[0] == '[' {
		var runs []*VerificationRun
		if err := json.Unmarshal(data, &runs); err != nil {
			return nil, fmt.Errorf("failed to decode verification runs: %w", err)
		}
		return runs, nil
	}

	run := &VerificationRun{}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("failed to decode verification run: %w", err)
	}
	return []*VerificationRun{run}, nil
}
