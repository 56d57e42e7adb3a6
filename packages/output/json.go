package output

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string       `json:"runId"`
	Summary  JSONSummary  `json:"summary"`
	Tests    []JSONTest   `json:"tests"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Category   string   `json:"category"`
	ErrorKind  string   `json:"errorKind,omitempty"`
	Duration   float64  `json:"duration"`
	Method     string   `json:"method,omitempty"`
	URL        string   `json:"url,omitempty"`
	StatusCode int      `json:"statusCode,omitempty"`
	Failures   []string `json:"failures,omitempty"`
}

// JSONLatency holds percentiles in milliseconds
type JSONLatency struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// JSONFormatter writes a run as one indented JSON document
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) Name() string { return "json" }

func (f *JSONFormatter) Flush(run *reporter.Run) error {
	s := run.Summary()
	output := JSONOutput{
		RunID: run.ID.String(),
		Summary: JSONSummary{
			Total:   s.Total,
			Passed:  s.Passed,
			Failed:  s.Mismatch,
			Errored: s.Errored,
		},
		Tests:    make([]JSONTest, 0, len(run.Entries)),
		Duration: float64(run.Duration.Milliseconds()),
		Time:     run.Started.Format(time.RFC3339),
	}

	for _, e := range run.Entries {
		test := JSONTest{
			Name:       e.TestName,
			Passed:     e.Passed,
			Category:   string(e.Category),
			ErrorKind:  e.ErrorKind,
			Duration:   float64(e.DurationMs()),
			Method:     e.Method,
			URL:        e.URL,
			StatusCode: e.StatusCode,
		}
		if e.FailureDetail != "" {
			test.Failures = strings.Split(e.FailureDetail, "\n")
		}
		output.Tests = append(output.Tests, test)
	}

	if lat := ComputeLatency(run); lat.Count > 0 {
		output.Latency = &JSONLatency{
			P50: millis(lat.P50),
			P95: millis(lat.P95),
			P99: millis(lat.P99),
			Max: millis(lat.Max),
		}
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
