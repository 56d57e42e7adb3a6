// Package metrics exports aggregate run metrics in the Prometheus text
// format, for node_exporter's textfile collector or a push gateway.
package metrics

import (
	"sort"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/output"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// AggregateMetrics represents metrics aggregated over one finalized run
type AggregateMetrics struct {
	RunID       string
	Finished    time.Time
	Summary     reporter.Summary
	Duration    time.Duration
	Latency     output.Latency
	StatusCodes map[int]int64
	ErrorKinds  map[string]int64
	ByTest      map[string]*TestAggregate
}

// TestAggregate represents aggregated metrics for a single test name
type TestAggregate struct {
	Name     string
	Total    int64
	Passed   int64
	Failed   int64
	Duration time.Duration
}

// Aggregate builds the metrics of run. Entries without a status code are
// left out of StatusCodes.
func Aggregate(run *reporter.Run) *AggregateMetrics {
	m := &AggregateMetrics{
		RunID:       run.ID.String(),
		Finished:    run.Started.Add(run.Duration),
		Summary:     run.Summary(),
		Duration:    run.Duration,
		Latency:     output.ComputeLatency(run),
		StatusCodes: make(map[int]int64),
		ErrorKinds:  make(map[string]int64),
		ByTest:      make(map[string]*TestAggregate),
	}

	for _, e := range run.Entries {
		if e.StatusCode > 0 {
			m.StatusCodes[e.StatusCode]++
		}
		if e.ErrorKind != "" {
			m.ErrorKinds[e.ErrorKind]++
		}

		ta, ok := m.ByTest[e.TestName]
		if !ok {
			ta = &TestAggregate{Name: e.TestName}
			m.ByTest[e.TestName] = ta
		}
		ta.Total++
		ta.Duration += e.Duration
		if e.Passed {
			ta.Passed++
		} else {
			ta.Failed++
		}
	}
	return m
}

// TestNames returns the test names in sorted order.
func (m *AggregateMetrics) TestNames() []string {
	names := make([]string, 0, len(m.ByTest))
	for name := range m.ByTest {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
