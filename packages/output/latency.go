package output

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// Latency summarizes entry durations of a run.
type Latency struct {
	Count int64
	Min   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

const maxLatencyUs = 60_000_000

// ComputeLatency builds percentiles over every entry that produced a
// response. Errored entries are left out.
func ComputeLatency(run *reporter.Run) Latency {
	// 1us to 60s, 3 significant digits
	h := hdrhistogram.New(1, maxLatencyUs, 3)
	for _, e := range run.Entries {
		if e.Category == reporter.CategoryError {
			continue
		}
		us := e.Duration.Microseconds()
		if us < 1 {
			us = 1
		}
		if us > maxLatencyUs {
			us = maxLatencyUs
		}
		_ = h.RecordValue(us)
	}
	if h.TotalCount() == 0 {
		return Latency{}
	}
	return Latency{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
	}
}
