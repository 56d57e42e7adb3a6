package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// DefaultPrefix is prepended to every metric name
const DefaultPrefix = "hitcontract"

// PrometheusExporter writes run metrics in Prometheus text format. It is a
// reporter.Observer.
type PrometheusExporter struct {
	writer io.Writer
	file   string
	prefix string
	labels map[string]string
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter sets the output writer for Prometheus metrics
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusFile writes each run to path, replacing it atomically so a
// textfile collector never reads a partial file.
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.file = path
	}
}

// WithPrometheusPrefix replaces DefaultPrefix.
func WithPrometheusPrefix(prefix string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.prefix = prefix
	}
}

// WithPrometheusLabel adds a constant label to every sample.
func WithPrometheusLabel(name, value string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.labels[name] = value
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{
		writer: os.Stdout,
		prefix: DefaultPrefix,
		labels: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PrometheusExporter) Name() string { return "prometheus" }

func (p *PrometheusExporter) Flush(run *reporter.Run) error {
	m := Aggregate(run)
	if p.file == "" {
		return p.Write(p.writer, m)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.file), ".metrics-*")
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	if err := p.Write(tmp, m); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.file)
}

// Write renders m.
func (p *PrometheusExporter) Write(w io.Writer, m *AggregateMetrics) error {
	ew := &errWriter{w: w}

	p.header(ew, "tests_total", "counter", "Report entries by category")
	p.sample(ew, "tests_total", map[string]string{"category": string(reporter.CategoryPass)}, float64(m.Summary.Passed))
	p.sample(ew, "tests_total", map[string]string{"category": string(reporter.CategoryMismatch)}, float64(m.Summary.Mismatch))
	p.sample(ew, "tests_total", map[string]string{"category": string(reporter.CategoryError)}, float64(m.Summary.Errored))

	if len(m.ErrorKinds) > 0 {
		p.header(ew, "errors_total", "counter", "Errored entries by kind")
		for _, kind := range sortedKeys(m.ErrorKinds) {
			p.sample(ew, "errors_total", map[string]string{"kind": kind}, float64(m.ErrorKinds[kind]))
		}
	}

	p.header(ew, "run_duration_seconds", "gauge", "Wall time of the run")
	p.sample(ew, "run_duration_seconds", nil, m.Duration.Seconds())

	p.header(ew, "run_finished_timestamp_seconds", "gauge", "Unix time the run finished")
	p.sample(ew, "run_finished_timestamp_seconds", nil, float64(m.Finished.Unix()))

	if m.Latency.Count > 0 {
		p.header(ew, "request_duration_seconds", "summary", "Duration of calls that produced a response")
		for _, q := range []struct {
			quantile string
			value    float64
		}{
			{"0.5", m.Latency.P50.Seconds()},
			{"0.95", m.Latency.P95.Seconds()},
			{"0.99", m.Latency.P99.Seconds()},
		} {
			p.sample(ew, "request_duration_seconds", map[string]string{"quantile": q.quantile}, q.value)
		}
		p.sample(ew, "request_duration_seconds_sum", nil, m.Latency.Mean.Seconds()*float64(m.Latency.Count))
		p.sample(ew, "request_duration_seconds_count", nil, float64(m.Latency.Count))
	}

	if len(m.StatusCodes) > 0 {
		codes := make([]int, 0, len(m.StatusCodes))
		for code := range m.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		p.header(ew, "responses_total", "counter", "Responses by HTTP status code")
		for _, code := range codes {
			p.sample(ew, "responses_total", map[string]string{"status": fmt.Sprint(code)}, float64(m.StatusCodes[code]))
		}
	}

	if len(m.ByTest) > 0 {
		names := m.TestNames()
		p.header(ew, "test_passed", "gauge", "1 when every entry of the test passed")
		for _, name := range names {
			passed := 0.0
			if m.ByTest[name].Failed == 0 {
				passed = 1
			}
			p.sample(ew, "test_passed", map[string]string{"test": name}, passed)
		}
		p.header(ew, "test_duration_seconds", "gauge", "Total duration of the test's entries")
		for _, name := range names {
			p.sample(ew, "test_duration_seconds", map[string]string{"test": name}, m.ByTest[name].Duration.Seconds())
		}
	}

	return ew.err
}

func (p *PrometheusExporter) header(w io.Writer, name, kind, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", p.prefix, name, help)
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", p.prefix, name, kind)
}

func (p *PrometheusExporter) sample(w io.Writer, name string, labels map[string]string, value float64) {
	all := make(map[string]string, len(p.labels)+len(labels))
	for k, v := range p.labels {
		all[k] = v
	}
	for k, v := range labels {
		all[k] = v
	}

	if len(all) == 0 {
		fmt.Fprintf(w, "%s_%s %g\n", p.prefix, name, value)
		return
	}
	pairs := make([]string, 0, len(all))
	for _, k := range sortedKeys(all) {
		pairs = append(pairs, fmt.Sprintf("%s=\"%s\"", k, sanitizeLabel(all[k])))
	}
	fmt.Fprintf(w, "%s_%s{%s} %g\n", p.prefix, name, strings.Join(pairs, ","), value)
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	e.err = err
	return n, err
}
