package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/executor"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// Builder assembles one request and its expectations. Every method returns
// the same builder. The first invalid argument is kept and returned by
// Execute before anything is sent.
type Builder struct {
	client       *Client
	spec         model.RequestSpec
	expectations []Expectation
	err          error
	executed     atomic.Bool
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) Name(name string) *Builder {
	b.spec.Name = name
	return b
}

func (b *Builder) Method(verb string) *Builder {
	m, err := model.ParseMethod(verb)
	if err != nil {
		return b.fail(err)
	}
	b.spec.Method = m
	return b
}

// URL sets the target. Relative paths are joined to the client base URL.
func (b *Builder) URL(path string) *Builder {
	b.spec.URL = model.JoinURL(b.client.baseURL, path)
	return b
}

func (b *Builder) Get(path string) *Builder    { return b.Method("GET").URL(path) }
func (b *Builder) Post(path string) *Builder   { return b.Method("POST").URL(path) }
func (b *Builder) Put(path string) *Builder    { return b.Method("PUT").URL(path) }
func (b *Builder) Patch(path string) *Builder  { return b.Method("PATCH").URL(path) }
func (b *Builder) Delete(path string) *Builder { return b.Method("DELETE").URL(path) }

func (b *Builder) Header(key, value string) *Builder {
	if b.spec.Headers == nil {
		b.spec.Headers = make(map[string]string)
	}
	b.spec.Headers[key] = value
	return b
}

func (b *Builder) Headers(headers map[string]string) *Builder {
	for k, v := range headers {
		b.Header(k, v)
	}
	return b
}

func (b *Builder) QueryParam(key, value string) *Builder {
	if b.spec.Query == nil {
		b.spec.Query = make(map[string]string)
	}
	b.spec.Query[key] = value
	return b
}

// JSONBody encodes v as the request body and sets a JSON content type
// unless one is already present.
func (b *Builder) JSONBody(v any) *Builder {
	data, err := json.Marshal(v)
	if err != nil {
		return b.fail(&model.InvalidSpecError{Field: "body", Reason: err.Error()})
	}
	b.spec.Body = data
	if !b.hasHeader("Content-Type") {
		b.Header("Content-Type", "application/json")
	}
	return b
}

func (b *Builder) Body(raw []byte, contentType string) *Builder {
	b.spec.Body = raw
	if contentType != "" {
		b.Header("Content-Type", contentType)
	}
	return b
}

func (b *Builder) Timeout(d time.Duration) *Builder {
	if d <= 0 {
		return b.fail(&model.InvalidSpecError{Field: "timeout", Reason: fmt.Sprintf("timeout must be positive, got %s", d)})
	}
	b.spec.Timeout = d
	return b
}

func (b *Builder) hasHeader(name string) bool {
	for k := range b.spec.Headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func (b *Builder) Expect(e Expectation) *Builder {
	b.expectations = append(b.expectations, e)
	return b
}

func (b *Builder) ExpectStatus(code int) *Builder {
	return b.Expect(ExpectStatusEquals(code))
}

// ExpectBodyLike requires the body to contain at least pattern. pattern is
// anything matcher.ParseLike accepts.
func (b *Builder) ExpectBodyLike(pattern any) *Builder {
	p, err := matcher.ParseLike(pattern)
	if err != nil {
		return b.fail(&model.InvalidSpecError{Field: "expectation", Reason: err.Error()})
	}
	return b.Expect(ExpectBodyPartialMatches(p))
}

// ExpectBodyEquals requires the body to match pattern exactly.
func (b *Builder) ExpectBodyEquals(pattern any) *Builder {
	p, err := matcher.ParseLike(pattern)
	if err != nil {
		return b.fail(&model.InvalidSpecError{Field: "expectation", Reason: err.Error()})
	}
	return b.Expect(ExpectBodyDeepEquals(p))
}

func (b *Builder) ExpectHeader(name, value string) *Builder {
	return b.Expect(ExpectHeaderEquals(name, value))
}

// ExpectBodyLikeAt partially matches the value at a gjson path such as
// "employees.0".
func (b *Builder) ExpectBodyLikeAt(path string, pattern any) *Builder {
	p, err := matcher.ParseLike(pattern)
	if err != nil {
		return b.fail(&model.InvalidSpecError{Field: "expectation", Reason: err.Error()})
	}
	return b.Expect(ExpectBodyAtMatches(path, p))
}

// Outcome is what one Execute produced. Err holds a timeout or transport
// failure; Results is empty in that case.
type Outcome struct {
	Spec     model.RequestSpec
	Response *model.CapturedResponse
	Results  []ExpectationResult
	Err      error
	Entry    reporter.Entry
}

// Passed reports whether the call completed and every expectation held.
func (o *Outcome) Passed() bool {
	return o.Entry.Passed
}

// Failures returns the results that did not pass.
func (o *Outcome) Failures() []ExpectationResult {
	var out []ExpectationResult
	for _, r := range o.Results {
		if !r.Passed() {
			out = append(out, r)
		}
	}
	return out
}

// Execute sends the request, evaluates every expectation and records one
// report entry. Timeouts and transport failures are test failures: they
// land in Outcome.Err and the returned error stays nil. Invalid specs,
// reuse and reporter misuse are returned as errors.
func (b *Builder) Execute(ctx context.Context) (*Outcome, error) {
	if !b.executed.CompareAndSwap(false, true) {
		return nil, &ReuseError{Name: b.spec.Name}
	}

	spec := b.spec.Clone()
	out := &Outcome{Spec: spec}
	entry := reporter.Entry{
		TestName: testName(spec),
		Method:   string(spec.Method),
		URL:      spec.FullURL(),
	}
	log := b.client.log.With().Str("test", entry.TestName).Logger()

	if err := b.validate(&spec); err != nil {
		entry.Category = reporter.CategoryError
		entry.ErrorKind = executor.KindInvalidSpec
		entry.FailureDetail = err.Error()
		out.Err = err
		out.Entry = entry
		return out, b.recordFailure(entry, err)
	}

	start := time.Now()
	resp, err := b.client.runner.Run(ctx, spec)
	entry.Duration = time.Since(start)

	if err != nil {
		kind := executor.Kind(err)
		entry.Category = reporter.CategoryError
		entry.ErrorKind = kind
		entry.FailureDetail = err.Error()
		var timeoutErr *executor.TimeoutError
		if errors.As(err, &timeoutErr) {
			entry.Duration = timeoutErr.Elapsed
		}
		out.Err = err
		out.Entry = entry
		log.Debug().Err(err).Str("kind", kind).Msg("request failed")
		if kind == executor.KindInvalidSpec {
			return out, b.recordFailure(entry, err)
		}
		return out, b.record(entry)
	}

	out.Response = resp
	entry.StatusCode = resp.StatusCode
	entry.Passed = true
	entry.Category = reporter.CategoryPass

	var failures []string
	for _, e := range b.expectations {
		res := ExpectationResult{Expectation: e, Result: e.Evaluate(resp)}
		out.Results = append(out.Results, res)
		if !res.Passed() {
			failures = append(failures, res.String())
		}
	}
	if len(failures) > 0 {
		entry.Passed = false
		entry.Category = reporter.CategoryMismatch
		entry.FailureDetail = strings.Join(failures, "\n")
	}
	out.Entry = entry

	log.Debug().Bool("passed", entry.Passed).Int("status", resp.StatusCode).Msg("test evaluated")
	return out, b.record(entry)
}

func (b *Builder) validate(spec *model.RequestSpec) error {
	if b.err != nil {
		return b.err
	}
	return spec.Validate()
}

func (b *Builder) record(e reporter.Entry) error {
	if err := b.client.reporter.Record(e); err != nil {
		return fmt.Errorf("recording %q: %w", e.TestName, err)
	}
	return nil
}

// recordFailure records e and returns cause, joined with any reporter error.
func (b *Builder) recordFailure(e reporter.Entry, cause error) error {
	if err := b.record(e); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func testName(spec model.RequestSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return strings.TrimSpace(string(spec.Method) + " " + spec.URL)
}
