package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/auth"
	"github.com/abdul-hamid-achik/hitcontract/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/hitcontract/packages/capture"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/parser"
	"github.com/abdul-hamid-achik/hitcontract/packages/executor"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/abdul-hamid-achik/hitcontract/packages/spec"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is used when Concurrency is above one but no limit is
// otherwise known.
const DefaultConcurrency = 5

// ErrorKindAuth marks entries whose credentials could not be obtained.
const ErrorKindAuth = "auth"

type Config struct {
	// BaseURL overrides the suite's baseUrl when set.
	BaseURL string
	// Timeout applies to cases whose suite and request set none.
	Timeout time.Duration
	// Headers are sent with every request; suite and case headers win.
	Headers map[string]string
	// Variables override suite variables.
	Variables   map[string]string
	NameFilter  string
	TagsFilter  []string
	Concurrency int
	// Rate limits case starts per second; zero disables pacing.
	Rate float64
	Bail bool
}

type Runner struct {
	config   *Config
	exec     spec.Runner
	reporter *reporter.Reporter
	log      zerolog.Logger
	tokens   *oauth2.TokenCache
	limiter  *rate.Limiter
}

type Option func(*Runner)

// WithExecutor sets what performs requests, usually an *executor.Executor.
func WithExecutor(e spec.Runner) Option {
	return func(r *Runner) {
		r.exec = e
	}
}

func WithReporter(rep *reporter.Reporter) Option {
	return func(r *Runner) {
		r.reporter = rep
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

func New(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Runner{
		config: cfg,
		log:    zerolog.Nop(),
		tokens: oauth2.NewTokenCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = executor.New(executor.WithLogger(r.log))
	}
	if r.reporter == nil {
		r.reporter = reporter.Default()
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

type RunResult struct {
	File     string
	Suite    string
	Results  []*CaseResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

type CaseResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Outcome    *spec.Outcome
	Captures   map[string]string
	// Error is set when the case could not be evaluated: unresolved
	// expressions, invalid patterns, auth failures, timeouts.
	Error error
	// CaptureError lists captures that found no value.
	CaptureError error
}

// RunFile parses the suite at path, loads the .env files next to it, and
// runs it.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}

	dotenv, err := env.LoadSuiteEnv(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	return r.run(ctx, suite, dotenv)
}

// Run executes suite. The returned error is reserved for problems that stop
// the whole run: a cancelled context, a finalized reporter, failing
// before commands or an unreachable waitFor target.
func (r *Runner) Run(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	return r.run(ctx, suite, nil)
}

func (r *Runner) run(ctx context.Context, suite *parser.Suite, dotenv map[string]string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		File:  suite.Path,
		Suite: suite.Name,
	}
	log := r.log.With().Str("suite", suite.Name).Logger()

	resolver := env.NewResolver(env.WithLogger(log))
	resolver.SetVariables(env.MergeVariables(dotenv, suite.Variables, r.config.Variables))

	baseDir := filepath.Dir(suite.Path)
	if suite.Path == "" {
		baseDir = "."
	}

	if err := r.waitForService(ctx, suite.WaitFor, resolver); err != nil {
		return nil, err
	}
	if err := r.runBefore(ctx, suite.Before, baseDir, resolver); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.runAfter(context.WithoutCancel(ctx), suite.After, baseDir, resolver); err != nil {
			log.Warn().Err(err).Msg("after commands failed")
		}
	}()

	client, err := r.client(suite, resolver)
	if err != nil {
		return nil, err
	}

	ordered, err := topologicalSort(suite.Cases)
	if err != nil {
		return nil, err
	}

	selected := r.selectCases(suite)
	var runnable []*parser.Case
	for _, c := range ordered {
		switch {
		case !selected[c.Name]:
			result.add(&CaseResult{Name: c.Name, Skipped: true, SkipReason: "filtered out"})
		case c.Skip != "":
			result.add(&CaseResult{Name: c.Name, Skipped: true, SkipReason: c.Skip})
		default:
			runnable = append(runnable, c)
		}
	}

	var runErr error
	if r.config.Concurrency > 1 && !hasDependencies(runnable) {
		runErr = r.runParallel(ctx, client, suite, runnable, resolver, result)
	} else {
		runErr = r.runSequential(ctx, client, suite, runnable, resolver, result)
	}

	result.Duration = time.Since(start)
	log.Debug().
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("suite finished")
	return result, runErr
}

func (r *Runner) client(suite *parser.Suite, resolver *env.Resolver) (*spec.Client, error) {
	baseURL := suite.BaseURL
	if r.config.BaseURL != "" {
		baseURL = r.config.BaseURL
	}
	baseURL, err := resolver.Resolve(baseURL)
	if err != nil {
		return nil, fmt.Errorf("resolving baseUrl: %w", err)
	}

	timeout := r.config.Timeout
	if suite.Timeout > 0 {
		timeout = time.Duration(suite.Timeout) * time.Millisecond
	}
	if timeout <= 0 {
		timeout = model.DefaultTimeout
	}

	return spec.NewClient(
		spec.WithBaseURL(baseURL),
		spec.WithDefaultTimeout(timeout),
		spec.WithExecutor(r.exec),
		spec.WithReporter(r.reporter),
		spec.WithLogger(r.log),
	), nil
}

func (res *RunResult) add(cr *CaseResult) {
	res.Results = append(res.Results, cr)
	switch {
	case cr.Skipped:
		res.Skipped++
	case cr.Passed:
		res.Passed++
	default:
		res.Failed++
	}
}

func (r *Runner) runSequential(ctx context.Context, client *spec.Client, suite *parser.Suite, cases []*parser.Case, resolver *env.Resolver, result *RunResult) error {
	executed := make(map[string]*CaseResult)

	for i, c := range cases {
		if reason := dependencyFailure(c, executed); reason != "" {
			cr := &CaseResult{Name: c.Name, Skipped: true, SkipReason: reason}
			executed[c.Name] = cr
			result.add(cr)
			continue
		}

		cr, err := r.runCase(ctx, client, suite, c, resolver)
		if err != nil {
			return err
		}
		executed[c.Name] = cr
		result.add(cr)

		if !cr.Passed && r.config.Bail {
			for _, rest := range cases[i+1:] {
				result.add(&CaseResult{Name: rest.Name, Skipped: true, SkipReason: "bail after failure"})
			}
			break
		}
	}
	return nil
}

func dependencyFailure(c *parser.Case, executed map[string]*CaseResult) string {
	for _, dep := range c.DependsOn {
		res, ok := executed[dep]
		if !ok {
			continue
		}
		if res.Skipped {
			return fmt.Sprintf("dependency %q was skipped", dep)
		}
		if !res.Passed {
			return fmt.Sprintf("dependency %q failed", dep)
		}
	}
	return ""
}

func (r *Runner) runParallel(ctx context.Context, client *spec.Client, suite *parser.Suite, cases []*parser.Case, resolver *env.Resolver, result *RunResult) error {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*CaseResult, len(cases))
	errs := make([]error, len(cases))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, c := range cases {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, c *parser.Case) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx], errs[idx] = r.runCase(ctx, client, suite, c, resolver)
		}(i, c)
	}

	wg.Wait()
	for _, cr := range results {
		if cr != nil {
			result.add(cr)
		}
	}
	return errors.Join(errs...)
}

// runCase executes one case. The error is non-nil only when the run
// cannot continue.
func (r *Runner) runCase(ctx context.Context, client *spec.Client, suite *parser.Suite, c *parser.Case, resolver *env.Resolver) (*CaseResult, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to start %q: %w", c.Name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cr := &CaseResult{Name: c.Name}
	log := r.log.With().Str("case", c.Name).Logger()

	builder, err := r.build(ctx, client, suite, c, resolver)
	if err != nil {
		cr.Error = err
		kind := executor.KindInvalidSpec
		var authErr *authError
		if errors.As(err, &authErr) {
			kind = ErrorKindAuth
		}
		log.Warn().Err(err).Msg("case could not be built")
		return cr, r.recordError(c, kind, err)
	}

	start := time.Now()
	outcome, err := builder.Execute(ctx)
	cr.Duration = time.Since(start)
	if err != nil {
		var lifecycle *reporter.LifecycleError
		if errors.As(err, &lifecycle) {
			return nil, err
		}
		cr.Error = err
		cr.Outcome = outcome
		return cr, nil
	}

	cr.Outcome = outcome
	cr.Passed = outcome.Passed()
	cr.Error = outcome.Err

	if outcome.Response != nil && len(c.Captures) > 0 {
		values, err := capture.ExtractAll(outcome.Response, c.Captures)
		for name, value := range values {
			resolver.SetCapture(c.Name, name, value)
		}
		cr.Captures = values
		if err != nil {
			cr.CaptureError = err
			log.Warn().Err(err).Msg("capture incomplete")
		}
	}
	return cr, nil
}

type authError struct {
	err error
}

func (e *authError) Error() string { return "auth: " + e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

// build resolves every expression of c and turns it into a builder.
func (r *Runner) build(ctx context.Context, client *spec.Client, suite *parser.Suite, c *parser.Case, resolver *env.Resolver) (*spec.Builder, error) {
	req := c.Request

	method, err := resolver.Resolve(req.Method)
	if err != nil {
		return nil, fmt.Errorf("method: %w", err)
	}
	url, err := resolver.Resolve(req.URL)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	headers, err := resolver.ResolveAll(env.MergeVariables(r.config.Headers, suite.Headers, req.Headers))
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	query, err := resolver.ResolveAll(req.Query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	authConfig := c.Auth
	if authConfig == nil {
		authConfig = suite.Auth
	}
	if authConfig != nil {
		resolved, err := authConfig.Resolve(resolver.Resolve)
		if err != nil {
			return nil, err
		}
		if err := resolved.Validate(); err != nil {
			return nil, &authError{err: err}
		}
		if err := auth.Apply(ctx, resolved, headers, oauth2.WithCache(r.tokens)); err != nil {
			return nil, &authError{err: err}
		}
	}

	b := client.Spec().
		Name(c.Name).
		Method(method).
		URL(url).
		Headers(headers)

	for _, k := range sortedKeys(query) {
		b.QueryParam(k, query[k])
	}

	if req.Body != "" {
		body, err := resolver.Resolve(req.Body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		contentType := ""
		if req.JSON && !hasHeader(headers, "Content-Type") {
			contentType = "application/json"
		}
		b.Body([]byte(body), contentType)
	}

	if req.Timeout > 0 {
		b.Timeout(time.Duration(req.Timeout) * time.Millisecond)
	}

	if err := r.expectations(b, &c.Expect, resolver); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Runner) expectations(b *spec.Builder, exp *parser.Expect, resolver *env.Resolver) error {
	if exp.Status != 0 {
		b.ExpectStatus(exp.Status)
	}

	pattern := func(field, text string) (matcher.Pattern, error) {
		resolved, err := resolver.Resolve(text)
		if err != nil {
			return matcher.Pattern{}, fmt.Errorf("%s: %w", field, err)
		}
		p, err := matcher.ParsePattern([]byte(resolved))
		if err != nil {
			return matcher.Pattern{}, fmt.Errorf("%s: %w", field, err)
		}
		return p, nil
	}

	if exp.BodyEquals != "" {
		p, err := pattern("bodyEquals", exp.BodyEquals)
		if err != nil {
			return err
		}
		b.Expect(spec.ExpectBodyDeepEquals(p))
	}
	if exp.BodyLike != "" {
		p, err := pattern("bodyLike", exp.BodyLike)
		if err != nil {
			return err
		}
		b.Expect(spec.ExpectBodyPartialMatches(p))
	}
	for _, at := range exp.BodyLikeAt {
		p, err := pattern("bodyLikeAt "+at.Path, at.Pattern)
		if err != nil {
			return err
		}
		b.Expect(spec.ExpectBodyAtMatches(at.Path, p))
	}

	headers, err := resolver.ResolveAll(exp.Headers)
	if err != nil {
		return fmt.Errorf("expected headers: %w", err)
	}
	for _, k := range sortedKeys(headers) {
		b.ExpectHeader(k, headers[k])
	}
	return nil
}

// recordError reports a case that never reached the executor.
func (r *Runner) recordError(c *parser.Case, kind string, cause error) error {
	err := r.reporter.Record(reporter.Entry{
		TestName:      c.Name,
		Category:      reporter.CategoryError,
		ErrorKind:     kind,
		FailureDetail: cause.Error(),
	})
	if err != nil {
		return fmt.Errorf("recording %q: %w", c.Name, err)
	}
	return nil
}

// selectCases applies only, the name glob and the tag filter, then adds
// the dependencies of every selected case.
func (r *Runner) selectCases(suite *parser.Suite) map[string]bool {
	hasOnly := false
	for _, c := range suite.Cases {
		if c.Only {
			hasOnly = true
			break
		}
	}

	selected := make(map[string]bool)
	var add func(c *parser.Case)
	add = func(c *parser.Case) {
		if selected[c.Name] {
			return
		}
		selected[c.Name] = true
		for _, dep := range c.DependsOn {
			if d := suite.Case(dep); d != nil {
				add(d)
			}
		}
	}

	for _, c := range suite.Cases {
		if r.shouldRun(c, hasOnly) {
			add(c)
		}
	}
	return selected
}

func (r *Runner) shouldRun(c *parser.Case, hasOnly bool) bool {
	if hasOnly && !c.Only {
		return false
	}
	if r.config.NameFilter != "" && !matchesPattern(c.Name, r.config.NameFilter) {
		return false
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(c.Tags, r.config.TagsFilter) {
		return false
	}
	return true
}

func hasDependencies(cases []*parser.Case) bool {
	for _, c := range cases {
		if len(c.DependsOn) > 0 {
			return true
		}
	}
	return false
}

// topologicalSort orders cases so dependencies come first. Cases with no
// ordering constraint between them keep their file order.
func topologicalSort(cases []*parser.Case) ([]*parser.Case, error) {
	index := make(map[string]int, len(cases))
	for i, c := range cases {
		index[c.Name] = i
	}

	inDegree := make([]int, len(cases))
	dependents := make([][]int, len(cases))
	for i, c := range cases {
		for _, dep := range c.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("case %q depends on unknown case %q", c.Name, dep)
			}
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	// Kahn's algorithm, always taking the earliest ready case
	var sorted []*parser.Case
	done := make([]bool, len(cases))
	for len(sorted) < len(cases) {
		next := -1
		for i := range cases {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("circular dependency detected between cases")
		}
		done[next] = true
		sorted = append(sorted, cases[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}
	return sorted, nil
}

// matchesPattern supports a leading and/or trailing "*".
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if pattern == "*" {
		return true
	}

	prefix := strings.HasSuffix(pattern, "*")
	suffix := strings.HasPrefix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case suffix:
		return strings.HasSuffix(name, core)
	case prefix:
		return strings.HasPrefix(name, core)
	}
	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
