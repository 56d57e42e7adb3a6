package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Transport sends one request. It must honor ctx cancellation where it can;
// the executor stops waiting at the deadline either way.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f TransportFunc) Send(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

type Executor struct {
	transport       Transport
	log             zerolog.Logger
	limiter         *rate.Limiter
	requestIDHeader string
}

type Option func(*Executor)

// WithTransport replaces the default HTTP client.
func WithTransport(t Transport) Option {
	return func(e *Executor) {
		e.transport = t
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// WithRateLimit spaces calls to at most rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRequestIDHeader tags every request with a fresh UUID under name,
// unless the spec already sets that header.
func WithRequestIDHeader(name string) Option {
	return func(e *Executor) {
		e.requestIDHeader = name
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transport == nil {
		// the spec timeout is the only deadline
		e.transport = http.NewClient(http.WithTimeout(0))
	}
	return e
}

type sendResult struct {
	resp *http.Response
	err  error
}

// Run performs the call described by spec and captures the response.
func (e *Executor) Run(ctx context.Context, spec model.RequestSpec) (*model.CapturedResponse, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: spec.Method, URL: spec.URL, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
		}
	}

	req := e.buildRequest(spec)
	log := e.log.With().
		Str("method", req.Method).
		Str("url", req.URL).
		Str("request_id", req.Headers[e.requestIDHeader]).
		Logger()

	callCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	log.Debug().Dur("timeout", spec.Timeout).Msg("sending request")

	start := time.Now()
	done := make(chan sendResult, 1)
	go func() {
		resp, err := e.transport.Send(callCtx, req)
		done <- sendResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.err != nil {
			err := e.failure(ctx, spec, res.err, elapsed)
			log.Warn().Err(err).Dur("elapsed", elapsed).Msg("request failed")
			return nil, err
		}
		captured, err := capture(spec, res.resp, elapsed)
		if err != nil {
			log.Warn().Err(err).Msg("invalid response")
			return nil, err
		}
		log.Debug().Int("status", captured.StatusCode).Dur("elapsed", elapsed).Msg("response received")
		return captured, nil
	case <-callCtx.Done():
		elapsed := time.Since(start)
		err := e.failure(ctx, spec, callCtx.Err(), elapsed)
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("request abandoned")
		return nil, err
	}
}

func (e *Executor) buildRequest(spec model.RequestSpec) *http.Request {
	req := http.NewRequest(string(spec.Method), spec.URL)
	for k, v := range spec.Headers {
		req.SetHeader(k, v)
	}
	for k, v := range spec.Query {
		req.SetQueryParam(k, v)
	}
	if spec.Body != nil {
		req.SetBody(spec.Body)
	}
	if e.requestIDHeader != "" {
		if _, ok := req.Headers[e.requestIDHeader]; !ok {
			req.SetHeader(e.requestIDHeader, uuid.NewString())
		}
	}
	return req
}

// failure turns a transport or context error into the executor's taxonomy.
// A cancelled parent context is a transport failure, not a timeout.
func (e *Executor) failure(parent context.Context, spec model.RequestSpec, err error, elapsed time.Duration) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return &TransportError{Method: spec.Method, URL: spec.URL, Err: parent.Err()}
	}
	if isTimeout(err) {
		return &TimeoutError{Method: spec.Method, URL: spec.URL, Timeout: spec.Timeout, Elapsed: elapsed}
	}
	return &TransportError{Method: spec.Method, URL: spec.URL, Err: err}
}

func capture(spec model.RequestSpec, resp *http.Response, elapsed time.Duration) (*model.CapturedResponse, error) {
	if resp == nil {
		return nil, &TransportError{Method: spec.Method, URL: spec.URL, Err: errors.New("transport returned no response")}
	}
	if resp.StatusCode < 100 || resp.StatusCode > 599 {
		return nil, &TransportError{Method: spec.Method, URL: spec.URL, Err: fmt.Errorf("invalid status code %d", resp.StatusCode)}
	}

	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}

	captured := &model.CapturedResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    headers,
		Raw:        resp.Body,
		Duration:   elapsed,
	}
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if body, err := matcher.ParseJSON(resp.Body); err == nil {
			captured.Body = body
			captured.HasBody = true
		}
	}
	return captured, nil
}
