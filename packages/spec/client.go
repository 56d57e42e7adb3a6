package spec

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/executor"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/rs/zerolog"
)

// Runner performs one request. *executor.Executor is the usual one.
type Runner interface {
	Run(ctx context.Context, spec model.RequestSpec) (*model.CapturedResponse, error)
}

// Client holds defaults shared by the builders it creates.
type Client struct {
	baseURL  string
	timeout  time.Duration
	headers  map[string]string
	runner   Runner
	reporter *reporter.Reporter
	log      zerolog.Logger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: model.DefaultTimeout,
		headers: make(map[string]string),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runner == nil {
		c.runner = executor.New(executor.WithLogger(c.log))
	}
	if c.reporter == nil {
		c.reporter = reporter.Default()
	}
	return c
}

// WithBaseURL is prepended to relative builder URLs.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

func WithExecutor(r Runner) ClientOption {
	return func(c *Client) {
		c.runner = r
	}
}

func WithReporter(r *reporter.Reporter) ClientOption {
	return func(c *Client) {
		c.reporter = r
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func (c *Client) Reporter() *reporter.Reporter {
	return c.reporter
}

// Spec starts a new request builder carrying the client's defaults.
func (c *Client) Spec() *Builder {
	b := &Builder{
		client: c,
		spec: model.RequestSpec{
			Timeout: c.timeout,
			Headers: make(map[string]string, len(c.headers)),
		},
	}
	for k, v := range c.headers {
		b.spec.Headers[k] = v
	}
	return b
}

var defaultClient = NewClient()

// New starts a builder on the default client, which reports to
// reporter.Default().
func New() *Builder {
	return defaultClient.Spec()
}
