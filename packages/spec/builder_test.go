package spec

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/executor"
	hchttp "github.com/abdul-hamid-achik/hitcontract/packages/http"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newHarness returns a client reporting to a fresh reporter and a pointer
// to the run that reporter hands its observer on End.
func newHarness(t *testing.T, opts ...ClientOption) (*Client, *reporter.Reporter, **reporter.Run) {
	t.Helper()
	rep := reporter.New()
	var got *reporter.Run
	require.NoError(t, rep.Add(reporter.ObserverFunc(func(run *reporter.Run) error {
		got = run
		return nil
	})))
	opts = append([]ClientOption{WithReporter(rep)}, opts...)
	return NewClient(opts...), rep, &got
}

func jsonServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExecute_CompanyListScenario(t *testing.T) {
	t.Run("empty array passes", func(t *testing.T) {
		server := jsonServer(t, map[string]string{"GET /company": `[]`})
		client, rep, run := newHarness(t, WithBaseURL(server.URL))

		out, err := client.Spec().
			Get("/company").
			Timeout(30 * time.Second).
			ExpectStatus(200).
			ExpectBodyLike([]any{}).
			Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, out.Passed())
		assert.NoError(t, out.Err)

		require.NoError(t, rep.End())
		require.Len(t, (*run).Entries, 1)
		assert.Equal(t, reporter.CategoryPass, (*run).Entries[0].Category)
	})

	t.Run("object body fails at root", func(t *testing.T) {
		server := jsonServer(t, map[string]string{"GET /company": `{}`})
		client, rep, run := newHarness(t, WithBaseURL(server.URL))

		out, err := client.Spec().
			Get("/company").
			ExpectStatus(200).
			ExpectBodyLike([]any{}).
			Execute(context.Background())
		require.NoError(t, err)
		assert.False(t, out.Passed())

		failures := out.Failures()
		require.Len(t, failures, 1)
		r := failures[0].Result
		assert.Equal(t, "", r.Path.String())
		assert.Equal(t, "array", r.Expected)
		assert.Equal(t, "object", r.Actual)

		require.NoError(t, rep.End())
		entry := (*run).Entries[0]
		assert.False(t, entry.Passed)
		assert.Equal(t, reporter.CategoryMismatch, entry.Category)
		assert.Contains(t, entry.FailureDetail, "expected array, got object")
	})
}

func TestExecute_CompanyByIDScenario(t *testing.T) {
	server := jsonServer(t, map[string]string{
		"GET /company/23": `{"id": 23, "name": "Acme", "extra": true}`,
		"GET /company/24": `{"id": "24", "name": "Acme"}`,
	})
	client, _, _ := newHarness(t, WithBaseURL(server.URL))
	pattern := map[string]any{"id": matcher.AnyNumber(), "name": matcher.AnyString()}

	out, err := client.Spec().Get("/company/23").ExpectBodyLike(pattern).Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Passed())

	out, err = client.Spec().Get("/company/24").ExpectBodyLike(pattern).Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Failures(), 1)
	r := out.Failures()[0].Result
	assert.Equal(t, "id", r.Path.String())
	assert.Equal(t, "number", r.Expected)
	assert.Equal(t, "string", r.Actual)
	assert.Equal(t, matcher.ReasonTypeMismatch, r.Reason)
}

func TestExecute_ReportsEveryViolation(t *testing.T) {
	server := jsonServer(t, map[string]string{"GET /company/23": `{"id": 23}`})
	client, rep, run := newHarness(t, WithBaseURL(server.URL))

	out, err := client.Spec().
		Name("all violations").
		Get("/company/23").
		ExpectStatus(201).
		ExpectBodyEquals(map[string]any{"id": 24}).
		ExpectHeader("Content-Type", "application/json").
		Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	assert.Len(t, out.Failures(), 2)

	require.NoError(t, rep.End())
	require.Len(t, (*run).Entries, 1)
	entry := (*run).Entries[0]
	assert.Equal(t, "all violations", entry.TestName)
	assert.Equal(t, 200, entry.StatusCode)
	assert.Len(t, strings.Split(entry.FailureDetail, "\n"), 2)
}

func TestExecute_Timeout(t *testing.T) {
	slow := executor.New(executor.WithTransport(executor.TransportFunc(
		func(ctx context.Context, req *hchttp.Request) (*hchttp.Response, error) {
			time.Sleep(50 * time.Millisecond)
			return &hchttp.Response{StatusCode: 200, Body: []byte(`[]`)}, nil
		})))
	client, rep, run := newHarness(t, WithExecutor(slow), WithBaseURL("http://api.test"))

	out, err := client.Spec().
		Get("/company").
		Timeout(10 * time.Millisecond).
		ExpectStatus(200).
		Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Passed())
	assert.Empty(t, out.Results)

	var timeoutErr *executor.TimeoutError
	require.True(t, errors.As(out.Err, &timeoutErr))

	// let the late transport result arrive; it must not be reported
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, rep.End())

	require.Len(t, (*run).Entries, 1)
	entry := (*run).Entries[0]
	assert.False(t, entry.Passed)
	assert.Equal(t, reporter.CategoryError, entry.Category)
	assert.Equal(t, executor.KindTimeout, entry.ErrorKind)
	assert.NotEmpty(t, entry.FailureDetail)
}

func TestExecute_InvalidSpec(t *testing.T) {
	called := false
	runner := executor.New(executor.WithTransport(executor.TransportFunc(
		func(ctx context.Context, req *hchttp.Request) (*hchttp.Response, error) {
			called = true
			return &hchttp.Response{StatusCode: 200}, nil
		})))

	tests := []struct {
		name  string
		build func(b *Builder) *Builder
		field string
	}{
		{name: "unknown verb", build: func(b *Builder) *Builder { return b.Method("FETCH").URL("http://api.test/") }, field: "method"},
		{name: "zero timeout", build: func(b *Builder) *Builder { return b.Get("http://api.test/").Timeout(0) }, field: "timeout"},
		{name: "missing url", build: func(b *Builder) *Builder { return b.Method("GET") }, field: "url"},
		{name: "missing method", build: func(b *Builder) *Builder { return b.URL("http://api.test/") }, field: "method"},
		{name: "unencodable body", build: func(b *Builder) *Builder { return b.Post("http://api.test/").JSONBody(make(chan int)) }, field: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, rep, run := newHarness(t, WithExecutor(runner))
			out, err := tt.build(client.Spec()).Execute(context.Background())

			var specErr *model.InvalidSpecError
			require.True(t, errors.As(err, &specErr))
			assert.Equal(t, tt.field, specErr.Field)
			assert.Equal(t, err, out.Err)

			require.NoError(t, rep.End())
			require.Len(t, (*run).Entries, 1)
			assert.Equal(t, executor.KindInvalidSpec, (*run).Entries[0].ErrorKind)
		})
	}
	assert.False(t, called)
}

func TestExecute_Reuse(t *testing.T) {
	server := jsonServer(t, map[string]string{"DELETE /company/23": `{}`})
	client, rep, run := newHarness(t, WithBaseURL(server.URL))

	b := client.Spec().Delete("/company/23").ExpectStatus(200)
	_, err := b.Execute(context.Background())
	require.NoError(t, err)

	out, err := b.Execute(context.Background())
	assert.Nil(t, out)
	var reuseErr *ReuseError
	assert.True(t, errors.As(err, &reuseErr))

	require.NoError(t, rep.End())
	assert.Len(t, (*run).Entries, 1)
}

func TestExecute_AfterEnd(t *testing.T) {
	server := jsonServer(t, map[string]string{"GET /company": `[]`})
	client, rep, _ := newHarness(t, WithBaseURL(server.URL))
	require.NoError(t, rep.End())

	_, err := client.Spec().Get("/company").Execute(context.Background())
	var lifecycleErr *reporter.LifecycleError
	assert.True(t, errors.As(err, &lifecycleErr))
}

func TestExecute_SendsJSONBodyAndHeaders(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 51, "employees": [{"name": "Novo Funcionário", "email": "novo@acme.com"}]}`)
	}))
	defer server.Close()

	client, _, _ := newHarness(t,
		WithBaseURL(server.URL),
		WithDefaultHeader("Accept", "application/json"),
	)

	out, err := client.Spec().
		Post("/company/45/employees").
		QueryParam("page", "1").
		Header("X-Trace", "abc").
		JSONBody(map[string]any{"name": "Novo Funcionário", "position": "Desenvolvedor"}).
		ExpectStatus(201).
		ExpectHeader("content-type", "application/json").
		ExpectBodyLikeAt("employees.0", map[string]any{"email": matcher.AnyString()}).
		Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Passed(), out.Entry.FailureDetail)
	assert.Equal(t, server.URL+"/company/45/employees?page=1", out.Entry.URL)

	assert.Equal(t, "Novo Funcionário", gotBody["name"])
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
	assert.Equal(t, "abc", gotHeaders.Get("X-Trace"))

	id, ok := out.Response.Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(51), id.Int())
}

func TestExpectation_AbsentBody(t *testing.T) {
	resp := &model.CapturedResponse{StatusCode: 204}
	r := ExpectBodyPartialMatches(matcher.AnyArray()).Evaluate(resp)
	assert.False(t, r.Passed)
	assert.Equal(t, matcher.ReasonAbsent, r.Reason)
	assert.Equal(t, "absent", r.Actual)

	resp = &model.CapturedResponse{StatusCode: 200, Raw: []byte("<html>")}
	r = ExpectBodyDeepEquals(matcher.AnyObject()).Evaluate(resp)
	assert.Equal(t, "non-JSON body", r.Actual)
}

func TestExpectation_HeaderEquals(t *testing.T) {
	resp := &model.CapturedResponse{StatusCode: 200, Headers: map[string]string{"X-Request-Id": ""}}

	tests := []struct {
		name   string
		header string
		value  string
		passed bool
		reason matcher.Reason
		actual string
	}{
		{name: "empty value matches", header: "x-request-id", value: "", passed: true},
		{name: "empty value is not missing", header: "X-Request-Id", value: "abc", reason: matcher.ReasonValueMismatch, actual: `""`},
		{name: "absent header", header: "Location", value: "abc", reason: matcher.ReasonMissingKey, actual: "missing"},
		{name: "absent header never equals empty", header: "Location", value: "", reason: matcher.ReasonMissingKey, actual: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ExpectHeaderEquals(tt.header, tt.value).Evaluate(resp)
			assert.Equal(t, tt.passed, r.Passed)
			if !tt.passed {
				assert.Equal(t, tt.reason, r.Reason)
				assert.Equal(t, tt.actual, r.Actual)
				assert.Equal(t, tt.header, r.Path.String())
			}
		})
	}
}

func TestExpectation_BodyAtMatches(t *testing.T) {
	raw := []byte(`{"company": {"products": [{"name": "Novo Produto", "price": 99.99}]}}`)
	body, err := matcher.ParseJSON(raw)
	require.NoError(t, err)
	resp := &model.CapturedResponse{StatusCode: 200, Body: body, HasBody: true, Raw: raw}

	r := ExpectBodyAtMatches("company.products.0", matcher.Like(map[string]any{"price": "99.99"})).Evaluate(resp)
	assert.False(t, r.Passed)
	assert.Equal(t, "company.products.0.price", r.Path.String())

	r = ExpectBodyAtMatches("company.owner", matcher.AnyObject()).Evaluate(resp)
	assert.Equal(t, matcher.ReasonMissingKey, r.Reason)
}

func TestNew_UsesDefaultClient(t *testing.T) {
	b := New().Name("x")
	assert.Equal(t, model.DefaultTimeout, b.spec.Timeout)
	assert.Same(t, reporter.Default(), b.client.Reporter())
}
