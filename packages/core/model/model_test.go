package model

import (
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" patch ")
	require.NoError(t, err)
	assert.Equal(t, MethodPatch, m)

	_, err = ParseMethod("TRACE")
	var specErr *InvalidSpecError
	require.True(t, errors.As(err, &specErr))
	assert.Equal(t, "method", specErr.Field)
}

func TestRequestSpec_Validate(t *testing.T) {
	valid := RequestSpec{Method: MethodGet, URL: "http://api.test/company", Timeout: time.Second}

	tests := []struct {
		name  string
		edit  func(*RequestSpec)
		field string
	}{
		{name: "valid"},
		{name: "no method", edit: func(s *RequestSpec) { s.Method = "" }, field: "method"},
		{name: "bad method", edit: func(s *RequestSpec) { s.Method = "HEAD" }, field: "method"},
		{name: "no url", edit: func(s *RequestSpec) { s.URL = "" }, field: "url"},
		{name: "relative url", edit: func(s *RequestSpec) { s.URL = "/company" }, field: "url"},
		{name: "ftp url", edit: func(s *RequestSpec) { s.URL = "ftp://api.test/" }, field: "url"},
		{name: "zero timeout", edit: func(s *RequestSpec) { s.Timeout = 0 }, field: "timeout"},
		{name: "negative timeout", edit: func(s *RequestSpec) { s.Timeout = -time.Second }, field: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid.Clone()
			if tt.edit != nil {
				tt.edit(&spec)
			}
			err := spec.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var specErr *InvalidSpecError
			require.True(t, errors.As(err, &specErr), "got %v", err)
			assert.Equal(t, tt.field, specErr.Field)
		})
	}
}

func TestRequestSpec_FullURL(t *testing.T) {
	spec := RequestSpec{URL: "http://api.test/company?sort=name"}
	assert.Equal(t, "http://api.test/company?sort=name", spec.FullURL())

	spec.Query = map[string]string{"page": "2", "sort": "id"}
	assert.Equal(t, "http://api.test/company?page=2&sort=id", spec.FullURL())
}

func TestRequestSpec_CloneIsDeep(t *testing.T) {
	spec := RequestSpec{
		Headers: map[string]string{"Accept": "application/json"},
		Query:   map[string]string{"page": "1"},
		Body:    []byte(`{}`),
	}
	c := spec.Clone()
	c.Headers["Accept"] = "text/plain"
	c.Query["page"] = "2"
	c.Body[0] = '['

	assert.Equal(t, "application/json", spec.Headers["Accept"])
	assert.Equal(t, "1", spec.Query["page"])
	assert.Equal(t, `{}`, string(spec.Body))

	var empty RequestSpec
	assert.Nil(t, empty.Clone().Headers)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api.test", "/company", "http://api.test/company"},
		{"http://api.test/", "company", "http://api.test/company"},
		{"http://api.test/v1/", "/company/23", "http://api.test/v1/company/23"},
		{"http://api.test", "https://other.test/x", "https://other.test/x"},
		{"", "/company", "/company"},
		{"http://api.test", "", "http://api.test"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.path), "%s + %s", tt.base, tt.path)
	}
}

func TestCapturedResponse(t *testing.T) {
	raw := []byte(`{"id": 23, "employees": [{"name": "Ana"}]}`)
	body, err := matcher.ParseJSON(raw)
	require.NoError(t, err)

	resp := &CapturedResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		HasBody:    true,
		Raw:        raw,
		Duration:   1500 * time.Microsecond,
	}

	assert.Equal(t, "application/json", resp.Header("content-type"))
	assert.Equal(t, "", resp.Header("Location"))
	_, ok := resp.LookupHeader("Location")
	assert.False(t, ok)
	ct, ok := resp.LookupHeader("CONTENT-TYPE")
	assert.True(t, ok)
	assert.Equal(t, "application/json", ct)
	assert.Equal(t, int64(1), resp.DurationMs())
	assert.Equal(t, string(raw), resp.BodyString())

	name, ok := resp.Get("employees.0.name")
	require.True(t, ok)
	assert.Equal(t, "Ana", name.String())

	_, ok = resp.Get("employees.1")
	assert.False(t, ok)

	v, ok := resp.Lookup("employees.0")
	require.True(t, ok)
	assert.True(t, matcher.MatchPartial(v, matcher.Object(matcher.Prop("name", matcher.AnyString()))).Passed)

	empty := &CapturedResponse{StatusCode: 204}
	_, ok = empty.Lookup("id")
	assert.False(t, ok)
}
