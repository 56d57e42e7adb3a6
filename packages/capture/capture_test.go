package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(t *testing.T, status int, body string) *model.CapturedResponse {
	t.Helper()
	resp := &model.CapturedResponse{
		StatusCode: status,
		Headers:    map[string]string{"Location": "/company/23/employees/51"},
		Raw:        []byte(body),
		Duration:   42 * time.Millisecond,
	}
	if body != "" {
		v, err := matcher.ParseJSON([]byte(body))
		require.NoError(t, err)
		resp.Body = v
		resp.HasBody = true
	}
	return resp
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr   string
		source Source
		path   string
	}{
		{"status", SourceStatus, ""},
		{"duration", SourceDuration, ""},
		{"header:Location", SourceHeader, "Location"},
		{"header.Location", SourceHeader, "Location"},
		{"body", SourceBody, ""},
		{"body.id", SourceBody, "id"},
		{"employees.0.email", SourceBody, "employees.0.email"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := Parse("v", tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.source, c.Source)
			assert.Equal(t, tt.path, c.Path)
		})
	}

	_, err := Parse("", "id")
	assert.Error(t, err)
	_, err = Parse("id", " ")
	assert.Error(t, err)
	_, err = Parse("loc", "header:")
	assert.Error(t, err)
}

func TestCapture_String(t *testing.T) {
	assert.Equal(t, "body.id", MustParse("id", "id").String())
	assert.Equal(t, "header:Location", MustParse("loc", "header.Location").String())
	assert.Equal(t, "status", MustParse("code", "status").String())
}

func TestExtractAll(t *testing.T) {
	resp := response(t, 201, `{"id": 51, "name": "Novo Funcionário", "active": true, "company": {"id": 23}, "tags": ["a"]}`)

	captures := []*Capture{
		MustParse("employeeId", "body.id"),
		MustParse("name", "name"),
		MustParse("active", "active"),
		MustParse("company", "company"),
		MustParse("tags", "tags"),
		MustParse("location", "header:location"),
		MustParse("code", "status"),
		MustParse("ms", "duration"),
	}

	values, err := ExtractAll(resp, captures)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"employeeId": "51",
		"name":       "Novo Funcionário",
		"active":     "true",
		"company":    `{"id": 23}`,
		"tags":       `["a"]`,
		"location":   "/company/23/employees/51",
		"code":       "201",
		"ms":         "42",
	}, values)
}

func TestExtractAll_Missing(t *testing.T) {
	resp := response(t, 200, `{"id": 23}`)

	values, err := ExtractAll(resp, []*Capture{
		MustParse("id", "id"),
		MustParse("token", "auth.token"),
		MustParse("etag", "header:ETag"),
	})

	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"etag", "token"}, missing.Names)
	assert.Equal(t, map[string]string{"id": "23"}, values)
}

func TestExtract_NoBody(t *testing.T) {
	resp := response(t, 204, "")
	_, ok := MustParse("id", "id").Extract(resp)
	assert.False(t, ok)
	_, ok = MustParse("raw", "body").Extract(resp)
	assert.False(t, ok)
}

func TestExtract_EmptyHeaderIsPresent(t *testing.T) {
	resp := response(t, 200, "")
	resp.Headers = map[string]string{"X-Cursor": ""}

	v, ok := MustParse("cursor", "header:x-cursor").Extract(resp)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = MustParse("etag", "header:ETag").Extract(resp)
	assert.False(t, ok)
}
