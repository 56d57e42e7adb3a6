package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *reporter.Run {
	return &reporter.Run{
		ID:       uuid.MustParse("7f1c1f4e-64a3-4c57-9f7c-5b1b0a2d3e4f"),
		Started:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration: 120 * time.Millisecond,
		Entries: []reporter.Entry{
			{TestName: "lists companies", Passed: true, Category: reporter.CategoryPass, Duration: 20 * time.Millisecond, Method: "GET", URL: "http://api.test/company", StatusCode: 200},
			{TestName: "gets company", Category: reporter.CategoryMismatch, Duration: 40 * time.Millisecond, FailureDetail: "status 200: at <root>: expected status 200, got status 404 (value mismatch)", StatusCode: 404},
			{TestName: "slow endpoint", Category: reporter.CategoryError, ErrorKind: "timeout", Duration: 10 * time.Millisecond, FailureDetail: "GET http://api.test/slow: timed out after 10ms (limit 10ms)"},
		},
	}
}

func TestConsole_Flush(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsole(WithWriter(&buf), WithNoColor(true), WithTitle("Company API"))
	require.NoError(t, f.Flush(sampleRun()))

	out := buf.String()
	assert.Contains(t, out, "Running: Company API")
	assert.Contains(t, out, "✓ lists companies (20ms)")
	assert.Contains(t, out, "✗ gets company")
	assert.Contains(t, out, "x slow endpoint (timeout)")
	assert.Contains(t, out, "1 passed, 1 failed, 1 errored, 3 total")
	assert.Contains(t, out, "Latency: p50")
}

func TestJSONFormatter_Flush(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).Flush(sampleRun()))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "7f1c1f4e-64a3-4c57-9f7c-5b1b0a2d3e4f", out.RunID)
	assert.Equal(t, JSONSummary{Total: 3, Passed: 1, Failed: 1, Errored: 1}, out.Summary)
	require.Len(t, out.Tests, 3)
	assert.Equal(t, "timeout", out.Tests[2].ErrorKind)
	assert.Len(t, out.Tests[1].Failures, 1)
	require.NotNil(t, out.Latency)
}

func TestJUnitFormatter_Flush(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJUnitFormatter(JUnitWithWriter(&buf), JUnitWithSuiteName("Company API")).Flush(sampleRun()))

	var out JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out.Tests)
	assert.Equal(t, 1, out.Failures)
	assert.Equal(t, 1, out.Errors)

	require.Len(t, out.TestSuites, 1)
	cases := out.TestSuites[0].TestCases
	require.Len(t, cases, 3)
	assert.Nil(t, cases[0].Failure)
	assert.NotNil(t, cases[1].Failure)
	require.NotNil(t, cases[2].Error)
	assert.Equal(t, "timeout", cases[2].Error.Type)
}

func TestTAPFormatter_Flush(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTAPFormatter(TAPWithWriter(&buf)).Flush(sampleRun()))

	out := buf.String()
	assert.Contains(t, out, "TAP version 13\n1..3\n")
	assert.Contains(t, out, "ok 1 - lists companies\n")
	assert.Contains(t, out, "not ok 2 - gets company\n")
	assert.Contains(t, out, "not ok 3 - slow endpoint\n")
	assert.Contains(t, out, "severity: error")
}

func TestComputeLatency(t *testing.T) {
	lat := ComputeLatency(sampleRun())
	assert.Equal(t, int64(2), lat.Count, "errored entries are excluded")
	assert.InDelta(t, float64(20*time.Millisecond), float64(lat.Min), float64(time.Millisecond))
	assert.InDelta(t, float64(40*time.Millisecond), float64(lat.Max), float64(time.Millisecond))

	assert.Equal(t, Latency{}, ComputeLatency(&reporter.Run{}))
}

func TestNew(t *testing.T) {
	for _, format := range Formats {
		obs, err := New(format, Options{Writer: &bytes.Buffer{}, NoColor: true})
		require.NoError(t, err)
		assert.Equal(t, format, obs.Name())
	}

	_, err := New("html", Options{})
	assert.Error(t, err)
}
