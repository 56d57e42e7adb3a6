package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/parser"
	"github.com/abdul-hamid-achik/hitcontract/packages/executor"
	"github.com/abdul-hamid-achik/hitcontract/packages/history"
	"github.com/abdul-hamid-achik/hitcontract/packages/logging"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExitCode(t *testing.T) {
	pass := reporter.Entry{TestName: "a", Passed: true, Category: reporter.CategoryPass}
	mismatch := reporter.Entry{TestName: "b", Category: reporter.CategoryMismatch}
	timeout := reporter.Entry{TestName: "c", Category: reporter.CategoryError, ErrorKind: executor.KindTimeout}
	transport := reporter.Entry{TestName: "d", Category: reporter.CategoryError, ErrorKind: executor.KindTransport}
	invalid := reporter.Entry{TestName: "e", Category: reporter.CategoryError, ErrorKind: executor.KindInvalidSpec}

	tests := []struct {
		name    string
		run     *reporter.Run
		runErrs []error
		want    int
	}{
		{name: "no run", want: ExitSuccess},
		{name: "all passed", run: &reporter.Run{Entries: []reporter.Entry{pass}}, want: ExitSuccess},
		{name: "mismatch", run: &reporter.Run{Entries: []reporter.Entry{pass, mismatch}}, want: ExitTestFailure},
		{name: "network only", run: &reporter.Run{Entries: []reporter.Entry{pass, timeout, transport}}, want: ExitNetworkError},
		{name: "network and mismatch", run: &reporter.Run{Entries: []reporter.Entry{timeout, mismatch}}, want: ExitTestFailure},
		{name: "invalid spec", run: &reporter.Run{Entries: []reporter.Entry{invalid}}, want: ExitTestFailure},
		{name: "run error", run: &reporter.Run{Entries: []reporter.Entry{pass}}, runErrs: []error{errors.New("before command failed")}, want: ExitTestFailure},
		{name: "parse error", runErrs: []error{fmt.Errorf("parsing suite: %w", &parser.ParseError{File: "a.yaml", Line: 3, Message: "bad"})}, want: ExitParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.run, tt.runErrs))
		})
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "company.yaml"), "cases: []")
	writeFile(t, filepath.Join(dir, "nested", "products.yml"), "cases: []")
	writeFile(t, filepath.Join(dir, ".hitcontract.yaml"), "timeout: 1000")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a suite")

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "company.yaml"),
		filepath.Join(dir, "nested", "products.yml"),
	}, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"companyId=23", "token=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"companyId": "23", "token": "a=b", "empty": ""}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"console", "junit"}, splitList(" Console, ,junit "))
	assert.Nil(t, splitList(""))
}

func newTestSession(t *testing.T, cfg *config.Config, files ...string) (*session, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	return &session{
		cfg:       cfg,
		files:     files,
		suiteName: "test",
		log:       logging.Nop(),
		exec:      executor.New(),
		stdout:    &stdout,
		stderr:    &stderr,
	}, &stdout
}

const companySuite = `
name: Company API
cases:
  - name: lists companies
    request:
      url: /company
    expect:
      status: 200
      bodyLike: [{id: $number, name: $string}]
`

func TestSession_Run_Passes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 23, "name": "Acme"}]`))
	}))
	defer server.Close()

	dir := t.TempDir()
	suite := filepath.Join(dir, "company.yaml")
	writeFile(t, suite, companySuite)

	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Reporters = []string{"json"}
	cfg.HistoryDB = filepath.Join(dir, "runs.db")

	s, stdout := newTestSession(t, cfg, suite)
	s.metricsFile = filepath.Join(dir, "hitcontract.prom")
	code, err := s.run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	prom, err := os.ReadFile(s.metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `hitcontract_test_passed{suite="test",test="lists companies"} 1`)

	assert.Equal(t, int64(1), gjson.Get(stdout.String(), "summary.passed").Int())
	assert.Equal(t, "lists companies", gjson.Get(stdout.String(), "tests.0.name").String())

	store, err := history.Open(cfg.HistoryDB)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Passed)
}

func TestSession_Run_Mismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	suite := filepath.Join(t.TempDir(), "company.yaml")
	writeFile(t, suite, companySuite)

	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Reporters = []string{"tap"}

	s, stdout := newTestSession(t, cfg, suite)
	code, err := s.run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ExitTestFailure, code)
	assert.Contains(t, stdout.String(), "not ok 1")
}

func TestSession_Run_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	suite := filepath.Join(t.TempDir(), "company.yaml")
	writeFile(t, suite, companySuite)

	cfg := config.DefaultConfig()
	cfg.BaseURL = url
	cfg.Reporters = []string{"json"}

	s, _ := newTestSession(t, cfg, suite)
	code, err := s.run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ExitNetworkError, code)
}

func TestSession_AddObservers_OneFilePerFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reporters = []string{"json", "junit"}
	cfg.OutputFile = filepath.Join(t.TempDir(), "report.out")

	s, _ := newTestSession(t, cfg)
	_, err := s.run(t.Context())
	assert.Error(t, err)
}
