package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 30000, c.Timeout)
	assert.Equal(t, []string{"console"}, c.Reporters)
	assert.Equal(t, 1, c.Concurrency)
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.False(t, c.GetVerbose())
	assert.True(t, c.IsDefault())
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	src := `
baseUrl: https://api.example.com
timeout: 5000
headers:
  Accept: application/json
reporters: [junit]
concurrency: 4
rate: 2.5
noColor: true
historyDb: sqlite://runs.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitcontract.yaml"), []byte(src), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.BaseURL)
	assert.Equal(t, 5000, c.Timeout)
	assert.Equal(t, "application/json", c.Headers["Accept"])
	assert.Equal(t, []string{"junit"}, c.Reporters)
	assert.Equal(t, 4, c.Concurrency)
	assert.Equal(t, 2.5, c.Rate)
	assert.True(t, c.GetNoColor())
	assert.Equal(t, "sqlite://runs.db", c.HistoryDB)
	// unset keys keep defaults
	assert.Equal(t, "failure", c.NotifyOn)
	assert.False(t, c.IsDefault())
}

func TestFindAndLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitcontract.json"), []byte(`{"baseUrl": "http://localhost:3000", "timeout": 1000}`), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.BaseURL)
	assert.Equal(t, 1000, c.Timeout)
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	c, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, c.IsDefault())
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: -5\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("timeout: [\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"Accept": "application/json"}

	merged := base.Merge(&Config{
		BaseURL:     "https://staging.example.com",
		Timeout:     100,
		Headers:     map[string]string{"X-Env": "staging"},
		Concurrency: 8,
		Verbose:     BoolPtr(true),
	})

	assert.Equal(t, "https://staging.example.com", merged.BaseURL)
	assert.Equal(t, 100, merged.Timeout)
	assert.Equal(t, 8, merged.Concurrency)
	assert.True(t, merged.GetVerbose())
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Env": "staging"}, merged.Headers)

	// the receiver is untouched
	assert.Len(t, base.Headers, 1)
	assert.Equal(t, 30000, base.Timeout)
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitcontract.yaml")
	c := DefaultConfig()
	c.BaseURL = "https://api.example.com"
	c.NoColor = BoolPtr(true)
	require.NoError(t, c.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
