package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{name: "simple", content: "API_TOKEN=secret123", expected: map[string]string{"API_TOKEN": "secret123"}},
		{name: "double quoted", content: `COMPANY="Acme Ltda"`, expected: map[string]string{"COMPANY": "Acme Ltda"}},
		{name: "single quoted", content: `COMPANY='Acme Ltda'`, expected: map[string]string{"COMPANY": "Acme Ltda"}},
		{name: "comments and blanks", content: "# base\n\nBASE_URL=http://localhost:8080\n", expected: map[string]string{"BASE_URL": "http://localhost:8080"}},
		{name: "whitespace trimmed", content: "  COMPANY_ID  =  23  ", expected: map[string]string{"COMPANY_ID": "23"}},
		{name: "equals in value", content: "DSN=postgres://u:p@db/app?ssl=true", expected: map[string]string{"DSN": "postgres://u:p@db/app?ssl=true"}},
		{name: "export prefix", content: "export COMPANY_ID=24", expected: map[string]string{"COMPANY_ID": "24"}},
		{name: "line without equals", content: "JUNK\nA=1", expected: map[string]string{"A": "1"}},
		{name: "empty", content: "", expected: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), ".env", tt.content)
			result, err := LoadDotEnv(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadDotEnv_NotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.Error(t, err)
}

func TestLoadSuiteEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "COMPANY_ID=23\nTOKEN=base")
	writeFile(t, dir, ".env.local", "TOKEN=local")

	vars, err := LoadSuiteEnv(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"COMPANY_ID": "23", "TOKEN": "local"}, vars)

	vars, err = LoadSuiteEnv(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestMergeVariables(t *testing.T) {
	merged := MergeVariables(map[string]string{"a": "1", "b": "1"}, nil, map[string]string{"b": "2"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, merged)
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv("HITCONTRACT_VAR_companyId", "23")
	vars := LoadSystemEnv("HITCONTRACT_VAR_")
	assert.Equal(t, "23", vars["companyId"])
}
