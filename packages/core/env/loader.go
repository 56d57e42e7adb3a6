package env

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DotEnvFiles are read from a suite's directory in this order; later files
// override earlier ones.
var DotEnvFiles = []string{".env", ".env.local"}

// LoadSuiteEnv reads the dotenv files present in dir. Missing files are
// skipped.
func LoadSuiteEnv(dir string) (map[string]string, error) {
	result := make(map[string]string)
	for _, name := range DotEnvFiles {
		vars, err := LoadDotEnv(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for k, v := range vars {
			result[k] = v
		}
	}
	return result, nil
}

// MergeVariables merges sources left to right.
func MergeVariables(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns the OS environment variables whose names start with
// prefix, keyed by the remainder of the name.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
