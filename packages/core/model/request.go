package model

import (
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/http"
)

// DefaultTimeout is applied to requests that never set one.
const DefaultTimeout = 30 * time.Second

// Method is an HTTP verb accepted by the builder.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// ParseMethod normalizes verb and checks that it is supported.
func ParseMethod(verb string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(verb)))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return m, nil
	}
	return "", &InvalidSpecError{Field: "method", Reason: fmt.Sprintf("unsupported method %q", verb)}
}

// RequestSpec describes one HTTP call. Body holds already encoded bytes;
// a nil Body sends no payload.
type RequestSpec struct {
	Name    string
	Method  Method
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
	Timeout time.Duration
}

// Validate checks the invariants the executor relies on.
func (s *RequestSpec) Validate() error {
	if s.Method == "" {
		return &InvalidSpecError{Field: "method", Reason: "method is required"}
	}
	if _, err := ParseMethod(string(s.Method)); err != nil {
		return err
	}
	if s.URL == "" {
		return &InvalidSpecError{Field: "url", Reason: "url is required"}
	}
	if err := http.ValidateURL(s.URL); err != nil {
		return &InvalidSpecError{Field: "url", Reason: err.Error()}
	}
	if s.Timeout <= 0 {
		return &InvalidSpecError{Field: "timeout", Reason: fmt.Sprintf("timeout must be positive, got %s", s.Timeout)}
	}
	return nil
}

// FullURL returns the URL with Query merged into its query string.
func (s *RequestSpec) FullURL() string {
	if len(s.Query) == 0 {
		return s.URL
	}
	u, err := neturl.Parse(s.URL)
	if err != nil {
		return s.URL
	}
	q := u.Query()
	for k, v := range s.Query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Clone returns a deep copy so the executor never shares maps with a builder.
func (s *RequestSpec) Clone() RequestSpec {
	out := *s
	out.Headers = cloneMap(s.Headers)
	out.Query = cloneMap(s.Query)
	if s.Body != nil {
		out.Body = append([]byte(nil), s.Body...)
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// JoinURL resolves path against base. Absolute paths are returned as is.
func JoinURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// InvalidSpecError reports a request that cannot be sent as described.
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid request spec: %s: %s", e.Field, e.Reason)
}
