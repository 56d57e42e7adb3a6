package model

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
	"github.com/tidwall/gjson"
)

// CapturedResponse is what the executor observed for one request.
type CapturedResponse struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       matcher.Value
	HasBody    bool
	Raw        []byte
	Duration   time.Duration
}

// Header returns the value of the named header, ignoring case.
func (r *CapturedResponse) Header(key string) string {
	v, _ := r.LookupHeader(key)
	return v
}

// LookupHeader is like Header but also reports whether the header was sent,
// so an empty value can be told apart from an absent one.
func (r *CapturedResponse) LookupHeader(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Get reads a value from the JSON body by gjson path, e.g. "id" or
// "employees.0.email". The second result is false when nothing is there.
func (r *CapturedResponse) Get(path string) (gjson.Result, bool) {
	if !r.HasBody {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(r.Raw, path)
	return res, res.Exists()
}

// Lookup is Get returning a matcher value.
func (r *CapturedResponse) Lookup(path string) (matcher.Value, bool) {
	res, ok := r.Get(path)
	if !ok {
		return matcher.Value{}, false
	}
	v, err := matcher.ParseJSON([]byte(res.Raw))
	if err != nil {
		return matcher.Value{}, false
	}
	return v, true
}

func (r *CapturedResponse) BodyString() string {
	return string(r.Raw)
}

func (r *CapturedResponse) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
