package capture

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

func (s Source) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceStatus:
		return "status"
	case SourceDuration:
		return "duration"
	default:
		return "body"
	}
}

// Capture names one value to extract.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse builds a Capture from a source expression such as "id",
// "body.employees.0.email", "header:Location" or "status".
func Parse(name, expr string) (*Capture, error) {
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if name == "" {
		return nil, fmt.Errorf("capture name is empty")
	}
	if expr == "" {
		return nil, fmt.Errorf("capture %q: source is empty", name)
	}

	c := &Capture{Name: name}
	switch {
	case expr == "status":
		c.Source = SourceStatus
	case expr == "duration":
		c.Source = SourceDuration
	case strings.HasPrefix(expr, "header:"), strings.HasPrefix(expr, "header."):
		c.Source = SourceHeader
		c.Path = strings.TrimSpace(expr[len("header:"):])
		if c.Path == "" {
			return nil, fmt.Errorf("capture %q: header name is empty", name)
		}
	case expr == "body":
		c.Source = SourceBody
	default:
		c.Source = SourceBody
		c.Path = strings.TrimPrefix(expr, "body.")
	}
	return c, nil
}

// MustParse is Parse for static captures in tests and examples.
func MustParse(name, expr string) *Capture {
	c, err := Parse(name, expr)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Capture) String() string {
	switch c.Source {
	case SourceHeader:
		return "header:" + c.Path
	case SourceBody:
		if c.Path == "" {
			return "body"
		}
		return "body." + c.Path
	default:
		return c.Source.String()
	}
}

// Extract reads the capture from resp. The boolean is false when the value
// is not present.
func (c *Capture) Extract(resp *model.CapturedResponse) (string, bool) {
	switch c.Source {
	case SourceStatus:
		return strconv.Itoa(resp.StatusCode), true
	case SourceDuration:
		return strconv.FormatInt(resp.DurationMs(), 10), true
	case SourceHeader:
		return resp.LookupHeader(c.Path)
	default:
		if c.Path == "" {
			return resp.BodyString(), len(resp.Raw) > 0
		}
		res, ok := resp.Get(c.Path)
		if !ok {
			return "", false
		}
		if res.IsObject() || res.IsArray() {
			return res.Raw, true
		}
		return res.String(), true
	}
}

// MissingError lists captures that found no value.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("capture failed: no value for %s", strings.Join(e.Names, ", "))
}

// ExtractAll extracts every capture. Values that were found are returned
// even when others are missing; the missing ones are reported in a
// *MissingError.
func ExtractAll(resp *model.CapturedResponse, captures []*Capture) (map[string]string, error) {
	results := make(map[string]string, len(captures))
	var missing []string

	for _, c := range captures {
		if value, ok := c.Extract(resp); ok {
			results[c.Name] = value
		} else {
			missing = append(missing, c.Name)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return results, &MissingError{Names: missing}
	}
	return results, nil
}
