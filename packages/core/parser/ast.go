package parser

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitcontract/packages/auth"
	"github.com/abdul-hamid-achik/hitcontract/packages/capture"
)

type Suite struct {
	Path        string
	Name        string
	Description string
	BaseURL     string
	// Timeout in milliseconds; zero means the runner default.
	Timeout   int
	Headers   map[string]string
	Variables map[string]string
	Auth      *auth.Config
	WaitFor   *WaitFor
	// Before and After are shell commands run around the cases. A
	// leading "-" ignores the command's failure.
	Before []string
	After  []string
	Cases  []*Case
}

// WaitFor polls URL until it answers with Status before any case runs.
type WaitFor struct {
	URL string
	// Status defaults to 200.
	Status int
	// Timeout and Interval in milliseconds.
	Timeout  int
	Interval int
}

// Case returns the case with the given name, or nil.
func (s *Suite) Case(name string) *Case {
	for _, c := range s.Cases {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasDependencies reports whether any case depends on another.
func (s *Suite) HasDependencies() bool {
	for _, c := range s.Cases {
		if len(c.DependsOn) > 0 {
			return true
		}
	}
	return false
}

type Case struct {
	Name        string
	Description string
	Tags        []string
	// Skip holds the reason the case is skipped; empty runs it.
	Skip      string
	Only      bool
	DependsOn []string
	Auth      *auth.Config
	Request   Request
	Expect    Expect
	Captures  []*capture.Capture
	Line      int
}

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	// Body is sent as is. JSON marks a body written as a YAML value under
	// "json"; it gets a JSON content type unless one is set.
	Body string
	JSON bool
	// Timeout in milliseconds; zero means the suite default.
	Timeout int
}

// Expect lists the checks for a case. Patterns are JSON text; an empty
// string means the check is not set.
type Expect struct {
	Status     int
	BodyLike   string
	BodyEquals string
	Headers    map[string]string
	BodyLikeAt []PathPattern
}

// PathPattern is a partial pattern applied at a gjson path of the body.
type PathPattern struct {
	Path    string
	Pattern string
}

// Count returns the number of checks.
func (e *Expect) Count() int {
	n := len(e.Headers) + len(e.BodyLikeAt)
	if e.Status != 0 {
		n++
	}
	if e.BodyLike != "" {
		n++
	}
	if e.BodyEquals != "" {
		n++
	}
	return n
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}
