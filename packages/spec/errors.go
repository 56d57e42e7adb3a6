package spec

import "fmt"

// ReuseError is returned when Execute is called on a builder that already ran.
type ReuseError struct {
	Name string
}

func (e *ReuseError) Error() string {
	if e.Name == "" {
		return "spec: builder already executed"
	}
	return fmt.Sprintf("spec: builder %q already executed", e.Name)
}
