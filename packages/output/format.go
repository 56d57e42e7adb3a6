package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap"}

// Options carries settings shared by every format.
type Options struct {
	Writer    io.Writer
	Verbose   bool
	NoColor   bool
	SuiteName string
}

// New returns the observer for format.
func New(format string, opts Options) (reporter.Observer, error) {
	switch format {
	case "", "console":
		return NewConsole(
			WithWriter(opts.Writer),
			WithVerbose(opts.Verbose),
			WithNoColor(opts.NoColor),
			WithTitle(opts.SuiteName),
		), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(opts.Writer)), nil
	case "junit":
		f := NewJUnitFormatter(JUnitWithWriter(opts.Writer))
		if opts.SuiteName != "" {
			f.suiteName = opts.SuiteName
		}
		return f, nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(opts.Writer)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (supported: console, json, junit, tap)", format)
}
