package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// TAPFormatter formats runs in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer io.Writer
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) Name() string { return "tap" }

func (f *TAPFormatter) Flush(run *reporter.Run) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(run.Entries))

	for i, e := range run.Entries {
		n := i + 1
		switch e.Category {
		case reporter.CategoryPass:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, e.TestName)
		case reporter.CategoryError:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, e.TestName)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(e.FailureDetail))
			fmt.Fprintf(f.writer, "  severity: error\n")
			fmt.Fprintf(f.writer, "  kind: %s\n", e.ErrorKind)
			fmt.Fprintf(f.writer, "  ...\n")
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, e.TestName)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  failures:\n")
			for _, line := range strings.Split(e.FailureDetail, "\n") {
				fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(line))
			}
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	_, err := fmt.Fprintln(f.writer)
	return err
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
