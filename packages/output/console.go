package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/fatih/color"
)

type Console struct {
	writer  io.Writer
	verbose bool
	noColor bool
	title   string
}

type ConsoleOption func(*Console)

func NewConsole(opts ...ConsoleOption) *Console {
	f := &Console{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *Console) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *Console) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *Console) {
		f.noColor = nc
	}
}

// WithTitle prints a heading before the results, usually the suite name.
func WithTitle(title string) ConsoleOption {
	return func(f *Console) {
		f.title = title
	}
}

func (f *Console) Name() string { return "console" }

func (f *Console) Flush(run *reporter.Run) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if f.title != "" {
		fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+f.title))
	}
	fmt.Fprintf(f.writer, "\n")

	for _, e := range run.Entries {
		switch e.Category {
		case reporter.CategoryError:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), e.TestName, red(fmt.Sprintf("(%s)", e.ErrorKind)))
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), e.FailureDetail)
			continue
		case reporter.CategoryPass:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), e.TestName, cyan(fmt.Sprintf("(%dms)", e.DurationMs())))
		default:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), e.TestName, cyan(fmt.Sprintf("(%dms)", e.DurationMs())))
			for _, line := range strings.Split(e.FailureDetail, "\n") {
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), line)
			}
		}

		if f.verbose {
			fmt.Fprintf(f.writer, "    %s %s -> %d\n", e.Method, e.URL, e.StatusCode)
		}
	}

	s := run.Summary()
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if s.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", s.Passed)))
	}
	if s.Mismatch > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Mismatch)))
	}
	if s.Errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d errored", s.Errored)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", run.Duration.Milliseconds())

	if lat := ComputeLatency(run); lat.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %dms, p95 %dms, p99 %dms\n",
			lat.P50.Milliseconds(), lat.P95.Milliseconds(), lat.P99.Milliseconds())
	}
	fmt.Fprintf(f.writer, "\n")
	return nil
}

// FormatError prints a failure that prevented a run from starting.
func (f *Console) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *Console) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitcontract"), version)
}
