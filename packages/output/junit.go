package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one run
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	ID        string          `xml:"id,attr,omitempty"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure represents a mismatched expectation
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a request that never produced a response
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitFormatter formats runs as JUnit XML
type JUnitFormatter struct {
	writer    io.Writer
	suiteName string
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:    os.Stdout,
		suiteName: "hitcontract",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func JUnitWithSuiteName(name string) JUnitOption {
	return func(f *JUnitFormatter) {
		f.suiteName = name
	}
}

func (f *JUnitFormatter) Name() string { return "junit" }

func (f *JUnitFormatter) Flush(run *reporter.Run) error {
	s := run.Summary()
	suite := JUnitTestSuite{
		Name:      f.suiteName,
		ID:        run.ID.String(),
		Tests:     s.Total,
		Failures:  s.Mismatch,
		Errors:    s.Errored,
		Time:      run.Duration.Seconds(),
		Timestamp: run.Started.Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(run.Entries)),
	}

	for _, e := range run.Entries {
		tc := JUnitTestCase{
			Name:      e.TestName,
			ClassName: f.suiteName,
			Time:      e.Duration.Seconds(),
		}

		switch e.Category {
		case reporter.CategoryError:
			tc.Error = &JUnitError{
				Message: e.FailureDetail,
				Type:    e.ErrorKind,
			}
		case reporter.CategoryMismatch:
			tc.Failure = &JUnitFailure{
				Message: "Expectation failed",
				Type:    "MismatchError",
				Content: e.FailureDetail,
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	suites := JUnitTestSuites{
		Name:       f.suiteName,
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Time:       suite.Time,
		Timestamp:  suite.Timestamp,
		TestSuites: []JUnitTestSuite{suite},
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
