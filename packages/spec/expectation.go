package spec

import (
	"fmt"
	"strconv"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
	"github.com/abdul-hamid-achik/hitcontract/packages/matcher"
)

// ExpectationKind tags the variants of Expectation.
type ExpectationKind int

const (
	StatusEquals ExpectationKind = iota
	BodyDeepEquals
	BodyPartialMatches
	HeaderEquals
	BodyAtMatches
)

func (k ExpectationKind) String() string {
	switch k {
	case StatusEquals:
		return "status"
	case BodyDeepEquals:
		return "body equals"
	case BodyPartialMatches:
		return "body like"
	case HeaderEquals:
		return "header"
	case BodyAtMatches:
		return "body like at"
	}
	return "unknown"
}

// Expectation is a check run against a captured response. Only the fields
// of its Kind are set.
type Expectation struct {
	Kind    ExpectationKind
	Status  int
	Pattern matcher.Pattern
	Header  string
	Value   string
	Path    string
}

func ExpectStatusEquals(code int) Expectation {
	return Expectation{Kind: StatusEquals, Status: code}
}

func ExpectBodyDeepEquals(p matcher.Pattern) Expectation {
	return Expectation{Kind: BodyDeepEquals, Pattern: p}
}

func ExpectBodyPartialMatches(p matcher.Pattern) Expectation {
	return Expectation{Kind: BodyPartialMatches, Pattern: p}
}

func ExpectHeaderEquals(name, value string) Expectation {
	return Expectation{Kind: HeaderEquals, Header: name, Value: value}
}

// ExpectBodyAtMatches partially matches the value found at a gjson path.
func ExpectBodyAtMatches(path string, p matcher.Pattern) Expectation {
	return Expectation{Kind: BodyAtMatches, Path: path, Pattern: p}
}

func (e Expectation) String() string {
	switch e.Kind {
	case StatusEquals:
		return "status " + strconv.Itoa(e.Status)
	case BodyDeepEquals, BodyPartialMatches:
		return e.Kind.String() + " " + e.Pattern.String()
	case HeaderEquals:
		return fmt.Sprintf("header %s: %s", e.Header, e.Value)
	case BodyAtMatches:
		return fmt.Sprintf("body like at %s %s", e.Path, e.Pattern.String())
	}
	return e.Kind.String()
}

// Evaluate checks resp. It never fails for a mismatch; the result says so.
func (e Expectation) Evaluate(resp *model.CapturedResponse) matcher.Result {
	switch e.Kind {
	case StatusEquals:
		if resp.StatusCode == e.Status {
			return matcher.Result{Passed: true, Path: matcher.Path{}}
		}
		return matcher.Result{
			Path:     matcher.Path{},
			Expected: "status " + strconv.Itoa(e.Status),
			Actual:   "status " + strconv.Itoa(resp.StatusCode),
			Reason:   matcher.ReasonValueMismatch,
		}
	case HeaderEquals:
		got, ok := resp.LookupHeader(e.Header)
		if ok && got == e.Value {
			return matcher.Result{Passed: true, Path: matcher.Path{}}
		}
		actual := strconv.Quote(got)
		reason := matcher.ReasonValueMismatch
		if !ok {
			actual = "missing"
			reason = matcher.ReasonMissingKey
		}
		return matcher.Result{
			Path:     matcher.Path{{Key: e.Header}},
			Expected: strconv.Quote(e.Value),
			Actual:   actual,
			Reason:   reason,
		}
	case BodyDeepEquals, BodyPartialMatches:
		if !resp.HasBody {
			return matcher.Absent(e.Pattern, absentBody(resp))
		}
		if e.Kind == BodyDeepEquals {
			return matcher.MatchDeep(resp.Body, e.Pattern)
		}
		return matcher.MatchPartial(resp.Body, e.Pattern)
	case BodyAtMatches:
		if !resp.HasBody {
			return matcher.Absent(e.Pattern, absentBody(resp))
		}
		at := matcher.Path{{Key: e.Path}}
		v, ok := resp.Lookup(e.Path)
		if !ok {
			return matcher.Result{
				Path:     at,
				Expected: e.Pattern.Describe(),
				Actual:   "missing",
				Reason:   matcher.ReasonMissingKey,
			}
		}
		r := matcher.MatchPartial(v, e.Pattern)
		if !r.Passed {
			r.Path = append(at, r.Path...)
		}
		return r
	}
	return matcher.Result{Path: matcher.Path{}, Expected: e.Kind.String(), Actual: "unsupported expectation"}
}

func absentBody(resp *model.CapturedResponse) string {
	if len(resp.Raw) == 0 {
		return "absent"
	}
	return "non-JSON body"
}

// ExpectationResult pairs an expectation with its evaluation.
type ExpectationResult struct {
	Expectation Expectation
	Result      matcher.Result
}

func (r ExpectationResult) Passed() bool {
	return r.Result.Passed
}

func (r ExpectationResult) String() string {
	if r.Result.Passed {
		return r.Expectation.String() + ": ok"
	}
	return r.Expectation.String() + ": " + r.Result.String()
}
