package matcher

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path locates a node inside a JSON document. The empty path is the root.
type Path []Segment

func (p Path) key(k string) Path {
	return append(p[:len(p):len(p)], Segment{Key: k})
}

func (p Path) index(i int) Path {
	return append(p[:len(p):len(p)], Segment{Index: i, IsIndex: true})
}

// String renders the path as "items[0].name"; the root renders as "".
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// Reason tells why a match failed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTypeMismatch
	ReasonValueMismatch
	ReasonMissingKey
	ReasonUnexpectedKey
	ReasonLengthMismatch
	ReasonNoMatch
	ReasonAbsent
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTypeMismatch:
		return "type mismatch"
	case ReasonValueMismatch:
		return "value mismatch"
	case ReasonMissingKey:
		return "missing key"
	case ReasonUnexpectedKey:
		return "unexpected key"
	case ReasonLengthMismatch:
		return "length mismatch"
	case ReasonNoMatch:
		return "no matching element"
	case ReasonAbsent:
		return "absent"
	}
	return "unknown"
}

// Result is the outcome of one comparison. For failures Path points at the
// first divergence and Expected/Actual describe both sides there.
type Result struct {
	Passed   bool
	Path     Path
	Expected string
	Actual   string
	Reason   Reason
}

// String summarizes the result for reports.
func (r Result) String() string {
	if r.Passed {
		return "matched"
	}
	where := r.Path.String()
	if where == "" {
		where = "<root>"
	}
	return fmt.Sprintf("at %s: expected %s, got %s (%s)", where, r.Expected, r.Actual, r.Reason)
}

// Absent is the result of matching a pattern against a body that does not
// exist or is not JSON.
func Absent(p Pattern, actual string) Result {
	return Result{
		Path:     Path{},
		Expected: p.Describe(),
		Actual:   actual,
		Reason:   ReasonAbsent,
	}
}

type mode int

const (
	modeDeep mode = iota
	modePartial
)

var passed = Result{Passed: true, Path: Path{}}

// MatchDeep compares actual against p requiring objects to carry exactly the
// pattern's keys and arrays to match element by element.
func MatchDeep(actual Value, p Pattern) Result {
	return match(actual, p, modeDeep, Path{})
}

// MatchPartial compares actual against p ignoring object keys the pattern
// does not name. Array elements are paired one-to-one in any order.
func MatchPartial(actual Value, p Pattern) Result {
	return match(actual, p, modePartial, Path{})
}

func match(actual Value, p Pattern, m mode, path Path) Result {
	switch p.kind {
	case patternPlaceholder:
		if actual.kind != p.want {
			return typeMismatch(path, p.want, actual)
		}
		return passed
	case patternObject:
		if actual.kind != KindObject {
			return typeMismatch(path, KindObject, actual)
		}
		return matchObject(actual, p, m, path)
	case patternArray:
		if actual.kind != KindArray {
			return typeMismatch(path, KindArray, actual)
		}
		if m == modeDeep {
			return matchOrdered(actual.items, p.items, path)
		}
		return matchUnordered(actual.items, p.items, path)
	}

	if actual.kind != p.literal.kind {
		return typeMismatch(path, p.literal.kind, actual)
	}
	if !actual.Equal(p.literal) {
		return Result{
			Path:     path,
			Expected: p.literal.String(),
			Actual:   actual.String(),
			Reason:   ReasonValueMismatch,
		}
	}
	return passed
}

func typeMismatch(path Path, want Kind, actual Value) Result {
	return Result{
		Path:     path,
		Expected: want.String(),
		Actual:   actual.kind.String(),
		Reason:   ReasonTypeMismatch,
	}
}

func matchObject(actual Value, p Pattern, m mode, path Path) Result {
	for _, f := range p.fields {
		v, ok := actual.Lookup(f.Key)
		if !ok {
			return Result{
				Path:     path.key(f.Key),
				Expected: f.Pattern.Describe(),
				Actual:   "missing",
				Reason:   ReasonMissingKey,
			}
		}
		if r := match(v, f.Pattern, m, path.key(f.Key)); !r.Passed {
			return r
		}
	}

	if m == modeDeep {
		for _, member := range actual.members {
			if !p.hasField(member.Key) {
				return Result{
					Path:     path.key(member.Key),
					Expected: "no such key",
					Actual:   describe(member.Value),
					Reason:   ReasonUnexpectedKey,
				}
			}
		}
	}
	return passed
}

func matchOrdered(actual []Value, items []Pattern, path Path) Result {
	if len(actual) != len(items) {
		return Result{
			Path:     path,
			Expected: fmt.Sprintf("length %d", len(items)),
			Actual:   fmt.Sprintf("length %d", len(actual)),
			Reason:   ReasonLengthMismatch,
		}
	}
	for i := range items {
		if r := match(actual[i], items[i], modeDeep, path.index(i)); !r.Passed {
			return r
		}
	}
	return passed
}

// matchUnordered pairs every pattern item with a distinct actual element
// using augmenting paths. Pattern items are placed in order and each one
// that cannot be placed is a failure, so the first such item is reported.
func matchUnordered(actual []Value, items []Pattern, path Path) Result {
	if len(items) == 0 {
		return passed
	}

	compatible := make([][]bool, len(items))
	for i, item := range items {
		compatible[i] = make([]bool, len(actual))
		for j, v := range actual {
			compatible[i][j] = match(v, item, modePartial, path.index(j)).Passed
		}
	}

	owner := make([]int, len(actual))
	for j := range owner {
		owner[j] = -1
	}
	for i, item := range items {
		seen := make([]bool, len(actual))
		if !augment(i, compatible, owner, seen) {
			return Result{
				Path:     path,
				Expected: fmt.Sprintf("an element matching item %d (%s)", i, item.Describe()),
				Actual:   fmt.Sprintf("no unclaimed match among %d elements", len(actual)),
				Reason:   ReasonNoMatch,
			}
		}
	}
	return passed
}

func augment(i int, compatible [][]bool, owner []int, seen []bool) bool {
	for j := range owner {
		if !compatible[i][j] || seen[j] {
			continue
		}
		seen[j] = true
		if owner[j] < 0 || augment(owner[j], compatible, owner, seen) {
			owner[j] = i
			return true
		}
	}
	return false
}
