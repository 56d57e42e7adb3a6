package matcher

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

type patternKind int

const (
	patternLiteral patternKind = iota
	patternPlaceholder
	patternObject
	patternArray
)

// Pattern describes an expected JSON value. Build one with Literal, the
// Any* placeholders, Object and Array, or convert Go values with Like.
// The zero Pattern matches null.
type Pattern struct {
	kind    patternKind
	literal Value
	want    Kind
	fields  []Field
	items   []Pattern
}

// Field is one key of an object pattern.
type Field struct {
	Key     string
	Pattern Pattern
}

// Prop pairs a key with the pattern its value must match.
func Prop(key string, p Pattern) Field {
	return Field{Key: key, Pattern: p}
}

// Any returns a placeholder matching every value of kind k.
func Any(k Kind) Pattern {
	return Pattern{kind: patternPlaceholder, want: k}
}

func AnyString() Pattern  { return Any(KindString) }
func AnyNumber() Pattern  { return Any(KindNumber) }
func AnyBoolean() Pattern { return Any(KindBoolean) }
func AnyObject() Pattern  { return Any(KindObject) }
func AnyArray() Pattern   { return Any(KindArray) }

// Literal returns a pattern matching v exactly. Containers are expanded so
// that nested objects still follow the mode of the match they take part in.
func Literal(v Value) Pattern {
	switch v.kind {
	case KindArray:
		items := make([]Pattern, len(v.items))
		for i, item := range v.items {
			items[i] = Literal(item)
		}
		return Pattern{kind: patternArray, items: items}
	case KindObject:
		fields := make([]Field, len(v.members))
		for i, m := range v.members {
			fields[i] = Field{Key: m.Key, Pattern: Literal(m.Value)}
		}
		return Pattern{kind: patternObject, fields: fields}
	}
	return Pattern{kind: patternLiteral, literal: v}
}

// Object returns an object pattern whose keys are checked in the given
// order. A repeated key keeps its first position and its last pattern.
func Object(fields ...Field) Pattern {
	out := make([]Field, 0, len(fields))
	seen := make(map[string]int, len(fields))
	for _, f := range fields {
		if i, ok := seen[f.Key]; ok {
			out[i].Pattern = f.Pattern
			continue
		}
		seen[f.Key] = len(out)
		out = append(out, f)
	}
	return Pattern{kind: patternObject, fields: out}
}

// Array returns an array pattern.
func Array(items ...Pattern) Pattern {
	cp := make([]Pattern, len(items))
	copy(cp, items)
	return Pattern{kind: patternArray, items: cp}
}

// ParseLike converts a Go value into a pattern. Pattern and Value arguments
// are used as they are, at any depth: maps with string keys become object
// patterns with sorted keys, slices and arrays become array patterns and
// structs follow their json tags. Containers holding no Pattern are encoded
// as literals.
func ParseLike(v any) (Pattern, error) {
	switch val := v.(type) {
	case Pattern:
		return val, nil
	case Value:
		return Literal(val), nil
	}
	return likeFromReflect(reflect.ValueOf(v))
}

var (
	patternType = reflect.TypeOf(Pattern{})
	valueType   = reflect.TypeOf(Value{})
)

func likeFromReflect(rv reflect.Value) (Pattern, error) {
	if !rv.IsValid() {
		return Literal(Null()), nil
	}
	switch rv.Type() {
	case patternType:
		return rv.Interface().(Pattern), nil
	case valueType:
		return Literal(rv.Interface().(Value)), nil
	}
	if !holdsPattern(rv) {
		value, err := FromGo(rv.Interface())
		if err != nil {
			return Pattern{}, err
		}
		return Literal(value), nil
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		return likeFromReflect(rv.Elem())
	case reflect.Slice, reflect.Array:
		items := make([]Pattern, rv.Len())
		for i := range items {
			p, err := likeFromReflect(rv.Index(i))
			if err != nil {
				return Pattern{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = p
		}
		return Pattern{kind: patternArray, items: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Pattern{}, fmt.Errorf("map key type %s is not a string", rv.Type().Key())
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			p, err := likeFromReflect(rv.MapIndex(k))
			if err != nil {
				return Pattern{}, fmt.Errorf("%s: %w", k.String(), err)
			}
			fields = append(fields, Field{Key: k.String(), Pattern: p})
		}
		return Pattern{kind: patternObject, fields: fields}, nil
	case reflect.Struct:
		return structLike(rv)
	}
	return Pattern{}, fmt.Errorf("cannot use %s as a pattern", rv.Type())
}

func structLike(rv reflect.Value) (Pattern, error) {
	t := rv.Type()
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := rv.Field(i)
		if sf.Anonymous && sf.Tag.Get("json") == "" && isStructType(sf.Type) {
			if !sf.IsExported() || holdsPattern(fv) {
				return Pattern{}, fmt.Errorf("%s: embedded struct next to patterns is not supported", sf.Name)
			}
			inner, err := FromGo(fv.Interface())
			if err != nil {
				return Pattern{}, fmt.Errorf("%s: %w", sf.Name, err)
			}
			for _, m := range inner.Members() {
				fields = append(fields, Field{Key: m.Key, Pattern: Literal(m.Value)})
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonFieldName(sf)
		if skip || (omitEmpty && fv.IsZero()) {
			continue
		}
		p, err := likeFromReflect(fv)
		if err != nil {
			return Pattern{}, fmt.Errorf("%s: %w", name, err)
		}
		fields = append(fields, Field{Key: name, Pattern: p})
	}
	return Object(fields...), nil
}

func isStructType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func jsonFieldName(sf reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	for _, opt := range strings.Split(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// holdsPattern reports whether a Pattern is reachable from rv.
func holdsPattern(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		return !rv.IsNil() && holdsPattern(rv.Elem())
	case reflect.Struct:
		switch rv.Type() {
		case patternType:
			return true
		case valueType:
			return false
		}
		for i := 0; i < rv.NumField(); i++ {
			sf := rv.Type().Field(i)
			if (sf.IsExported() || sf.Anonymous) && holdsPattern(rv.Field(i)) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if holdsPattern(iter.Value()) {
				return true
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if holdsPattern(rv.Index(i)) {
				return true
			}
		}
	}
	return false
}

// Like is ParseLike for test code: it panics when v cannot be encoded.
func Like(v any) Pattern {
	p, err := ParseLike(v)
	if err != nil {
		panic(fmt.Sprintf("matcher: %v", err))
	}
	return p
}

// Placeholder tokens recognized by ParsePattern and PatternFromYAML.
const (
	TokenString  = "$string"
	TokenNumber  = "$number"
	TokenBoolean = "$boolean"
	TokenObject  = "$object"
	TokenArray   = "$array"
)

func placeholderFor(s string) (Pattern, bool) {
	if !strings.HasPrefix(s, "$") {
		return Pattern{}, false
	}
	switch s {
	case TokenString:
		return AnyString(), true
	case TokenNumber:
		return AnyNumber(), true
	case TokenBoolean:
		return AnyBoolean(), true
	case TokenObject:
		return AnyObject(), true
	case TokenArray:
		return AnyArray(), true
	}
	return Pattern{}, false
}

// ParsePattern reads a pattern from a JSON document. Strings equal to one of
// the Token constants become placeholders.
func ParsePattern(data []byte) (Pattern, error) {
	if !gjson.ValidBytes(data) {
		return Pattern{}, fmt.Errorf("invalid JSON pattern")
	}
	return patternFromResult(gjson.ParseBytes(data)), nil
}

func patternFromResult(r gjson.Result) Pattern {
	if r.Type == gjson.String {
		if p, ok := placeholderFor(r.Str); ok {
			return p
		}
	}
	if r.IsArray() {
		items := make([]Pattern, 0)
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, patternFromResult(item))
			return true
		})
		return Pattern{kind: patternArray, items: items}
	}
	if r.IsObject() {
		var fields []Field
		r.ForEach(func(key, item gjson.Result) bool {
			fields = append(fields, Field{Key: key.Str, Pattern: patternFromResult(item)})
			return true
		})
		return Object(fields...)
	}
	return Pattern{kind: patternLiteral, literal: fromResult(r)}
}

// PatternFromYAML reads a pattern from a YAML node, keeping mapping order.
// Strings equal to one of the Token constants become placeholders.
func PatternFromYAML(node *yaml.Node) (Pattern, error) {
	if node == nil {
		return Pattern{}, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Pattern{}, nil
		}
		return PatternFromYAML(node.Content[0])
	case yaml.AliasNode:
		return PatternFromYAML(node.Alias)
	case yaml.SequenceNode:
		items := make([]Pattern, len(node.Content))
		for i, child := range node.Content {
			p, err := PatternFromYAML(child)
			if err != nil {
				return Pattern{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = p
		}
		return Pattern{kind: patternArray, items: items}, nil
	case yaml.MappingNode:
		fields := make([]Field, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			p, err := PatternFromYAML(node.Content[i+1])
			if err != nil {
				return Pattern{}, fmt.Errorf("%s: %w", key, err)
			}
			fields = append(fields, Field{Key: key, Pattern: p})
		}
		return Object(fields...), nil
	case yaml.ScalarNode:
		return scalarPattern(node)
	}
	return Pattern{}, fmt.Errorf("line %d: unsupported YAML node", node.Line)
}

func scalarPattern(node *yaml.Node) (Pattern, error) {
	switch node.ShortTag() {
	case "!!null":
		return Literal(Null()), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Pattern{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Literal(Bool(b)), nil
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Pattern{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Literal(Number(f)), nil
	}
	if p, ok := placeholderFor(node.Value); ok {
		return p, nil
	}
	return Literal(String(node.Value)), nil
}

// Kind returns the kind of value the pattern expects.
func (p Pattern) Kind() Kind {
	switch p.kind {
	case patternPlaceholder:
		return p.want
	case patternObject:
		return KindObject
	case patternArray:
		return KindArray
	}
	return p.literal.kind
}

// IsPlaceholder reports whether p accepts any value of its kind.
func (p Pattern) IsPlaceholder() bool {
	return p.kind == patternPlaceholder
}

// Describe summarizes the pattern for failure messages.
func (p Pattern) Describe() string {
	switch p.kind {
	case patternPlaceholder:
		return p.want.String()
	case patternLiteral:
		return p.literal.String()
	}
	return p.Kind().String()
}

// String renders the pattern as JSON, placeholders as their tokens.
func (p Pattern) String() string {
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p Pattern) write(b *strings.Builder) {
	switch p.kind {
	case patternPlaceholder:
		b.WriteString(strconv.Quote("$" + p.want.String()))
	case patternLiteral:
		b.WriteString(p.literal.String())
	case patternArray:
		b.WriteByte('[')
		for i, item := range p.items {
			if i > 0 {
				b.WriteByte(',')
			}
			item.write(b)
		}
		b.WriteByte(']')
	case patternObject:
		b.WriteByte('{')
		for i, f := range p.fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(String(f.Key).String())
			b.WriteByte(':')
			f.Pattern.write(b)
		}
		b.WriteByte('}')
	}
}

func (p Pattern) hasField(key string) bool {
	for _, f := range p.fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
