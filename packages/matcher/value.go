package matcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Kind is the runtime type of a JSON value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind returns the kind named by s.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "null":
		return KindNull, true
	case "boolean", "bool":
		return KindBoolean, true
	case "number":
		return KindNumber, true
	case "string":
		return KindString, true
	case "array":
		return KindArray, true
	case "object":
		return KindObject, true
	}
	return KindNull, false
}

// Member is one key of an object value.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. Objects remember the order in which
// their keys were inserted; that order drives every traversal.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	str     string
	items   []Value
	members []Member
	index   map[string]int
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBoolean, boolean: b} }
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }
func String(s string) Value  { return Value{kind: KindString, str: s} }

// NewArray builds an array value from items.
func NewArray(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// NewObject builds an object value. A repeated key keeps its first position
// and its last value.
func NewObject(members ...Member) Value {
	v := Value{kind: KindObject, index: make(map[string]int, len(members))}
	for _, m := range members {
		if i, ok := v.index[m.Key]; ok {
			v.members[i].Value = m.Value
			continue
		}
		v.index[m.Key] = len(v.members)
		v.members = append(v.members, m)
	}
	return v
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Boolean() bool  { return v.boolean }
func (v Value) Float() float64 { return v.number }
func (v Value) Str() string    { return v.str }

// Len returns the number of array items or object keys.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	case KindString:
		return len(v.str)
	}
	return 0
}

// Items returns a copy of the array's elements.
func (v Value) Items() []Value {
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Members returns a copy of the object's members in insertion order.
func (v Value) Members() []Member {
	cp := make([]Member, len(v.members))
	copy(cp, v.members)
	return cp
}

// Keys returns the object's keys in insertion order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// Lookup returns the value stored under key.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i, ok := v.index[key]
	if !ok {
		return Value{}, false
	}
	return v.members[i].Value, true
}

// Equal reports whether v and other hold the same JSON value. Object key
// order is not significant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBoolean:
		return v.boolean == other.boolean
	case KindNumber:
		return v.number == other.number
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.members) != len(other.members) {
			return false
		}
		for _, m := range v.members {
			o, ok := other.Lookup(m.Key)
			if !ok || !m.Value.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v as compact JSON.
func (v Value) String() string {
	var buf bytes.Buffer
	v.write(&buf)
	return buf.String()
}

// MarshalJSON implements json.Marshaler, keeping object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	v.write(&buf)
	return buf.Bytes(), nil
}

func (v Value) write(buf *bytes.Buffer) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBoolean:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		b, err := json.Marshal(v.number)
		if err != nil {
			// NaN and Inf never come out of a JSON document
			buf.WriteString(strconv.FormatFloat(v.number, 'g', -1, 64))
			return
		}
		buf.Write(b)
	case KindString:
		writeString(buf, v.str)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.write(buf)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, m.Key)
			buf.WriteByte(':')
			m.Value.write(buf)
		}
		buf.WriteByte('}')
	}
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
}

// ParseJSON decodes a JSON document, keeping object keys in document order.
func ParseJSON(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("invalid JSON document")
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	}

	if r.IsArray() {
		items := make([]Value, 0)
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item))
			return true
		})
		return Value{kind: KindArray, items: items}
	}

	var members []Member
	r.ForEach(func(key, item gjson.Result) bool {
		members = append(members, Member{Key: key.Str, Value: fromResult(item)})
		return true
	})
	return NewObject(members...)
}

// FromGo converts a Go value into a Value. Values that are already a Value
// are returned unchanged; everything else goes through encoding/json, so
// struct fields keep declaration order and map keys come out sorted.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case nil:
		return Null(), nil
	case json.RawMessage:
		return ParseJSON(val)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("encoding %T: %w", v, err)
	}
	return ParseJSON(data)
}

// MustFromGo is like FromGo but panics if v cannot be encoded.
func MustFromGo(v any) Value {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}

// describe summarizes a value for failure messages: scalars render as JSON,
// containers by their kind.
func describe(v Value) string {
	switch v.kind {
	case KindArray, KindObject:
		return v.kind.String()
	}
	return v.String()
}
