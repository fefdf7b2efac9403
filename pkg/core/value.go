package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

// Value kinds.
const (
	NullKind ValueKind = iota
	StringKind
	IntKind
	FloatKind
	BoolKind
	ListKind
	MapKind
)

var kindNames = map[ValueKind]string{
	NullKind:   "null",
	StringKind: "string",
	IntKind:    "int",
	FloatKind:  "float",
	BoolKind:   "bool",
	ListKind:   "list",
	MapKind:    "map",
}

func (k ValueKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Value is a decoded annotation parameter: a scalar, a list or an ordered
// mapping. The zero Value is null.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    Params
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: StringKind, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: IntKind, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: FloatKind, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

// List returns a list value holding items.
func List(items ...Value) Value {
	return Value{kind: ListKind, list: append([]Value(nil), items...)}
}

// MapOf returns a mapping value.
func MapOf(p Params) Value { return Value{kind: MapKind, m: p} }

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == NullKind }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == StringKind }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == IntKind }

// AsFloat returns v as a float. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case FloatKind:
		return v.f, true
	case IntKind:
		return float64(v.i), true
	}
	return 0, false
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolKind }

// AsList returns a copy of the items held by v.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != ListKind {
		return nil, false
	}
	return append([]Value(nil), v.list...), true
}

// AsMap returns the mapping held by v.
func (v Value) AsMap() (Params, bool) {
	if v.kind != MapKind {
		return Params{}, false
	}
	return v.m, true
}

// Text renders a scalar the way it would appear in SQL or on a terminal.
// Lists are comma-joined; maps use "k: v" pairs.
func (v Value) Text() string {
	switch v.kind {
	case NullKind:
		return ""
	case StringKind:
		return v.s
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case FloatKind:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.b)
	case ListKind:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ", ")
	case MapKind:
		parts := make([]string, 0, v.m.Len())
		for _, e := range v.m.entries {
			parts = append(parts, e.Key+": "+e.Value.Text())
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Literal renders a scalar as a SQL literal: strings single-quoted, NULL as
// NULL, everything else as Text.
func (v Value) Literal() string {
	switch v.kind {
	case NullKind:
		return "NULL"
	case StringKind:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	}
	return v.Text()
}

func (v Value) String() string {
	if v.kind == StringKind {
		return strconv.Quote(v.s)
	}
	if v.kind == ListKind {
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if v.kind == MapKind {
		return v.m.Describe()
	}
	if v.kind == NullKind {
		return "null"
	}
	return v.Text()
}

// Equal reports deep equality. Map entry order is not significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullKind:
		return true
	case StringKind:
		return v.s == o.s
	case IntKind:
		return v.i == o.i
	case FloatKind:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case BoolKind:
		return v.b == o.b
	case ListKind:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case MapKind:
		return v.m.Equal(o.m)
	}
	return false
}

// Any converts v into plain Go values: string, int64, float64, bool, []any,
// map[string]any or nil.
func (v Value) Any() any {
	switch v.kind {
	case StringKind:
		return v.s
	case IntKind:
		return v.i
	case FloatKind:
		return v.f
	case BoolKind:
		return v.b
	case ListKind:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case MapKind:
		return v.m.Any()
	}
	return nil
}

// MarshalJSON encodes v as its natural JSON form, keeping map order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ListKind:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case MapKind:
		return v.m.MarshalJSON()
	}
	return json.Marshal(v.Any())
}

// FromAny builds a Value from plain Go values. Maps with string keys are
// sorted by key since Go maps carry no order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Params:
		return MapOf(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return List(items...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return List(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var p Params
		for _, k := range keys {
			iv, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			p = p.With(k, iv)
		}
		return MapOf(p), nil
	}
	return Value{}, fmt.Errorf("unsupported parameter type %T", x)
}

// MustFromAny is FromAny for literals known to be valid; it panics otherwise.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Entry is a single key/value pair of a mapping.
type Entry struct {
	Key   string
	Value Value
}

// Params is an ordered mapping from parameter name to Value. Params values
// are never modified in place; With returns a new mapping.
type Params struct {
	entries []Entry
}

// NewParams builds Params from entries. Later duplicates replace earlier ones.
func NewParams(entries ...Entry) Params {
	var p Params
	for _, e := range entries {
		p = p.With(e.Key, e.Value)
	}
	return p
}

// Len returns the number of entries.
func (p Params) Len() int { return len(p.entries) }

// Keys returns the parameter names in declaration order.
func (p Params) Keys() []string {
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in declaration order.
func (p Params) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// Get returns the value stored under key.
func (p Params) Get(key string) (Value, bool) {
	for _, e := range p.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// With returns a copy of p with key set to v. An existing key keeps its
// position.
func (p Params) With(key string, v Value) Params {
	out := make([]Entry, len(p.entries), len(p.entries)+1)
	copy(out, p.entries)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return Params{entries: out}
		}
	}
	return Params{entries: append(out, Entry{Key: key, Value: v})}
}

// Without returns a copy of p with key removed.
func (p Params) Without(key string) Params {
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return Params{entries: out}
}

// String returns the string parameter key. A missing key or a non-scalar value
// is an error; numbers and booleans are rendered as text.
func (p Params) String(key string) (string, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return "", &ParamError{Key: key, Message: "is required"}
	}
	switch v.Kind() {
	case ListKind, MapKind:
		return "", &ParamError{Key: key, Message: fmt.Sprintf("must be a scalar, got %s", v.Kind())}
	}
	return v.Text(), nil
}

// StringOr returns the string parameter key or def when absent.
func (p Params) StringOr(key, def string) string {
	s, err := p.String(key)
	if err != nil {
		return def
	}
	return s
}

// Strings returns a list parameter as strings. A single scalar is accepted as
// a one-element list.
func (p Params) Strings(key string) ([]string, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return nil, &ParamError{Key: key, Message: "is required"}
	}
	switch v.Kind() {
	case ListKind:
		out := make([]string, len(v.list))
		for i, item := range v.list {
			if item.Kind() == ListKind || item.Kind() == MapKind {
				return nil, &ParamError{Key: key, Message: fmt.Sprintf("item %d must be a scalar", i)}
			}
			out[i] = item.Text()
		}
		return out, nil
	case MapKind:
		return nil, &ParamError{Key: key, Message: "must be a list"}
	}
	return []string{v.Text()}, nil
}

// Float returns a numeric parameter.
func (p Params) Float(key string) (float64, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return 0, &ParamError{Key: key, Message: "is required"}
	}
	if f, ok := v.AsFloat(); ok {
		return f, nil
	}
	if s, ok := v.AsString(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, &ParamError{Key: key, Message: fmt.Sprintf("must be a number, got %s", v.Kind())}
}

// Int returns an integer parameter.
func (p Params) Int(key string) (int64, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return 0, &ParamError{Key: key, Message: "is required"}
	}
	if i, ok := v.AsInt(); ok {
		return i, nil
	}
	if s, ok := v.AsString(); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, nil
		}
	}
	return 0, &ParamError{Key: key, Message: fmt.Sprintf("must be an integer, got %s", v.Kind())}
}

// Bool returns a boolean parameter.
func (p Params) Bool(key string) (bool, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return false, &ParamError{Key: key, Message: "is required"}
	}
	if b, ok := v.AsBool(); ok {
		return b, nil
	}
	return false, &ParamError{Key: key, Message: fmt.Sprintf("must be a boolean, got %s", v.Kind())}
}

// Map returns a nested mapping parameter. A missing key yields empty Params.
func (p Params) Map(key string) (Params, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return Params{}, nil
	}
	m, ok := v.AsMap()
	if !ok {
		return Params{}, &ParamError{Key: key, Message: fmt.Sprintf("must be a mapping, got %s", v.Kind())}
	}
	return m, nil
}

// Equal reports whether p and o hold the same keys and values.
func (p Params) Equal(o Params) bool {
	if p.Len() != o.Len() {
		return false
	}
	for _, e := range p.entries {
		ov, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// Any converts p into a plain map.
func (p Params) Any() map[string]any {
	out := make(map[string]any, len(p.entries))
	for _, e := range p.entries {
		out[e.Key] = e.Value.Any()
	}
	return out
}

// Describe renders p as {k: v, ...} in declaration order.
func (p Params) Describe() string {
	parts := make([]string, len(p.entries))
	for i, e := range p.entries {
		parts[i] = e.Key + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes p as a JSON object preserving declaration order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParamError reports a missing or mistyped block parameter.
type ParamError struct {
	Key     string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %q %s", e.Key, e.Message)
}
