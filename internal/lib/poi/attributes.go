package poi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueKind distinguishes the variants of an attribute value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Value is an optional string or number attribute.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// StringValue wraps a string attribute.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue wraps a numeric attribute.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// NullValue is an attribute that is present but has no value.
func NullValue() Value {
	return Value{}
}

// Kind returns the value's variant.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Str returns the string variant.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the numeric variant. Strings that parse as numbers are
// accepted, since tag-based sources deliver numbers as text.
func (v Value) Num() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		return f, err == nil
	}
	return 0, false
}

// String renders the value as text; null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return ""
}

// Interface returns the value as a JSON-compatible Go value.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = value
	return nil
}

// ValueOf converts a decoded JSON scalar to a Value.
func ValueOf(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case float32:
		return NumberValue(float64(x)), nil
	case int:
		return NumberValue(float64(x)), nil
	case int64:
		return NumberValue(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case bool:
		return StringValue(strconv.FormatBool(x)), nil
	}
	return Value{}, fmt.Errorf("unsupported attribute value %T", raw)
}

// Attributes is an opaque bag of source attributes passed through to output.
type Attributes map[string]Value

// FromTags builds attributes from string tags such as OSM tags.
func FromTags(tags map[string]string) Attributes {
	attrs := make(Attributes, len(tags))
	for k, v := range tags {
		attrs[k] = StringValue(v)
	}
	return attrs
}

// FromMap converts decoded properties. Values that are not scalars are
// rendered with fmt.
func FromMap(m map[string]interface{}) Attributes {
	attrs := make(Attributes, len(m))
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			v = StringValue(fmt.Sprint(raw))
		}
		attrs[k] = v
	}
	return attrs
}

// ToMap returns the attributes as JSON-compatible values.
func (a Attributes) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(a))
	for k, v := range a {
		m[k] = v.Interface()
	}
	return m
}

// Text returns the textual form of key, or "" when absent or null.
func (a Attributes) Text(key string) string {
	return a[key].String()
}

// FirstText returns the first non-empty textual value among keys.
func (a Attributes) FirstText(keys ...string) (string, bool) {
	for _, k := range keys {
		if s := a.Text(k); s != "" {
			return s, true
		}
	}
	return "", false
}

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
