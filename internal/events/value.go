package events

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindStrings
)

// Value is one field of free-form event data.
//
// It is a closed union: null, string, number, bool or a list of strings.
// Anything else found in a payload (nested objects, mixed arrays) is coerced
// into one of these variants while decoding, so extraction never fails.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []string
}

func Null() Value                 { return Value{} }
func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

func StringsValue(ss ...string) Value {
	return Value{kind: KindStrings, list: append([]string(nil), ss...)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Strings() []string {
	if v.kind != KindStrings {
		return nil
	}
	return append([]string(nil), v.list...)
}

// AsString returns the string payload and whether v holds a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns the bool payload and whether v holds a bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// String renders the value as plain text. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStrings:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindStrings:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return StringValue(x.String())
		}
		return NumberValue(f)
	case float64:
		return NumberValue(x)
	case []any:
		out := make([]string, 0, len(x))
		for _, el := range x {
			out = append(out, fromAny(el).String())
		}
		return Value{kind: KindStrings, list: out}
	default:
		// Objects are outside the union; keep their compact JSON text.
		b, err := json.Marshal(x)
		if err != nil {
			return Null()
		}
		return StringValue(string(b))
	}
}

// Data is the free-form payload of a webhook event.
type Data map[string]Value

// Get returns the value stored under key (Null when absent).
func (d Data) Get(key string) Value {
	if d == nil {
		return Null()
	}
	return d[key]
}

// First returns the first non-null value among keys.
func (d Data) First(keys ...string) Value {
	for _, k := range keys {
		if v := d.Get(k); !v.IsNull() {
			return v
		}
	}
	return Null()
}

// Without returns a copy of d with the given keys removed.
func (d Data) Without(keys ...string) Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
