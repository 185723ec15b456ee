package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type valueKind uint8

const (
	valueNull valueKind = iota
	valueInt
	valueFloat
	valueString
)

// Value is one feature value: an integer, a float, a string, or null.
type Value struct {
	kind valueKind
	i    int64
	f    float64
	s    string
}

func Int(v int64) Value     { return Value{kind: valueInt, i: v} }
func Float(v float64) Value { return Value{kind: valueFloat, f: v} }
func String(v string) Value { return Value{kind: valueString, s: v} }
func Null() Value           { return Value{} }
func Bool(v bool) Value     { return Int(boolInt(v)) }
func OptString(v string) Value {
	if v == "" {
		return Null()
	}
	return String(v)
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (v Value) IsNull() bool { return v.kind == valueNull }

// Number returns the numeric value and whether v is numeric.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case valueInt:
		return float64(v.i), true
	case valueFloat:
		return v.f, true
	}
	return 0, false
}

func (v Value) Str() (string, bool) { return v.s, v.kind == valueString }

func (v Value) appendJSON(b []byte) ([]byte, error) {
	switch v.kind {
	case valueInt:
		return strconv.AppendInt(b, v.i, 10), nil
	case valueFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return append(b, "null"...), nil
		}
		enc, err := json.Marshal(v.f)
		if err != nil {
			return nil, err
		}
		return append(b, enc...), nil
	case valueString:
		enc, err := json.Marshal(v.s)
		if err != nil {
			return nil, err
		}
		return append(b, enc...), nil
	default:
		return append(b, "null"...), nil
	}
}

type Feature struct {
	Name  string
	Value Value
}

// Context is the flat, ordered feature bag captured when a decision is created. It is opaque to
// the engine and the log writer; field order is preserved on the wire.
type Context struct {
	features []Feature
}

// ContextBuilder accumulates features; Build freezes them into a Context.
type ContextBuilder struct {
	features []Feature
}

func NewContextBuilder(capacity int) *ContextBuilder {
	return &ContextBuilder{features: make([]Feature, 0, capacity)}
}

func (b *ContextBuilder) Add(name string, v Value) *ContextBuilder {
	b.features = append(b.features, Feature{Name: name, Value: v})
	return b
}

func (b *ContextBuilder) Build() Context {
	return Context{features: append([]Feature(nil), b.features...)}
}

func (c Context) Len() int { return len(c.features) }

// Features returns a copy of the features in insertion order.
func (c Context) Features() []Feature { return append([]Feature(nil), c.features...) }

func (c Context) Get(name string) (Value, bool) {
	for _, f := range c.features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (c Context) MarshalJSON() ([]byte, error) {
	if c.features == nil {
		return []byte("null"), nil
	}
	b := make([]byte, 0, 64+24*len(c.features))
	b = append(b, '{')
	for i, f := range c.features {
		if i > 0 {
			b = append(b, ',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		b = append(b, key...)
		b = append(b, ':')
		if b, err = f.Value.appendJSON(b); err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.Name, err)
		}
	}
	return append(b, '}'), nil
}

// UnmarshalJSON reads a flat object back, keeping key order. Nested values are rejected.
func (c *Context) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Context{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("context: expected object")
	}
	out := Context{features: []Feature{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		var v Value
		switch t := tok.(type) {
		case nil:
			v = Null()
		case string:
			v = String(t)
		case bool:
			v = Bool(t)
		case json.Number:
			if i, err := t.Int64(); err == nil {
				v = Int(i)
			} else if f, err := t.Float64(); err == nil {
				v = Float(f)
			} else {
				return fmt.Errorf("context: feature %s: %w", name, err)
			}
		default:
			return fmt.Errorf("context: feature %s is not a scalar", name)
		}
		out.features = append(out.features, Feature{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// GobEncode lets snapshots carry contexts.
func (c Context) GobEncode() ([]byte, error) { return c.MarshalJSON() }

func (c *Context) GobDecode(b []byte) error { return c.UnmarshalJSON(b) }
