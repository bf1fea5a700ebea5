package ecs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/worldsim/worldsim/internal/geom"
)

// ValueKind tags the member of Value that is set.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindNumber
	KindString
)

// Value is a loosely typed override value as written in a template: a number,
// a string, or nothing. Components decode it with the typed parsers below,
// which accept both the numeric and the string encoding of the same value.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func None() Value { return Value{} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNone() bool { return v.kind == KindNone }

// Raw returns the native Go value (float64, string or nil).
func (v Value) Raw() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	}
	return ""
}

// Equal compares two values by kind and content.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.num == o.num && v.str == o.str
}

// ValueOf converts a decoded YAML/JSON scalar into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return None(), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case string:
		return String(x), nil
	case bool:
		return String(strconv.FormatBool(x)), nil
	}
	return None(), fmt.Errorf("unsupported override value %T", raw)
}

// Float decodes a number or a decimal string.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case KindNumber:
		return v.num, nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v.str)
		}
		return f, nil
	}
	return 0, fmt.Errorf("missing value")
}

// Int decodes an integral number or string.
func (v Value) Int() (int, error) {
	f, err := v.Float()
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int(f), nil
}

// Vec2 decodes "x,y". A single number n decodes to (n, n) when uniform is set.
func (v Value) Vec2(uniform bool) (geom.Vec2, error) {
	if v.kind == KindNumber {
		if !uniform {
			return geom.Vec2{}, fmt.Errorf("expected \"x,y\", got %v", v.num)
		}
		return geom.V(v.num, v.num), nil
	}
	if v.kind != KindString {
		return geom.Vec2{}, fmt.Errorf("missing value")
	}
	parts := strings.Split(v.str, ",")
	switch len(parts) {
	case 1:
		if !uniform {
			return geom.Vec2{}, fmt.Errorf("expected \"x,y\", got %q", v.str)
		}
		f, err := String(parts[0]).Float()
		if err != nil {
			return geom.Vec2{}, err
		}
		return geom.V(f, f), nil
	case 2:
		x, err := String(parts[0]).Float()
		if err != nil {
			return geom.Vec2{}, err
		}
		y, err := String(parts[1]).Float()
		if err != nil {
			return geom.Vec2{}, err
		}
		return geom.V(x, y), nil
	}
	return geom.Vec2{}, fmt.Errorf("expected \"x,y\", got %q", v.str)
}

// VecValue encodes a vector the way templates write it.
func VecValue(p geom.Vec2) Value {
	return String(strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64))
}

func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.Raw()) }

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func (v Value) MarshalYAML() (any, error) { return v.Raw(), nil }

// UnmarshalYAML accepts scalars only; a nested map or list is an error.
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: override value must be a scalar", n.Line)
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return err
	}
	out, err := ValueOf(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*v = out
	return nil
}
