// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind discriminates the closed set of condition value shapes.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindString
	KindSet
	KindBounds
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSet:
		return "set"
	case KindBounds:
		return "bounds"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the variant carried by a condition: a number, a string,
// a string set, or an ordered two-element bound pair. The zero Value
// is a number 0; use the constructors for anything else.
type Value struct {
	kind   ValueKind
	num    float64
	str    string
	set    []string
	bounds [2]*Value // each KindNumber or KindString
}

// NumberValue builds a numeric value.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// StringValue builds a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// SetValue builds a string-set value. Element order is preserved.
func SetValue(elems ...string) Value {
	return Value{kind: KindSet, set: append([]string(nil), elems...)}
}

// BoundsValue builds an ordered bound pair. Both bounds must be
// scalar (number or string); ordering is checked by Condition
// validation, not here.
func BoundsValue(lo, hi Value) Value {
	l, h := lo, hi
	return Value{kind: KindBounds, bounds: [2]*Value{&l, &h}}
}

// Kind reports the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// Number returns the numeric payload if the value is a number.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text returns the string payload if the value is a string.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

// Set returns the set payload if the value is a string set.
func (v Value) Set() ([]string, bool) {
	if v.kind != KindSet {
		return nil, false
	}
	return v.set, true
}

// Bounds returns the bound pair if the value is a bounds value.
func (v Value) Bounds() (lo, hi *Value, ok bool) {
	if v.kind != KindBounds {
		return nil, nil, false
	}
	return v.bounds[0], v.bounds[1], true
}

// scalar reports whether the value is a number or a string.
func (v Value) scalar() bool {
	return v.kind == KindNumber || v.kind == KindString
}

// compareScalar orders two scalar values: numeric when both are
// numbers, lexicographic when both are strings. Mixed shapes are
// not comparable.
func compareScalar(a, b Value) (int, bool) {
	switch {
	case a.kind == KindNumber && b.kind == KindNumber:
		switch {
		case a.num < b.num:
			return -1, true
		case a.num > b.num:
			return 1, true
		default:
			return 0, true
		}
	case a.kind == KindString && b.kind == KindString:
		return strings.Compare(a.str, b.str), true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the variant as its natural JSON shape:
// number, string, array of strings, or two-element array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindSet:
		return json.Marshal(v.set)
	case KindBounds:
		return json.Marshal([2]*Value{v.bounds[0], v.bounds[1]})
	default:
		return nil, fmt.Errorf("unknown value kind: %d", int(v.kind))
	}
}

// UnmarshalJSON decodes a number, string, array of strings, or a
// two-element numeric array. A two-element string array decodes as
// a set; Condition validation coerces it to bounds when the
// operator requires one.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = NumberValue(t)
		return nil
	case string:
		*v = StringValue(t)
		return nil
	case []interface{}:
		return v.unmarshalArray(t)
	default:
		return fmt.Errorf("unsupported condition value: %v", raw)
	}
}

func (v *Value) unmarshalArray(elems []interface{}) error {
	// Two numbers can only be a bound pair; string sets keep order.
	if len(elems) == 2 {
		lo, loNum := elems[0].(float64)
		hi, hiNum := elems[1].(float64)
		if loNum && hiNum {
			*v = BoundsValue(NumberValue(lo), NumberValue(hi))
			return nil
		}
	}
	set := make([]string, 0, len(elems))
	for _, e := range elems {
		s, ok := e.(string)
		if !ok {
			return fmt.Errorf("condition value array must hold strings or two numbers, got %v", e)
		}
		set = append(set, s)
	}
	*v = Value{kind: KindSet, set: set}
	return nil
}

// asBounds coerces the value to a bound pair where possible: an
// existing bounds value passes through, a two-element string set
// becomes string bounds.
func (v Value) asBounds() (Value, bool) {
	if v.kind == KindBounds {
		return v, true
	}
	if v.kind == KindSet && len(v.set) == 2 {
		return BoundsValue(StringValue(v.set[0]), StringValue(v.set[1])), true
	}
	return Value{}, false
}
