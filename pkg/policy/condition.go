// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

import "fmt"

// ConditionType names the context attribute a condition inspects.
type ConditionType string

const (
	CondTimeRange       ConditionType = "time_range"
	CondDayOfWeek       ConditionType = "day_of_week"
	CondTrustScore      ConditionType = "trust_score"
	CondDeviceCategory  ConditionType = "device_category"
	CondMLRiskLevel     ConditionType = "ml_risk_level"
	CondNetworkZone     ConditionType = "network_zone"
	CondDestinationIP   ConditionType = "destination_ip"
	CondDestinationPort ConditionType = "destination_port"
	CondSourceMAC       ConditionType = "source_mac"
)

var conditionTypes = map[ConditionType]bool{
	CondTimeRange:       true,
	CondDayOfWeek:       true,
	CondTrustScore:      true,
	CondDeviceCategory:  true,
	CondMLRiskLevel:     true,
	CondNetworkZone:     true,
	CondDestinationIP:   true,
	CondDestinationPort: true,
	CondSourceMAC:       true,
}

// attribute maps a condition type to the context key it reads.
// time_range conditions read the wall-clock "time" attribute; every
// other type shares its name with its attribute.
func (t ConditionType) attribute() string {
	if t == CondTimeRange {
		return AttrTime
	}
	return string(t)
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpGTE     Operator = ">="
	OpLTE     Operator = "<="
	OpEQ      Operator = "=="
	OpNE      Operator = "!="
	OpIn      Operator = "in"
	OpNotIn   Operator = "not_in"
	OpBetween Operator = "between"
)

// Condition is an atomic predicate over one named context attribute.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    Value         `json:"value"`
}

// Validate checks that the condition type and operator are known and
// that the value shape matches the operator. Shape mismatches are
// rejected here, at creation time, never during evaluation.
func (c *Condition) Validate() error {
	if !conditionTypes[c.Type] {
		return &ValidationError{Field: "condition.type", Message: fmt.Sprintf("unknown condition type %q", c.Type)}
	}

	switch c.Operator {
	case OpGTE, OpLTE, OpEQ, OpNE:
		if !c.Value.scalar() {
			return &ValidationError{
				Field:   "condition.value",
				Message: fmt.Sprintf("operator %q requires a number or string, got %s", c.Operator, c.Value.Kind()),
			}
		}
	case OpIn, OpNotIn:
		if _, ok := c.Value.Set(); !ok {
			return &ValidationError{
				Field:   "condition.value",
				Message: fmt.Sprintf("operator %q requires a string set, got %s", c.Operator, c.Value.Kind()),
			}
		}
	case OpBetween:
		bounds, ok := c.Value.asBounds()
		if !ok {
			return &ValidationError{
				Field:   "condition.value",
				Message: fmt.Sprintf("operator %q requires exactly two bounds, got %s", c.Operator, c.Value.Kind()),
			}
		}
		lo, hi, _ := bounds.Bounds()
		cmp, comparable := compareScalar(*lo, *hi)
		if !comparable || cmp > 0 {
			return &ValidationError{Field: "condition.value", Message: "between bounds must be ordered low to high"}
		}
		c.Value = bounds
	default:
		return &ValidationError{Field: "condition.operator", Message: fmt.Sprintf("unknown operator %q", c.Operator)}
	}

	return nil
}

// Evaluate applies the condition to a context. An attribute missing
// from the context never satisfies a condition (fail-closed), and a
// type mismatch between the attribute and the value is treated the
// same way. Malformed value/operator pairs are rejected by Validate,
// not here.
func (c Condition) Evaluate(ctx Context) bool {
	raw, ok := ctx[c.Type.attribute()]
	if !ok || raw == nil {
		return false
	}
	actual, ok := scalarOf(raw)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpGTE:
		cmp, ok := compareScalar(actual, c.Value)
		return ok && cmp >= 0
	case OpLTE:
		cmp, ok := compareScalar(actual, c.Value)
		return ok && cmp <= 0
	case OpEQ:
		cmp, ok := compareScalar(actual, c.Value)
		return ok && cmp == 0
	case OpNE:
		cmp, ok := compareScalar(actual, c.Value)
		return ok && cmp != 0
	case OpIn:
		return c.contains(actual)
	case OpNotIn:
		if _, ok := c.Value.Set(); !ok {
			return false
		}
		return !c.contains(actual)
	case OpBetween:
		lo, hi, ok := c.Value.Bounds()
		if !ok {
			return false
		}
		cmpLo, okLo := compareScalar(actual, *lo)
		cmpHi, okHi := compareScalar(actual, *hi)
		return okLo && okHi && cmpLo >= 0 && cmpHi <= 0
	default:
		return false
	}
}

func (c Condition) contains(actual Value) bool {
	set, ok := c.Value.Set()
	if !ok {
		return false
	}
	s, ok := actual.Text()
	if !ok {
		return false
	}
	for _, elem := range set {
		if elem == s {
			return true
		}
	}
	return false
}

// scalarOf converts a context attribute into a scalar Value.
// Numeric attributes arrive as assorted integer widths depending on
// whether they came from code or decoded JSON.
func scalarOf(raw interface{}) (Value, bool) {
	switch t := raw.(type) {
	case string:
		return StringValue(t), true
	case int:
		return NumberValue(float64(t)), true
	case int32:
		return NumberValue(float64(t)), true
	case int64:
		return NumberValue(float64(t)), true
	case uint16:
		return NumberValue(float64(t)), true
	case float32:
		return NumberValue(float64(t)), true
	case float64:
		return NumberValue(t), true
	default:
		return Value{}, false
	}
}
