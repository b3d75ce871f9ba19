// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

// Templates returns the built-in policy templates. Each call returns
// fresh copies with zero IDs; callers persist them as regular
// policies.
func Templates() []Policy {
	return []Policy{
		{
			Name:        "Bedtime Internet Block",
			Description: "Block IoT devices from leaving the local network late at night",
			Source:      "category:iot",
			Destination: "!192.168.0.0/16",
			Conditions: []Condition{
				{Type: CondTimeRange, Operator: OpBetween, Value: BoundsValue(StringValue("22:00"), StringValue("23:59"))},
			},
			Action:   ActionBlock,
			Priority: 60,
			Enabled:  true,
		},
		{
			Name:        "Low Trust Quarantine",
			Description: "Quarantine devices with trust score below 30",
			Source:      "any",
			Destination: "any",
			Conditions: []Condition{
				{Type: CondTrustScore, Operator: OpLTE, Value: NumberValue(30)},
			},
			Action:   ActionQuarantine,
			Priority: 90,
			Enabled:  true,
		},
		{
			Name:        "Work From Home Priority",
			Description: "Prioritize work devices during business hours",
			Source:      "category:work",
			Destination: "any",
			Conditions: []Condition{
				{Type: CondTimeRange, Operator: OpBetween, Value: BoundsValue(StringValue("09:00"), StringValue("17:00"))},
				{Type: CondDayOfWeek, Operator: OpIn, Value: SetValue("Monday", "Tuesday", "Wednesday", "Thursday", "Friday")},
			},
			Action:   ActionAllowPriority,
			Priority: 70,
			Enabled:  true,
		},
		{
			Name:        "ML Anomaly Block",
			Description: "Block devices flagged critical by anomaly detection",
			Source:      "any",
			Destination: "any",
			Conditions: []Condition{
				{Type: CondMLRiskLevel, Operator: OpEQ, Value: StringValue("critical")},
			},
			Action:   ActionBlock,
			Priority: 95,
			Enabled:  true,
		},
		{
			Name:        "Guest Network Isolation",
			Description: "Restrict guest devices to internet only, no local network",
			Source:      "zone:guest",
			Destination: "192.168.0.0/16",
			Conditions:  []Condition{},
			Action:      ActionBlock,
			Priority:    80,
			Enabled:     true,
		},
	}
}
