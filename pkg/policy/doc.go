// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package policy provides the rule model for the smart firewall.
//
// It handles:
//   - Policy and condition definitions with eager validation
//   - Matching policies against an evaluation context
//   - Translation of policies into enforcement directives
//   - Pairwise conflict detection between policies
//
// # Policy Model
//
// A policy maps a source selector, a destination selector, and an
// ordered list of conditions to an action. Selectors accept:
//   - "any" (matches everything)
//   - "category:<name>" (device category)
//   - "zone:<name>" (network zone)
//   - a literal MAC or IP address
//   - for destinations, a CIDR block, optionally negated with "!"
//
// Actions:
//   - allow: permit the traffic
//   - block: drop the traffic
//   - quarantine: permit only DNS, drop everything else
//   - log_only: record the traffic without affecting it
//   - rate_limit, allow_priority: valid decisions with no
//     enforcement translation (BuildDirectives reports them as
//     unsupported rather than emitting a no-op)
//
// # Conditions
//
// A condition is an atomic predicate over one named context
// attribute. Its value is a closed variant (number, string,
// string set, or ordered bound pair) whose shape must match the
// declared operator; the shape is checked when the policy is
// created, never at evaluation time. An attribute missing from
// the context never satisfies a condition.
//
// # Example Usage
//
//	p := &policy.Policy{
//	    Name:        "Low Trust Quarantine",
//	    Source:      "any",
//	    Destination: "any",
//	    Conditions: []policy.Condition{
//	        {Type: policy.CondTrustScore, Operator: policy.OpLTE, Value: policy.NumberValue(30)},
//	    },
//	    Action:   policy.ActionQuarantine,
//	    Priority: 90,
//	    Enabled:  true,
//	}
//
//	if err := p.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := policy.Context{"trust_score": 25, "source_mac": "aa:bb:cc:dd:ee:ff"}
//	if p.ShouldApply(ctx) {
//	    directives, err := policy.BuildDirectives(p)
//	    ...
//	}
//
// # Thread Safety
//
// Policies and conditions are plain values; they are safe for
// concurrent reads once constructed. Mutation during evaluation
// must be protected by the caller.
package policy
