// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Context attribute keys. A context is the ephemeral snapshot a
// connection is evaluated against; it is built per call and never
// persisted.
const (
	AttrSourceMAC       = "source_mac"
	AttrSourceIP        = "source_ip"
	AttrDestinationIP   = "destination_ip"
	AttrDestinationPort = "destination_port"
	AttrDeviceCategory  = "device_category"
	AttrNetworkZone     = "network_zone"
	AttrTime            = "time" // "HH:MM"
	AttrDayOfWeek       = "day_of_week"
	AttrTrustScore      = "trust_score"
	AttrTrustLevel      = "trust_level"
	AttrMLRiskLevel     = "ml_risk_level"
)

// Context maps attribute names to their current values (strings or
// numbers).
type Context map[string]interface{}

// Action is what happens when a policy matches.
type Action string

const (
	ActionAllow         Action = "allow"
	ActionBlock         Action = "block"
	ActionRateLimit     Action = "rate_limit"
	ActionLogOnly       Action = "log_only"
	ActionQuarantine    Action = "quarantine"
	ActionAllowPriority Action = "allow_priority"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(s)) {
	case ActionAllow:
		return ActionAllow, nil
	case ActionBlock:
		return ActionBlock, nil
	case ActionRateLimit:
		return ActionRateLimit, nil
	case ActionLogOnly:
		return ActionLogOnly, nil
	case ActionQuarantine:
		return ActionQuarantine, nil
	case ActionAllowPriority:
		return ActionAllowPriority, nil
	default:
		return "", &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", s)}
	}
}

// Policy is a named, prioritized rule mapping a source/destination/
// condition match to an action. Higher priority evaluates first;
// ties keep insertion order.
type Policy struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Source      string      `json:"source"`
	Destination string      `json:"destination"`
	Conditions  []Condition `json:"conditions"`
	Action      Action      `json:"action"`
	Priority    int         `json:"priority"`
	Enabled     bool        `json:"enabled"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate checks the policy and all of its conditions eagerly.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "policy name is required"}
	}
	if p.Source == "" {
		return &ValidationError{Field: "source", Message: "source selector is required"}
	}
	if p.Destination == "" {
		return &ValidationError{Field: "destination", Message: "destination selector is required"}
	}
	if _, err := ParseAction(string(p.Action)); err != nil {
		return err
	}
	for i := range p.Conditions {
		if err := p.Conditions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ShouldApply reports whether the policy matches the context:
// enabled, source matches, destination matches, and every condition
// holds. An empty condition list is vacuously true.
func (p *Policy) ShouldApply(ctx Context) bool {
	if !p.Enabled {
		return false
	}
	if !p.matchesSource(ctx) {
		return false
	}
	if !p.matchesDestination(ctx) {
		return false
	}
	for _, c := range p.Conditions {
		if !c.Evaluate(ctx) {
			return false
		}
	}
	return true
}

func (p *Policy) matchesSource(ctx Context) bool {
	sel := p.Source
	if sel == "any" {
		return true
	}
	if cat, ok := strings.CutPrefix(sel, "category:"); ok {
		return stringAttr(ctx, AttrDeviceCategory) == cat
	}
	if zone, ok := strings.CutPrefix(sel, "zone:"); ok {
		return stringAttr(ctx, AttrNetworkZone) == zone
	}
	if mac := stringAttr(ctx, AttrSourceMAC); mac != "" {
		if strings.EqualFold(mac, sel) {
			return true
		}
	}
	return stringAttr(ctx, AttrSourceIP) == sel
}

func (p *Policy) matchesDestination(ctx Context) bool {
	sel := p.Destination
	if sel == "any" {
		return true
	}
	if cat, ok := strings.CutPrefix(sel, "category:"); ok {
		return stringAttr(ctx, AttrDeviceCategory) == cat
	}
	if zone, ok := strings.CutPrefix(sel, "zone:"); ok {
		return stringAttr(ctx, AttrNetworkZone) == zone
	}

	negate := false
	if rest, ok := strings.CutPrefix(sel, "!"); ok {
		negate = true
		sel = rest
	}

	dest := stringAttr(ctx, AttrDestinationIP)
	matched := false
	if strings.Contains(sel, "/") {
		matched = cidrContains(sel, dest)
	} else {
		matched = dest == sel
	}
	if negate {
		return !matched
	}
	return matched
}

// cidrContains performs real subnet-membership testing: the selector
// must parse as a CIDR block and the candidate IP must fall inside
// it. Unparseable selectors and candidates fail closed.
func cidrContains(cidr, candidate string) bool {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(candidate)
	if ip == nil {
		return false
	}
	return ipnet.Contains(ip)
}

func stringAttr(ctx Context, key string) string {
	s, _ := ctx[key].(string)
	return s
}

// wildcardSource reports whether the source selector is a wildcard,
// category, or zone selector rather than a single address.
func (p *Policy) wildcardSource() bool {
	return p.Source == "any" ||
		strings.HasPrefix(p.Source, "category:") ||
		strings.HasPrefix(p.Source, "zone:")
}
