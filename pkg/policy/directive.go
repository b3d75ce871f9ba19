// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

import "fmt"

// Chain is the packet-filter chain that holds all policy-derived
// rules. The enforcement batch flushes it before re-applying.
const Chain = "SRUJAN_POLICIES"

// Directive is one enforcement instruction derived from a policy,
// expressed as the argument text handed to the packet filter.
type Directive struct {
	Rule    string `json:"rule"`
	Comment string `json:"comment"`
}

// BuildDirectives translates a policy into its enforcement
// directives. The translation is pure and deterministic.
//
// block/allow with an explicit source emit a single directive keyed
// on that source; wildcard, category, and zone sources emit a
// blanket directive annotated with the policy name. quarantine
// emits an ordered pair (allow-DNS first, then deny-all) whose order
// must not change. log_only emits a logging-only directive.
// rate_limit and allow_priority return ErrUnsupportedAction.
func BuildDirectives(p *Policy) ([]Directive, error) {
	switch p.Action {
	case ActionBlock:
		return []Directive{targetDirective(p, "DROP")}, nil

	case ActionAllow:
		return []Directive{targetDirective(p, "ACCEPT")}, nil

	case ActionQuarantine:
		// DNS allow must precede the deny-all; reordering would
		// black-hole name resolution for the quarantined scope.
		return []Directive{
			{
				Rule:    fmt.Sprintf("-A %s%s -p udp --dport 53 -j ACCEPT", Chain, sourceMatch(p)),
				Comment: fmt.Sprintf("quarantine:%s dns", p.Name),
			},
			{
				Rule:    fmt.Sprintf("-A %s%s -j DROP", Chain, sourceMatch(p)),
				Comment: fmt.Sprintf("quarantine:%s", p.Name),
			},
		}, nil

	case ActionLogOnly:
		return []Directive{{
			Rule:    fmt.Sprintf("-A %s%s -j LOG --log-prefix \"policy:%s \"", Chain, sourceMatch(p), p.Name),
			Comment: fmt.Sprintf("log:%s", p.Name),
		}}, nil

	case ActionRateLimit, ActionAllowPriority:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, p.Action)

	default:
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", p.Action)}
	}
}

func targetDirective(p *Policy, target string) Directive {
	if p.wildcardSource() {
		return Directive{
			Rule:    fmt.Sprintf("-A %s -j %s", Chain, target),
			Comment: fmt.Sprintf("policy:%s", p.Name),
		}
	}
	return Directive{
		Rule:    fmt.Sprintf("-A %s -m mac --mac-source %s -j %s", Chain, p.Source, target),
		Comment: fmt.Sprintf("policy:%s", p.Name),
	}
}

// sourceMatch renders the per-source match clause, empty for
// wildcard/category/zone sources.
func sourceMatch(p *Policy) string {
	if p.wildcardSource() {
		return ""
	}
	return fmt.Sprintf(" -m mac --mac-source %s", p.Source)
}
