// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

// Conflict reports that two enabled policies could disagree on the
// same traffic. Conflicts are advisory; creation succeeds even when
// they are reported.
type Conflict struct {
	PolicyID       int64  `json:"policy_id"`
	PolicyName     string `json:"policy_name"`
	Reason         string `json:"reason"`
	NewAction      Action `json:"new_action"`
	ExistingAction Action `json:"existing_action"`
	Severity       string `json:"severity"` // "high" on equal priority, else "medium"
}

// DetectConflicts checks a candidate against every active policy.
// A conflict is raised when the source selectors overlap, the
// destination selectors overlap, the actions differ, and the
// condition-type sets intersect (an empty condition list overlaps
// with anything).
//
// This is a conservative type-level heuristic: it does not compare
// condition value ranges, so false positives are expected and false
// negatives avoided.
func DetectConflicts(candidate *Policy, active []Policy) []Conflict {
	var conflicts []Conflict

	for i := range active {
		existing := &active[i]
		if candidate.ID != 0 && existing.ID == candidate.ID {
			continue
		}
		if !selectorsOverlap(candidate.Source, existing.Source) {
			continue
		}
		if !selectorsOverlap(candidate.Destination, existing.Destination) {
			continue
		}
		if candidate.Action == existing.Action {
			continue
		}
		if !conditionTypesOverlap(candidate.Conditions, existing.Conditions) {
			continue
		}

		severity := "medium"
		if candidate.Priority == existing.Priority {
			severity = "high"
		}
		conflicts = append(conflicts, Conflict{
			PolicyID:       existing.ID,
			PolicyName:     existing.Name,
			Reason:         "overlapping conditions with different actions",
			NewAction:      candidate.Action,
			ExistingAction: existing.Action,
			Severity:       severity,
		})
	}

	return conflicts
}

func selectorsOverlap(a, b string) bool {
	return a == b || a == "any" || b == "any"
}

func conditionTypesOverlap(a, b []Condition) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	types := make(map[ConditionType]bool, len(a))
	for _, c := range a {
		types[c.Type] = true
	}
	for _, c := range b {
		if types[c.Type] {
			return true
		}
	}
	return false
}
