// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trustCondition(op Operator, n float64) Condition {
	return Condition{Type: CondTrustScore, Operator: op, Value: NumberValue(n)}
}

// TestDetectConflicts tests the overlap heuristic
func TestDetectConflicts(t *testing.T) {
	existing := Policy{
		ID:          7,
		Name:        "Existing Block",
		Source:      "any",
		Destination: "any",
		Conditions:  []Condition{trustCondition(OpLTE, 30)},
		Action:      ActionBlock,
		Priority:    50,
		Enabled:     true,
	}

	testCases := []struct {
		name             string
		candidate        Policy
		expectConflict   bool
		expectedSeverity string
	}{
		{
			name: "same selectors different action same priority",
			candidate: Policy{
				Name: "New Allow", Source: "any", Destination: "any",
				Conditions: []Condition{trustCondition(OpGTE, 20)},
				Action:     ActionAllow, Priority: 50,
			},
			expectConflict:   true,
			expectedSeverity: "high",
		},
		{
			name: "different priority downgrades severity",
			candidate: Policy{
				Name: "New Allow", Source: "any", Destination: "any",
				Conditions: []Condition{trustCondition(OpGTE, 20)},
				Action:     ActionAllow, Priority: 80,
			},
			expectConflict:   true,
			expectedSeverity: "medium",
		},
		{
			name: "same action never conflicts",
			candidate: Policy{
				Name: "Another Block", Source: "any", Destination: "any",
				Conditions: []Condition{trustCondition(OpLTE, 10)},
				Action:     ActionBlock, Priority: 50,
			},
			expectConflict: false,
		},
		{
			name: "disjoint condition types",
			candidate: Policy{
				Name: "Zone Allow", Source: "any", Destination: "any",
				Conditions: []Condition{{Type: CondNetworkZone, Operator: OpEQ, Value: StringValue("guest")}},
				Action:     ActionAllow, Priority: 50,
			},
			expectConflict: false,
		},
		{
			name: "empty condition list overlaps with anything",
			candidate: Policy{
				Name: "Blanket Allow", Source: "any", Destination: "any",
				Conditions: []Condition{},
				Action:     ActionAllow, Priority: 50,
			},
			expectConflict:   true,
			expectedSeverity: "high",
		},
		{
			name: "non overlapping selectors",
			candidate: Policy{
				Name: "Scoped Allow", Source: "AA:BB:CC:DD:EE:FF", Destination: "8.8.8.8",
				Conditions: []Condition{trustCondition(OpGTE, 20)},
				Action:     ActionAllow, Priority: 50,
			},
			// existing uses "any" for both selectors, which overlaps
			expectConflict:   true,
			expectedSeverity: "high",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conflicts := DetectConflicts(&tc.candidate, []Policy{existing})
			if !tc.expectConflict {
				assert.Empty(t, conflicts)
				return
			}
			require.Len(t, conflicts, 1)
			assert.Equal(t, int64(7), conflicts[0].PolicyID)
			assert.Equal(t, "Existing Block", conflicts[0].PolicyName)
			assert.Equal(t, tc.candidate.Action, conflicts[0].NewAction)
			assert.Equal(t, ActionBlock, conflicts[0].ExistingAction)
			assert.Equal(t, tc.expectedSeverity, conflicts[0].Severity)
		})
	}
}

// TestDetectConflicts_SelectorEquality tests the selector overlap rule
// when neither side is a wildcard
func TestDetectConflicts_SelectorEquality(t *testing.T) {
	existing := Policy{
		ID: 3, Name: "Guest Block",
		Source: "zone:guest", Destination: "192.168.0.0/16",
		Action: ActionBlock, Priority: 80, Enabled: true,
	}

	same := Policy{
		Name: "Guest Allow", Source: "zone:guest", Destination: "192.168.0.0/16",
		Action: ActionAllow, Priority: 40,
	}
	assert.Len(t, DetectConflicts(&same, []Policy{existing}), 1)

	other := Policy{
		Name: "Main Allow", Source: "zone:main", Destination: "192.168.0.0/16",
		Action: ActionAllow, Priority: 40,
	}
	assert.Empty(t, DetectConflicts(&other, []Policy{existing}))
}

// TestDetectConflicts_SkipsSelf tests that a policy is never reported
// as conflicting with itself during update checks
func TestDetectConflicts_SkipsSelf(t *testing.T) {
	p := Policy{
		ID: 12, Name: "Self",
		Source: "any", Destination: "any",
		Action: ActionBlock, Priority: 50, Enabled: true,
	}
	candidate := p
	candidate.Action = ActionAllow

	assert.Empty(t, DetectConflicts(&candidate, []Policy{p}))
}
