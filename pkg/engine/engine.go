// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package engine orchestrates policy decisions: it loads the active
// policy snapshot, builds per-connection evaluation contexts,
// evaluates them first-match-wins, records audit entries, and
// translates policies into enforcement directives in batch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/SanketKarpe/srujan/pkg/enforce"
	"github.com/SanketKarpe/srujan/pkg/policy"
	"github.com/SanketKarpe/srujan/pkg/storage"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

// ErrApplyInProgress is returned when ApplyPolicies is invoked while
// another application batch is still running. The batch performs a
// destructive clear-then-rebuild, so two must never interleave.
var ErrApplyInProgress = errors.New("policy application already in progress")

// Neutral defaults for context attributes the resolver does not
// supply.
const (
	DefaultDeviceCategory = "unknown"
	DefaultNetworkZone    = "default"
	DefaultMLRiskLevel    = "low"
)

// Engine evaluates connections against the active policy snapshot
// and drives enforcement. Evaluation is safe for concurrent callers;
// the snapshot is swapped atomically on reload so readers always see
// either the old or the new list in full.
type Engine struct {
	store    storage.Store
	scorer   *trust.Scorer
	enforcer enforce.Enforcer
	resolver Resolver
	dryRun   bool
	now      func() time.Time

	mu     sync.RWMutex
	active []policy.Policy

	applyMu sync.Mutex
}

// New builds an engine. In dry-run mode ApplyPolicies makes no
// external calls but still counts would-be applications as applied.
func New(store storage.Store, scorer *trust.Scorer, enforcer enforce.Enforcer, resolver Resolver, dryRun bool) *Engine {
	return &Engine{
		store:    store,
		scorer:   scorer,
		enforcer: enforcer,
		resolver: resolver,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// LoadPolicies fetches the enabled policies and atomically replaces
// the active snapshot. On store failure the previous snapshot keeps
// serving; stale-but-valid beats empty.
func (e *Engine) LoadPolicies() error {
	policies, err := e.store.ListEnabledPolicies()
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	// The store already orders by priority; the stable sort keeps
	// insertion order among equal priorities even if it did not.
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].Priority > policies[j].Priority
	})

	e.mu.Lock()
	e.active = policies
	e.mu.Unlock()

	log.Infof("Loaded %d active policies", len(policies))
	return nil
}

func (e *Engine) snapshot() []policy.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// BuildContext assembles the evaluation context for one connection:
// device identity, resolver attributes, the trust score, wall clock,
// and caller extras. Extras override everything else; omitted extras
// fall back to the documented neutral defaults.
func (e *Engine) BuildContext(sourceID, destIP string, extras map[string]interface{}) policy.Context {
	ctx := policy.Context{
		policy.AttrSourceMAC:      sourceID,
		policy.AttrDestinationIP:  destIP,
		policy.AttrDeviceCategory: DefaultDeviceCategory,
		policy.AttrNetworkZone:    DefaultNetworkZone,
		policy.AttrMLRiskLevel:    DefaultMLRiskLevel,
	}

	if e.resolver != nil {
		attrs, err := e.resolver.Attributes(sourceID)
		if err != nil {
			log.Warnf("Device resolver unavailable for %s: %v", sourceID, err)
		} else {
			for key, value := range attrs {
				ctx[key] = value
			}
		}
	}

	rec := e.scorer.Calculate(sourceID)
	ctx[policy.AttrTrustScore] = rec.Score
	ctx[policy.AttrTrustLevel] = string(rec.Level)

	now := e.now()
	ctx[policy.AttrTime] = now.Format("15:04")
	ctx[policy.AttrDayOfWeek] = now.Weekday().String()

	for key, value := range extras {
		ctx[key] = value
	}

	return ctx
}

// EvaluateConnection returns the action and matching policy for a
// connection, first-match-wins over the priority-sorted snapshot.
// With no match the default is allow with no policy. Exactly one
// audit record is written per call; an audit write failure is logged
// and swallowed, never altering the decision.
func (e *Engine) EvaluateConnection(sourceID, destIP string, extras map[string]interface{}) (policy.Action, *policy.Policy) {
	ctx := e.BuildContext(sourceID, destIP, extras)

	for _, p := range e.snapshot() {
		if !p.ShouldApply(ctx) {
			continue
		}
		matched := p
		e.audit(&storage.AuditRecord{
			PolicyID:    matched.ID,
			PolicyName:  matched.Name,
			Source:      sourceID,
			Destination: destIP,
			Action:      matched.Action,
			Matched:     true,
		})
		log.Infof("Policy %q matched for %s -> %s, action=%s", matched.Name, sourceID, destIP, matched.Action)
		return matched.Action, &matched
	}

	e.audit(&storage.AuditRecord{
		Source:      sourceID,
		Destination: destIP,
		Action:      policy.ActionAllow,
		Matched:     false,
	})
	log.Debugf("No policy matched for %s -> %s, allowing by default", sourceID, destIP)
	return policy.ActionAllow, nil
}

func (e *Engine) audit(rec *storage.AuditRecord) {
	rec.Timestamp = e.now().UTC()
	if err := e.store.AppendAudit(rec); err != nil {
		log.Warnf("Failed to write audit record: %v", err)
	}
}

// DetectConflicts checks a candidate policy against the active
// snapshot. Conflicts are advisory; callers still create the policy.
func (e *Engine) DetectConflicts(candidate *policy.Policy) []policy.Conflict {
	return policy.DetectConflicts(candidate, e.snapshot())
}

// ApplyResult summarizes one enforcement batch.
type ApplyResult struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ApplyPolicies clears the enforcement chain and re-applies every
// enabled policy in priority order. The batch is single-flight: a
// concurrent invocation is rejected with ErrApplyInProgress rather
// than interleaved. Per-policy failures are counted and never abort
// the batch; actions without an enforcement translation are counted
// as skipped.
func (e *Engine) ApplyPolicies(ctx context.Context) (*ApplyResult, error) {
	if !e.applyMu.TryLock() {
		return nil, ErrApplyInProgress
	}
	defer e.applyMu.Unlock()

	result := &ApplyResult{}
	active := e.snapshot()

	if e.dryRun {
		log.Infof("DRY RUN: would flush chain %s", policy.Chain)
	} else if err := e.enforcer.Clear(ctx, policy.Chain); err != nil {
		log.Warnf("Failed to clear enforcement chain: %v", err)
	}

	for i := range active {
		p := &active[i]

		directives, err := policy.BuildDirectives(p)
		if err != nil {
			if errors.Is(err, policy.ErrUnsupportedAction) {
				result.Skipped++
				log.Warnf("Policy %q skipped: %v", p.Name, err)
			} else {
				result.Failed++
				log.Errorf("Failed to translate policy %q: %v", p.Name, err)
			}
			continue
		}

		if e.dryRun {
			for _, d := range directives {
				log.Infof("DRY RUN: would apply: %s", d.Rule)
			}
			result.Applied++
			continue
		}

		if err := e.applyDirectives(ctx, directives); err != nil {
			result.Failed++
			log.Errorf("Failed to apply policy %q: %v", p.Name, err)
			continue
		}
		result.Applied++
		log.Infof("Applied policy %q", p.Name)
	}

	log.Infof("Policy application complete: applied=%d failed=%d skipped=%d",
		result.Applied, result.Failed, result.Skipped)
	return result, nil
}

func (e *Engine) applyDirectives(ctx context.Context, directives []policy.Directive) error {
	// Directive order within a policy is significant (quarantine's
	// DNS allow precedes its deny-all).
	for _, d := range directives {
		if err := e.enforcer.Apply(ctx, d.Rule); err != nil {
			return err
		}
	}
	return nil
}

// TestResult is the outcome of testing one context against a policy.
type TestResult struct {
	TestCase   int            `json:"test_case"`
	Context    policy.Context `json:"context"`
	WouldApply bool           `json:"would_apply"`
	Action     string         `json:"action"`
	Priority   int            `json:"priority"`
}

// TestPolicy evaluates a policy against literal contexts. It is pure:
// no audit records, no enforcement state, no trust-score lookups.
func (e *Engine) TestPolicy(p *policy.Policy, contexts []policy.Context) []TestResult {
	results := make([]TestResult, 0, len(contexts))
	for i, ctx := range contexts {
		wouldApply := p.ShouldApply(ctx)
		action := "default_allow"
		if wouldApply {
			action = string(p.Action)
		}
		results = append(results, TestResult{
			TestCase:   i,
			Context:    ctx,
			WouldApply: wouldApply,
			Action:     action,
			Priority:   p.Priority,
		})
	}
	return results
}

// Suggestion is a draft policy proposed for a device.
type Suggestion struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Template    string             `json:"template"`
	Source      string             `json:"source"`
	Destination string             `json:"destination"`
	Conditions  []policy.Condition `json:"conditions"`
	Action      policy.Action      `json:"action"`
	Priority    int                `json:"priority"`
	Confidence  float64            `json:"confidence"`
	Reason      string             `json:"reason"`
}

// SuggestPolicies proposes draft policies from the device's trust
// score: below 30 yields exactly one quarantine suggestion, anything
// else none.
func (e *Engine) SuggestPolicies(deviceID string) []Suggestion {
	rec := e.scorer.Calculate(deviceID)
	if rec.Score >= 30 {
		return nil
	}

	names := make([]string, 0, len(rec.Factors))
	for name := range rec.Factors {
		names = append(names, name)
	}
	sort.Strings(names)

	return []Suggestion{{
		Name:        fmt.Sprintf("Quarantine Low Trust - %s", deviceID),
		Description: fmt.Sprintf("Device has very low trust score (%d)", rec.Score),
		Template:    "low_trust_quarantine",
		Source:      deviceID,
		Destination: "any",
		Conditions: []policy.Condition{
			{Type: policy.CondTrustScore, Operator: policy.OpLTE, Value: policy.NumberValue(30)},
		},
		Action:     policy.ActionQuarantine,
		Priority:   90,
		Confidence: 0.92,
		Reason:     fmt.Sprintf("Trust factors: %v", names),
	}}
}
