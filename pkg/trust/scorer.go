// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package trust computes 0-100 trustworthiness scores for network
// devices from weighted signals, with a TTL cache and support for
// manual overrides.
package trust

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Level is the discrete trust band derived from a score.
type Level string

const (
	LevelHighlyTrusted Level = "highly_trusted"
	LevelTrusted       Level = "trusted"
	LevelNeutral       Level = "neutral"
	LevelLowTrust      Level = "low_trust"
	LevelUntrusted     Level = "untrusted"
)

// LevelFor maps a score onto its level. Thresholds are inclusive
// lower bounds: >=90 highly_trusted, >=70 trusted, >=50 neutral,
// >=30 low_trust, else untrusted.
func LevelFor(score int) Level {
	switch {
	case score >= 90:
		return LevelHighlyTrusted
	case score >= 70:
		return LevelTrusted
	case score >= 50:
		return LevelNeutral
	case score >= 30:
		return LevelLowTrust
	default:
		return LevelUntrusted
	}
}

// Recommendation returns the operator guidance for a score.
func Recommendation(score int) string {
	switch {
	case score >= 90:
		return "Full network access recommended"
	case score >= 70:
		return "Normal access with monitoring"
	case score >= 50:
		return "Limited access, monitor closely"
	case score >= 30:
		return "Restricted access recommended"
	default:
		return "Quarantine or block recommended"
	}
}

// Factor records one firing signal's contribution to a score.
// Non-firing signals are absent from the factor map, not recorded
// with zero impact.
type Factor struct {
	Impact int    `json:"impact"`
	Reason string `json:"reason"`
}

// Record is a computed trust score for one device. Level is always
// consistent with Score via LevelFor.
type Record struct {
	DeviceID       string            `json:"device_id"`
	Score          int               `json:"score"`
	Level          Level             `json:"level"`
	Factors        map[string]Factor `json:"factors"`
	CalculatedAt   time.Time         `json:"calculated_at"`
	Recommendation string            `json:"recommendation"`
	ManualOverride bool              `json:"manual_override"`
	ManualScore    int               `json:"manual_score,omitempty"`
}

// SignalSource supplies the raw signal inputs for scoring. Every
// method failure degrades to "signal does not fire"; the scorer
// never surfaces collaborator errors.
type SignalSource interface {
	KnownDevice(deviceID string) (bool, error)
	TrustedManufacturer(deviceID string) (bool, error)
	MinimalPermissions(deviceID string) (bool, error)
	ThreatCount(deviceID string) (int, error)
	AnomalyCount(deviceID string) (int, error)
	WeakEncryption(deviceID string) (bool, error)
	ExcessiveConnections(deviceID string) (bool, error)
	RecentlyAdded(deviceID string) (bool, error)
}

// CacheTTL is how long a computed record stays authoritative.
// Repeated Calculate calls inside the TTL return the identical
// record, same CalculatedAt included.
const CacheTTL = 5 * time.Minute

const baseline = 50

// Scorer computes and caches trust scores. It is safe for
// concurrent use. The cache is owned by the scorer instance, not
// shared process-global state.
type Scorer struct {
	source SignalSource
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]*Record
}

// NewScorer builds a scorer over a signal source with the default
// TTL.
func NewScorer(source SignalSource) *Scorer {
	return &Scorer{
		source: source,
		ttl:    CacheTTL,
		now:    time.Now,
		cache:  make(map[string]*Record),
	}
}

// Calculate returns the trust score record for a device, serving
// from cache inside the TTL. Manually overridden records are pinned
// until Recalculate.
func (s *Scorer) Calculate(deviceID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.cache[deviceID]; ok {
		if rec.ManualOverride || s.now().Sub(rec.CalculatedAt) < s.ttl {
			return rec
		}
	}

	rec := s.compute(deviceID)
	s.cache[deviceID] = rec
	return rec
}

// Recalculate discards any cached or overridden record and computes
// a fresh one.
func (s *Scorer) Recalculate(deviceID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.compute(deviceID)
	s.cache[deviceID] = rec
	return rec
}

// Override pins a manual score for a device. The level is recomputed
// from the standard thresholds and a zero-impact manual_override
// factor is added; the previously computed factors are kept for
// transparency.
func (s *Scorer) Override(deviceID string, score int, reason string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.cache[deviceID]
	if !ok {
		prev = s.compute(deviceID)
	}

	score = clamp(score)
	factors := make(map[string]Factor, len(prev.Factors)+1)
	for name, f := range prev.Factors {
		factors[name] = f
	}
	factors["manual_override"] = Factor{Impact: 0, Reason: reason}

	rec := &Record{
		DeviceID:       deviceID,
		Score:          score,
		Level:          LevelFor(score),
		Factors:        factors,
		CalculatedAt:   prev.CalculatedAt,
		Recommendation: Recommendation(score),
		ManualOverride: true,
		ManualScore:    score,
	}
	s.cache[deviceID] = rec

	log.Infof("Trust score overridden for %s: %d (%s)", deviceID, score, reason)
	return rec
}

// Invalidate drops a device's cached record.
func (s *Scorer) Invalidate(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, deviceID)
}

// RecalculateAll recomputes scores for a set of devices.
func (s *Scorer) RecalculateAll(deviceIDs []string) map[string]*Record {
	results := make(map[string]*Record, len(deviceIDs))
	for _, id := range deviceIDs {
		results[id] = s.Recalculate(id)
	}
	return results
}

// Summary aggregates trust levels across a set of devices.
type Summary struct {
	ByLevel      map[Level]int `json:"by_level"`
	Total        int           `json:"total"`
	AverageScore float64       `json:"average_score"`
}

// Summarize recomputes and tallies trust levels for the given
// devices.
func (s *Scorer) Summarize(deviceIDs []string) Summary {
	summary := Summary{
		ByLevel: map[Level]int{
			LevelHighlyTrusted: 0,
			LevelTrusted:       0,
			LevelNeutral:       0,
			LevelLowTrust:      0,
			LevelUntrusted:     0,
		},
		Total: len(deviceIDs),
	}

	total := 0
	for _, id := range deviceIDs {
		rec := s.Calculate(id)
		summary.ByLevel[rec.Level]++
		total += rec.Score
	}
	if len(deviceIDs) > 0 {
		summary.AverageScore = float64(total) / float64(len(deviceIDs))
	}
	return summary
}

// compute runs the weighted signal checks. Caller holds s.mu.
func (s *Scorer) compute(deviceID string) *Record {
	score := baseline
	factors := make(map[string]Factor)

	threatCount := s.intSignal(deviceID, "threat_count", s.source.ThreatCount)

	if s.boolSignal(deviceID, "known_device", s.source.KnownDevice) {
		score += 20
		factors["known_device"] = Factor{Impact: 20, Reason: "Device seen before"}
	}
	if threatCount == 0 {
		score += 15
		factors["clean_history"] = Factor{Impact: 15, Reason: "No threats detected"}
	}
	if s.boolSignal(deviceID, "trusted_manufacturer", s.source.TrustedManufacturer) {
		score += 10
		factors["trusted_manufacturer"] = Factor{Impact: 10, Reason: "Reputable manufacturer"}
	}
	if s.boolSignal(deviceID, "minimal_permissions", s.source.MinimalPermissions) {
		score += 5
		factors["minimal_permissions"] = Factor{Impact: 5, Reason: "Limited network access"}
	}

	if threatCount > 0 {
		impact := -5 * threatCount
		score += impact
		factors["threats"] = Factor{Impact: impact, Reason: fmt.Sprintf("%d threats detected", threatCount)}
	}
	if anomalyCount := s.intSignal(deviceID, "anomaly_count", s.source.AnomalyCount); anomalyCount > 0 {
		capped := anomalyCount
		if capped > 5 {
			capped = 5
		}
		impact := -10 * capped
		score += impact
		factors["anomalies"] = Factor{Impact: impact, Reason: fmt.Sprintf("%d ML anomalies", anomalyCount)}
	}
	if s.boolSignal(deviceID, "weak_encryption", s.source.WeakEncryption) {
		score -= 15
		factors["weak_encryption"] = Factor{Impact: -15, Reason: "Using outdated encryption"}
	}
	if s.boolSignal(deviceID, "excessive_connections", s.source.ExcessiveConnections) {
		score -= 10
		factors["excessive_connections"] = Factor{Impact: -10, Reason: "Unusually high connection count"}
	}
	if s.boolSignal(deviceID, "recently_added", s.source.RecentlyAdded) {
		score -= 10
		factors["new_device"] = Factor{Impact: -10, Reason: "Recently added to network"}
	}

	score = clamp(score)

	return &Record{
		DeviceID:       deviceID,
		Score:          score,
		Level:          LevelFor(score),
		Factors:        factors,
		CalculatedAt:   s.now(),
		Recommendation: Recommendation(score),
	}
}

func (s *Scorer) boolSignal(deviceID, name string, check func(string) (bool, error)) bool {
	fired, err := check(deviceID)
	if err != nil {
		log.Warnf("Trust signal %s unavailable for %s: %v", name, deviceID, err)
		return false
	}
	return fired
}

func (s *Scorer) intSignal(deviceID, name string, check func(string) (int, error)) int {
	count, err := check(deviceID)
	if err != nil {
		log.Warnf("Trust signal %s unavailable for %s: %v", name, deviceID, err)
		return 0
	}
	return count
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

