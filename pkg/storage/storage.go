// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package storage provides durable persistence for policies, their
// conditions, trust-score records, and the append-only decision
// audit log.
package storage

import (
	"errors"
	"time"

	"github.com/SanketKarpe/srujan/pkg/policy"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

// ErrNotFound is returned for an unknown policy id on
// get/update/delete.
var ErrNotFound = errors.New("policy not found")

// ErrDuplicateName is returned when a create or update would violate
// policy name uniqueness.
var ErrDuplicateName = errors.New("policy name already exists")

// AuditRecord is one append-only entry in the decision audit log.
// Records are immutable once written.
type AuditRecord struct {
	ID          int64         `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	PolicyID    int64         `json:"policy_id"`
	PolicyName  string        `json:"policy_name"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Action      policy.Action `json:"action"`
	Matched     bool          `json:"matched"`
}

// PolicyUpdate carries a partial policy update; nil fields are left
// unchanged. A non-nil Conditions slice replaces the whole condition
// list.
type PolicyUpdate struct {
	Name        *string
	Description *string
	Source      *string
	Destination *string
	Action      *policy.Action
	Priority    *int
	Enabled     *bool
	Conditions  *[]policy.Condition
}

// Store is the persistence contract the engine depends on.
type Store interface {
	// CreatePolicy persists a policy and its conditions, returning
	// the generated id. Name uniqueness is enforced here.
	CreatePolicy(p *policy.Policy) (int64, error)

	// GetPolicy fetches one policy with its conditions in stored
	// order.
	GetPolicy(id int64) (*policy.Policy, error)

	// ListPolicies returns all policies sorted by priority
	// descending, insertion order among ties.
	ListPolicies() ([]policy.Policy, error)

	// ListEnabledPolicies returns only enabled policies in the same
	// order.
	ListEnabledPolicies() ([]policy.Policy, error)

	// UpdatePolicy applies a partial update and returns the updated
	// policy.
	UpdatePolicy(id int64, upd PolicyUpdate) (*policy.Policy, error)

	// DeletePolicy removes a policy and its conditions.
	DeletePolicy(id int64) error

	// SaveTrustScore upserts a trust-score record.
	SaveTrustScore(rec *trust.Record) error

	// GetTrustScore fetches the stored record for a device, nil when
	// absent.
	GetTrustScore(deviceID string) (*trust.Record, error)

	// ListTrustScores returns all stored records, highest score
	// first.
	ListTrustScores() ([]trust.Record, error)

	// AppendAudit appends one audit record.
	AppendAudit(rec *AuditRecord) error

	// ListAudit returns the newest audit records, optionally scoped
	// to one policy, bounded by limit.
	ListAudit(policyID int64, limit int) ([]AuditRecord, error)

	// Close releases the underlying connection.
	Close() error
}
