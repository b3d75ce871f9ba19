// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/SanketKarpe/srujan/pkg/policy"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and initializes the
// schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers on a single connection, which also
	// makes name-uniqueness checks deterministic under concurrency.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Infof("Policy storage initialized: %s", dbPath)
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		action TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 50,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policy_conditions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		operator TEXT NOT NULL,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conditions_policy ON policy_conditions(policy_id);

	CREATE TABLE IF NOT EXISTS trust_scores (
		device_id TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		level TEXT NOT NULL,
		factors TEXT NOT NULL,
		calculated_at DATETIME NOT NULL,
		manual_override BOOLEAN NOT NULL DEFAULT 0,
		manual_score INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS policy_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		policy_id INTEGER NOT NULL,
		policy_name TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		action TEXT NOT NULL,
		matched BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_policy ON policy_logs(policy_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreatePolicy persists the policy and its conditions in one
// transaction and returns the generated id.
func (s *SQLiteStore) CreatePolicy(p *policy.Policy) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`
		INSERT INTO policies (name, description, source, destination, action, priority, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Source, p.Destination, string(p.Action), p.Priority, p.Enabled, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
		return 0, fmt.Errorf("failed to create policy: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read generated id: %w", err)
	}

	if err := insertConditions(tx, id, p.Conditions); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit policy: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now

	log.Debugf("Policy created: id=%d name=%q", id, p.Name)
	return id, nil
}

func insertConditions(tx *sql.Tx, policyID int64, conditions []policy.Condition) error {
	for _, c := range conditions {
		raw, err := json.Marshal(c.Value)
		if err != nil {
			return fmt.Errorf("failed to encode condition value: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO policy_conditions (policy_id, type, operator, value)
			VALUES (?, ?, ?, ?)`,
			policyID, string(c.Type), string(c.Operator), string(raw),
		); err != nil {
			return fmt.Errorf("failed to save condition: %w", err)
		}
	}
	return nil
}

// GetPolicy fetches one policy with its conditions in insertion
// order.
func (s *SQLiteStore) GetPolicy(id int64) (*policy.Policy, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, source, destination, action, priority, enabled, created_at, updated_at
		FROM policies WHERE id = ?`, id)

	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
		}
		return nil, err
	}

	if err := s.loadConditions(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) loadConditions(p *policy.Policy) error {
	rows, err := s.db.Query(`
		SELECT type, operator, value FROM policy_conditions
		WHERE policy_id = ? ORDER BY id ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query conditions: %w", err)
	}
	defer rows.Close()

	conditions := []policy.Condition{}
	for rows.Next() {
		var condType, operator, raw string
		if err := rows.Scan(&condType, &operator, &raw); err != nil {
			return fmt.Errorf("failed to scan condition: %w", err)
		}
		var value policy.Value
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("failed to decode condition value: %w", err)
		}
		c := policy.Condition{
			Type:     policy.ConditionType(condType),
			Operator: policy.Operator(operator),
			Value:    value,
		}
		// Re-normalize persisted shapes (e.g. string bounds stored
		// as a two-element array).
		if err := c.Validate(); err != nil {
			return fmt.Errorf("stored condition invalid for policy %d: %w", p.ID, err)
		}
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating conditions: %w", err)
	}

	p.Conditions = conditions
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row rowScanner) (*policy.Policy, error) {
	var p policy.Policy
	var action string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Source, &p.Destination,
		&action, &p.Priority, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Action = policy.Action(action)
	return &p, nil
}

// ListPolicies returns all policies sorted by priority descending;
// insertion order (ascending id) breaks ties, so updates never
// reshuffle equal-priority policies.
func (s *SQLiteStore) ListPolicies() ([]policy.Policy, error) {
	return s.listPolicies(false)
}

// ListEnabledPolicies returns only enabled policies in evaluation
// order.
func (s *SQLiteStore) ListEnabledPolicies() ([]policy.Policy, error) {
	return s.listPolicies(true)
}

func (s *SQLiteStore) listPolicies(enabledOnly bool) ([]policy.Policy, error) {
	query := `
		SELECT id, name, description, source, destination, action, priority, enabled, created_at, updated_at
		FROM policies`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY priority DESC, id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []policy.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	for i := range policies {
		if err := s.loadConditions(&policies[i]); err != nil {
			return nil, err
		}
	}

	return policies, nil
}

// UpdatePolicy applies a partial update inside a transaction and
// returns the updated policy.
func (s *SQLiteStore) UpdatePolicy(id int64, upd PolicyUpdate) (*policy.Policy, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fields := []string{}
	args := []interface{}{}
	appendField := func(name string, value interface{}) {
		fields = append(fields, name+" = ?")
		args = append(args, value)
	}

	if upd.Name != nil {
		appendField("name", *upd.Name)
	}
	if upd.Description != nil {
		appendField("description", *upd.Description)
	}
	if upd.Source != nil {
		appendField("source", *upd.Source)
	}
	if upd.Destination != nil {
		appendField("destination", *upd.Destination)
	}
	if upd.Action != nil {
		appendField("action", string(*upd.Action))
	}
	if upd.Priority != nil {
		appendField("priority", *upd.Priority)
	}
	if upd.Enabled != nil {
		appendField("enabled", *upd.Enabled)
	}
	appendField("updated_at", time.Now().UTC())
	args = append(args, id)

	query := "UPDATE policies SET "
	for i, f := range fields {
		if i > 0 {
			query += ", "
		}
		query += f
	}
	query += " WHERE id = ?"

	res, err := tx.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, *upd.Name)
		}
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	if upd.Conditions != nil {
		if _, err := tx.Exec(`DELETE FROM policy_conditions WHERE policy_id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to replace conditions: %w", err)
		}
		if err := insertConditions(tx, id, *upd.Conditions); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	log.Debugf("Policy updated: id=%d", id)
	return s.GetPolicy(id)
}

// DeletePolicy removes a policy and its conditions.
func (s *SQLiteStore) DeletePolicy(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM policies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	if _, err := tx.Exec(`DELETE FROM policy_conditions WHERE policy_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conditions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	log.Debugf("Policy deleted: id=%d", id)
	return nil
}

// SaveTrustScore upserts a trust-score record.
func (s *SQLiteStore) SaveTrustScore(rec *trust.Record) error {
	factors, err := json.Marshal(rec.Factors)
	if err != nil {
		return fmt.Errorf("failed to encode trust factors: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO trust_scores (device_id, score, level, factors, calculated_at, manual_override, manual_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			score = excluded.score,
			level = excluded.level,
			factors = excluded.factors,
			calculated_at = excluded.calculated_at,
			manual_override = excluded.manual_override,
			manual_score = excluded.manual_score`,
		rec.DeviceID, rec.Score, string(rec.Level), string(factors), rec.CalculatedAt,
		rec.ManualOverride, rec.ManualScore,
	)
	if err != nil {
		return fmt.Errorf("failed to save trust score: %w", err)
	}

	log.Debugf("Trust score saved: device=%s score=%d", rec.DeviceID, rec.Score)
	return nil
}

// GetTrustScore fetches the stored record for a device; nil, nil
// when absent.
func (s *SQLiteStore) GetTrustScore(deviceID string) (*trust.Record, error) {
	row := s.db.QueryRow(`
		SELECT device_id, score, level, factors, calculated_at, manual_override, manual_score
		FROM trust_scores WHERE device_id = ?`, deviceID)

	rec, err := scanTrustRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListTrustScores returns all stored records, highest score first.
func (s *SQLiteStore) ListTrustScores() ([]trust.Record, error) {
	rows, err := s.db.Query(`
		SELECT device_id, score, level, factors, calculated_at, manual_override, manual_score
		FROM trust_scores ORDER BY score DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust scores: %w", err)
	}
	defer rows.Close()

	var records []trust.Record
	for rows.Next() {
		rec, err := scanTrustRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trust scores: %w", err)
	}
	return records, nil
}

func scanTrustRecord(row rowScanner) (*trust.Record, error) {
	var rec trust.Record
	var level, factors string
	if err := row.Scan(&rec.DeviceID, &rec.Score, &level, &factors,
		&rec.CalculatedAt, &rec.ManualOverride, &rec.ManualScore); err != nil {
		return nil, err
	}
	rec.Level = trust.Level(level)
	rec.Recommendation = trust.Recommendation(rec.Score)
	if err := json.Unmarshal([]byte(factors), &rec.Factors); err != nil {
		return nil, fmt.Errorf("failed to decode trust factors: %w", err)
	}
	return &rec, nil
}

// AppendAudit appends one audit record. Records are never updated or
// deleted here.
func (s *SQLiteStore) AppendAudit(rec *AuditRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO policy_logs (timestamp, policy_id, policy_name, source, destination, action, matched)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts, rec.PolicyID, rec.PolicyName, rec.Source, rec.Destination, string(rec.Action), rec.Matched,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit records, optionally scoped to
// one policy (policyID > 0), bounded by limit.
func (s *SQLiteStore) ListAudit(policyID int64, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if policyID > 0 {
		rows, err = s.db.Query(`
			SELECT id, timestamp, policy_id, policy_name, source, destination, action, matched
			FROM policy_logs WHERE policy_id = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?`, policyID, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT id, timestamp, policy_id, policy_name, source, destination, action, matched
			FROM policy_logs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var action string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.PolicyID, &rec.PolicyName,
			&rec.Source, &rec.Destination, &action, &rec.Matched); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Action = policy.Action(action)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
