// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package enforce

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each iptables invocation so one hung apply
// cannot stall a whole batch.
const DefaultTimeout = 5 * time.Second

// IPTables runs the system iptables binary. Each call is bounded by
// Timeout; on expiry the command is killed and an error returned.
type IPTables struct {
	// Binary is the iptables executable, "iptables" by default.
	Binary string

	// Timeout bounds each invocation, DefaultTimeout when zero.
	Timeout time.Duration

	// runner is swapped in tests.
	runner func(ctx context.Context, name string, args ...string) error
}

// NewIPTables builds an enforcer with defaults.
func NewIPTables() *IPTables {
	return &IPTables{
		Binary:  "iptables",
		Timeout: DefaultTimeout,
	}
}

// Clear flushes the managed chain. A missing chain is not an error;
// it is created empty instead, so the first apply on a clean host
// starts from the same state as a flush.
func (t *IPTables) Clear(ctx context.Context, chain string) error {
	if err := t.run(ctx, "-F", chain); err != nil {
		if newErr := t.run(ctx, "-N", chain); newErr == nil {
			log.Debugf("Created chain %s", chain)
			return nil
		}
		return fmt.Errorf("failed to flush chain %s: %w", chain, err)
	}
	return nil
}

// Apply installs one rule. The rule text is the argument list
// emitted by the directive translator.
func (t *IPTables) Apply(ctx context.Context, rule string) error {
	args := strings.Fields(rule)
	if len(args) == 0 {
		return fmt.Errorf("empty enforcement rule")
	}
	if err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to apply rule %q: %w", rule, err)
	}
	return nil
}

func (t *IPTables) run(ctx context.Context, args ...string) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := t.Binary
	if binary == "" {
		binary = "iptables"
	}

	if t.runner != nil {
		return t.runner(ctx, binary, args...)
	}

	out, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
