// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package enforce wraps the external packet-filter mechanism behind
// a narrow interface. The engine only depends on Clear and Apply;
// everything about the mechanism's syntax lives in the directives it
// is handed.
package enforce

import "context"

// Enforcer applies enforcement directives to the packet filter.
type Enforcer interface {
	// Clear flushes every rule in the managed chain.
	Clear(ctx context.Context, chain string) error

	// Apply installs one directive (the rule argument text).
	Apply(ctx context.Context, rule string) error
}
