// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package policy

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAction marks actions that are valid decisions but
// have no enforcement translation (rate_limit, allow_priority).
// Callers must surface these explicitly instead of emitting a no-op
// rule.
var ErrUnsupportedAction = errors.New("action has no enforcement translation")

// ValidationError reports a malformed policy or condition. It is
// raised only at create/update time.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
