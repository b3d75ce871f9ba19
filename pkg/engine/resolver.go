// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package engine

import "sync"

// Resolver supplies device attributes (device_category,
// network_zone, ml_risk_level) for context building. Attributes it
// omits fall back to the neutral defaults; a resolver failure leaves
// all defaults in place.
type Resolver interface {
	Attributes(deviceID string) (map[string]string, error)
}

// StaticResolver is an in-memory Resolver backed by a device table.
// It is safe for concurrent use.
type StaticResolver struct {
	mu      sync.RWMutex
	devices map[string]map[string]string
}

// NewStaticResolver builds an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{devices: make(map[string]map[string]string)}
}

// SetDevice records attributes for a device, replacing any previous
// entry.
func (r *StaticResolver) SetDevice(deviceID string, attrs map[string]string) {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[deviceID] = copied
}

// Attributes returns the stored attributes for a device; unknown
// devices return an empty map.
func (r *StaticResolver) Attributes(deviceID string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attrs, ok := r.devices[deviceID]
	if !ok {
		return map[string]string{}, nil
	}
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return copied, nil
}
