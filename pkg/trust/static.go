// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package trust

import "sync"

// DeviceSignals is the raw signal set for one device as held by a
// StaticSource.
type DeviceSignals struct {
	Known                bool
	TrustedManufacturer  bool
	MinimalPermissions   bool
	Threats              int
	Anomalies            int
	WeakEncryption       bool
	ExcessiveConnections bool
	RecentlyAdded        bool
}

// StaticSource is an in-memory SignalSource backed by a device
// table. Devices absent from the table report the zero signal set
// (unknown, clean). It is safe for concurrent use.
type StaticSource struct {
	mu      sync.RWMutex
	devices map[string]DeviceSignals
}

// NewStaticSource builds an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{devices: make(map[string]DeviceSignals)}
}

// SetDevice records the signals for a device, replacing any previous
// entry.
func (s *StaticSource) SetDevice(deviceID string, sig DeviceSignals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[deviceID] = sig
}

func (s *StaticSource) get(deviceID string) DeviceSignals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[deviceID]
}

func (s *StaticSource) KnownDevice(deviceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.devices[deviceID]
	return ok && sig.Known, nil
}

func (s *StaticSource) TrustedManufacturer(deviceID string) (bool, error) {
	return s.get(deviceID).TrustedManufacturer, nil
}

func (s *StaticSource) MinimalPermissions(deviceID string) (bool, error) {
	return s.get(deviceID).MinimalPermissions, nil
}

func (s *StaticSource) ThreatCount(deviceID string) (int, error) {
	return s.get(deviceID).Threats, nil
}

func (s *StaticSource) AnomalyCount(deviceID string) (int, error) {
	return s.get(deviceID).Anomalies, nil
}

func (s *StaticSource) WeakEncryption(deviceID string) (bool, error) {
	return s.get(deviceID).WeakEncryption, nil
}

func (s *StaticSource) ExcessiveConnections(deviceID string) (bool, error) {
	return s.get(deviceID).ExcessiveConnections, nil
}

func (s *StaticSource) RecentlyAdded(deviceID string) (bool, error) {
	return s.get(deviceID).RecentlyAdded, nil
}
