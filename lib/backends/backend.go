// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backends

import (
	"fmt"
	"sort"
	"sync"
)

// Backend represents an inference backend that can create sessions.
// Backends self-register via init() functions in their respective files.
type Backend interface {
	// Type returns the backend type identifier
	Type() BackendType

	// Name returns a human-readable name (e.g., "ONNX Runtime (CUDA)")
	Name() string

	// Available returns true if this backend can be used in the current
	// environment. This checks for required libraries, hardware, etc.
	Available() bool

	// Priority returns the default priority (lower = higher priority).
	Priority() int

	// SessionFactory returns the factory for creating raw sessions.
	SessionFactory() SessionFactory
}

var (
	registry   = make(map[BackendType]Backend)
	registryMu sync.RWMutex
)

// RegisterBackend registers a backend. Called by backend implementations in
// init(). Thread-safe. Later registrations for the same type overwrite
// earlier ones.
func RegisterBackend(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Type()] = b
}

// GetBackend returns the backend for the given type, if registered.
func GetBackend(t BackendType) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[t]
	return b, ok
}

// ListAvailable returns all backends that are currently available for use,
// sorted by priority (lowest priority number first).
func ListAvailable() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Backend, 0, len(registry))
	for _, b := range registry {
		if b.Available() {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

// DefaultSessionFactory returns the session factory of the highest-priority
// available backend, or an error if no backend is compiled in.
func DefaultSessionFactory() (SessionFactory, error) {
	available := ListAvailable()
	if len(available) == 0 {
		return nil, fmt.Errorf("no inference backend available (build with -tags=\"onnx,ORT\" for ONNX Runtime)")
	}
	return available[0].SessionFactory(), nil
}
