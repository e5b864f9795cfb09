// Package cache stores the most recent reference value per artifact
// name.
//
// The [Memory] backend is the reference implementation: an unbounded
// map with no history, TTL enforcement, or eviction. Production
// deployments substitute a persistent backend (see the disk
// subpackage) behind the same interface.
package cache

import (
	"errors"

	"github.com/meigma/refval"
)

// ErrBackend is returned when a persistent backend fails an I/O
// operation. The in-memory backend never returns it.
var ErrBackend = errors.New("cache: backend failure")

// Cache is a keyed store of the latest reference value per artifact
// name. Writes are last-write-wins upserts; at most one value is
// retained per name.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Set stores value under name, replacing any previous value.
	Set(name string, value *refval.ReferenceValue) error

	// Get retrieves the value stored under name. The second return is
	// false when the name is absent; absence is not an error.
	Get(name string) (*refval.ReferenceValue, bool)

	// GetAll returns a snapshot copy of all current values in
	// unspecified order.
	GetAll() ([]*refval.ReferenceValue, error)
}
