// Package storage defines the backend abstraction behind the fact store.
//
// A Backend persists fact.Record values under their canonical keys and
// maintains whatever auxiliary indexes it needs to answer per-ecosystem and
// prefix queries. Two implementations live in subpackages: badgerstore (an
// embedded ordered key-value engine) and filestore (a sharded directory
// layout). Callers pick one at construction time and program against the
// interface only.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/koopa0/fact-tools/internal/fact"
)

// Sentinel errors shared by all backends. Check with errors.Is().
var (
	// ErrClosed indicates an operation on a backend after Close.
	ErrClosed = errors.New("storage backend is closed")
)

// Backend is the single polymorphism boundary of the store. All operations
// take a context and may suspend on I/O; implementations must be safe for
// concurrent use within one process.
//
// Within a single writer, Put followed by Get on the same key observes the
// just-written record. Auxiliary indexes may lag the primary data; Compact
// reconciles them.
type Backend interface {
	// Put persists r under key, replacing any previous record wholesale.
	// The caller guarantees r.Validate(key) == nil; backends reject
	// violations with fact.ErrInvariantViolation.
	Put(ctx context.Context, key fact.Key, r *fact.Record) error

	// Get returns the record stored under key, or (nil, nil) when absent.
	// Corrupt stored bytes surface as codec errors, never as absence.
	Get(ctx context.Context, key fact.Key) (*fact.Record, error)

	// Exists reports whether a record is stored under key.
	Exists(ctx context.Context, key fact.Key) (bool, error)

	// Delete removes the record under key and updates indexes.
	// Deleting an absent key is a no-op.
	Delete(ctx context.Context, key fact.Key) error

	// ListByEcosystem returns the keys of every stored record whose
	// ecosystem equals ecosystem.
	ListByEcosystem(ctx context.Context, ecosystem string) ([]fact.Key, error)

	// SearchByPrefix returns the keys of every stored record whose tool
	// name starts with prefix.
	SearchByPrefix(ctx context.Context, prefix string) ([]fact.Key, error)

	// Stats returns aggregate statistics over all stored records.
	Stats(ctx context.Context) (*Stats, error)

	// Compact flushes write buffers, reconciles auxiliary indexes with the
	// primary data and reclaims space. May be a no-op.
	Compact(ctx context.Context) error

	// Close makes all prior writes durable and releases resources.
	// The backend is unusable afterwards.
	Close() error
}

// Stats aggregates storage-wide counters.
// TotalSizeBytes is an approximation of the on-disk footprint: the badger
// backend sums key and value lengths, the file backend sums file sizes.
type Stats struct {
	TotalEntries   uint64            `json:"total_entries"`
	TotalSizeBytes uint64            `json:"total_size_bytes"`
	Ecosystems     map[string]uint64 `json:"ecosystems"`
	LastCompaction *time.Time        `json:"last_compaction,omitempty"`
}
