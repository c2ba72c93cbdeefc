// Package store is the public façade over a storage backend and the
// ingestion pipeline.
//
// StoreFact with a prebuilt record validates and persists it; StoreFact
// without one runs the ingestor and persists the result. Concurrent
// ingestion requests for the same key are deduplicated: they await one
// in-flight remote fetch instead of issuing their own. Reads never touch
// the ingestor.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/koopa0/fact-tools/internal/fact"
	"github.com/koopa0/fact-tools/internal/ingest"
	"github.com/koopa0/fact-tools/internal/storage"
)

// ErrConflict indicates a put whose record timestamp travels backwards
// relative to the stored record. Callers that really mean it retry with
// WithForce.
var ErrConflict = errors.New("record is older than the stored record")

// Ingestor is the slice of the ingestion pipeline the façade needs.
// *ingest.Ingestor satisfies it; tests substitute fakes.
type Ingestor interface {
	Ingest(ctx context.Context, key fact.Key, opts ...ingest.Option) (*fact.Record, error)
}

// Store orchestrates one backend and one ingestor. Safe for concurrent use.
type Store struct {
	backend  storage.Backend
	ingestor Ingestor
	logger   *slog.Logger

	// flight deduplicates in-progress ingestions per canonical key. The
	// group's own lock never spans an await point; the remote fetch runs
	// inside the shared call.
	flight singleflight.Group
}

// New creates a Store. The ingestor may be nil, in which case StoreFact
// requires a prebuilt record. A nil logger falls back to slog.Default().
func New(backend storage.Backend, ingestor Ingestor, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, ingestor: ingestor, logger: logger}
}

// Option configures a single StoreFact call.
type Option func(*settings)

type settings struct {
	force      bool
	ingestOpts []ingest.Option
}

// WithForce overrides the monotonic-timestamp check, allowing a put whose
// timestamp is older than the stored record's.
func WithForce() Option {
	return func(s *settings) {
		s.force = true
	}
}

// WithIngestOptions forwards options (repository override, branch, tags) to
// the ingestor when StoreFact has to ingest.
func WithIngestOptions(opts ...ingest.Option) Option {
	return func(s *settings) {
		s.ingestOpts = append(s.ingestOpts, opts...)
	}
}

// StoreFact persists a record under key and returns the stored record.
//
// With a non-nil record the record is validated against key and written
// through. With a nil record the ingestor produces one; concurrent calls
// for the same key share a single ingestion and all receive its result.
// Callers that join an in-flight ingestion inherit the first caller's
// options: their own WithForce and WithIngestOptions are not applied to the
// shared call. A failed ingestion writes nothing.
func (s *Store) StoreFact(ctx context.Context, key fact.Key, record *fact.Record, opts ...Option) (*fact.Record, error) {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	if record != nil {
		return s.putValidated(ctx, key, record, cfg.force)
	}

	if s.ingestor == nil {
		return nil, fmt.Errorf("store %s: no ingestor configured and no record supplied", key)
	}

	result, err, shared := s.flight.Do(key.String(), func() (any, error) {
		ingested, err := s.ingestor.Ingest(ctx, key, cfg.ingestOpts...)
		if err != nil {
			return nil, err
		}
		return s.putValidated(ctx, key, ingested, cfg.force)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight ingestion", "key", key.String())
	}
	return result.(*fact.Record), nil
}

// putValidated enforces the record/key match and the monotonic-timestamp
// invariant, then writes through the backend.
func (s *Store) putValidated(ctx context.Context, key fact.Key, record *fact.Record, force bool) (*fact.Record, error) {
	if err := record.Validate(key); err != nil {
		return nil, err
	}
	if record.LastUpdated.IsZero() {
		record.LastUpdated = time.Now()
	}

	if !force {
		existing, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil && record.LastUpdated.Before(existing.LastUpdated) {
			return nil, fmt.Errorf("%w: %s (stored %s, new %s)", ErrConflict, key,
				existing.LastUpdated.Format(time.RFC3339), record.LastUpdated.Format(time.RFC3339))
		}
	}

	if err := s.backend.Put(ctx, key, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetFact returns the record under key, or nil when absent. Reads bypass
// the ingestor.
func (s *Store) GetFact(ctx context.Context, key fact.Key) (*fact.Record, error) {
	return s.backend.Get(ctx, key)
}

// DeleteFact removes the record under key. Absent keys are a no-op.
func (s *Store) DeleteFact(ctx context.Context, key fact.Key) error {
	return s.backend.Delete(ctx, key)
}

// ListTools returns the keys of every record in ecosystem.
func (s *Store) ListTools(ctx context.Context, ecosystem string) ([]fact.Key, error) {
	return s.backend.ListByEcosystem(ctx, ecosystem)
}

// SearchTools returns the keys of every record whose tool starts with
// prefix.
func (s *Store) SearchTools(ctx context.Context, prefix string) ([]fact.Key, error) {
	return s.backend.SearchByPrefix(ctx, prefix)
}

// Stats returns backend-wide statistics.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	return s.backend.Stats(ctx)
}

// Compact asks the backend to flush, reconcile indexes and reclaim space.
func (s *Store) Compact(ctx context.Context) error {
	return s.backend.Compact(ctx)
}

// Close closes the backend; all prior writes are durable afterwards.
func (s *Store) Close() error {
	return s.backend.Close()
}
