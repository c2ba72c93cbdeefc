// Package badgerstore implements the storage backend on BadgerDB, an
// embedded ordered key-value engine.
//
// Layout:
//
//	fact:<ecosystem>:<tool>:<version>  -> binary codec of the record
//	idx:<ecosystem>:<tool>             -> most recently written version
//
// Both keys are written inside a single transaction, so the index never
// skews under normal operation. After a crash the primary data is
// authoritative: listing and search scan the fact: namespace directly, and
// Compact rebuilds the idx: namespace from a primary scan.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/koopa0/fact-tools/internal/fact"
	"github.com/koopa0/fact-tools/internal/storage"
)

const (
	primaryPrefix = "fact:"
	indexPrefix   = "idx:"
)

// Options configures the badger backend.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory runs the engine without touching disk. Useful in tests.
	InMemory bool

	// SyncWrites makes every commit fsync. Off by default; Close and
	// Compact still sync explicitly.
	SyncWrites bool
}

// Store is the badger-backed storage.Backend. Safe for concurrent use;
// badger provides the transaction isolation, Store only guards its own
// compaction bookkeeping.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu             sync.Mutex
	lastCompaction *time.Time
	closed         bool
}

var _ storage.Backend = (*Store)(nil)

// Open opens or creates the database described by opts.
// A nil logger falls back to slog.Default().
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %q: %w", opts.Path, err)
	}

	logger.Info("fact storage opened", "backend", "badger", "path", opts.Path, "in_memory", opts.InMemory)
	return &Store{db: db, logger: logger}, nil
}

// Put writes the record and upserts the ecosystem index in one transaction.
func (s *Store) Put(ctx context.Context, key fact.Key, r *fact.Record) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := r.Validate(key); err != nil {
		return err
	}

	value, err := fact.EncodeBinary(r)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key.String()), value); err != nil {
			return err
		}
		return txn.Set(indexKey(key.Ecosystem, key.Tool), []byte(key.Version))
	})
	if err != nil {
		return fmt.Errorf("store record %s: %w", key, err)
	}

	s.logger.Debug("stored record", "key", key.String(), "bytes", len(value))
	return nil
}

// Get returns the record under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key fact.Key) (*fact.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}

	return fact.DecodeBinary(value)
}

// Exists reports whether key has a stored record.
func (s *Store) Exists(ctx context.Context, key fact.Key) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key.String()))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check record %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the record. The index entry for (ecosystem, tool) is kept
// as long as any other version of the tool remains stored.
func (s *Store) Delete(ctx context.Context, key fact.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	primary := []byte(key.String())
	toolPrefix := []byte(primaryPrefix + key.Ecosystem + ":" + key.Tool + ":")

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(primary); err != nil {
			return err
		}

		// Other versions of the same tool keep the index entry alive.
		remaining := false
		it := txn.NewIterator(badger.IteratorOptions{Prefix: toolPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if !bytes.Equal(it.Item().Key(), primary) {
				remaining = true
				break
			}
		}
		if remaining {
			return nil
		}
		return txn.Delete(indexKey(key.Ecosystem, key.Tool))
	})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}

	s.logger.Debug("deleted record", "key", key.String())
	return nil
}

// ListByEcosystem scans the primary namespace under the ecosystem prefix.
// The scan is authoritative even when the idx: namespace is stale.
func (s *Store) ListByEcosystem(ctx context.Context, ecosystem string) ([]fact.Key, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.scanKeys(ctx, []byte(primaryPrefix+ecosystem+":"), nil)
}

// SearchByPrefix scans all records and keeps those whose tool name starts
// with prefix.
func (s *Store) SearchByPrefix(ctx context.Context, prefix string) ([]fact.Key, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.scanKeys(ctx, []byte(primaryPrefix), func(k fact.Key) bool {
		return strings.HasPrefix(k.Tool, prefix)
	})
}

// scanKeys iterates the primary namespace under prefix, parsing each key.
// keep filters the result when non-nil. Unparseable keys are skipped: they
// cannot have been written by Put.
func (s *Store) scanKeys(ctx context.Context, prefix []byte, keep func(fact.Key) bool) ([]fact.Key, error) {
	var keys []fact.Key
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := fact.ParseKey(string(it.Item().Key()))
			if err != nil {
				continue
			}
			if keep == nil || keep(key) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return keys, nil
}

// Stats performs a single linear scan of the primary namespace.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	stats := &storage.Stats{Ecosystems: make(map[string]uint64)}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(primaryPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key, err := fact.ParseKey(string(item.Key()))
			if err != nil {
				continue
			}
			stats.TotalEntries++
			stats.TotalSizeBytes += uint64(len(item.Key())) + uint64(item.ValueSize())
			stats.Ecosystems[key.Ecosystem]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}

	s.mu.Lock()
	stats.LastCompaction = s.lastCompaction
	s.mu.Unlock()
	return stats, nil
}

// Compact flushes buffered writes, reconciles the idx: namespace with a
// primary scan and triggers value-log garbage collection. Stale index
// entries left behind by a crash between the two halves of a Put (or by an
// interrupted Delete) are repaired here.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	// Rebuild the index from the primary data.
	latest := make(map[string]string) // ecosystem:tool -> version
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(primaryPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := fact.ParseKey(string(it.Item().Key()))
			if err != nil {
				continue
			}
			latest[key.Ecosystem+":"+key.Tool] = key.Version
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("compact: scan primary: %w", err)
	}

	repaired, removed := 0, 0
	err = s.db.Update(func(txn *badger.Txn) error {
		// Drop index entries whose primary records are all gone.
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(indexPrefix)})
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			entry := strings.TrimPrefix(string(it.Item().Key()), indexPrefix)
			if _, ok := latest[entry]; !ok {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
			removed++
		}

		// Restore missing entries.
		for entry, version := range latest {
			if _, err := txn.Get([]byte(indexPrefix + entry)); errors.Is(err, badger.ErrKeyNotFound) {
				if err := txn.Set([]byte(indexPrefix+entry), []byte(version)); err != nil {
					return err
				}
				repaired++
			} else if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("compact: reconcile index: %w", err)
	}

	// db.Sync blocks forever in in-memory mode; there is no WAL to sync.
	if !s.db.Opts().InMemory {
		if err := s.db.Sync(); err != nil {
			return fmt.Errorf("compact: sync: %w", err)
		}
	}

	// Value-log GC returns ErrNoRewrite when there is nothing to reclaim.
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return fmt.Errorf("compact: value log gc: %w", err)
		}
	}

	now := time.Now()
	s.mu.Lock()
	s.lastCompaction = &now
	s.mu.Unlock()

	s.logger.Info("storage compacted", "index_repaired", repaired, "index_removed", removed)
	return nil
}

// Close syncs and closes the database. All prior writes are durable after
// Close returns.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	s.logger.Info("fact storage closed", "backend", "badger")
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

func indexKey(ecosystem, tool string) []byte {
	return []byte(indexPrefix + ecosystem + ":" + tool)
}
