// Package filestore implements the storage backend on a sharded directory
// layout:
//
//	<root>/<ecosystem>/<tool>/<version>.bin
//
// Files hold the binary codec output by default; JSON mode (selectable at
// construction) writes the readable JSON codec instead, keeping the same
// file names. Writes are atomic via write-then-rename in the target
// directory, serialized per key by in-process locks. A flock on the root
// directory keeps a second process from writing the same tree.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/koopa0/fact-tools/internal/fact"
	"github.com/koopa0/fact-tools/internal/storage"
)

const recordExt = ".bin"

// Options configures the file backend.
type Options struct {
	// Root is the storage directory. Created if missing.
	Root string

	// JSONMode writes records with the JSON codec instead of the binary
	// codec. Useful when humans need to read the tree directly.
	JSONMode bool
}

// Store is the directory-backed storage.Backend.
type Store struct {
	root     string
	jsonMode bool
	logger   *slog.Logger
	rootLock *flock.Flock

	mu     sync.Mutex
	locks  map[string]*sync.Mutex // per-key write serialization
	closed bool

	compactMu      sync.Mutex
	lastCompaction *time.Time
}

var _ storage.Backend = (*Store)(nil)

// Open prepares the root directory and acquires the single-writer lock.
// A nil logger falls back to slog.Default().
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("filestore: root directory is required")
	}

	if err := os.MkdirAll(opts.Root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", opts.Root, err)
	}

	rootLock := flock.New(filepath.Join(opts.Root, ".lock"))
	locked, err := rootLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock storage root %q: %w", opts.Root, err)
	}
	if !locked {
		return nil, fmt.Errorf("storage root %q is locked by another process", opts.Root)
	}

	logger.Info("fact storage opened", "backend", "file", "root", opts.Root, "json_mode", opts.JSONMode)
	return &Store{
		root:     opts.Root,
		jsonMode: opts.JSONMode,
		logger:   logger,
		rootLock: rootLock,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Put atomically replaces the record file for key: the encoding is written
// to a temp file in the target directory, fsynced, then renamed over the
// final name.
func (s *Store) Put(ctx context.Context, key fact.Key, r *fact.Record) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := r.Validate(key); err != nil {
		return err
	}

	data, err := s.encode(r)
	if err != nil {
		return err
	}

	unlock := s.lockKey(key)
	defer unlock()

	path := s.recordPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create record directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+key.Version+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync record %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename record %s into place: %w", key, err)
	}

	s.logger.Debug("stored record", "key", key.String(), "path", path, "bytes", len(data))
	return nil
}

// Get reads and decodes the record file; a missing file means absent.
func (s *Store) Get(ctx context.Context, key fact.Key) (*fact.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.recordPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
	return s.decode(data)
}

// Exists stats the record file.
func (s *Store) Exists(ctx context.Context, key fact.Key) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	_, err := os.Stat(s.recordPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat record %s: %w", key, err)
	}
	return true, nil
}

// Delete unlinks the record file and prunes now-empty tool and ecosystem
// directories. The root itself is never removed.
func (s *Store) Delete(ctx context.Context, key fact.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	unlock := s.lockKey(key)
	defer unlock()

	path := s.recordPath(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("delete record %s: %w", key, err)
	}

	// Best effort: os.Remove refuses non-empty directories.
	toolDir := filepath.Dir(path)
	if err := os.Remove(toolDir); err == nil {
		_ = os.Remove(filepath.Dir(toolDir))
	}

	s.logger.Debug("deleted record", "key", key.String())
	return nil
}

// ListByEcosystem enumerates <root>/<ecosystem>/*/<version>.bin.
func (s *Store) ListByEcosystem(ctx context.Context, ecosystem string) ([]fact.Key, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	ecoDir := filepath.Join(s.root, ecosystem)
	tools, err := os.ReadDir(ecoDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ecosystem directory %q: %w", ecoDir, err)
	}

	var keys []fact.Key
	for _, tool := range tools {
		if !tool.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		toolKeys, err := s.toolVersions(ecosystem, tool.Name())
		if err != nil {
			return nil, err
		}
		keys = append(keys, toolKeys...)
	}
	return keys, nil
}

// SearchByPrefix walks every ecosystem directory and keeps tools whose
// directory name starts with prefix.
func (s *Store) SearchByPrefix(ctx context.Context, prefix string) ([]fact.Key, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	ecosystems, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root %q: %w", s.root, err)
	}

	var keys []fact.Key
	for _, eco := range ecosystems {
		if !eco.IsDir() {
			continue
		}
		toolDirs, err := os.ReadDir(filepath.Join(s.root, eco.Name()))
		if err != nil {
			return nil, fmt.Errorf("read ecosystem directory %q: %w", eco.Name(), err)
		}
		for _, tool := range toolDirs {
			if !tool.IsDir() || !strings.HasPrefix(tool.Name(), prefix) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			toolKeys, err := s.toolVersions(eco.Name(), tool.Name())
			if err != nil {
				return nil, err
			}
			keys = append(keys, toolKeys...)
		}
	}
	return keys, nil
}

// Stats walks the tree, counting record files and summing their sizes.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	stats := &storage.Stats{Ecosystems: make(map[string]uint64)}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), recordExt) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.TotalEntries++
		stats.TotalSizeBytes += uint64(info.Size())
		stats.Ecosystems[parts[0]]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk storage root %q: %w", s.root, err)
	}

	s.compactMu.Lock()
	stats.LastCompaction = s.lastCompaction
	s.compactMu.Unlock()
	return stats, nil
}

// Compact is a no-op for the file backend; the filesystem owns the layout.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	now := time.Now()
	s.compactMu.Lock()
	s.lastCompaction = &now
	s.compactMu.Unlock()
	return nil
}

// Close releases the root lock. Writes are already durable: every Put
// fsyncs before renaming.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.rootLock.Unlock(); err != nil {
		return fmt.Errorf("unlock storage root: %w", err)
	}
	s.logger.Info("fact storage closed", "backend", "file")
	return nil
}

func (s *Store) encode(r *fact.Record) ([]byte, error) {
	if s.jsonMode {
		return fact.EncodeJSON(r)
	}
	return fact.EncodeBinary(r)
}

func (s *Store) decode(data []byte) (*fact.Record, error) {
	if s.jsonMode {
		return fact.DecodeJSON(data)
	}
	return fact.DecodeBinary(data)
}

func (s *Store) recordPath(key fact.Key) string {
	return filepath.Join(s.root, key.Ecosystem, key.Tool, key.Version+recordExt)
}

// toolVersions recovers keys from <root>/<ecosystem>/<tool>/*.bin file names.
func (s *Store) toolVersions(ecosystem, tool string) ([]fact.Key, error) {
	dir := filepath.Join(s.root, ecosystem, tool)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tool directory %q: %w", dir, err)
	}

	var keys []fact.Key
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		version := strings.TrimSuffix(name, recordExt)
		key, err := fact.NewKey(ecosystem, tool, version)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// lockKey serializes writers on the same key.
func (s *Store) lockKey(key fact.Key) func() {
	s.mu.Lock()
	lock, ok := s.locks[key.String()]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key.String()] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
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
