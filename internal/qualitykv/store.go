// Package qualitykv is the durable envelope store backing the intelligence
// layer. It is single-writer (the refresh scheduler) with any number of
// concurrent readers; readers observe atomically-replaced file snapshots
// and never a half-written file.
package qualitykv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
)

// ErrReadOnly is returned when a write is attempted on a reader handle.
var ErrReadOnly = errors.New("qualitykv: store opened read-only")

// Store holds the in-memory view of the envelope file. Writes go through
// copy-on-write persistence with an atomic rename; reads reload lazily when
// the file on disk is newer than the loaded snapshot.
type Store struct {
	path     string
	readOnly bool

	mu       sync.RWMutex
	entries  map[string]model.Envelope
	loadedAt time.Time

	nowFn func() time.Time
}

// Open opens (or creates on first write) the store at path as the single
// writer.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]model.Envelope),
		nowFn:   time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens the store for reading. A missing file is not an
// error; reads simply report missing until the writer creates it.
func OpenReadOnly(path string) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	s.readOnly = true
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read envelope store: %w", err)
	}
	entries := make(map[string]model.Envelope)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("decode envelope store: %w", err)
		}
	}
	s.mu.Lock()
	s.entries = entries
	if fi, statErr := os.Stat(s.path); statErr == nil {
		s.loadedAt = fi.ModTime()
	}
	s.mu.Unlock()
	return nil
}

// maybeReload refreshes the in-memory view when another process replaced
// the file. Readers tolerate momentary absence of the file.
func (s *Store) maybeReload() {
	fi, err := os.Stat(s.path)
	if err != nil {
		return
	}
	s.mu.RLock()
	current := s.loadedAt
	s.mu.RUnlock()
	if !fi.ModTime().After(current) {
		return
	}
	_ = s.load()
}

// Get returns the envelope stored for key, if any.
func (s *Store) Get(key string) (model.Envelope, bool) {
	s.maybeReload()
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.entries[key]
	return env, ok
}

// GetQuality returns the envelope for key together with its freshness at
// the current wall time, using the supplied TTL and max age.
func (s *Store) GetQuality(key string, ttl, maxAge time.Duration) (model.Envelope, model.QualityRecord) {
	env, ok := s.Get(key)
	if !ok {
		return model.Envelope{}, model.MissingQuality()
	}
	return env, env.QualityAt(s.nowFn(), ttl, maxAge)
}

// Set stores an envelope for key. Writes are monotonic per key in
// fetched_at: an envelope older than the stored one is dropped.
func (s *Store) Set(key string, env model.Envelope) error {
	return s.SetMany(map[string]model.Envelope{key: env})
}

// SetMany stores several envelopes in one atomic file replace.
func (s *Store) SetMany(items map[string]model.Envelope) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for key, env := range items {
		if prev, ok := s.entries[key]; ok && env.FetchedAt.Before(prev.FetchedAt) {
			continue
		}
		s.entries[key] = env
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persistLocked()
}

// SetError records a failed refresh for key. If a prior ok=true envelope
// exists it is left untouched so readers keep serving the last good value.
func (s *Store) SetError(key, errMsg, source string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[key]; ok && prev.OK {
		return nil
	}
	s.entries[key] = model.Envelope{
		OK:        false,
		FetchedAt: s.nowFn().UTC(),
		Error:     errMsg,
		Source:    source,
	}
	return s.persistLocked()
}

// Snapshot returns a copy of all stored envelopes.
func (s *Store) Snapshot() map[string]model.Envelope {
	s.maybeReload()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Envelope, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of stored envelopes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	raw, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("encode envelope store: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create tmp store: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return fmt.Errorf("write tmp store: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync tmp store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tmp store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	if fi, statErr := os.Stat(s.path); statErr == nil {
		s.loadedAt = fi.ModTime()
	}
	return nil
}
