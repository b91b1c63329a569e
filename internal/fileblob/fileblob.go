// Package fileblob implements content-addressed storage over an
// objectstore.ObjectStore: large attribute values (images, audio,
// documents referenced by gen_ai.* attributes) are stored once under
// their SHA-256 hash and reference-counted, so the same image attached
// to a thousand spans costs one blob (spec.md §4.7).
package fileblob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"manifold/internal/objectstore"
)

// ErrNotFound is returned when a referenced hash has no stored blob.
var ErrNotFound = errors.New("fileblob: blob not found")

const blobPrefix = "blobs/"

// inlineMarkerPrefix opens the placeholder rewritten into attribute text
// in place of an inlined base64 payload: "#!B64!#[mime]::hash".
const inlineMarkerPrefix = "#!B64!#["

// Store is a content-addressed blob store with in-process reference
// counting. Ref counts are not persisted: they track liveness for the
// current process's ingestion run, and Delete is only ever driven by an
// explicit retention sweep, never by a single span losing its last
// in-memory reference.
type Store struct {
	backend objectstore.ObjectStore

	mu   sync.Mutex
	refs map[string]int
}

// New wraps backend as a content-addressed store.
func New(backend objectstore.ObjectStore) *Store {
	return &Store{backend: backend, refs: make(map[string]int)}
}

func hashKey(hash string) string {
	return blobPrefix + hash[:2] + "/" + hash
}

// Put hashes data, stores it if not already present, increments its
// reference count, and returns the hash plus the inline marker text
// ready to be substituted for the original attribute value.
func (s *Store) Put(ctx context.Context, mimeType string, data []byte) (hash string, marker string, err error) {
	sum := sha256.Sum256(data)
	hash = hex.EncodeToString(sum[:])
	key := hashKey(hash)

	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("fileblob: exists check for %s: %w", hash, err)
	}
	if !exists {
		if _, err := s.backend.Put(ctx, key, bytes.NewReader(data), objectstore.PutOptions{ContentType: mimeType}); err != nil {
			return "", "", fmt.Errorf("fileblob: put %s: %w", hash, err)
		}
	}

	s.mu.Lock()
	s.refs[hash]++
	s.mu.Unlock()

	return hash, fmt.Sprintf("%s%s]::%s", inlineMarkerPrefix, mimeType, hash), nil
}

// Get returns the bytes stored under hash.
func (s *Store) Get(ctx context.Context, hash string) ([]byte, error) {
	r, _, err := s.backend.Get(ctx, hashKey(hash))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Release decrements hash's in-process reference count. It does not
// delete the underlying blob; deletion is left to an explicit Sweep,
// which also judges liveness by in-process reference counts only.
func (s *Store) Release(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs[hash] > 0 {
		s.refs[hash]--
	}
}

// RefCount reports hash's current in-process reference count.
func (s *Store) RefCount(hash string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[hash]
}

// Sweep deletes every stored blob whose in-process reference count is
// zero, returning how many were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	dead := make([]string, 0)
	for hash, n := range s.refs {
		if n <= 0 {
			dead = append(dead, hash)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, hash := range dead {
		if err := s.backend.Delete(ctx, hashKey(hash)); err != nil {
			return removed, fmt.Errorf("fileblob: delete %s: %w", hash, err)
		}
		s.mu.Lock()
		delete(s.refs, hash)
		s.mu.Unlock()
		removed++
	}
	return removed, nil
}

// ParseInlineMarker extracts the mime type and hash from a
// "#!B64!#[mime]::hash" marker, reporting ok=false if value is not one.
func ParseInlineMarker(value string) (mimeType, hash string, ok bool) {
	if !strings.HasPrefix(value, inlineMarkerPrefix) {
		return "", "", false
	}
	rest := value[len(inlineMarkerPrefix):]
	closeIdx := strings.Index(rest, "]::")
	if closeIdx < 0 {
		return "", "", false
	}
	return rest[:closeIdx], rest[closeIdx+len("]::"):], true
}
