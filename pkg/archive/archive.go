// Package archive is the content-addressed blob store holding reaped
// artifacts. Keys are "sha256:<hex>" of the content; the reaper's manifests
// (kept in the KV store) map revival keys to these hashes, so the archive
// itself needs no knowledge of entities or filesystem layout.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Store is the archive contract. Put is idempotent: storing the same bytes
// twice returns the same key without rewriting.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// HashKey returns the content-addressed key for data.
func HashKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func rawHash(key string) (string, error) {
	if len(key) < 8 || key[:7] != "sha256:" {
		return "", fmt.Errorf("invalid archive key format: %s", key)
	}
	raw := key[7:]
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid archive key hex: %w", err)
	}
	return raw, nil
}

// FileStore is the filesystem backend. Blobs are written to a temp file
// and renamed into place so a crash never leaves a torn blob.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the archive directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := HashKey(data)
	raw, _ := rawHash(key)
	path := filepath.Join(s.baseDir, raw+".blob")

	if _, err := os.Stat(path); err == nil {
		return key, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return key, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := rawHash(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, raw+".blob"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive blob not found: %s", key)
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := rawHash(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(s.baseDir, raw+".blob"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob: %w", err)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := rawHash(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.baseDir, raw+".blob"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// MemoryStore keeps blobs in a map, for tests and dry-run experimentation.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := HashKey(data)
	if _, ok := s.blobs[key]; !ok {
		s.blobs[key] = append([]byte(nil), data...)
	}
	return key, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("archive blob not found: %s", key)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
