package reaper

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ArtifactFS is how the reaper touches the live artifacts behind tracked
// entities. Archiving reads then removes; resurrection writes the bytes
// back to the original path.
type ArtifactFS interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Remove(path string) error
}

// OSArtifacts is the real-filesystem backend.
type OSArtifacts struct{}

func (OSArtifacts) Read(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSArtifacts) Write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("ensure artifact dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (OSArtifacts) Remove(path string) error { return os.Remove(path) }

// MemArtifacts is the in-memory backend used by tests and by deployments
// whose entities live in the KV store rather than on disk.
type MemArtifacts struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemArtifacts() *MemArtifacts {
	return &MemArtifacts{files: make(map[string][]byte)}
}

func (m *MemArtifacts) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("artifact not found: %s", path)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemArtifacts) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *MemArtifacts) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("artifact not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

// Paths lists the stored paths, sorted.
func (m *MemArtifacts) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
