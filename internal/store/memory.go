package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Backend with the same SHA semantics as the
// GitHub contents API. It backs dry runs and tests.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	puts  int
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// BlobSHA returns the git blob hash of data, which is what GitHub reports
// as a file's sha.
func BlobSHA(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Memory) Get(_ context.Context, path string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, "", ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, BlobSHA(data), nil
}

func (m *Memory) Put(_ context.Context, path string, data []byte, sha, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.files[path]
	switch {
	case sha == "" && exists:
		return ErrConflict
	case sha != "" && !exists:
		return ErrConflict
	case sha != "" && sha != BlobSHA(current):
		return ErrConflict
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[path] = stored
	m.puts++
	return nil
}

// Paths lists stored paths in lexical order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Writes reports how many writes have succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
