package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileCollections keeps each collection as a JSON file in one directory.
// Writes go through a temp file and rename so a crash never leaves a
// half-written collection behind.
type FileCollections struct {
	mu  sync.Mutex
	dir string
}

// NewFileCollections creates the directory if needed.
func NewFileCollections(dir string) (*FileCollections, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &FileCollections{dir: dir}, nil
}

func (f *FileCollections) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// Get returns the raw collection content, or (nil, nil) when the file does
// not exist yet.
func (f *FileCollections) Get(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}
	return data, nil
}

// Set atomically replaces the collection content.
func (f *FileCollections) Set(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	return nil
}
