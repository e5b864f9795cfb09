// Package disk provides a file-backed cache backend.
//
// Each artifact name maps to one file under the cache root holding the
// reference value's wire JSON form. Writes go through a temporary file
// and an atomic rename, so readers never observe a partial record.
package disk

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meigma/refval"
	"github.com/meigma/refval/cache"
)

const entrySuffix = ".json"

// Cache is a persistent, directory-backed reference value store.
type Cache struct {
	root string
	mu   sync.RWMutex
}

// New opens (creating if needed) a disk cache rooted at dir.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root: %v", cache.ErrBackend, err)
	}
	return &Cache{root: dir}, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(name string, value *refval.ReferenceValue) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", cache.ErrBackend, name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.root, "entry-*")
	if err != nil {
		return fmt.Errorf("%w: %v", cache.ErrBackend, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", cache.ErrBackend, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", cache.ErrBackend, err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", cache.ErrBackend, err)
	}
	return nil
}

// Get implements cache.Cache. Unreadable or corrupt entries count as
// misses.
func (c *Cache) Get(name string) (*refval.ReferenceValue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.read(c.entryPath(name))
}

// GetAll implements cache.Cache.
func (c *Cache) GetAll() ([]*refval.ReferenceValue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrBackend, err)
	}
	var out []*refval.ReferenceValue
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), entrySuffix) {
			continue
		}
		if value, ok := c.read(filepath.Join(c.root, entry.Name())); ok {
			out = append(out, value)
		}
	}
	return out, nil
}

func (c *Cache) read(path string) (*refval.ReferenceValue, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var value refval.ReferenceValue
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	return &value, true
}

// entryPath encodes the artifact name into a filesystem-safe filename.
func (c *Cache) entryPath(name string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	return filepath.Join(c.root, encoded+entrySuffix)
}

var _ cache.Cache = (*Cache)(nil)
