// Package metadata caches merged metadata records on disk and collects them
// from a working copy.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
)

// FileName is the record file inside each repository directory.
const FileName = "metadata.json"

const defaultMemoryEntries = 256

// FileCache stores records at <root>/<repository>/metadata.json and the root
// record at <root>/metadata.json. Writes go through a temp file and a rename,
// under a per-key lock, so readers see either the old or the new record.
//
// The in-memory front is revalidated against the file's size and modification
// time on every Load, so records rewritten or removed by another process are
// picked up.
type FileCache struct {
	root   string
	logger arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// memory holds encoded records so callers never share a decoded value
	memory *lru.Cache[string, cachedRecord]
}

// cachedRecord is an encoded record and the file state it was read from.
type cachedRecord struct {
	raw     []byte
	size    int64
	modTime time.Time
}

func (r cachedRecord) matches(info os.FileInfo) bool {
	return r.size == info.Size() && r.modTime.Equal(info.ModTime())
}

var _ interfaces.MetadataCache = (*FileCache)(nil)

// NewFileCache creates a cache rooted at root. entries bounds the in-memory
// front; zero picks a default.
func NewFileCache(root string, entries int, logger arbor.ILogger) (*FileCache, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	if entries <= 0 {
		entries = defaultMemoryEntries
	}
	memory, err := lru.New[string, cachedRecord](entries)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &FileCache{
		root:   root,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
		memory: memory,
	}, nil
}

// Root returns the cache directory.
func (c *FileCache) Root() string { return c.root }

func (c *FileCache) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Path returns the record file for a repository; "" addresses the root record.
func (c *FileCache) Path(repository string) (string, error) {
	if repository == "" {
		return filepath.Join(c.root, FileName), nil
	}
	if repository == "." || repository == ".." || strings.ContainsAny(repository, `/\`) {
		return "", fmt.Errorf("invalid repository name %q", repository)
	}
	return filepath.Join(c.root, repository, FileName), nil
}

func (c *FileCache) Load(ctx context.Context, repository string) (*models.Metadata, bool, error) {
	path, err := c.Path(repository)
	if err != nil {
		return nil, false, err
	}
	unlock := c.lock(repository)
	defer unlock()

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		c.memory.Remove(repository)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}

	rec, ok := c.memory.Get(repository)
	if !ok || !rec.matches(info) {
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			c.memory.Remove(repository)
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", path, err)
		}
		rec = cachedRecord{raw: raw, size: info.Size(), modTime: info.ModTime()}
	}

	m := models.NewMetadata()
	if err := json.Unmarshal(rec.raw, m); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Ignoring unreadable metadata record")
		c.memory.Remove(repository)
		return nil, false, nil
	}
	c.memory.Add(repository, rec)
	return m, true, nil
}

func (c *FileCache) Store(ctx context.Context, repository string, m *models.Metadata) error {
	if m == nil {
		return fmt.Errorf("nil metadata for %q", repository)
	}
	path, err := c.Path(repository)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	unlock := c.lock(repository)
	defer unlock()

	info, err := writeAtomic(path, raw)
	if err != nil {
		c.memory.Remove(repository)
		return err
	}
	c.memory.Add(repository, cachedRecord{raw: raw, size: info.Size(), modTime: info.ModTime()})
	c.logger.Debug().Str("repository", repository).Str("path", path).Msg("Metadata cached")
	return nil
}

func writeAtomic(path string, raw []byte) (os.FileInfo, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("rename to %s: %w", path, err)
	}
	return os.Stat(path)
}

func (c *FileCache) Delete(ctx context.Context, repository string) error {
	path, err := c.Path(repository)
	if err != nil {
		return err
	}
	unlock := c.lock(repository)
	defer unlock()

	c.memory.Remove(repository)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (c *FileCache) LoadRoot(ctx context.Context) (*models.Metadata, bool, error) {
	return c.Load(ctx, "")
}

func (c *FileCache) StoreRoot(ctx context.Context, m *models.Metadata) error {
	return c.Store(ctx, "", m)
}

// Clear removes every record file. Other files under the root are kept.
func (c *FileCache) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("list cache root: %w", err)
	}
	if err := c.Delete(ctx, ""); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := c.Delete(ctx, e.Name()); err != nil {
			return err
		}
	}
	c.memory.Purge()
	return nil
}
