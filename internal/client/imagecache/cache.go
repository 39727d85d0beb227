// Package imagecache serves image bytes for remote storage references
// through two tiers: a small in-memory LRU for the hot set and a
// byte-capped on-disk tier that survives restarts. Both tiers are filled
// write-through on a successful remote fetch; a failed fetch caches
// nothing.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/darkroomapp/darkroom/internal/filex"
	"github.com/darkroomapp/darkroom/internal/logging"
)

// Fetcher resolves a storage reference to image bytes over the network.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Options bound both tiers. Zero values pick the defaults.
type Options struct {
	MemoryMaxItems int
	MemoryMaxBytes int64
	DiskMaxBytes   int64
}

const (
	DefaultMemoryMaxItems = 100
	DefaultMemoryMaxBytes = 32 << 20  // 32 MiB
	DefaultDiskMaxBytes   = 256 << 20 // 256 MiB
)

// Cache is the two-tier image cache. It exclusively owns its directory and
// its memory tier; callers only go through Get/Clear methods.
type Cache struct {
	mu      sync.Mutex
	mem     *lru
	dir     string
	diskCap int64
	fetcher Fetcher
	logger  logging.Logger
}

func New(dir string, fetcher Fetcher, logger logging.Logger, opts Options) (*Cache, error) {
	if opts.MemoryMaxItems <= 0 {
		opts.MemoryMaxItems = DefaultMemoryMaxItems
	}
	if opts.MemoryMaxBytes <= 0 {
		opts.MemoryMaxBytes = DefaultMemoryMaxBytes
	}
	if opts.DiskMaxBytes <= 0 {
		opts.DiskMaxBytes = DefaultDiskMaxBytes
	}
	if err := filex.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Cache{
		mem:     newLRU(opts.MemoryMaxItems, opts.MemoryMaxBytes),
		dir:     dir,
		diskCap: opts.DiskMaxBytes,
		fetcher: fetcher,
		logger:  logger.With("component", "imagecache"),
	}, nil
}

// Key derives the stable cache key for a storage reference.
func Key(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

// Get returns the image bytes for ref: memory tier first, then disk
// (promoting the hit into memory), then a remote fetch that writes through
// to both tiers. A failed fetch returns the error and caches nothing.
func (c *Cache) Get(ctx context.Context, ref string) ([]byte, error) {
	key := Key(ref)

	c.mu.Lock()
	if data, ok := c.mem.get(key); ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	if data, err := os.ReadFile(c.entryPath(key)); err == nil {
		c.mu.Lock()
		c.mem.add(key, data)
		c.mu.Unlock()
		c.logger.Debug(ctx, "disk hit promoted", "key", key)
		return data, nil
	}

	data, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}

	c.mu.Lock()
	if err := c.writeDiskLocked(ctx, key, data); err != nil {
		// Disk trouble downgrades the entry to memory-only.
		c.logger.Warn(ctx, "disk tier write failed", "key", key, "error", err)
	}
	c.mem.add(key, data)
	c.mu.Unlock()

	return data, nil
}

// ClearAll empties both tiers.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.clear()
	return c.clearDiskLocked()
}

// ClearDiskTier empties only the disk tier, keeping the session's hot
// memory entries warm. Used when leaving an event's content.
func (c *Cache) ClearDiskTier() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearDiskLocked()
}

func (c *Cache) clearDiskLocked() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("scan cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key)
}

type diskEntry struct {
	name    string
	size    int64
	modTime int64
}

// writeDiskLocked stores an entry in the disk tier, first evicting
// oldest-first until the write fits under the cap. Entries bigger than the
// cap itself are skipped rather than wiping the whole tier for one value.
// The write is atomic, so the tier never holds a partial entry.
func (c *Cache) writeDiskLocked(ctx context.Context, key string, data []byte) error {
	size := int64(len(data))
	if size > c.diskCap {
		c.logger.Warn(ctx, "entry exceeds disk cache cap, not cached", "key", key, "size", size)
		return nil
	}

	entries, total, err := c.scanDisk()
	if err != nil {
		return err
	}

	if total+size > c.diskCap {
		// Oldest createdAt first. Access recency is deliberately ignored
		// here; that is the memory tier's job.
		sort.Slice(entries, func(i, j int) bool { return entries[i].modTime < entries[j].modTime })
		for _, e := range entries {
			if total+size <= c.diskCap {
				break
			}
			if err := os.Remove(filepath.Join(c.dir, e.name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("evict cache entry: %w", err)
			}
			total -= e.size
			c.logger.Debug(ctx, "evicted disk entry", "key", e.name, "size", e.size)
		}
	}

	return filex.WriteFileAtomic(c.entryPath(key), data, 0o660)
}

func (c *Cache) scanDisk() ([]diskEntry, int64, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("scan cache dir: %w", err)
	}

	var entries []diskEntry
	var total int64
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, diskEntry{
			name:    de.Name(),
			size:    info.Size(),
			modTime: info.ModTime().UnixNano(),
		})
		total += info.Size()
	}
	return entries, total, nil
}

// DiskUsage reports the current byte total of the disk tier.
func (c *Cache) DiskUsage() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, total, err := c.scanDisk()
	return total, err
}
