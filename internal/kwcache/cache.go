package kwcache

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/deidaraiorek/codeindex/internal/storage"
)

type key struct {
	location string
	keyword  string
}

// Cache remembers keyword lookups per index location. All entries of a
// location are dropped as soon as its database file changes.
type Cache struct {
	mu      sync.Mutex
	entries map[key][]storage.Keyword
	mtimes  map[string]time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[key][]storage.Keyword),
		mtimes:  make(map[string]time.Time),
	}
}

// modTime is the latest modification time of the database and its WAL.
func modTime(location string) (time.Time, error) {
	info, err := os.Stat(location)
	if err != nil {
		return time.Time{}, err
	}
	mt := info.ModTime()

	wal, err := os.Stat(location + "-wal")
	switch {
	case err == nil:
		if wal.ModTime().After(mt) {
			mt = wal.ModTime()
		}
	case !errors.Is(err, fs.ErrNotExist):
		return time.Time{}, err
	}
	return mt, nil
}

// Invalidate evicts all entries of location if its database was modified
// since the last call or was never seen. If the database cannot be
// examined the entries are evicted and the error is returned.
func (c *Cache) Invalidate(location string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mt, err := modTime(location)
	if err != nil {
		c.evict(location)
		delete(c.mtimes, location)
		return err
	}

	if last, ok := c.mtimes[location]; !ok || !mt.Equal(last) {
		c.evict(location)
		c.mtimes[location] = mt
	}
	return nil
}

func (c *Cache) evict(location string) {
	for k := range c.entries {
		if k.location == location {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) Get(location, keyword string) ([]storage.Keyword, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kws, ok := c.entries[key{location, keyword}]
	return kws, ok
}

func (c *Cache) Put(location, keyword string, kws []storage.Keyword) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key{location, keyword}] = kws
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
