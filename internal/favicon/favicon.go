// Package favicon holds page icons in memory, keyed by normalized page URL.
// The cache is a collaborator of the bookmark model: the model never touches
// it directly, callers populate it and a periodic sweep drops icons whose
// page no longer appears in the tree.
package favicon

import (
	"sync"
	"time"
)

// Icon is one cached favicon.
type Icon struct {
	Data        []byte
	ContentType string
	FetchedAt   time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	icons map[string]Icon
}

func NewCache() *Cache {
	return &Cache{icons: make(map[string]Icon)}
}

// Get returns the icon for url. The returned data is shared; callers must
// not modify it.
func (c *Cache) Get(url string) (Icon, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ic, ok := c.icons[url]
	return ic, ok
}

// Put stores an icon for url, replacing any previous one. The data is
// copied so callers may reuse their buffer.
func (c *Cache) Put(url string, ic Icon) {
	data := make([]byte, len(ic.Data))
	copy(data, ic.Data)
	ic.Data = data
	if ic.FetchedAt.IsZero() {
		ic.FetchedAt = time.Now()
	}
	c.mu.Lock()
	c.icons[url] = ic
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.icons)
}

// GC drops every icon whose URL the keep predicate rejects and returns how
// many were removed. The predicate runs under the cache lock, so it must
// not call back into anything that can Put.
func (c *Cache) GC(keep func(url string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for url := range c.icons {
		if !keep(url) {
			delete(c.icons, url)
			removed++
		}
	}
	return removed
}
