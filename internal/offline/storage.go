package offline

import (
	"net/http"
	"sort"
	"sync"

	"github.com/bluele/gcache"
)

// DefaultCacheCapacity bounds the entries held by each named cache.
const DefaultCacheCapacity = 64

// CachedResponse is a captured response, replayable any number of times.
type CachedResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Cache is one named cache: an LRU of responses keyed by RequestKey.
type Cache struct {
	name    string
	entries gcache.Cache
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) Put(key string, resp *CachedResponse) error {
	return c.entries.Set(key, resp)
}

func (c *Cache) Match(key string) (*CachedResponse, bool) {
	v, err := c.entries.Get(key)
	if err != nil {
		return nil, false
	}
	return v.(*CachedResponse), true
}

func (c *Cache) Keys() []string {
	raw := c.entries.Keys(false)
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k.(string))
	}
	sort.Strings(keys)
	return keys
}

// CacheStorage holds the named caches of one origin.
type CacheStorage struct {
	mu       sync.Mutex
	caches   map[string]*Cache
	capacity int
}

func NewCacheStorage(capacity int) *CacheStorage {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &CacheStorage{caches: make(map[string]*Cache), capacity: capacity}
}

// Open returns the cache called name, creating it when absent.
func (s *CacheStorage) Open(name string) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.caches[name]; ok {
		return c
	}
	c := &Cache{name: name, entries: gcache.New(s.capacity).LRU().Build()}
	s.caches[name] = c
	return c
}

// Keys lists the cache names in lexical order.
func (s *CacheStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete drops the cache called name and reports whether it existed.
func (s *CacheStorage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caches[name]
	if ok {
		c.entries.Purge()
		delete(s.caches, name)
	}
	return ok
}

// Match looks key up in every cache, in name order.
func (s *CacheStorage) Match(key string) (*CachedResponse, bool) {
	for _, name := range s.Keys() {
		s.mu.Lock()
		c, ok := s.caches[name]
		s.mu.Unlock()
		if !ok {
			continue
		}
		if resp, hit := c.Match(key); hit {
			return resp, true
		}
	}
	return nil, false
}
