package relay

import "sync"

// Cache remembers the last value successfully forwarded per field key.
// A single mutex guards the map and the entries it owns; it is never held
// across a downstream call.
type Cache struct {
	mu    sync.Mutex
	ttl   int
	items map[string]*Entry
}

func NewCache(ttl int) (*Cache, error) {
	if _, err := NewEntry("", ttl); err != nil {
		return nil, err
	}
	return &Cache{ttl: ttl, items: make(map[string]*Entry)}, nil
}

// Get cached value for key, consuming one use of its budget
func (c *Cache) Consume(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return "", false
	}
	return entry.Get()
}

// Store a fresh entry for key, replacing any previous one
func (c *Cache) Store(key, value string) {
	// ttl was validated by NewCache
	entry := &Entry{value: value, remaining: c.ttl}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry
}

// Peek at the entry for key without consuming it
func (c *Cache) Peek(key string) (value string, remaining int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return "", 0, false
	}
	return entry.value, entry.remaining, true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
