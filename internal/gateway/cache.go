package gateway

import (
	"container/list"
	"sync"
	"time"
)

// poolInfoCache is a small LRU with per-entry TTL in front of the
// gateway's pool-info route. Pool state moves slowly relative to an
// episode, so repeated reads within one episode hit the cache.
type poolInfoCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	nowFn    func() time.Time
}

type poolInfoEntry struct {
	key       string
	info      *PoolInfo
	expiresAt time.Time
}

func newPoolInfoCache(capacity int, ttl time.Duration) *poolInfoCache {
	return &poolInfoCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

func (c *poolInfoCache) get(key string) (*PoolInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*poolInfoEntry)
	if c.nowFn().After(e.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, e.key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return e.info, true
}

func (c *poolInfoCache) put(key string, info *PoolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*poolInfoEntry)
		e.info = info
		e.expiresAt = c.nowFn().Add(c.ttl)
		return
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			e := oldest.Value.(*poolInfoEntry)
			c.order.Remove(oldest)
			delete(c.items, e.key)
		}
	}
	elem := c.order.PushFront(&poolInfoEntry{
		key:       key,
		info:      info,
		expiresAt: c.nowFn().Add(c.ttl),
	})
	c.items[key] = elem
}
