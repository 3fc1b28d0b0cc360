// Package hostcache is a reference host-side object cache: one resizeable
// LRU segment per size-class, plus the hit/request counters a rebalance
// daemon needs to judge whether a reallocation plan actually helped.
package hostcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inexplicable/slabmrc/internal/window"
)

type segment struct {
	m        sync.Mutex
	lru      *lru.Cache[string, []byte]
	slabs    int
	hits     uint64
	requests uint64
}

// Cache holds one LRU segment per size-class. Slab counts and objects-per-
// slab are host-supplied; hostcache only tracks how many objects a segment
// can currently hold, not slab byte geometry.
type Cache struct {
	m             sync.RWMutex
	segments      map[window.ClassId]*segment
	allocsPerSlab map[window.ClassId]int
}

// New creates an empty Cache. allocsPerSlab maps each class to how many
// objects fit in one slab of that class's size.
func New(allocsPerSlab map[window.ClassId]int) *Cache {
	c := &Cache{
		segments:      make(map[window.ClassId]*segment),
		allocsPerSlab: make(map[window.ClassId]int, len(allocsPerSlab)),
	}
	for class, allocs := range allocsPerSlab {
		c.allocsPerSlab[class] = allocs
	}
	return c
}

// EnsureClass creates class's segment with slabs slabs if it does not exist
// yet. It is a no-op if the class is already present.
func (c *Cache) EnsureClass(class window.ClassId, slabs int) error {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.segments[class]; ok {
		return nil
	}
	capacity := c.objectsFor(class, slabs)
	if capacity < 1 {
		capacity = 1
	}
	l, err := lru.New[string, []byte](capacity)
	if err != nil {
		return err
	}
	c.segments[class] = &segment{lru: l, slabs: slabs}
	return nil
}

// Get looks up key in class's segment, recording a hit or a miss.
func (c *Cache) Get(class window.ClassId, key string) ([]byte, bool) {
	seg := c.segmentFor(class)
	if seg == nil {
		return nil, false
	}
	seg.m.Lock()
	defer seg.m.Unlock()
	seg.requests++
	v, ok := seg.lru.Get(key)
	if ok {
		seg.hits++
	}
	return v, ok
}

// Put admits key into class's segment, evicting per LRU order if full.
func (c *Cache) Put(class window.ClassId, key string, value []byte) {
	seg := c.segmentFor(class)
	if seg == nil {
		return
	}
	seg.m.Lock()
	defer seg.m.Unlock()
	seg.lru.Add(key, value)
}

// Resize changes class's slab count and resizes its LRU capacity to match,
// evicting the coldest entries if capacity shrank. It is the mechanism a
// rebalance.Daemon uses to apply a slabmrc.ReassignmentPair.
func (c *Cache) Resize(class window.ClassId, slabs int) {
	seg := c.segmentFor(class)
	if seg == nil {
		return
	}
	capacity := c.objectsFor(class, slabs)
	if capacity < 1 {
		capacity = 1
	}
	seg.m.Lock()
	defer seg.m.Unlock()
	seg.slabs = slabs
	seg.lru.Resize(capacity)
}

// HitRatio returns class's hit ratio since the last call and resets its
// counters, matching the shadow-cache sampling convention hostcache is
// grounded on.
func (c *Cache) HitRatio(class window.ClassId) float64 {
	seg := c.segmentFor(class)
	if seg == nil {
		return 0
	}
	seg.m.Lock()
	defer seg.m.Unlock()
	if seg.requests == 0 {
		return 0
	}
	ratio := float64(seg.hits) / float64(seg.requests)
	seg.hits, seg.requests = 0, 0
	return ratio
}

// Slabs returns class's current slab count.
func (c *Cache) Slabs(class window.ClassId) int {
	seg := c.segmentFor(class)
	if seg == nil {
		return 0
	}
	seg.m.Lock()
	defer seg.m.Unlock()
	return seg.slabs
}

func (c *Cache) segmentFor(class window.ClassId) *segment {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.segments[class]
}

func (c *Cache) objectsFor(class window.ClassId, slabs int) int {
	allocs := c.allocsPerSlab[class]
	if allocs < 1 {
		allocs = 1
	}
	return allocs * slabs
}
