// Package classify offers a host-side helper for turning a request key into
// the ClassId a Profiler.Feed call needs, by longest-matching namespace
// prefix (e.g. "user:" -> ClassId 3). The profiler itself is agnostic to how
// a host derives a ClassId; this is one reasonable way to do it.
package classify

import (
	"sync"

	"github.com/dghubble/trie"

	"github.com/inexplicable/slabmrc/internal/window"
)

// PrefixClassifier maps key namespace prefixes to a ClassId using a
// longest-prefix-match trie.
type PrefixClassifier struct {
	m       sync.RWMutex
	trie    *trie.RuneTrie
	unknown window.ClassId
}

// New creates a PrefixClassifier. unknown is the ClassId returned for keys
// that match no registered prefix.
func New(unknown window.ClassId) *PrefixClassifier {
	return &PrefixClassifier{
		trie:    trie.NewRuneTrie(),
		unknown: unknown,
	}
}

// Register routes every key with the given prefix to class.
func (c *PrefixClassifier) Register(prefix string, class window.ClassId) {
	c.m.Lock()
	defer c.m.Unlock()
	c.trie.Put(prefix, class)
}

// Unregister removes a previously registered prefix route.
func (c *PrefixClassifier) Unregister(prefix string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.trie.Delete(prefix)
}

// ClassOf returns the ClassId of the longest registered prefix of key, or
// unknown if none match. Registered prefixes are typically short namespace
// tags, so walking key's prefixes from longest to shortest is cheap.
func (c *PrefixClassifier) ClassOf(key string) window.ClassId {
	c.m.RLock()
	defer c.m.RUnlock()

	for end := len(key); end > 0; end-- {
		if v := c.trie.Get(key[:end]); v != nil {
			if class, ok := v.(window.ClassId); ok {
				return class
			}
		}
	}
	return c.unknown
}
