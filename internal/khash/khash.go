// Package khash derives the 64-bit identity token a profiler uses for a
// request key: its numeric value when the key text is an unsigned integer,
// otherwise a 64-bit hash of the bytes.
package khash

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Of returns the KeyHash for key, per spec: an integer-parsed key uses its
// own value, anything else falls back to a 64-bit hash. Collisions are
// tolerated; the result is an identity token within one window, not a
// persisted fingerprint.
func Of(key string) uint64 {
	if v, err := strconv.ParseUint(key, 10, 64); err == nil {
		return v
	}
	return xxhash.Sum64String(key)
}

// OfBytes is the []byte counterpart of Of, avoiding an allocation on the
// hot feed path when the caller already has a byte slice.
func OfBytes(key []byte) uint64 {
	if v, err := strconv.ParseUint(string(key), 10, 64); err == nil {
		return v
	}
	return xxhash.Sum64(key)
}
