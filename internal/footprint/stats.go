// Package footprint computes per-class window statistics, the O(n)
// footprint recurrence, and per-class miss-ratio curve derivation.
package footprint

import (
	"sort"

	"github.com/inexplicable/slabmrc/internal/window"
)

// classStats holds one class's window statistics, already reshaped into the
// two sorted sequences and the reuse histogram the footprint recurrence
// needs.
type classStats struct {
	n int
	m int
	// f holds firstAccess[key]+1 for every key, sorted ascending.
	f []int
	// l holds n-lastAccess[key] for every key, sorted ascending.
	l []int
	// reuseHist[t] is the number of reuses at class-local distance t, for
	// t in [1, n-1]. Index 0 is unused.
	reuseHist []int
}

// windowStats computes per-class statistics from a snapshot in a single pass
// over its logical (oldest-to-newest) order.
func windowStats(snap window.Snapshot) map[window.ClassId]*classStats {
	if snap.Size == 0 {
		return nil
	}

	type building struct {
		firstAccess map[uint64]int
		lastAccess  map[uint64]int
		reuseCounts map[int]int
		localIdx    int
	}
	byClass := make(map[window.ClassId]*building)

	snap.Each(func(_ int, r window.Record) {
		b, ok := byClass[r.Class]
		if !ok {
			b = &building{
				firstAccess: make(map[uint64]int),
				lastAccess:  make(map[uint64]int),
				reuseCounts: make(map[int]int),
			}
			byClass[r.Class] = b
		}
		if _, seen := b.firstAccess[r.KeyHash]; !seen {
			b.firstAccess[r.KeyHash] = b.localIdx
		}
		if prev, seen := b.lastAccess[r.KeyHash]; seen {
			t := b.localIdx - prev
			b.reuseCounts[t]++
		}
		b.lastAccess[r.KeyHash] = b.localIdx
		b.localIdx++
	})

	result := make(map[window.ClassId]*classStats, len(byClass))
	for class, b := range byClass {
		n := b.localIdx
		m := len(b.firstAccess)

		f := make([]int, 0, m)
		for _, idx := range b.firstAccess {
			f = append(f, idx+1)
		}
		sort.Ints(f)

		l := make([]int, 0, m)
		for _, idx := range b.lastAccess {
			l = append(l, n-idx)
		}
		sort.Ints(l)

		reuseHist := make([]int, n)
		for t, c := range b.reuseCounts {
			if t >= 0 && t < n {
				reuseHist[t] = c
			}
		}

		result[class] = &classStats{n: n, m: m, f: f, l: l, reuseHist: reuseHist}
	}
	return result
}
