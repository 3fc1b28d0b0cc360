package footprint

import (
	"strconv"
	"testing"

	"github.com/inexplicable/slabmrc/internal/window"
)

func feedAll(w *window.Window, keys []string, class window.ClassId) {
	for _, k := range keys {
		w.Feed(k, class)
	}
}

func TestEmptyWindowYieldsZeros(t *testing.T) {
	w, _ := window.New(100)
	got := QueryFootprint(w.Snapshot(), []int{1, 10, 100})
	for _, v := range got {
		if v != 0 {
			panic("empty window footprint should be all zero")
		}
	}
	mrc := QueryMrc(w.Snapshot(), map[window.ClassId]int{0: 10}, 3)
	if len(mrc) != 0 {
		panic("empty window mrc should be empty")
	}
}

func TestNoReuseFootprintIsIdentity(t *testing.T) {
	w, _ := window.New(100)
	keys := make([]string, 8)
	for i := range keys {
		keys[i] = strconv.Itoa(i + 1)
	}
	feedAll(w, keys, window.ClassId(0))

	snap := w.Snapshot()
	stats := windowStats(snap)
	s := stats[window.ClassId(0)]
	if s.n != 8 || s.m != 8 {
		panic("n and m should both be 8 with no repeats")
	}
	fp := fpValues(s)
	for wlen := 1; wlen <= 8; wlen++ {
		if fp[wlen] != float64(wlen) {
			panic("fp(w) should equal w when there is no reuse")
		}
	}

	mrc := QueryMrc(snap, map[window.ClassId]int{0: 2}, 4)
	entry := mrc[window.ClassId(0)]
	if entry.Points[0] != 1.0 {
		panic("miss ratio at s=0 must be 1")
	}
	if entry.Points[4] != 1.0 {
		panic("no hits are possible without reuse")
	}
}

func TestPerfectLocalityNearZeroMissRatio(t *testing.T) {
	w, _ := window.New(200)
	keys := make([]string, 100)
	for i := range keys {
		keys[i] = "7"
	}
	feedAll(w, keys, window.ClassId(0))

	snap := w.Snapshot()
	mrc := QueryMrc(snap, map[window.ClassId]int{0: 1}, 1)
	entry := mrc[window.ClassId(0)]
	got := entry.Points[1]
	if got > 0.02 || got < 0.0 {
		panic("miss ratio for a single hot key with capacity 1 should be close to the compulsory miss rate")
	}
}

func TestFootprintMonotoneAndBounded(t *testing.T) {
	w, _ := window.New(500)
	for i := 0; i < 300; i++ {
		feedAll(w, []string{strconv.Itoa(i % 37)}, window.ClassId(0))
	}
	snap := w.Snapshot()
	stats := windowStats(snap)
	s := stats[window.ClassId(0)]
	fp := fpValues(s)
	if fp[0] != 0 {
		panic("fp(0) must be 0")
	}
	if fp[s.n] != float64(s.m) {
		panic("fp(n) must equal m")
	}
	for i := 1; i < len(fp); i++ {
		if fp[i] < fp[i-1]-1e-9 {
			panic("fp must be non-decreasing")
		}
	}
}

func TestMissRatioNonIncreasingInSlabCount(t *testing.T) {
	w, _ := window.New(500)
	for i := 0; i < 300; i++ {
		feedAll(w, []string{strconv.Itoa(i % 37)}, window.ClassId(0))
	}
	mrc := QueryMrc(w.Snapshot(), map[window.ClassId]int{0: 1}, 40)
	entry := mrc[window.ClassId(0)]
	prev := 2.0
	for s := 0; s <= 40; s++ {
		mr := entry.Points[s]
		if mr > prev+1e-9 {
			panic("miss ratio must be non-increasing in slab count")
		}
		prev = mr
	}
	if entry.Points[0] != 1.0 {
		panic("miss ratio at s=0 must be 1")
	}
}
