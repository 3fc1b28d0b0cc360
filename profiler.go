// Package slabmrc profiles the recent access stream of each size-class in a
// slab-allocated object cache and solves the optimal redistribution of a
// fixed slab budget across classes.
//
// Feed is safe to call from any number of request-serving goroutines.
// QueryFootprint, QueryMrc, SolveSlabReallocation, and Reset are meant to be
// called from at most one rebalancing goroutine at a time. Profiler owns no
// goroutine of its own and never blocks beyond the ring's mutex.
package slabmrc

import (
	log "github.com/golang/glog"

	"github.com/inexplicable/slabmrc/internal/footprint"
	"github.com/inexplicable/slabmrc/internal/solver"
	"github.com/inexplicable/slabmrc/internal/window"
)

// ClassId identifies a size-class.
type ClassId = window.ClassId

// DefaultCapacity is a reasonable starting ring capacity for traces with
// millions of keys.
const DefaultCapacity = 20_000_000

// ClassMRC is one class's miss-ratio curve, its first differences, and its
// total access count in the window.
type ClassMRC = footprint.ClassMRC

// ReassignmentPair is one slab moving from Victim to Receiver.
type ReassignmentPair = solver.Pair

// SolveResult is the tuple SolveSlabReallocation returns.
type SolveResult = solver.Result

// Profiler is the top-level facade composing the Access Window, the
// Footprint Analyzer, and the Allocation Solver.
type Profiler struct {
	window *window.Window
}

// New creates a Profiler with ring capacity k. k must be at least 1.
func New(k int) (*Profiler, error) {
	w, err := window.New(k)
	if err != nil {
		return nil, err
	}
	log.Infof("<slabmrc> profiler started, ring capacity:%d\n", k)
	return &Profiler{window: w}, nil
}

// Feed records a new access. It never fails.
func (p *Profiler) Feed(key string, classId ClassId) {
	p.window.Feed(key, classId)
}

// FeedHash records an access whose key hash was already computed, e.g. when
// replaying a trace.Record. It never fails.
func (p *Profiler) FeedHash(keyHash uint64, classId ClassId) {
	p.window.FeedHash(keyHash, classId)
}

// Reset clears the access window.
func (p *Profiler) Reset() {
	p.window.Reset()
	log.Infof("<slabmrc> window reset\n")
}

// QueryFootprint returns, for each object count in cacheSizes, the sum
// across classes of that class's footprint at min(count, n_c).
func (p *Profiler) QueryFootprint(cacheSizes []int) []float64 {
	return footprint.QueryFootprint(p.window.Snapshot(), cacheSizes)
}

// QueryMrc returns one MRC entry per class present in both the window and
// allocsPerSlab, covering slab counts [0, maxSlabs].
func (p *Profiler) QueryMrc(allocsPerSlab map[ClassId]int, maxSlabs int) map[ClassId]ClassMRC {
	return footprint.QueryMrc(p.window.Snapshot(), allocsPerSlab, maxSlabs)
}

// SolveSlabReallocation solves the optimal redistribution of the slab
// budget implied by currentAllocation across the classes profiled in the
// window.
func (p *Profiler) SolveSlabReallocation(allocsPerSlab map[ClassId]int, currentAllocation map[ClassId]int) SolveResult {
	return solver.Solve(p.window.Snapshot(), allocsPerSlab, currentAllocation)
}
