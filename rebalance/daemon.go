package rebalance

import (
	"time"

	log "github.com/golang/glog"

	"github.com/inexplicable/slabmrc"
)

// SlabMover applies one reassignment pair to the live cache: it must move
// exactly one slab's worth of capacity from Victim to Receiver.
type SlabMover interface {
	MoveSlab(pair slabmrc.ReassignmentPair) error
}

// Daemon periodically asks a Profiler to solve the optimal slab
// reallocation for the current window and, if the improvement clears
// MinImprovement, applies the resulting plan through a SlabMover.
type Daemon struct {
	profiler       *slabmrc.Profiler
	mover          SlabMover
	allocsPerSlab  map[slabmrc.ClassId]int
	currentAlloc   func() map[slabmrc.ClassId]int
	MinImprovement float64
}

// NewDaemon creates a Daemon. allocsPerSlab is static per class. currentAlloc
// is called before every tick to read the live slab distribution, since a
// host cache's allocation can change between ticks independent of this
// daemon (e.g. an operator manually resizing a class).
func NewDaemon(profiler *slabmrc.Profiler, mover SlabMover, allocsPerSlab map[slabmrc.ClassId]int, currentAlloc func() map[slabmrc.ClassId]int) *Daemon {
	return &Daemon{
		profiler:       profiler,
		mover:          mover,
		allocsPerSlab:  allocsPerSlab,
		currentAlloc:   currentAlloc,
		MinImprovement: 0.01,
	}
}

// Tick runs one solve-and-apply cycle and returns the solve result, whether
// or not it cleared the improvement gate.
func (d *Daemon) Tick() slabmrc.SolveResult {
	current := d.currentAlloc()
	result := d.profiler.SolveSlabReallocation(d.allocsPerSlab, current)

	improvement := result.MrOld - result.MrNew
	if improvement < d.MinImprovement {
		log.Infof("<rebalance> improvement %.4f below threshold %.4f, skipping\n", improvement, d.MinImprovement)
		return result
	}

	log.Infof("<rebalance> applying %d slab moves, mrOld:%.4f mrNew:%.4f\n", len(result.ReassignmentPlan), result.MrOld, result.MrNew)
	for _, pair := range result.ReassignmentPlan {
		if err := d.mover.MoveSlab(pair); err != nil {
			log.Warningf("<rebalance> move %v->%v failed: %v\n", pair.Victim, pair.Receiver, err)
		}
	}
	return result
}

// Run calls Tick every interval until stop is closed.
func (d *Daemon) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}
