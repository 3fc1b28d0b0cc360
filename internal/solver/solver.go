// Package solver implements a knapsack DP that redistributes a fixed slab
// budget across size-classes to minimize expected misses, plus the
// victim/receiver reassignment plan the host applies.
package solver

import (
	"container/heap"
	"math"
	"sort"

	"github.com/inexplicable/slabmrc/internal/footprint"
	"github.com/inexplicable/slabmrc/internal/window"
)

// Pair is one slab moving from Victim to Receiver.
type Pair struct {
	Victim   window.ClassId
	Receiver window.ClassId
}

// Result is the tuple Solve returns.
type Result struct {
	MrOld             float64
	MrNew             float64
	OptimalAllocation map[window.ClassId]int
	ReassignmentPlan  []Pair
	AccessFrequencies map[window.ClassId]int
}

// Solve runs the DP over the window snapshot and returns the reallocation
// plan. It never fails: degenerate input yields a fully zero-valued Result.
func Solve(snap window.Snapshot, allocsPerSlab map[window.ClassId]int, currentAllocation map[window.ClassId]int) Result {
	budget := 0
	for _, s := range currentAllocation {
		budget += s
	}

	mrcByClass := footprint.QueryMrc(snap, allocsPerSlab, budget)
	if len(mrcByClass) == 0 {
		return zeroResult()
	}

	classIds := make([]window.ClassId, 0, len(mrcByClass))
	for c := range mrcByClass {
		classIds = append(classIds, c)
	}
	sort.Slice(classIds, func(i, j int) bool { return classIds[i] < classIds[j] })
	numClasses := len(classIds)

	accessFreq := make(map[window.ClassId]int, numClasses)
	for _, c := range classIds {
		accessFreq[c] = mrcByClass[c].N
	}

	cost := make([][]float64, numClasses)
	for i, c := range classIds {
		cost[i] = make([]float64, budget+1)
		points := mrcByClass[c].Points
		freq := float64(mrcByClass[c].N)
		for s := 0; s <= budget; s++ {
			cost[i][s] = freq * missRatioAt(points, s)
		}
	}

	optimalAllocation := knapsack(numClasses, budget, cost, classIds)

	allClasses := unionClasses(classIds, currentAllocation)
	for _, c := range allClasses {
		if _, ok := optimalAllocation[c]; !ok {
			optimalAllocation[c] = 0
		}
	}

	mrOld := weightedMissRate(mrcByClass, currentAllocation)
	mrNew := weightedMissRate(mrcByClass, optimalAllocation)

	plan := reassignmentPlan(allClasses, currentAllocation, optimalAllocation, accessFreq)

	return Result{
		MrOld:             mrOld,
		MrNew:             mrNew,
		OptimalAllocation: optimalAllocation,
		ReassignmentPlan:  plan,
		AccessFrequencies: accessFreq,
	}
}

func zeroResult() Result {
	return Result{
		OptimalAllocation: map[window.ClassId]int{},
		ReassignmentPlan:  nil,
		AccessFrequencies: map[window.ClassId]int{},
	}
}

// missRatioAt looks up the miss ratio at slab count s over a sparse MRC:
// s=0 always misses, an unprofiled gap below the max profiled point also
// counts as a miss, and s beyond the max profiled point saturates at the
// last profiled value.
func missRatioAt(points map[int]float64, s int) float64 {
	if s == 0 {
		return 1.0
	}
	if v, ok := points[s]; ok {
		return v
	}
	maxProfiled := 0
	for k := range points {
		if k > maxProfiled {
			maxProfiled = k
		}
	}
	if s > maxProfiled {
		if v, ok := points[maxProfiled]; ok {
			return v
		}
		return 0.0
	}
	return 1.0
}

// knapsack runs the DP F[i][s] = min_k F[i-1][s-k] + cost[i-1][k], ties
// broken by the smaller k, and reconstructs the optimal per-class allocation
// from the backpointers.
func knapsack(numClasses, budget int, cost [][]float64, classIds []window.ClassId) map[window.ClassId]int {
	F := make([][]float64, numClasses+1)
	back := make([][]int, numClasses+1)
	for i := range F {
		F[i] = make([]float64, budget+1)
		back[i] = make([]int, budget+1)
		for s := range F[i] {
			F[i][s] = math.Inf(1)
		}
	}
	F[0][0] = 0

	for i := 1; i <= numClasses; i++ {
		for s := 0; s <= budget; s++ {
			for k := 0; k <= s; k++ {
				prev := F[i-1][s-k]
				if math.IsInf(prev, 1) {
					continue
				}
				candidate := prev + cost[i-1][k]
				if candidate < F[i][s] {
					F[i][s] = candidate
					back[i][s] = k
				}
			}
		}
	}

	optimal := make(map[window.ClassId]int, numClasses)
	remaining := budget
	for i := numClasses; i > 0; i-- {
		k := back[i][remaining]
		optimal[classIds[i-1]] = k
		remaining -= k
	}
	return optimal
}

func unionClasses(classIds []window.ClassId, currentAllocation map[window.ClassId]int) []window.ClassId {
	seen := make(map[window.ClassId]bool, len(classIds)+len(currentAllocation))
	all := make([]window.ClassId, 0, len(classIds)+len(currentAllocation))
	for _, c := range classIds {
		if !seen[c] {
			seen[c] = true
			all = append(all, c)
		}
	}
	extra := make([]window.ClassId, 0, len(currentAllocation))
	for c := range currentAllocation {
		if !seen[c] {
			seen[c] = true
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	all = append(all, extra...)
	return all
}

func weightedMissRate(mrcByClass map[window.ClassId]footprint.ClassMRC, allocation map[window.ClassId]int) float64 {
	var totalMisses, totalRequests float64
	for c, mrc := range mrcByClass {
		freq := float64(mrc.N)
		totalRequests += freq
		totalMisses += freq * missRatioAt(mrc.Points, allocation[c])
	}
	if totalRequests == 0 {
		return 0
	}
	return totalMisses / totalRequests
}

// victimEntry is one candidate slab release, ranked by ascending
// access-per-slab pressure so the cheapest slabs are released first.
type victimEntry struct {
	class window.ClassId
	score float64
}

type victimHeap []victimEntry

func (h victimHeap) Len() int            { return len(h) }
func (h victimHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h victimHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *victimHeap) Push(x interface{}) { *h = append(*h, x.(victimEntry)) }
func (h *victimHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reassignmentPlan pairs each released slab with a receiving class: victims
// are drained in ascending pressure order, receivers in the deterministic
// union iteration order.
func reassignmentPlan(allClasses []window.ClassId, current, optimal map[window.ClassId]int, accessFreq map[window.ClassId]int) []Pair {
	vh := &victimHeap{}
	var receivers []window.ClassId

	for _, c := range allClasses {
		cur := current[c]
		opt := optimal[c]
		if opt < cur {
			score := pressure(accessFreq, current, c)
			for i := 0; i < cur-opt; i++ {
				heap.Push(vh, victimEntry{class: c, score: score})
			}
		} else if opt > cur {
			for i := 0; i < opt-cur; i++ {
				receivers = append(receivers, c)
			}
		}
	}

	var victims []window.ClassId
	for vh.Len() > 0 {
		victims = append(victims, heap.Pop(vh).(victimEntry).class)
	}

	n := len(victims)
	if len(receivers) < n {
		n = len(receivers)
	}
	plan := make([]Pair, n)
	for i := 0; i < n; i++ {
		plan[i] = Pair{Victim: victims[i], Receiver: receivers[i]}
	}
	return plan
}

// pressure computes n_c/current[c], the access-per-slab load used to rank
// victims so the cheapest slabs release first; it is +Inf when either
// quantity is missing or current is zero.
func pressure(accessFreq map[window.ClassId]int, current map[window.ClassId]int, c window.ClassId) float64 {
	freq, freqOk := accessFreq[c]
	cur, curOk := current[c]
	if !freqOk || !curOk || cur == 0 {
		return math.Inf(1)
	}
	return float64(freq) / float64(cur)
}
