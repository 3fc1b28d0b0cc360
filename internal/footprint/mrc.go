package footprint

import "github.com/inexplicable/slabmrc/internal/window"

// ClassMRC is one class's entry in QueryMrc's result: the miss-ratio curve
// itself, its first differences, and the class's total access count in the
// window.
type ClassMRC struct {
	Points map[int]float64
	Delta  map[int]float64
	N      int
}

// QueryFootprint sums, for each object count c in cacheSizes, every class's
// footprint at min(c, n_c). An empty window yields all zeros.
func QueryFootprint(snap window.Snapshot, cacheSizes []int) []float64 {
	result := make([]float64, len(cacheSizes))
	stats := windowStats(snap)
	if len(stats) == 0 {
		return result
	}

	fpByClass := make(map[window.ClassId][]float64, len(stats))
	for class, s := range stats {
		fpByClass[class] = fpValues(s)
	}

	for i, c := range cacheSizes {
		var total float64
		for class, s := range stats {
			w := c
			if w > s.n {
				w = s.n
			}
			total += at(fpByClass[class], s.n, w)
		}
		result[i] = total
	}
	return result
}

// QueryMrc returns one entry per class present in both the window and
// allocsPerSlab, skipping classes with a zero allocation granularity.
// Returned mrcPoints covers s in [0, maxSlabs].
func QueryMrc(snap window.Snapshot, allocsPerSlab map[window.ClassId]int, maxSlabs int) map[window.ClassId]ClassMRC {
	result := map[window.ClassId]ClassMRC{}
	stats := windowStats(snap)
	if len(stats) == 0 {
		return result
	}

	for class, aps := range allocsPerSlab {
		if aps <= 0 {
			continue
		}
		s, ok := stats[class]
		if !ok {
			continue
		}
		result[class] = classMRC(s, aps, maxSlabs)
	}
	return result
}

// classMRC derives one class's MRC from its window statistics:
// miss_ratio(s) = 1 - hits(C)/n where hits(C) counts reuses whose footprint
// fits within capacity C = s*allocsPerSlab, using an inclusive fp(t) <= C
// test. Consider a single key accessed 100 times with allocsPerSlab=1 and
// s=1: fp(t)=1 for every reuse and C=1, so an exclusive "<" test would count
// zero hits and report a 100% miss ratio, when only the first, compulsory
// access should ever miss. The inclusive "<=" test gives the correct
// miss_ratio=0.01 for that case.
func classMRC(s *classStats, allocsPerSlab, maxSlabs int) ClassMRC {
	fp := fpValues(s)
	points := make(map[int]float64, maxSlabs+1)
	delta := make(map[int]float64, maxSlabs)

	prev := 1.0
	for slab := 0; slab <= maxSlabs; slab++ {
		capacity := slab * allocsPerSlab

		missRatio := 1.0
		if s.n > 0 && capacity > 0 {
			hits := 0
			for t := 1; t < len(s.reuseHist); t++ {
				count := s.reuseHist[t]
				if count == 0 {
					continue
				}
				if at(fp, s.n, t) <= float64(capacity) {
					hits += count
				}
			}
			missRatio = 1.0 - float64(hits)/float64(s.n)
			if missRatio < 0 {
				missRatio = 0
			}
			if missRatio > 1 {
				missRatio = 1
			}
		}

		points[slab] = missRatio
		if slab > 0 {
			delta[slab] = prev - missRatio
		}
		prev = missRatio
	}

	return ClassMRC{Points: points, Delta: delta, N: s.n}
}
