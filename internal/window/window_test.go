package window

import (
	"strconv"
	"testing"
)

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		panic("New(0) should fail")
	}
	if _, err := New(1); err != nil {
		panic("New(1) should succeed")
	}
}

func TestFeedAndSnapshotOrder(t *testing.T) {
	w, err := New(4)
	if err != nil {
		panic(err)
	}
	for i := 1; i <= 3; i++ {
		w.Feed(strconv.Itoa(i), ClassId(0))
	}
	snap := w.Snapshot()
	if snap.Size != 3 || snap.Head != 3 {
		panic("snapshot size/head incorrect before wraparound")
	}

	var seen []uint64
	snap.Each(func(idx int, r Record) {
		seen = append(seen, r.KeyHash)
	})
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		panic("snapshot order incorrect before wraparound")
	}
}

func TestFeedWrapsAtCapacity(t *testing.T) {
	w, err := New(3)
	if err != nil {
		panic(err)
	}
	for i := 1; i <= 5; i++ {
		w.Feed(strconv.Itoa(i), ClassId(0))
	}
	snap := w.Snapshot()
	if snap.Size != 3 {
		panic("size should be clamped to capacity")
	}
	var seen []uint64
	snap.Each(func(idx int, r Record) { seen = append(seen, r.KeyHash) })
	if len(seen) != 3 || seen[0] != 3 || seen[1] != 4 || seen[2] != 5 {
		panic("oldest entries should have been evicted")
	}
}

func TestResetClearsSizeNotStorage(t *testing.T) {
	w, err := New(2)
	if err != nil {
		panic(err)
	}
	w.Feed("1", ClassId(0))
	w.Reset()
	snap := w.Snapshot()
	if snap.Size != 0 {
		panic("reset should zero size")
	}
	w.Feed("2", ClassId(1))
	snap = w.Snapshot()
	if snap.Size != 1 {
		panic("feed after reset should be observable")
	}
}

func TestRepeatedFeedIdempotentAtCapacityMultiple(t *testing.T) {
	a, _ := New(5)
	b, _ := New(5)
	for i := 0; i < 5; i++ {
		a.Feed("42", ClassId(1))
	}
	for i := 0; i < 10; i++ {
		b.Feed("42", ClassId(1))
	}
	sa, sb := a.Snapshot(), b.Snapshot()
	if sa.Size != sb.Size {
		panic("feeding K vs 2K times should converge to the same snapshot size")
	}
}
