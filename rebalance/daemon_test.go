package rebalance

import (
	"strconv"
	"testing"

	"github.com/inexplicable/slabmrc"
)

type recordingMover struct {
	moves []slabmrc.ReassignmentPair
}

func (m *recordingMover) MoveSlab(pair slabmrc.ReassignmentPair) error {
	m.moves = append(m.moves, pair)
	return nil
}

func TestTickSkipsBelowImprovementThreshold(t *testing.T) {
	p, _ := slabmrc.New(1000)
	for i := 0; i < 20; i++ {
		p.Feed(strconv.Itoa(i%5), slabmrc.ClassId(0))
	}
	mover := &recordingMover{}
	d := NewDaemon(p, mover, map[slabmrc.ClassId]int{0: 1}, func() map[slabmrc.ClassId]int {
		return map[slabmrc.ClassId]int{0: 4}
	})
	d.MinImprovement = 1.0
	d.Tick()
	if len(mover.moves) != 0 {
		panic("no move should apply when improvement cannot possibly clear a 1.0 gate")
	}
}

func TestTickAppliesPlanWhenImprovementClearsGate(t *testing.T) {
	p, _ := slabmrc.New(4000)
	const hot, cold = slabmrc.ClassId(0), slabmrc.ClassId(1)
	for i := 0; i < 200; i++ {
		p.Feed(strconv.Itoa(i%10), hot)
	}
	for i := 0; i < 10; i++ {
		p.Feed(strconv.Itoa(1000+i), cold)
	}

	mover := &recordingMover{}
	d := NewDaemon(p, mover, map[slabmrc.ClassId]int{hot: 1, cold: 1}, func() map[slabmrc.ClassId]int {
		return map[slabmrc.ClassId]int{hot: 1, cold: 9}
	})
	d.MinImprovement = 0
	result := d.Tick()
	if result.MrNew > result.MrOld {
		panic("solved allocation should never be worse than the current one")
	}
	if len(mover.moves) != len(result.ReassignmentPlan) {
		panic("every planned move should have been applied through the mover")
	}
}
