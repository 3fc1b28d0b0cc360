package rebalance

import (
	"testing"

	"github.com/inexplicable/slabmrc/internal/window"
)

func TestColdestClassesRanksAscendingByAveragePressure(t *testing.T) {
	reports := []PressureReport{
		{Identity: "h1", Pressure: map[window.ClassId]float64{0: 10, 1: 1}},
		{Identity: "h2", Pressure: map[window.ClassId]float64{0: 20, 1: 3}},
	}
	got := coldestClasses(reports, 1)
	if len(got) != 1 || got[0] != window.ClassId(1) {
		panic("class 1 has the lower average pressure and should rank first")
	}
}

func TestColdestClassesCapsAtTopN(t *testing.T) {
	reports := []PressureReport{
		{Identity: "h1", Pressure: map[window.ClassId]float64{0: 1, 1: 2, 2: 3}},
	}
	got := coldestClasses(reports, 2)
	if len(got) != 2 {
		panic("expected exactly topN results")
	}
	if got[0] != window.ClassId(0) || got[1] != window.ClassId(1) {
		panic("expected the two coldest classes in ascending pressure order")
	}
}

func TestColdestClassesEmptyReportsYieldsEmpty(t *testing.T) {
	if got := coldestClasses(nil, 5); len(got) != 0 {
		panic("no reports should yield no classes")
	}
}
