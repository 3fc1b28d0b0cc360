package ingest

import (
	"bufio"
	"strings"
	"testing"

	"github.com/inexplicable/slabmrc"
	"github.com/inexplicable/slabmrc/internal/classify"
)

func newTestEavesdropper() (*ProfilingEavesdropper, *slabmrc.Profiler) {
	p, _ := slabmrc.New(100)
	c := classify.New(slabmrc.ClassId(0))
	c.Register("user:", slabmrc.ClassId(1))
	return NewProfilingEavesdropper(p, c), p
}

func TestOnFetchFeedsEachKeyToProfiler(t *testing.T) {
	e, p := newTestEavesdropper()
	scanner := bufio.NewScanner(strings.NewReader(""))
	resp, err := e.OnCommand(Fetch, []string{"user:1", "user:2"}, scanner)
	if err != nil {
		panic(err)
	}
	if string(resp) != string(End) {
		panic("GET must be answered with END")
	}
	got := p.QueryFootprint([]int{10})
	if got[0] == 0 {
		panic("footprint should be nonzero after two feeds within capacity 10")
	}
}

func TestOnCommandQuitReturnsErrQuit(t *testing.T) {
	e, _ := newTestEavesdropper()
	scanner := bufio.NewScanner(strings.NewReader(""))
	if _, err := e.OnCommand(Quit, nil, scanner); err != ErrQuit {
		panic("QUIT must surface ErrQuit")
	}
}

func TestOnCommandStoreFeedsKeyAndSkipsPayload(t *testing.T) {
	e, p := newTestEavesdropper()
	scanner := bufio.NewScanner(strings.NewReader("hello\r\n"))
	scanner.Split(scanCRLF)
	resp, err := e.OnCommand(Store, []string{"user:9", "0", "0", "5"}, scanner)
	if err != nil {
		panic(err)
	}
	if string(resp) != string(NotStored) {
		panic("SET must be answered with NOT_STORED")
	}
	if scanner.Scan() {
		panic("the 5-byte payload line should have been consumed")
	}
	got := p.QueryFootprint([]int{10})
	if got[0] == 0 {
		panic("footprint should reflect the stored key as an access")
	}
}
