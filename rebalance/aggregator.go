package rebalance

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	json "github.com/goccy/go-json"
	log "github.com/golang/glog"

	consul "github.com/hashicorp/consul/api"

	"github.com/inexplicable/slabmrc/internal/window"
)

// classPressureEntry is one class's fleet-average pressure, ranked so the
// coldest classes (lowest pressure, best slab-donation candidates) surface
// first.
type classPressureEntry struct {
	class    window.ClassId
	pressure float64
}

type classPressureHeap []*classPressureEntry

func (h classPressureHeap) Len() int            { return len(h) }
func (h classPressureHeap) Less(i, j int) bool  { return h[i].pressure < h[j].pressure }
func (h classPressureHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *classPressureHeap) Push(x interface{}) { *h = append(*h, x.(*classPressureEntry)) }
func (h *classPressureHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// Aggregator elects a leader among slabmrcd peers via a consul lock, and
// once leader, periodically collects every peer's PressureReport and
// derives the fleet-wide coldest classes.
type Aggregator struct {
	serviceName string
	reportKey   string
	topN        int
	client      *memcache.Client
	consul      *consul.Client
}

// NewAggregator creates an Aggregator that reads peer reports through
// registry and elects leadership via consulClient.
func NewAggregator(serviceName, reportKey string, topN int, registry *Registry, consulClient *consul.Client) *Aggregator {
	return &Aggregator{
		serviceName: serviceName,
		reportKey:   reportKey,
		topN:        topN,
		client:      memcache.NewFromSelector(registry),
		consul:      consulClient,
	}
}

// coldestClasses reduces a set of peer reports to the topN classes with the
// lowest average pressure across the fleet.
func coldestClasses(reports []PressureReport, topN int) []window.ClassId {
	sums := map[window.ClassId]float64{}
	counts := map[window.ClassId]int{}
	for _, report := range reports {
		for class, pressure := range report.Pressure {
			sums[class] += pressure
			counts[class]++
		}
	}

	h := &classPressureHeap{}
	heap.Init(h)
	for class, sum := range sums {
		heap.Push(h, &classPressureEntry{class: class, pressure: sum / float64(counts[class])})
	}

	result := make([]window.ClassId, 0, topN)
	for t := 0; t < topN && h.Len() > 0; t++ {
		entry := heap.Pop(h).(*classPressureEntry)
		result = append(result, entry.class)
	}
	return result
}

// RunElectedAggregation blocks acquiring the fleet's aggregation lock, then
// calls onColdest once per interval for as long as leadership is held,
// re-electing after any leadership loss. Leadership is a consul lock
// (consul.LockOpts), so only one daemon aggregates reports at a time.
func (a *Aggregator) RunElectedAggregation(interval time.Duration, onColdest func([]window.ClassId)) error {
	lockKey := fmt.Sprintf("%s:%s:leader", a.serviceName, a.reportKey)
	locker, err := a.consul.LockOpts(&consul.LockOptions{Key: lockKey})
	if err != nil {
		log.Errorf("<aggregator> cannot create leadership lock: %v\n", err)
		return err
	}
	for {
		leaderCh, err := locker.Lock(nil)
		if err != nil {
			log.Warningf("<aggregator> recover from leadership election error: %v\n", err)
			continue
		}
		ticker := time.NewTicker(interval)
	held:
		for {
			select {
			case <-ticker.C:
				a.aggregateOnce(onColdest)
			case _, open := <-leaderCh:
				if !open {
					log.Infof("<aggregator> leadership lost\n")
					ticker.Stop()
					break held
				}
			}
		}
	}
}

func (a *Aggregator) aggregateOnce(onColdest func([]window.ClassId)) {
	entries, _, err := a.consul.Health().Service(a.serviceName, "", true, &consul.QueryOptions{AllowStale: true})
	if err != nil {
		log.Warningf("<aggregator> discover %q failed: %v\n", a.serviceName, err)
		return
	}
	if len(entries) == 0 {
		return
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, fmt.Sprintf("%s:%s", a.reportKey, Identity(entry.Node.Address, entry.Service.Port)))
	}

	items, err := a.client.GetMulti(keys)
	if err != nil {
		log.Warningf("<aggregator> GetMulti failed: %v\n", err)
		return
	}
	reports := make([]PressureReport, 0, len(items))
	for _, item := range items {
		var report PressureReport
		if err := json.Unmarshal(item.Value, &report); err != nil {
			log.Warningf("<aggregator> unmarshal report failed: %v\n", err)
			continue
		}
		reports = append(reports, report)
	}
	onColdest(coldestClasses(reports, a.topN))
}
