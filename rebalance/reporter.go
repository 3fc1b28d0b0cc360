package rebalance

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/bradfitz/gomemcache/memcache"
	log "github.com/golang/glog"

	"github.com/inexplicable/slabmrc/internal/window"
)

// PressureReport is one daemon's per-class access-per-slab pressure, the
// same figure the solver ranks victims by, published so a fleet-wide
// Aggregator can find the globally coldest classes.
type PressureReport struct {
	Identity  string                     `json:"identity"`
	Pressure  map[window.ClassId]float64 `json:"pressure"`
	Timestamp int64                      `json:"timestamp"`
}

// Reporter periodically publishes a PressureReport through the peers in a
// Registry under a well-known key, keyed by this daemon's identity. Each
// report is stored on the single peer the Registry picks for that key.
type Reporter struct {
	identity  string
	reportKey string
	client    *memcache.Client
}

// NewReporter creates a Reporter that publishes through registry.
func NewReporter(identity, reportKey string, registry *Registry) *Reporter {
	return &Reporter{
		identity:  identity,
		reportKey: reportKey,
		client:    memcache.NewFromSelector(registry),
	}
}

// Report publishes pressure under this daemon's identity.
func (r *Reporter) Report(pressure map[window.ClassId]float64) {
	report := PressureReport{
		Identity:  r.identity,
		Pressure:  pressure,
		Timestamp: nowUnix(),
	}
	raw, err := json.Marshal(report)
	if err != nil {
		log.Warningf("<reporter:%s> marshal failed: %v\n", r.identity, err)
		return
	}
	item := &memcache.Item{
		Key:   fmt.Sprintf("%s:%s", r.reportKey, r.identity),
		Value: raw,
	}
	if err := r.client.Set(item); err != nil {
		log.Warningf("<reporter:%s> set failed: %v\n", r.identity, err)
		return
	}
	log.Infof("<reporter:%s> published %d classes\n", r.identity, len(pressure))
}

// RunReportLoop calls Report(fetch()) every interval until stop is closed.
func (r *Reporter) RunReportLoop(interval time.Duration, fetch func() map[window.ClassId]float64, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Report(fetch())
		}
	}
}

// Identity builds the default reporter identity from a host and port, e.g.
// for os.Hostname() plus a daemon's flag-configured aggregation port.
func Identity(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

var nowUnix = func() int64 { return time.Now().Unix() }
