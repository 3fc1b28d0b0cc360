// Command slabmrcd sits behind an mcrouter eavesdropping route, profiles
// the GET/SET traffic it observes, and periodically rebalances a reference
// hostcache.Cache's slab budget across size-classes. It reports its
// per-class pressure to its consul-registered peers along the way.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/golang/glog"

	"github.com/inexplicable/slabmrc"
	"github.com/inexplicable/slabmrc/internal/classify"
	"github.com/inexplicable/slabmrc/internal/hostcache"
	"github.com/inexplicable/slabmrc/internal/ingest"
	"github.com/inexplicable/slabmrc/internal/window"
	"github.com/inexplicable/slabmrc/rebalance"
)

var (
	host           = flag.String("host", "", "listening host for the eavesdropping connection")
	port           = flag.Int("port", 11311, "listening port for the eavesdropping connection")
	ringCapacity   = flag.Int("ring_capacity", slabmrc.DefaultCapacity, "access window ring capacity")
	numClasses     = flag.Int("num_classes", 4, "number of size-classes to profile")
	slabsPerClass  = flag.Int("initial_slabs_per_class", 8, "initial slab count for every class")
	allocsPerSlab  = flag.Int("allocs_per_slab", 64, "objects that fit in one slab, uniform across classes")
	tickInterval   = flag.Duration("tick_interval", 30*time.Second, "how often to solve and apply a reallocation")
	minImprovement = flag.Float64("min_improvement", 0.01, "minimum absolute miss-ratio drop required to apply a plan")
	reportKey      = flag.String("report_key", "SLABMRC_PRESSURE", "memcached key namespace for pressure reports")
	serviceName    = flag.String("service_name", "slabmrcd", "consul service name this daemon and its peers register under")
	secretsPath    = flag.String("secrets_path", "/etc/consul/slabmrcd.json", "vault secrets path holding the consul token")
)

// resizingMover adapts a hostcache.Cache to rebalance.SlabMover: it grows
// the receiver's segment and shrinks the victim's by one slab each.
type resizingMover struct {
	cache *hostcache.Cache
}

func (m *resizingMover) MoveSlab(pair slabmrc.ReassignmentPair) error {
	m.cache.Resize(pair.Victim, m.cache.Slabs(pair.Victim)-1)
	m.cache.Resize(pair.Receiver, m.cache.Slabs(pair.Receiver)+1)
	return nil
}

func main() {
	flag.Parse()
	defer log.Flush()

	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		log.Errorf("<slabmrcd> cannot start listener: %v\n", err)
		os.Exit(1)
	}
	defer l.Close()

	profiler, err := slabmrc.New(*ringCapacity)
	if err != nil {
		log.Errorf("<slabmrcd> cannot start profiler: %v\n", err)
		os.Exit(1)
	}

	allocs := make(map[slabmrc.ClassId]int, *numClasses)
	for c := 0; c < *numClasses; c++ {
		allocs[slabmrc.ClassId(c)] = *allocsPerSlab
	}

	cache := hostcache.New(allocs)
	for c := 0; c < *numClasses; c++ {
		if err := cache.EnsureClass(window.ClassId(c), *slabsPerClass); err != nil {
			log.Errorf("<slabmrcd> cannot create class %d: %v\n", c, err)
			os.Exit(1)
		}
	}

	classifier := classify.New(window.ClassId(0))
	eavesdropper := ingest.NewProfilingEavesdropper(profiler, classifier)

	currentAlloc := func() map[slabmrc.ClassId]int {
		current := make(map[slabmrc.ClassId]int, *numClasses)
		for c := 0; c < *numClasses; c++ {
			current[slabmrc.ClassId(c)] = cache.Slabs(window.ClassId(c))
		}
		return current
	}

	daemon := rebalance.NewDaemon(profiler, &resizingMover{cache: cache}, allocs, currentAlloc)
	daemon.MinImprovement = *minImprovement

	// fetchPressure runs its own solve, with the same inputs daemon.Tick
	// uses, over a fresh snapshot and derives n_c/slabs(c) per class from
	// it. The figures match Tick's last decision only when no access was
	// fed and no slab moved in between.
	fetchPressure := func() map[window.ClassId]float64 {
		current := currentAlloc()
		result := profiler.SolveSlabReallocation(allocs, current)
		pressure := make(map[window.ClassId]float64, len(result.AccessFrequencies))
		for c, freq := range result.AccessFrequencies {
			if slabs := current[c]; slabs > 0 {
				pressure[c] = float64(freq) / float64(slabs)
			}
		}
		return pressure
	}

	secretsLoaded := rebalance.ReadSecretsEvery(*secretsPath, 10*time.Minute) == nil
	consulClient, err := rebalance.NewConsulClient()
	if err != nil || !secretsLoaded {
		log.Warningf("<slabmrcd> consul client unavailable, running without fleet reporting: %v\n", err)
	} else {
		identity := rebalance.Identity(*host, *port)
		registry := rebalance.NewRegistry(consulClient, *serviceName)
		stop := make(chan struct{})
		go registry.RunRefreshLoop(10*time.Second, stop)

		go func() {
			for range rebalance.TokenRotated {
				if client, err := rebalance.NewConsulClient(); err == nil {
					registry.SetConsulClient(client)
				} else {
					log.Warningf("<slabmrcd> rebuild consul client after token rotation failed: %v\n", err)
				}
			}
		}()

		reporter := rebalance.NewReporter(identity, *reportKey, registry)
		go reporter.RunReportLoop(*tickInterval, fetchPressure, stop)
	}

	go daemon.Run(*tickInterval, nil)

	log.Infof("<slabmrcd> eavesdropping starts on %s:%d, tick:%v\n", *host, *port, *tickInterval)
	for {
		conn, err := l.Accept()
		if err != nil {
			log.Warningf("<slabmrcd> error accepting connection: %v\n", err)
			continue
		}
		log.Infof("<slabmrcd> accepted connection from:%v\n", conn.RemoteAddr())
		go ingest.Serve(conn, eavesdropper)
	}
}
