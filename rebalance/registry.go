// Package rebalance runs the periodic slab-reallocation loop that ties a
// slabmrc.Profiler to a live host cache, and the fleet-wide reporting and
// discovery a group of such daemons need to elect a leader and aggregate
// their pressure reports.
package rebalance

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/bradfitz/gomemcache/memcache"
	consul "github.com/hashicorp/consul/api"
)

// Registry tracks the addresses of the slabmrcd peers currently registered
// under a consul service name, and exposes them as a memcache.ServerSelector
// so a Reporter's memcache client stores each report on the one peer its key
// hashes to.
type Registry struct {
	m           sync.Mutex
	ss          *memcache.ServerList
	consul      *consul.Client
	serviceName string
	peers       map[string]bool
}

// NewRegistry creates a Registry over the given consul client and service
// name. Call Refresh (or RunRefreshLoop) at least once before using it as a
// ServerSelector.
func NewRegistry(consulClient *consul.Client, serviceName string) *Registry {
	return &Registry{
		ss:          &memcache.ServerList{},
		consul:      consulClient,
		serviceName: serviceName,
		peers:       map[string]bool{},
	}
}

// SetConsulClient swaps the consul client a Registry queries, so a daemon
// that observes rebalance.TokenRotated can keep discovering peers under a
// freshly rotated token instead of failing every Refresh until restart.
func (r *Registry) SetConsulClient(consulClient *consul.Client) {
	r.m.Lock()
	defer r.m.Unlock()
	r.consul = consulClient
}

// Refresh re-lists the healthy service instances from consul and updates
// the underlying memcache.ServerList.
func (r *Registry) Refresh() error {
	qo := &consul.QueryOptions{AllowStale: true, RequireConsistent: false}
	entries, _, err := r.consul.Health().Service(r.serviceName, "", true, qo)
	if err != nil {
		log.Warningf("<registry> discover %q service failed: %v\n", r.serviceName, err)
		return err
	}

	r.m.Lock()
	defer r.m.Unlock()
	r.peers = make(map[string]bool, len(entries))
	servers := make([]string, 0, len(entries))
	for _, entry := range entries {
		addr := fmt.Sprintf("%s:%d", entry.Node.Address, entry.Service.Port)
		r.peers[addr] = true
		servers = append(servers, addr)
	}
	return r.ss.SetServers(servers...)
}

// RunRefreshLoop refreshes every interval until stop is closed.
func (r *Registry) RunRefreshLoop(interval time.Duration, stop <-chan struct{}) {
	if err := r.Refresh(); err != nil {
		log.Warningf("<registry> initial refresh failed: %v\n", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.Refresh(); err != nil {
				log.Warningf("<registry> refresh failed: %v\n", err)
			}
		}
	}
}

// Peers returns the currently known peer addresses.
func (r *Registry) Peers() []string {
	r.m.Lock()
	defer r.m.Unlock()
	peers := make([]string, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// PickServer implements memcache.ServerSelector.
func (r *Registry) PickServer(key string) (net.Addr, error) {
	return r.ss.PickServer(key)
}

// Each implements memcache.ServerSelector.
func (r *Registry) Each(f func(net.Addr) error) error {
	return r.ss.Each(f)
}
