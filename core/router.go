package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TransportRouter handles hops whose address is not local. Resolve returns
// the local address (typically a connection's sender worker) that replaces
// the hop.
type TransportRouter interface {
	Resolve(ctx context.Context, addr Address) (Address, error)
	Stop(ctx context.Context) error
}

// router maps addresses to the runners registered on a node.
type router struct {
	workers sync.Map // map[Address]*runner

	mu         sync.RWMutex
	transports map[TransportType]TransportRouter
}

func newRouter() *router {
	return &router{transports: make(map[TransportType]TransportRouter)}
}

// register adds a runner to the routing table.
func (r *router) register(rn *runner) error {
	if _, exists := r.workers.LoadOrStore(rn.addr, rn); exists {
		return fmt.Errorf("%w: %s", ErrAddressInUse, rn.addr)
	}
	return nil
}

// unregister removes a runner from the routing table.
func (r *router) unregister(addr Address) (*runner, bool) {
	rn, exists := r.workers.LoadAndDelete(addr)
	if !exists {
		return nil, false
	}
	return rn.(*runner), true
}

// lookup finds the runner at addr.
func (r *router) lookup(addr Address) (*runner, bool) {
	if rn, exists := r.workers.Load(addr); exists {
		return rn.(*runner), true
	}
	return nil, false
}

// list returns the registered runners ordered by address.
func (r *router) list() []*runner {
	var out []*runner
	r.workers.Range(func(_, value interface{}) bool {
		out = append(out, value.(*runner))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].addr.String() < out[j].addr.String()
	})
	return out
}

func (r *router) registerTransport(t TransportType, tr TransportRouter) error {
	if t == LocalTransport {
		return fmt.Errorf("cannot register a transport for %s addresses", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transports[t]; exists {
		return fmt.Errorf("transport %s already registered", t)
	}
	r.transports[t] = tr
	return nil
}

func (r *router) transport(t TransportType) (TransportRouter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.transports[t]
	return tr, ok
}

func (r *router) transportList() []TransportRouter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TransportRouter, 0, len(r.transports))
	for _, tr := range r.transports {
		out = append(out, tr)
	}
	return out
}
