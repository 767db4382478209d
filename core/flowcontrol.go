package core

import (
	"sync"

	"github.com/google/uuid"
)

// FlowControlID names a flow of messages produced by one producer, or by
// every producer a spawner creates.
type FlowControlID string

// NewFlowControlID returns a fresh random id.
func NewFlowControlID() FlowControlID {
	return FlowControlID(uuid.NewString())
}

// String returns the id.
func (id FlowControlID) String() string {
	return string(id)
}

// ProducerInfo describes a registered producer.
type ProducerInfo struct {
	// Address is the producer itself. Messages it routes are restricted to
	// consumers.
	Address Address

	// ID is the producer's own flow.
	ID FlowControlID

	// SpawnerID is the flow of the spawner (listener) that created the
	// producer, if any. Consumers of the spawner flow may receive from every
	// producer it spawned.
	SpawnerID FlowControlID

	// Additional lists other addresses bound to this producer, like the
	// sending half of a TCP connection.
	Additional []Address
}

// FlowControlID returns the producer's own flow id.
func (p ProducerInfo) FlowControlID() FlowControlID {
	return p.ID
}

// FlowControls tracks which producers may deliver to which consumers.
//
// A message whose source is a registered producer may only be delivered to
// an address that consumes the producer's flow or its spawner's flow.
// Messages from any other source are unrestricted.
type FlowControls struct {
	mu sync.RWMutex

	producers  map[Address]*ProducerInfo
	additional map[Address]*ProducerInfo
	spawners   map[Address]FlowControlID
	consumers  map[FlowControlID]map[Address]struct{}
}

// NewFlowControls creates an empty registry.
func NewFlowControls() *FlowControls {
	return &FlowControls{
		producers:  make(map[Address]*ProducerInfo),
		additional: make(map[Address]*ProducerInfo),
		spawners:   make(map[Address]FlowControlID),
		consumers:  make(map[FlowControlID]map[Address]struct{}),
	}
}

// NewID returns a fresh flow control id.
func (f *FlowControls) NewID() FlowControlID {
	return NewFlowControlID()
}

// AddProducer registers addr as a producer of flow id. spawner may be empty.
func (f *FlowControls) AddProducer(addr Address, id, spawner FlowControlID, additional ...Address) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info := &ProducerInfo{
		Address:    addr,
		ID:         id,
		SpawnerID:  spawner,
		Additional: append([]Address(nil), additional...),
	}
	f.producers[addr] = info
	for _, a := range additional {
		f.additional[a] = info
	}
}

// AddSpawner registers addr as a spawner of flow id.
func (f *FlowControls) AddSpawner(addr Address, id FlowControlID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawners[addr] = id
}

// AddConsumer allows addr to receive messages of flow id.
func (f *FlowControls) AddConsumer(addr Address, id FlowControlID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.consumers[id]
	if !ok {
		set = make(map[Address]struct{})
		f.consumers[id] = set
	}
	set[addr] = struct{}{}
}

// FindWithProducerAddress finds the producer registered at addr, or the
// producer addr is an additional address of.
func (f *FlowControls) FindWithProducerAddress(addr Address) (ProducerInfo, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if info, ok := f.producers[addr]; ok {
		return *info, true
	}
	if info, ok := f.additional[addr]; ok {
		return *info, true
	}
	return ProducerInfo{}, false
}

// FindWithSpawnerAddress returns the flow id of the spawner at addr.
func (f *FlowControls) FindWithSpawnerAddress(addr Address) (FlowControlID, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.spawners[addr]
	return id, ok
}

// IsConsumer reports whether addr consumes flow id.
func (f *FlowControls) IsConsumer(addr Address, id FlowControlID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isConsumer(addr, id)
}

func (f *FlowControls) isConsumer(addr Address, id FlowControlID) bool {
	if id == "" {
		return false
	}
	_, ok := f.consumers[id][addr]
	return ok
}

// IsAllowed reports whether a message routed by src may be delivered to dst.
func (f *FlowControls) IsAllowed(src, dst Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	info, ok := f.producers[src]
	if !ok {
		return true
	}
	return f.isConsumer(dst, info.ID) || f.isConsumer(dst, info.SpawnerID)
}

// RemoveAddress forgets every registration of addr.
func (f *FlowControls) RemoveAddress(addr Address) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if info, ok := f.producers[addr]; ok {
		for _, a := range info.Additional {
			delete(f.additional, a)
		}
		delete(f.producers, addr)
	}
	delete(f.spawners, addr)
	for id, set := range f.consumers {
		delete(set, addr)
		if len(set) == 0 {
			delete(f.consumers, id)
		}
	}
}
