package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// DefaultTimeout bounds each service's Start and Stop.
const DefaultTimeout = 30 * time.Second

// LifecycleManager starts services after their dependencies and stops them
// in reverse order.
type LifecycleManager struct {
	loggers ldlog.Loggers
	timeout time.Duration

	mutex        sync.RWMutex
	services     map[string]Service
	dependencies map[string][]string
	states       map[string]ServiceState
	startOrder   []string
	started      bool
}

// NewLifecycleManager creates a manager that logs to loggers
func NewLifecycleManager(loggers ldlog.Loggers) *LifecycleManager {
	return &LifecycleManager{
		loggers:      loggers,
		timeout:      DefaultTimeout,
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
		states:       make(map[string]ServiceState),
	}
}

// SetTimeout sets the timeout for service operations
func (lm *LifecycleManager) SetTimeout(timeout time.Duration) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	lm.timeout = timeout
}

// Register registers a service that starts after deps
func (lm *LifecycleManager) Register(service Service, deps ...string) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}
	name := service.Name()
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("cannot register service %s: lifecycle manager already started", name)
	}
	if _, exists := lm.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	lm.services[name] = service
	lm.dependencies[name] = append([]string(nil), deps...)
	lm.states[name] = StateRegistered
	return nil
}

// Start starts all services in dependency order. If one fails, the services
// already started are stopped again.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("lifecycle manager already started")
	}

	order, err := lm.calculateStartOrder()
	if err != nil {
		return fmt.Errorf("failed to calculate start order: %w", err)
	}

	for _, name := range order {
		lm.states[name] = StateStarting
		lm.loggers.Debugf("Starting service %s", name)

		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := lm.services[name].Start(startCtx)
		cancel()

		if err != nil {
			lm.states[name] = StateFailed
			lm.loggers.Errorf("Service %s failed to start: %s", name, err)
			_ = lm.stopStarted(ctx)
			return &ServiceError{Operation: "start", Service: name, Err: err}
		}
		lm.states[name] = StateRunning
		lm.startOrder = append(lm.startOrder, name)
	}

	lm.started = true
	lm.loggers.Infof("Started services: %v", order)
	return nil
}

// Stop stops all started services in reverse order
func (lm *LifecycleManager) Stop(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if !lm.started {
		return nil
	}
	lm.started = false
	return lm.stopStarted(ctx)
}

// stopStarted must be called with the mutex held.
func (lm *LifecycleManager) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(lm.startOrder) - 1; i >= 0; i-- {
		name := lm.startOrder[i]
		lm.states[name] = StateStopping

		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := lm.services[name].Stop(stopCtx)
		cancel()

		if err != nil {
			lm.states[name] = StateFailed
			lm.loggers.Warnf("Service %s failed to stop: %s", name, err)
			errs = append(errs, &ServiceError{Operation: "stop", Service: name, Err: err})
			continue
		}
		lm.states[name] = StateStopped
	}
	lm.startOrder = nil
	return errors.Join(errs...)
}

// Services returns all registered service names
func (lm *LifecycleManager) Services() []string {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	names := make([]string, 0, len(lm.services))
	for name := range lm.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// States returns the state of every registered service
func (lm *LifecycleManager) States() map[string]ServiceState {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	out := make(map[string]ServiceState, len(lm.states))
	for name, state := range lm.states {
		out[name] = state
	}
	return out
}

// IsStarted returns true if the lifecycle manager has been started
func (lm *LifecycleManager) IsStarted() bool {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()
	return lm.started
}

// calculateStartOrder sorts services topologically with Kahn's algorithm.
// Services that become ready together start in name order.
func (lm *LifecycleManager) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int)
	graph := make(map[string][]string)

	for service := range lm.services {
		inDegree[service] = 0
	}
	for service, deps := range lm.dependencies {
		for _, dep := range deps {
			if _, exists := lm.services[dep]; !exists {
				return nil, fmt.Errorf("dependency %s of service %s is not registered", dep, service)
			}
			graph[dep] = append(graph[dep], service)
			inDegree[service]++
		}
	}

	var queue []string
	for service, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, service)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var ready []string
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(result) != len(lm.services) {
		return nil, fmt.Errorf("circular dependency detected")
	}
	return result, nil
}
