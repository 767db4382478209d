// Package bootstrap starts and stops the services of a long-lived node in
// dependency order.
package bootstrap

import (
	"context"
	"fmt"
)

// Service is something the lifecycle manager starts and stops
type Service interface {
	// Name returns the service name
	Name() string

	// Start starts the service. It must not block once the service runs.
	Start(ctx context.Context) error

	// Stop stops the service
	Stop(ctx context.Context) error
}

// ServiceState is the lifecycle state of a registered service
type ServiceState string

const (
	StateRegistered ServiceState = "registered"
	StateStarting   ServiceState = "starting"
	StateRunning    ServiceState = "running"
	StateFailed     ServiceState = "failed"
	StateStopping   ServiceState = "stopping"
	StateStopped    ServiceState = "stopped"
)

// Hooks adapts a pair of functions to Service
type Hooks struct {
	ServiceName string
	OnStart     func(ctx context.Context) error
	OnStop      func(ctx context.Context) error
}

// Name implements Service
func (h Hooks) Name() string { return h.ServiceName }

// Start implements Service
func (h Hooks) Start(ctx context.Context) error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart(ctx)
}

// Stop implements Service
func (h Hooks) Stop(ctx context.Context) error {
	if h.OnStop == nil {
		return nil
	}
	return h.OnStop(ctx)
}

// ServiceError reports which service failed and in which operation
type ServiceError struct {
	Operation string
	Service   string
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed for service %s: %v", e.Operation, e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
