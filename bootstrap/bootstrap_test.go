package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records start and stop calls in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) service(name string, startErr error) Hooks {
	return Hooks{
		ServiceName: name,
		OnStart: func(context.Context) error {
			j.add("start " + name)
			return startErr
		},
		OnStop: func(context.Context) error {
			j.add("stop " + name)
			return nil
		},
	}
}

func TestLifecycleOrder(t *testing.T) {
	j := &journal{}
	lm := NewLifecycleManager(ldlog.NewDisabledLoggers())

	require.NoError(t, lm.Register(j.service("admin", nil), "node"))
	require.NoError(t, lm.Register(j.service("transport", nil), "node"))
	require.NoError(t, lm.Register(j.service("node", nil)))
	require.NoError(t, lm.Register(j.service("watcher", nil), "transport"))
	assert.Equal(t, []string{"admin", "node", "transport", "watcher"}, lm.Services())

	ctx := context.Background()
	require.NoError(t, lm.Start(ctx))
	assert.True(t, lm.IsStarted())
	assert.Equal(t, StateRunning, lm.States()["watcher"])

	require.NoError(t, lm.Stop(ctx))
	assert.False(t, lm.IsStarted())
	assert.Equal(t, StateStopped, lm.States()["node"])

	assert.Equal(t, []string{
		"start node", "start admin", "start transport", "start watcher",
		"stop watcher", "stop transport", "stop admin", "stop node",
	}, j.entries)

	// stopping twice is a no-op
	require.NoError(t, lm.Stop(ctx))
}

func TestLifecycleStartFailureStopsStartedServices(t *testing.T) {
	j := &journal{}
	lm := NewLifecycleManager(ldlog.NewDisabledLoggers())
	boom := errors.New("boom")

	require.NoError(t, lm.Register(j.service("node", nil)))
	require.NoError(t, lm.Register(j.service("transport", boom), "node"))

	err := lm.Start(context.Background())
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "transport", se.Service)
	assert.ErrorIs(t, err, boom)
	assert.False(t, lm.IsStarted())
	assert.Equal(t, StateFailed, lm.States()["transport"])

	assert.Equal(t, []string{"start node", "start transport", "stop node"}, j.entries)
}

func TestLifecycleRegistrationErrors(t *testing.T) {
	j := &journal{}
	lm := NewLifecycleManager(ldlog.NewDisabledLoggers())

	assert.Error(t, lm.Register(nil))
	assert.Error(t, lm.Register(Hooks{}))
	require.NoError(t, lm.Register(j.service("a", nil)))
	assert.Error(t, lm.Register(j.service("a", nil)))

	require.NoError(t, lm.Register(j.service("b", nil), "missing"))
	assert.Error(t, lm.Start(context.Background()))
}

func TestLifecycleCircularDependency(t *testing.T) {
	j := &journal{}
	lm := NewLifecycleManager(ldlog.NewDisabledLoggers())
	require.NoError(t, lm.Register(j.service("a", nil), "b"))
	require.NoError(t, lm.Register(j.service("b", nil), "a"))

	err := lm.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}
