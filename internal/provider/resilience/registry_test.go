package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqdesk/aqdesk/internal/provider/resilience"
)

func TestRegistry_RegisterAndHealth(t *testing.T) {
	registry := resilience.NewRegistry(nil)
	registry.Register("gios", resilience.NewClient(resilience.DefaultClientConfig("gios")))

	health, ok := registry.Health("gios")
	require.True(t, ok)
	assert.Equal(t, "gios", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_NewClientRegistersItself(t *testing.T) {
	registry := resilience.NewRegistry(nil)
	cfg := resilience.DefaultClientConfig("gios")
	cfg.Registry = registry
	resilience.NewClient(cfg)

	_, ok := registry.Health("gios")
	assert.True(t, ok)
}

func TestRegistry_RecordUsesClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	registry := resilience.NewRegistry(clock)
	registry.Register("gios", resilience.NewClient(resilience.DefaultClientConfig("gios")))

	registry.RecordSuccess("gios")
	clock.Advance(time.Minute)
	registry.RecordFailure("gios", errors.New("connection refused"))

	health, ok := registry.Health("gios")
	require.True(t, ok)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, start, *health.LastSuccessAt)
	assert.Equal(t, start.Add(time.Minute), *health.LastFailureAt)
	assert.Equal(t, "connection refused", health.LastError)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry(nil)

	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("boom"))

	_, ok := registry.Health("missing")
	assert.False(t, ok)
	assert.Empty(t, registry.All())
}

func TestRegistry_AllSortedByName(t *testing.T) {
	registry := resilience.NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		registry.Register(name, resilience.NewClient(resilience.DefaultClientConfig(name)))
	}

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mid", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestProviderHealth_Status(t *testing.T) {
	tests := []struct {
		state    gobreaker.State
		expected string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.expected, h.Status())
		})
	}
}
