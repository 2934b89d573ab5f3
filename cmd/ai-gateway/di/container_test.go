package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainer(t *testing.T) {
	t.Run("creates container with default environment", func(t *testing.T) {
		container, err := NewContainer(context.Background())
		require.NoError(t, err)
		require.NotNil(t, container)
		assert.NotNil(t, container.Injector())

		err = container.Shutdown()
		assert.NoError(t, err)
	})

	t.Run("rejects invalid port", func(t *testing.T) {
		t.Setenv("PORT", "70000")

		container, err := NewContainer(context.Background())
		require.NoError(t, err)
		defer container.Shutdown()

		_, err = Invoke[*ConfigService](container)
		require.Error(t, err)
	})
}

func TestContainerInvoke(t *testing.T) {
	container, err := NewContainer(context.Background())
	require.NoError(t, err)
	defer container.Shutdown()

	t.Run("Invoke resolves config service", func(t *testing.T) {
		cfgSvc, err := Invoke[*ConfigService](container)
		require.NoError(t, err)
		require.NotNil(t, cfgSvc)
		assert.Equal(t, "127.0.0.1:3000", cfgSvc.Config.Server.Listen())
	})

	t.Run("MustInvoke resolves full graph", func(t *testing.T) {
		serverSvc := MustInvoke[*ServerService](container)
		require.NotNil(t, serverSvc)
		assert.Equal(t, "127.0.0.1:3000", serverSvc.Server.Addr())
	})

	t.Run("registry resolves all providers", func(t *testing.T) {
		registrySvc := MustInvoke[*RegistryService](container)
		require.NotNil(t, registrySvc)
		assert.Len(t, registrySvc.Registry.IDs(), 6)
	})

	t.Run("collector accepts records", func(t *testing.T) {
		collectorSvc := MustInvoke[*CollectorService](container)
		require.NotNil(t, collectorSvc)
		assert.Zero(t, collectorSvc.Collector.Dropped())
	})
}

func TestContainerShutdown(t *testing.T) {
	container, err := NewContainer(context.Background())
	require.NoError(t, err)

	// Resolve the full graph so shutdowners are actually registered.
	MustInvoke[*ServerService](container)

	err = container.Shutdown()
	assert.NoError(t, err)
}
