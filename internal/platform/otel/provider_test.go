package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test-service", Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens
	shutdown, err := Setup(context.Background(), "test-service", Config{
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
