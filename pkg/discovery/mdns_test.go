package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMDNSAdapter_AnnounceStops(t *testing.T) {
	// Skip mDNS tests in CI environment as they may be unreliable
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mdnsAdapter := &MDNSAdapter{}
	serviceInfo := ServiceInfo{
		Name:   "test-instance",
		Type:   "_lanchat-test._tcp",
		Domain: "local",
		Port:   4222,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- mdnsAdapter.Announce(ctx, serviceInfo)
	}()

	time.Sleep(50 * time.Millisecond) // Allow some time for the service to be announced
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Service announcement did not complete in time")
	}
}

func TestMDNSAdapter_Discover(t *testing.T) {
	// Skip mDNS tests in CI environment as they may be unreliable
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mdnsAdapter := &MDNSAdapter{}

	serviceInfo := ServiceInfo{
		Name:   "test-instance",
		Type:   "_lanchat-test._tcp",
		Domain: "local",
		Port:   4222,
		Text:   map[string]string{TextScheme: "nats", TextRoom: "demo"},
	}

	go func() {
		_ = mdnsAdapter.Announce(ctx, serviceInfo)
	}()
	time.Sleep(300 * time.Millisecond)

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()

	result := <-mdnsAdapter.Discover(queryCtx, Query(serviceInfo.Type, serviceInfo.Domain))
	require.NoError(t, result.Error)
	require.NotEmpty(t, result.Services)

	found := result.Services[0]
	assert.Equal(t, serviceInfo.Name, found.Name)
	assert.Equal(t, serviceInfo.Type, found.Type)
	assert.Equal(t, serviceInfo.Domain, found.Domain)
	assert.Equal(t, serviceInfo.Port, found.Port)
	assert.Equal(t, "demo", found.Room())
}
