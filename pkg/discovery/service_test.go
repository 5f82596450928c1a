package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	results []DiscoveryResult
}

func (s *stubAdapter) Announce(context.Context, ServiceInfo) error { return nil }

func (s *stubAdapter) Discover(_ context.Context, _ string) <-chan DiscoveryResult {
	ch := make(chan DiscoveryResult, len(s.results))
	for _, r := range s.results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestNewAnnouncement(t *testing.T) {
	info, err := NewAnnouncement("redis://10.0.0.5:6379/0", "demo", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceType, info.Type)
	assert.Equal(t, DefaultDomain, info.Domain)
	assert.Equal(t, 6379, info.Port)
	assert.Equal(t, "redis", info.Text[TextScheme])
	assert.Equal(t, "/0", info.Text[TextPath])
	assert.Equal(t, "demo", info.Room())
	assert.Contains(t, info.Name, "lanchat-")

	info, err = NewAnnouncement("nats://127.0.0.1", "demo", 4222)
	require.NoError(t, err)
	assert.Equal(t, 4222, info.Port)

	_, err = NewAnnouncement("mem://demo", "demo", 0)
	assert.ErrorIs(t, err, ErrNotAnnounceable)
	_, err = NewAnnouncement("nats://127.0.0.1", "demo", 0)
	assert.ErrorIs(t, err, ErrNotAnnounceable)
}

func TestServiceInfo_URL(t *testing.T) {
	info := ServiceInfo{
		Name: "x",
		Addr: net.ParseIP("192.168.1.20"),
		Port: 6379,
		Text: map[string]string{TextScheme: "redis", TextPath: "/0"},
	}
	u, err := info.URL()
	require.NoError(t, err)
	assert.Equal(t, "redis://192.168.1.20:6379/0", u)

	info.Addr = net.ParseIP("fe80::1")
	info.Text = map[string]string{TextScheme: "nats"}
	u, err = info.URL()
	require.NoError(t, err)
	assert.Equal(t, "nats://[fe80::1]:6379", u)

	_, err = ServiceInfo{Name: "x", Addr: info.Addr}.URL()
	assert.Error(t, err)
	_, err = ServiceInfo{Name: "x", Text: map[string]string{TextScheme: "nats"}}.URL()
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	a := &stubAdapter{results: []DiscoveryResult{
		{Services: []ServiceInfo{{Name: "b"}}},
		{Error: assert.AnError},
		{Services: []ServiceInfo{{Name: "c"}, {Name: "a"}}},
	}}
	services, err := Lookup(context.Background(), a, Query(DefaultServiceType, DefaultDomain))
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "a", services[0].Name)
	assert.Equal(t, "c", services[1].Name)

	_, err = Lookup(context.Background(), &stubAdapter{results: []DiscoveryResult{{Error: assert.AnError}}}, "q")
	assert.ErrorIs(t, err, assert.AnError)

	services, err = Lookup(context.Background(), &stubAdapter{}, "q")
	assert.NoError(t, err)
	assert.Empty(t, services)
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "_lanchat._tcp.local.", Query(DefaultServiceType, DefaultDomain))
}
