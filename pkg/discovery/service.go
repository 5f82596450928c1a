package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

const (
	DefaultServiceType = "_lanchat._tcp"
	DefaultDomain      = "local"

	// TXT record keys of an announced room service.
	TextScheme = "scheme"
	TextRoom   = "room"
	TextPath   = "path"
)

// ErrNotAnnounceable is returned for broker URLs other hosts cannot reach.
var ErrNotAnnounceable = errors.New("discovery: url cannot be announced")

type ServiceInfo struct {
	Name   string // instance name
	Type   string // service type, e.g., "_lanchat._tcp"
	Domain string // domain, e.g., "local"
	Addr   net.IP
	Port   int
	Text   map[string]string
}

// DiscoveryResult carries either a snapshot of the services found so far or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// Query returns the DNS-SD query name for a service type in domain.
func Query(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}

// NewAnnouncement describes the broker at brokerURL serving room.
// port overrides the URL port when positive.
func NewAnnouncement(brokerURL, room string, port int) (ServiceInfo, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return ServiceInfo{}, fmt.Errorf("discovery: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "nats" {
		return ServiceInfo{}, fmt.Errorf("%w: scheme %q", ErrNotAnnounceable, u.Scheme)
	}
	if port <= 0 {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return ServiceInfo{}, fmt.Errorf("%w: no port in %q", ErrNotAnnounceable, brokerURL)
		}
	}
	return ServiceInfo{
		Name:   "lanchat-" + uuid.NewString()[:8],
		Type:   DefaultServiceType,
		Domain: DefaultDomain,
		Port:   port,
		Text: map[string]string{
			TextScheme: u.Scheme,
			TextRoom:   room,
			TextPath:   u.Path,
		},
	}, nil
}

// URL rebuilds the broker URL from a discovered service.
func (s ServiceInfo) URL() (string, error) {
	scheme := s.Text[TextScheme]
	if scheme == "" {
		return "", fmt.Errorf("discovery: service %s has no scheme", s.Name)
	}
	if s.Addr == nil {
		return "", fmt.Errorf("discovery: service %s has no address", s.Name)
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(s.Addr.String(), strconv.Itoa(s.Port)),
		Path:   s.Text[TextPath],
	}
	return u.String(), nil
}

// Room returns the announced room name.
func (s ServiceInfo) Room() string {
	return s.Text[TextRoom]
}

// Lookup browses until ctx is done and returns the last snapshot sorted by name.
func Lookup(ctx context.Context, a Adapter, serviceQuery string) ([]ServiceInfo, error) {
	var (
		services []ServiceInfo
		lastErr  error
	)
	for res := range a.Discover(ctx, serviceQuery) {
		if res.Error != nil {
			lastErr = res.Error
			continue
		}
		services = res.Services
	}
	if len(services) == 0 && lastErr != nil {
		return nil, lastErr
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}
