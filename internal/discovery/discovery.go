//go:generate go run go.uber.org/mock/mockgen -source=discovery.go -destination=../../mocks/mock_discovery.go -package=mocks
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"lanshare/internal/errs"
)

const (
	ServiceType = "_http._tcp"
	Domain      = "local."
)

// Record is what gets announced on the local network.
type Record struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     int
	IPs      []string
	Text     []string
}

// Resolver finds the IPv4 address other hosts on the LAN can reach us at.
type Resolver interface {
	LocalIPv4() (net.IP, error)
}

// Registrar publishes a record and returns the running responder.
type Registrar interface {
	Register(rec Record) (Responder, error)
}

type Responder interface {
	Shutdown()
}

type Options struct {
	Instance  string
	Port      int
	Resolver  Resolver
	Registrar Registrar
	Logger    *slog.Logger
}

// Advertisement is the single live announcement of a running server.
type Advertisement struct {
	rec       Record
	responder Responder
	log       *slog.Logger
	once      sync.Once
}

// Start resolves the local address and registers <instance>._http._tcp.local.
// Every failure is wrapped in errs.ErrDiscoveryUnavailable; callers are
// expected to log it and keep serving.
func Start(ctx context.Context, opts Options) (*Advertisement, error) {
	if opts.Resolver == nil {
		opts.Resolver = GatewayResolver{}
	}
	if opts.Registrar == nil {
		opts.Registrar = ZeroconfRegistrar{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	instance := strings.TrimSuffix(strings.TrimSpace(opts.Instance), ".local")
	if instance == "" {
		return nil, fmt.Errorf("%w: empty instance name", errs.ErrDiscoveryUnavailable)
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", errs.ErrDiscoveryUnavailable, opts.Port)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDiscoveryUnavailable, err)
	}

	ip, err := opts.Resolver.LocalIPv4()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve local address: %v", errs.ErrDiscoveryUnavailable, err)
	}
	if ip4 := ip.To4(); ip4 == nil || ip4.IsLoopback() || ip4.IsUnspecified() {
		return nil, fmt.Errorf("%w: unusable local address %v", errs.ErrDiscoveryUnavailable, ip)
	}

	rec := Record{
		Instance: instance,
		Service:  ServiceType,
		Domain:   Domain,
		Host:     instance,
		Port:     opts.Port,
		IPs:      []string{ip.To4().String()},
		Text:     []string{"path=/"},
	}
	responder, err := opts.Registrar.Register(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: register: %v", errs.ErrDiscoveryUnavailable, err)
	}
	if responder == nil {
		return nil, fmt.Errorf("%w: registrar returned no responder", errs.ErrDiscoveryUnavailable)
	}

	a := &Advertisement{rec: rec, responder: responder, log: opts.Logger}
	a.log.Info("mDNS service registered", "url", a.URL(), "ip", rec.IPs[0])
	return a, nil
}

// Stop unregisters the announcement. It is safe to call more than once and
// on a nil receiver.
func (a *Advertisement) Stop() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.responder.Shutdown()
		a.log.Info("mDNS service unregistered", "instance", a.rec.Instance)
	})
}

// URL is the address clients can type once mDNS resolution works.
func (a *Advertisement) URL() string {
	return fmt.Sprintf("http://%s.local:%d/", a.rec.Host, a.rec.Port)
}

func (a *Advertisement) Record() Record { return a.rec }

var errNoAddress = errors.New("no usable IPv4 address")

// pickAddress prefers an address whose subnet contains the gateway and falls
// back to the first global unicast IPv4 address.
func pickAddress(gw net.IP, addrs []net.Addr) (net.IP, error) {
	var fallback net.IP
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() || !ip4.IsGlobalUnicast() {
			continue
		}
		if gw != nil && ipnet.Contains(gw) {
			return ip4, nil
		}
		if fallback == nil {
			fallback = ip4
		}
	}
	if fallback == nil {
		return nil, errNoAddress
	}
	return fallback, nil
}
