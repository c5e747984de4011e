package discovery

import (
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
	"github.com/jackpal/gateway"
)

// ZeroconfRegistrar publishes records with a multicast DNS responder.
type ZeroconfRegistrar struct {
	// Interfaces limits the responder; nil means all multicast interfaces.
	Interfaces []net.Interface
}

func (z ZeroconfRegistrar) Register(rec Record) (Responder, error) {
	srv, err := zeroconf.RegisterProxy(rec.Instance, rec.Service, rec.Domain, rec.Port, rec.Host, rec.IPs, rec.Text, z.Interfaces)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// GatewayResolver picks the address of the interface that routes to the
// default gateway.
type GatewayResolver struct{}

func (GatewayResolver) LocalIPv4() (net.IP, error) {
	addrs, err := upInterfaceAddrs()
	if err != nil {
		return nil, err
	}
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		// still usable on networks without a default route
		gw = nil
	}
	ip, err := pickAddress(gw, addrs)
	if err != nil {
		return nil, fmt.Errorf("gateway %v: %w", gw, err)
	}
	return ip, nil
}

func upInterfaceAddrs() ([]net.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var out []net.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, addrs...)
	}
	return out, nil
}
