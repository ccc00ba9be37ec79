package netutil

import (
	"fmt"
	"net"
)

// MulticastInterfaces returns the up, multicast-capable interfaces that carry
// an IPv4 address. A non-empty name restricts the result to that interface.
func MulticastInterfaces(name string) ([]net.Interface, error) {
	var (
		ifaces []net.Interface
		err    error
	)
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}
		ifaces = []net.Interface{*iface}
	} else if ifaces, err = net.Interfaces(); err != nil {
		return nil, err
	}

	var out []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&(net.FlagUp|net.FlagMulticast) != net.FlagUp|net.FlagMulticast {
			continue
		}
		if _, err := FirstIPv4(iface); err != nil {
			continue
		}
		out = append(out, iface)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no multicast IPv4 interface found")
	}
	return out, nil
}

// FirstIPv4 returns the first IPv4 address of iface.
func FirstIPv4(iface net.Interface) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil {
			return ipn.IP.To4(), nil
		}
	}
	return nil, fmt.Errorf("no IPv4 on %s", iface.Name)
}
