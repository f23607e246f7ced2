package discovery

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/dmitrijs2005/lanpos/internal/common"
)

// minPrefixBits keeps a sweep to at most 65534 hosts.
const minPrefixBits = 16

// Hosts lists the probe targets of an IPv4 prefix. Network and broadcast
// addresses are skipped except in /31 and /32, which have none.
func Hosts(p netip.Prefix) ([]netip.Addr, error) {
	if !p.IsValid() || !p.Addr().Is4() {
		return nil, common.NewValidationError("subnet", "must be an IPv4 prefix")
	}
	if p.Bits() < minPrefixBits {
		return nil, common.NewValidationError("subnet", fmt.Sprintf("prefix /%d is too large to scan", p.Bits()))
	}
	p = p.Masked()

	first := p.Addr()
	size := 1 << (32 - p.Bits())
	hosts := make([]netip.Addr, 0, size)
	a := first
	for i := 0; i < size; i++ {
		hosts = append(hosts, a)
		a = a.Next()
	}
	if p.Bits() <= 30 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

// LocalSubnet is the /24 around this device's first private IPv4 address.
func LocalSubnet() (netip.Prefix, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("list interface addresses: %w", err)
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipn.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.Is4() && ip.IsPrivate() && !ip.IsLoopback() {
			return netip.PrefixFrom(ip, 24).Masked(), nil
		}
	}
	return netip.Prefix{}, &common.ConfigurationError{Reason: "no private IPv4 address found, pass a subnet to scan"}
}

// ParseSubnet accepts "" for the local /24.
func ParseSubnet(cidr string) (netip.Prefix, error) {
	if cidr == "" {
		return LocalSubnet()
	}
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, common.NewValidationError("subnet", err.Error())
	}
	return p, nil
}
