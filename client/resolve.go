package client

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// resolveEndpoints expands host and port into candidate UDP endpoints.
// port may be a numeric port or a service name. When resolver is non-empty
// the host is looked up by querying that DNS server directly over UDP (A,
// then AAAA) instead of going through the system resolver.
func resolveEndpoints(host, port, resolver string) ([]*net.UDPAddr, error) {
	pnum, err := net.LookupPort("udp", port)
	if err != nil {
		return nil, fmt.Errorf("resolving port %q: %w", port, err)
	}

	var ips []net.IP
	switch {
	case net.ParseIP(host) != nil:
		ips = []net.IP{net.ParseIP(host)}
	case resolver != "":
		ips, err = lookupVia(resolver, host)
	default:
		ips, err = net.LookupIP(host)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving host %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses for host %q", host)
	}

	addrs := make([]*net.UDPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, &net.UDPAddr{IP: ip, Port: pnum})
	}
	return addrs, nil
}

// lookupVia queries the given DNS server for host's address records. A
// records are preferred; AAAA is tried only when no A record comes back.
func lookupVia(resolver, host string) ([]net.IP, error) {
	if _, _, err := net.SplitHostPort(resolver); err != nil {
		resolver = net.JoinHostPort(resolver, "53")
	}

	c := new(dns.Client)
	c.Net = "udp"

	var ips []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		m.RecursionDesired = true

		resp, _, err := c.Exchange(m, resolver)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", resolver, err)
		}
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				ips = append(ips, a.A)
			case *dns.AAAA:
				ips = append(ips, a.AAAA)
			}
		}
		if len(ips) > 0 {
			break
		}
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no address records for %q from %s", host, resolver)
	}
	return ips, nil
}

// openSocket creates an unconnected UDP socket able to reach the first
// workable candidate and returns both.
func openSocket(addrs []*net.UDPAddr) (*net.UDPConn, *net.UDPAddr, error) {
	var lastErr error
	for _, addr := range addrs {
		network := "udp4"
		if addr.IP.To4() == nil {
			network = "udp6"
		}
		conn, err := net.ListenUDP(network, nil)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, addr, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate endpoints")
	}
	return nil, nil, fmt.Errorf("opening socket: %w", lastErr)
}
