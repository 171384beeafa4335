package client

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestResolveEndpoints_LiteralIP(t *testing.T) {
	addrs, err := resolveEndpoints("192.0.2.9", "6969", "")
	if err != nil {
		t.Fatalf("resolveEndpoints: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(addrs))
	}
	if addrs[0].Port != 6969 || !addrs[0].IP.Equal(net.ParseIP("192.0.2.9")) {
		t.Errorf("unexpected candidate %v", addrs[0])
	}
}

func TestResolveEndpoints_ServiceName(t *testing.T) {
	addrs, err := resolveEndpoints("127.0.0.1", "tftp", "")
	if err != nil {
		t.Skipf("no udp/tftp service entry on this system: %v", err)
	}
	if addrs[0].Port != 69 {
		t.Errorf("service tftp resolved to port %d, want 69", addrs[0].Port)
	}
}

func TestResolveEndpoints_BadPort(t *testing.T) {
	if _, err := resolveEndpoints("127.0.0.1", "no-such-service", ""); err == nil {
		t.Fatal("expected an error for an unknown service name")
	}
}

func TestLookupVia(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			m.Authoritative = true
			if len(r.Question) == 1 && r.Question[0].Qtype == dns.TypeA {
				rr, err := dns.NewRR(r.Question[0].Name + " 60 IN A 127.0.0.1")
				if err == nil {
					m.Answer = append(m.Answer, rr)
				}
			}
			w.WriteMsg(m)
		}),
	}
	go srv.ActivateAndServe()
	defer srv.Shutdown()
	time.Sleep(50 * time.Millisecond)

	ips, err := lookupVia(pc.LocalAddr().String(), "tftp.test")
	if err != nil {
		t.Fatalf("lookupVia: %v", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("got %v, want [127.0.0.1]", ips)
	}
}

func TestLookupVia_NoRecords(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			w.WriteMsg(m)
		}),
	}
	go srv.ActivateAndServe()
	defer srv.Shutdown()
	time.Sleep(50 * time.Millisecond)

	if _, err := lookupVia(pc.LocalAddr().String(), "nowhere.test"); err == nil {
		t.Fatal("expected an error when no records come back")
	}
}
