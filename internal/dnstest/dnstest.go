// Package dnstest starts throwaway miekg/dns servers on loopback for tests.
package dnstest

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

// StartUDP serves handler on a random loopback UDP port and returns its
// address. The server is shut down when the test ends.
func StartUDP(t testing.TB, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	activate(t, &dns.Server{PacketConn: pc, Net: "udp", Handler: handler})
	return pc.LocalAddr().String()
}

// StartUDPAccepting is StartUDP with a custom accept function, for handlers
// that must also see messages with the response bit set.
func StartUDPAccepting(t testing.TB, handler dns.HandlerFunc, accept dns.MsgAcceptFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	activate(t, &dns.Server{PacketConn: pc, Net: "udp", Handler: handler, MsgAcceptFunc: accept})
	return pc.LocalAddr().String()
}

// StartTCP serves handler on a random loopback TCP port.
func StartTCP(t testing.TB, handler dns.HandlerFunc) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen tcp: %v", err)
	}
	activate(t, &dns.Server{Listener: l, Net: "tcp", Handler: handler})
	return l.Addr().String()
}

// StartBoth serves handler over TCP and UDP on the same loopback port.
func StartBoth(t testing.TB, handler dns.HandlerFunc) string {
	t.Helper()
	for i := 0; i < 10; i++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen tcp: %v", err)
		}
		pc, err := net.ListenPacket("udp", l.Addr().String())
		if err != nil {
			l.Close()
			continue
		}
		activate(t, &dns.Server{Listener: l, Net: "tcp", Handler: handler})
		activate(t, &dns.Server{PacketConn: pc, Net: "udp", Handler: handler})
		return l.Addr().String()
	}
	t.Fatalf("could not find a port free for both tcp and udp")
	return ""
}

func activate(t testing.TB, srv *dns.Server) {
	t.Helper()
	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
}

// AnswerA replies to every query with a single A record for ip.
func AnswerA(ip string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		if len(r.Question) > 0 {
			rr, err := dns.NewRR(r.Question[0].Name + " 60 IN A " + ip)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		w.WriteMsg(m)
	}
}
