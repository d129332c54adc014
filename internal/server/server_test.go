package server

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/dnstest"
	"github.com/SaudiLinux/urlget/internal/resolver"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/SaudiLinux/urlget/internal/upstream"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, upstreamAddr string, tcp bool) (*Server, *spoof.Store, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	store := spoof.NewStore(log)
	engine := resolver.NewEngine(store, upstream.NewClient([]string{upstreamAddr}, 300*time.Millisecond), resolver.NewStats(), 60, log)
	srv := New(Options{Addr: "127.0.0.1:0", TCP: tcp, StatsInterval: 20 * time.Millisecond}, engine, log)
	t.Cleanup(func() {
		if srv.State() == Running {
			srv.Stop()
		}
	})
	return srv, store, hook
}

func deadUpstream(t *testing.T) string {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc.LocalAddr().String()
}

func warnings(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func TestStart_Twice(t *testing.T) {
	srv, _, hook := newServer(t, deadUpstream(t), false)

	require.NoError(t, srv.Start())
	addr := srv.Addr()
	require.NoError(t, srv.Start())

	assert.Equal(t, Running, srv.State())
	assert.Equal(t, addr, srv.Addr())
	assert.Equal(t, 1, warnings(hook))
}

func TestStop_Idempotent(t *testing.T) {
	srv, _, hook := newServer(t, deadUpstream(t), false)

	require.NoError(t, srv.Stop())
	assert.Equal(t, 1, warnings(hook))

	require.NoError(t, srv.Start())
	require.NoError(t, srv.Stop())
	assert.Equal(t, Stopped, srv.State())
	require.NoError(t, srv.Stop())
	assert.Equal(t, 2, warnings(hook))
	srv.Wait()
}

func TestStop_ReleasesPort(t *testing.T) {
	srv, _, _ := newServer(t, deadUpstream(t), false)
	require.NoError(t, srv.Start())
	addr := srv.Addr().String()
	require.NoError(t, srv.Stop())

	pc, err := net.ListenPacket("udp", addr)
	require.NoError(t, err)
	pc.Close()
}

func TestStart_BindFailure(t *testing.T) {
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	log := logger.Discard()
	engine := resolver.NewEngine(spoof.NewStore(log), upstream.NewClient([]string{"127.0.0.1:1"}, time.Second), resolver.NewStats(), 60, log)
	srv := New(Options{Addr: taken.LocalAddr().String()}, engine, log)

	err = srv.Start()
	assert.True(t, errors.Is(err, core.ErrBind), "got %v", err)
	assert.Equal(t, Stopped, srv.State())
}

func TestServer_SpoofsOverUDPAndTCP(t *testing.T) {
	srv, store, _ := newServer(t, deadUpstream(t), true)
	require.NoError(t, store.AddRecord("evil.com", "A", "6.6.6.6"))
	require.NoError(t, srv.Start())

	for _, proto := range []string{"udp", "tcp"} {
		c := &dns.Client{Net: proto, Timeout: time.Second}
		m := new(dns.Msg)
		m.SetQuestion("sub.evil.com.", dns.TypeA)
		r, _, err := c.Exchange(m, srv.Addr().String())
		require.NoError(t, err, proto)
		require.Len(t, r.Answer, 1, proto)
		assert.Equal(t, "6.6.6.6", r.Answer[0].(*dns.A).A.String(), proto)
	}
}

func TestServer_SlowForwardDoesNotBlockSpoofing(t *testing.T) {
	srv, store, _ := newServer(t, deadUpstream(t), false)
	require.NoError(t, store.AddRecord("fast.com", "A", "1.2.3.4"))
	require.NoError(t, srv.Start())
	addr := srv.Addr().String()

	slow := make(chan error, 1)
	go func() {
		c := &dns.Client{Timeout: 2 * time.Second}
		m := new(dns.Msg)
		m.SetQuestion("slow.com.", dns.TypeA)
		r, _, err := c.Exchange(m, addr)
		if err == nil && len(r.Answer) != 0 {
			err = errors.New("expected empty reply")
		}
		slow <- err
	}()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	c := &dns.Client{Timeout: time.Second}
	m := new(dns.Msg)
	m.SetQuestion("fast.com.", dns.TypeA)
	r, _, err := c.Exchange(m, addr)
	require.NoError(t, err)
	require.Len(t, r.Answer, 1)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	require.NoError(t, <-slow)
	snap := srv.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, uint64(1), snap.Spoofed)
}

func TestServer_ForwardsUnknownNames(t *testing.T) {
	up := dnstest.StartUDP(t, dnstest.AnswerA("8.8.4.4"))
	srv, _, _ := newServer(t, up, false)
	require.NoError(t, srv.Start())

	c := &dns.Client{Timeout: time.Second}
	m := new(dns.Msg)
	m.SetQuestion("real.example.", dns.TypeA)
	r, _, err := c.Exchange(m, srv.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, m.Id, r.Id)
	require.Len(t, r.Answer, 1)
	assert.Equal(t, "8.8.4.4", r.Answer[0].(*dns.A).A.String())
	assert.Equal(t, uint64(1), srv.Stats().Snapshot().Forwarded)
}

func TestServer_ReportsStatsPeriodically(t *testing.T) {
	srv, _, hook := newServer(t, deadUpstream(t), false)
	require.NoError(t, srv.Start())

	assert.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "DNS stats" {
				_, ok := e.Data["requests"]
				return ok
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestBindAddress(t *testing.T) {
	addr, err := BindAddress("", "127.0.0.1", 5353)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5353", addr)

	addr, err = BindAddress("", "", 53)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:53", addr)

	_, err = BindAddress("no-such-iface0", "", 53)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))

	_, err = BindAddress("", "not-an-ip", 53)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}
