package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/SaudiLinux/urlget/internal/dnstest"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/SaudiLinux/urlget/internal/upstream"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

type fakeUpstream struct {
	calls atomic.Int32
	reply func(name string, qtype uint16) (*dnsmessage.Message, error)
}

func (f *fakeUpstream) Exchange(_ context.Context, name string, qtype uint16) (*dnsmessage.Message, error) {
	f.calls.Add(1)
	return f.reply(name, qtype)
}

func unreachable() *fakeUpstream {
	return &fakeUpstream{reply: func(string, uint16) (*dnsmessage.Message, error) {
		return nil, core.ErrNetworkTimeout
	}}
}

func answering(ip [4]byte) *fakeUpstream {
	return &fakeUpstream{reply: func(name string, qtype uint16) (*dnsmessage.Message, error) {
		n := dnsmessage.MustNewName(name + ".")
		return &dnsmessage.Message{
			Header: dnsmessage.Header{ID: 999, Response: true},
			Answers: []dnsmessage.Resource{{
				Header: dnsmessage.ResourceHeader{Name: n, Type: dnsmessage.TypeA, Class: dnsmessage.ClassINET, TTL: 30},
				Body:   &dnsmessage.AResource{A: ip},
			}},
		}, nil
	}}
}

func newEngine(t *testing.T, up Upstream) (*Engine, *spoof.Store) {
	t.Helper()
	log := logger.Discard()
	store := spoof.NewStore(log)
	return NewEngine(store, up, NewStats(), 60, log), store
}

func query(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

func assertBalanced(t *testing.T, s StatsSnapshot) {
	t.Helper()
	assert.Equal(t, s.Requests, s.Spoofed+s.Forwarded+s.Errors, "%+v", s)
}

func TestResolve_ExactMatchIsSpoofed(t *testing.T) {
	up := unreachable()
	e, store := newEngine(t, up)
	require.NoError(t, store.AddRecord("evil.com", "A", "6.6.6.6"))
	require.NoError(t, store.AddRecord("evil.com", "A", "7.7.7.7"))

	req := query("EVIL.com.", dns.TypeA)
	reply, outcome := e.Resolve(context.Background(), req)

	assert.Equal(t, Spoofed, outcome)
	assert.Equal(t, req.Id, reply.Id)
	require.Len(t, reply.Answer, 2)
	assert.Equal(t, "6.6.6.6", reply.Answer[0].(*dns.A).A.String())
	assert.Equal(t, "7.7.7.7", reply.Answer[1].(*dns.A).A.String())
	assert.Zero(t, up.calls.Load())
	assert.Equal(t, uint64(1), e.Stats().Snapshot().Spoofed)
}

func TestResolve_SubdomainMatchIsSpoofed(t *testing.T) {
	e, store := newEngine(t, unreachable())
	require.NoError(t, store.AddRecord("evil.com", "A", "6.6.6.6"))

	reply, outcome := e.Resolve(context.Background(), query("sub.evil.com", dns.TypeA))
	assert.Equal(t, Spoofed, outcome)
	require.Len(t, reply.Answer, 1)
	assert.Equal(t, "sub.evil.com.", reply.Answer[0].Header().Name)
	assert.Equal(t, "6.6.6.6", reply.Answer[0].(*dns.A).A.String())
}

func TestResolve_NoMatchForwardsExactlyOnce(t *testing.T) {
	up := answering([4]byte{1, 2, 3, 4})
	e, store := newEngine(t, up)
	require.NoError(t, store.AddRecord("evil.com", "A", "6.6.6.6"))

	for _, q := range []*dns.Msg{
		query("other.com", dns.TypeA),
		query("evil.com", dns.TypeAAAA), // domain known, type not
		query("evil.com", dns.TypeCNAME), // never spoofable
	} {
		before := up.calls.Load()
		reply, outcome := e.Resolve(context.Background(), q)
		assert.Equal(t, Forwarded, outcome)
		assert.Equal(t, before+1, up.calls.Load())
		assert.Equal(t, q.Id, reply.Id)
		require.Len(t, reply.Answer, 1)
		assert.Equal(t, "1.2.3.4", reply.Answer[0].(*dns.A).A.String())
	}
	snap := e.Stats().Snapshot()
	assert.Equal(t, uint64(3), snap.Forwarded)
	assert.Zero(t, snap.Spoofed)
}

func TestResolve_UnreachableUpstreamGivesEmptyReply(t *testing.T) {
	up := unreachable()
	e, store := newEngine(t, up)
	require.NoError(t, store.AddRecord("evil.com", "A", "6.6.6.6"))

	req := query("other.com", dns.TypeA)
	reply, outcome := e.Resolve(context.Background(), req)

	assert.Equal(t, Errored, outcome)
	assert.Equal(t, req.Id, reply.Id)
	assert.Empty(t, reply.Answer)
	assert.Equal(t, int32(1), up.calls.Load())
	assert.Equal(t, uint64(1), e.Stats().Snapshot().Errors)
}

func TestResolve_ShortSOANeverAnswered(t *testing.T) {
	e, store := newEngine(t, unreachable())
	require.NoError(t, store.AddRecord("evil.com", "SOA", "ns1.evil.com admin.evil.com 1 2"))
	require.NoError(t, store.AddRecord("evil.com", "SOA", "ns1.evil.com admin.evil.com 1 2 3 4 5"))

	reply, outcome := e.Resolve(context.Background(), query("evil.com", dns.TypeSOA))
	assert.Equal(t, Spoofed, outcome)
	require.Len(t, reply.Answer, 1)
	assert.Equal(t, uint32(5), reply.Answer[0].(*dns.SOA).Minttl)
}

func TestResolve_NoQuestionIsFormErr(t *testing.T) {
	e, _ := newEngine(t, unreachable())
	req := new(dns.Msg)
	req.Id = 55

	reply, outcome := e.Resolve(context.Background(), req)
	assert.Equal(t, Errored, outcome)
	assert.Equal(t, dns.RcodeFormatError, reply.Rcode)
	assert.Equal(t, uint16(55), reply.Id)
}

func TestResolve_CountersBalanceUnderConcurrency(t *testing.T) {
	up := &fakeUpstream{reply: func(name string, _ uint16) (*dnsmessage.Message, error) {
		if name == "down.com" {
			return nil, errors.New("boom")
		}
		return answering([4]byte{9, 9, 9, 9}).reply(name, dns.TypeA)
	}}
	e, store := newEngine(t, up)
	require.NoError(t, store.AddRecord("evil.com", "A", "6.6.6.6"))

	names := []string{"evil.com", "a.evil.com", "ok.com", "down.com"}
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Resolve(context.Background(), query(names[i%len(names)], dns.TypeA))
		}(i)
	}
	wg.Wait()

	snap := e.Stats().Snapshot()
	assert.Equal(t, uint64(200), snap.Requests)
	assert.Equal(t, uint64(100), snap.Spoofed)
	assert.Equal(t, uint64(50), snap.Forwarded)
	assert.Equal(t, uint64(50), snap.Errors)
	assertBalanced(t, snap)
}

func TestResolve_ForwardsThroughRealUpstream(t *testing.T) {
	addr := dnstest.StartUDP(t, dnstest.AnswerA("5.6.7.8"))
	e, _ := newEngine(t, upstream.NewClient([]string{addr}, time.Second))

	reply, outcome := e.Resolve(context.Background(), query("example.net", dns.TypeA))
	require.Equal(t, Forwarded, outcome)
	require.Len(t, reply.Answer, 1)
	assert.Equal(t, "5.6.7.8", reply.Answer[0].(*dns.A).A.String())
}
