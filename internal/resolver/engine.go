// Package resolver decides, per query, whether to answer from the spoof
// records or relay the query to the upstream resolver.
package resolver

import (
	"context"
	"net"

	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/SaudiLinux/urlget/internal/wire"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/dns/dnsmessage"
)

// Upstream is the resolver consulted when no spoof record applies.
type Upstream interface {
	Exchange(ctx context.Context, name string, qtype uint16) (*dnsmessage.Message, error)
}

// Outcome is the terminal state a query ended in.
type Outcome int

const (
	Spoofed Outcome = iota + 1
	Forwarded
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Spoofed:
		return "spoofed"
	case Forwarded:
		return "forwarded"
	case Errored:
		return "error"
	}
	return "unknown"
}

// Query is the normalized question of one request.
type Query struct {
	Name string
	Type uint16
}

func (q Query) TypeName() string { return dns.Type(q.Type).String() }

// Engine answers queries. It is safe for concurrent use.
type Engine struct {
	store    *spoof.Store
	upstream Upstream
	stats    *Stats
	ttl      uint32
	log      logrus.FieldLogger
}

// NewEngine wires the record store, upstream and counters together. ttl is
// applied to every spoofed answer.
func NewEngine(store *spoof.Store, upstream Upstream, stats *Stats, ttl uint32, log logrus.FieldLogger) *Engine {
	return &Engine{store: store, upstream: upstream, stats: stats, ttl: ttl, log: log}
}

// Stats returns the counters the engine increments.
func (e *Engine) Stats() *Stats { return e.stats }

// Resolve always returns a reply carrying req's transaction id; failures are
// logged and counted, never returned.
func (e *Engine) Resolve(ctx context.Context, req *dns.Msg) (*dns.Msg, Outcome) {
	e.stats.requests.Add(1)

	reply := new(dns.Msg)
	if len(req.Question) == 0 {
		reply.SetRcode(req, dns.RcodeFormatError)
		e.stats.errors.Add(1)
		e.log.Warn("Query without a question section")
		return reply, Errored
	}
	reply.SetReply(req)

	q := Query{Name: spoof.NormalizeName(req.Question[0].Name), Type: req.Question[0].Qtype}
	log := e.log.WithFields(logrus.Fields{"qname": q.Name, "qtype": q.TypeName()})
	log.Debug("DNS query")

	if rt, ok := spoof.FromQtype(q.Type); ok {
		if values, domain, exact := e.store.Match(q.Name, rt); len(values) > 0 {
			reply.Authoritative = true
			wire.AppendSpoofed(reply, q.Name, rt, values, e.ttl, log)
			e.stats.spoofed.Add(1)
			if exact {
				log.Info("Hijacked")
			} else {
				log.WithField("domain", domain).Info("Hijacked (subdomain)")
			}
			return reply, Spoofed
		}
	}

	up, err := e.upstream.Exchange(ctx, q.Name, q.Type)
	if err != nil {
		e.stats.errors.Add(1)
		log.Errorf("Error forwarding DNS request: %v", err)
		return reply, Errored
	}
	relayed, err := wire.Relay(req, up)
	if err != nil {
		e.stats.errors.Add(1)
		log.Errorf("Error translating upstream reply: %v", err)
		return reply, Errored
	}
	e.stats.forwarded.Add(1)
	log.Debug("Forwarded")
	return relayed, Forwarded
}

// ServeDNS implements dns.Handler.
func (e *Engine) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	reply, _ := e.Resolve(context.Background(), r)
	if _, udp := w.RemoteAddr().(*net.UDPAddr); udp {
		size := dns.MinMsgSize
		if opt := r.IsEdns0(); opt != nil && int(opt.UDPSize()) > size {
			size = int(opt.UDPSize())
		}
		reply.Truncate(size)
	}
	if err := w.WriteMsg(reply); err != nil {
		e.log.WithField("client", w.RemoteAddr().String()).Errorf("Failed to write reply: %v", err)
	}
}
