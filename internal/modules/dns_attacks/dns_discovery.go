// internal/modules/dns_attacks/dns_discovery.go
package dns_attacks

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// maxHostBits caps a discovery sweep at 65536 addresses.
const maxHostBits = 16

// DNSServerScanner sweeps a network for hosts answering DNS on port 53.
type DNSServerScanner struct {
	Network     string
	Timeout     time.Duration
	Port        int
	ProbeName   string
	Concurrency int
	Log         logrus.FieldLogger
}

// DNSDiscoveryResult lists the servers found. Order carries no meaning.
type DNSDiscoveryResult struct {
	Network  string        `json:"network"`
	Scanned  int           `json:"scanned"`
	Servers  []string      `json:"servers"`
	Duration time.Duration `json:"duration"`
}

// NewDNSServerScanner creates a scanner with default port, probe name and
// worker count.
func NewDNSServerScanner(network string, timeout time.Duration) *DNSServerScanner {
	if timeout <= 0 {
		timeout = core.DefaultProbeTimeout
	}
	return &DNSServerScanner{
		Network:     network,
		Timeout:     timeout,
		Port:        53,
		ProbeName:   core.DefaultProbeName,
		Concurrency: core.DefaultConcurrency,
		Log:         logger.GetLogger(),
	}
}

// Scan probes every host address of the network: a TCP connect to the DNS
// port, then a real A query for the probe name. Only hosts that answer the
// query are reported. A bad CIDR is returned before any packet is sent.
func (s *DNSServerScanner) Scan(ctx context.Context) (*DNSDiscoveryResult, error) {
	hosts, err := HostAddresses(s.Network)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	s.Log.Infof("Scanning %s for DNS servers (%d hosts)...", s.Network, len(hosts))

	workers := s.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(hosts) {
		workers = len(hosts)
	}

	jobs := make(chan netip.Addr)
	found := make(chan netip.Addr, len(hosts))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range jobs {
				if s.probe(ctx, ip) {
					s.Log.Infof("Discovered DNS server: %s", ip)
					found <- ip
				}
			}
		}()
	}

feed:
	for _, ip := range hosts {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- ip:
		}
	}
	close(jobs)
	wg.Wait()
	close(found)

	var servers []netip.Addr
	for ip := range found {
		servers = append(servers, ip)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Less(servers[j]) })

	result := &DNSDiscoveryResult{
		Network:  s.Network,
		Scanned:  len(hosts),
		Servers:  make([]string, 0, len(servers)),
		Duration: time.Since(start),
	}
	for _, ip := range servers {
		result.Servers = append(result.Servers, ip.String())
	}
	s.Log.Infof("Scan complete. Found %d DNS servers", len(result.Servers))
	return result, nil
}

func (s *DNSServerScanner) probe(ctx context.Context, ip netip.Addr) bool {
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(s.Port))
	d := net.Dialer{Timeout: s.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()

	c := &dns.Client{Net: "udp", Timeout: s.Timeout}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(s.ProbeName), dns.TypeA)
	r, _, err := c.ExchangeContext(ctx, m, addr)
	if err != nil {
		s.Log.Debugf("%s accepts TCP/%d but did not answer: %v", ip, s.Port, err)
		return false
	}
	if r.Rcode != dns.RcodeSuccess {
		return false
	}
	for _, rr := range r.Answer {
		if _, ok := rr.(*dns.A); ok {
			return true
		}
	}
	return false
}

// HostAddresses expands a CIDR into its usable host addresses: the network
// and broadcast addresses of IPv4 networks wider than /31 are left out, as
// is the subnet-router address of IPv6 networks wider than /127.
func HostAddresses(cidr string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("%w: network %q: %v", core.ErrInvalidConfig, cidr, err)
	}
	prefix = prefix.Masked()
	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > maxHostBits {
		return nil, fmt.Errorf("%w: network %s is larger than /%d", core.ErrInvalidConfig, prefix, prefix.Addr().BitLen()-maxHostBits)
	}

	total := 1 << hostBits
	addrs := make([]netip.Addr, 0, total)
	ip := prefix.Addr()
	for i := 0; i < total; i++ {
		addrs = append(addrs, ip)
		ip = ip.Next()
	}
	if hostBits >= 2 {
		addrs = addrs[1:]
		if prefix.Addr().Is4() {
			addrs = addrs[:len(addrs)-1]
		}
	}
	return addrs, nil
}

// String renders the result for the console.
func (r *DNSDiscoveryResult) String() string {
	msg := fmt.Sprintf("\n📡 DNS Server Discovery for %s (%d hosts, %s):\n", r.Network, r.Scanned, r.Duration.Truncate(time.Millisecond))
	if len(r.Servers) == 0 {
		return msg + "  No DNS servers found.\n"
	}
	for _, s := range r.Servers {
		msg += fmt.Sprintf("  ➡️ %s\n", s)
	}
	return msg
}

type dnsDiscoveryPlugin struct{}

func (p *dnsDiscoveryPlugin) Name() string { return "DNSDiscovery" }
func (p *dnsDiscoveryPlugin) Description() string {
	return "Sweeps a network range for hosts that answer DNS queries"
}
func (p *dnsDiscoveryPlugin) Category() string { return "recon" }
func (p *dnsDiscoveryPlugin) Options() []core.ModuleOption {
	return []core.ModuleOption{
		{Name: "timeout", Type: "string", Default: "1s", Description: "Connect and query timeout per host", Required: false},
		{Name: "concurrency", Type: "int", Default: core.DefaultConcurrency, Description: "Hosts probed in parallel", Required: false},
		{Name: "probe_name", Type: "string", Default: core.DefaultProbeName, Description: "Name resolved to confirm a server", Required: false},
	}
}
func (p *dnsDiscoveryPlugin) Run(target string, options map[string]interface{}) (interface{}, error) {
	timeout, _ := time.ParseDuration(core.OptionString(options, "timeout", "1s"))
	s := NewDNSServerScanner(target, timeout)
	s.ProbeName = core.OptionString(options, "probe_name", core.DefaultProbeName)
	if n, err := strconv.Atoi(core.OptionString(options, "concurrency", "")); err == nil && n > 0 {
		s.Concurrency = n
	}
	return s.Scan(context.Background())
}

func (p *dnsDiscoveryPlugin) Help() string {
	return `
📡 DNS Discovery - Find Resolvers on a Network

DESCRIPTION:
  Connects to TCP/53 on every host of a CIDR range and confirms each
  candidate by resolving a well-known name through it.

USAGE:
  dnsdiscovery <cidr> [options]

OPTIONS:
  timeout     - Connect and query timeout per host (default: 1s)
  concurrency - Hosts probed in parallel (default: 32)
  probe_name  - Name resolved to confirm a server (default: google.com)

EXAMPLES:
  dnsdiscovery 192.168.1.0/24
  dnsdiscovery 10.0.0.0/22 --timeout 500ms

PRO TIPS:
  💡 Open resolvers found here are candidates for cache poisoning
  💡 Internal DNS servers often allow zone transfers

RISK LEVEL: Low (active scanning, noisy on monitored networks)
`
}

func init() {
	core.RegisterPlugin(&dnsDiscoveryPlugin{})
}
