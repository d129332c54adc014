// internal/modules/dns_attacks/dns_zone_transfer.go
package dns_attacks

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/core/logger"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// ZoneRecords maps an owner name (no trailing dot) to record type to the
// record data seen for it.
type ZoneRecords map[string]map[string][]string

// Count returns the number of record values.
func (z ZoneRecords) Count() int {
	n := 0
	for _, types := range z {
		for _, values := range types {
			n += len(values)
		}
	}
	return n
}

// Names returns the owner names in sorted order.
func (z ZoneRecords) Names() []string {
	names := make([]string, 0, len(z))
	for name := range z {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rows flattens the zone into name, type, value triples in a stable order.
func (z ZoneRecords) Rows() [][3]string {
	var rows [][3]string
	for _, name := range z.Names() {
		types := make([]string, 0, len(z[name]))
		for t := range z[name] {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			for _, v := range z[name][t] {
				rows = append(rows, [3]string{name, t, v})
			}
		}
	}
	return rows
}

func (z ZoneRecords) add(rr dns.RR) {
	hdr := rr.Header()
	name := strings.TrimSuffix(hdr.Name, ".")
	rtype := dns.TypeToString[hdr.Rrtype]
	if rtype == "" {
		rtype = "TYPE" + strconv.Itoa(int(hdr.Rrtype))
	}
	value := strings.TrimPrefix(rr.String(), hdr.String())

	types, ok := z[name]
	if !ok {
		types = map[string][]string{}
		z[name] = types
	}
	for _, existing := range types[rtype] {
		if existing == value {
			return
		}
	}
	types[rtype] = append(types[rtype], value)
}

// ZoneTransferer performs AXFR requests.
type ZoneTransferer struct {
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// NewZoneTransferer creates a transferer with the given per-operation timeout.
func NewZoneTransferer(timeout time.Duration) *ZoneTransferer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ZoneTransferer{Timeout: timeout, Log: logger.GetLogger()}
}

// Transfer requests the full zone of domain from nameserver. It never
// fails: a refused or unreachable server yields an empty map and a logged
// error, and a transfer broken midway keeps the records received so far.
func (z *ZoneTransferer) Transfer(domain, nameserver string) ZoneRecords {
	records := ZoneRecords{}
	addr := core.NameserverAddr(nameserver)

	m := new(dns.Msg)
	m.SetAxfr(dns.Fqdn(domain))
	tr := &dns.Transfer{DialTimeout: z.Timeout, ReadTimeout: z.Timeout, WriteTimeout: z.Timeout}
	ch, err := tr.In(m, addr)
	if err != nil {
		z.Log.Errorf("Zone transfer of %s from %s failed: %v", domain, addr, err)
		return records
	}

	for env := range ch {
		if env.Error != nil {
			z.Log.Errorf("Zone transfer of %s from %s failed: %v", domain, addr, env.Error)
			continue
		}
		for _, rr := range env.RR {
			records.add(rr)
		}
	}
	if len(records) > 0 {
		z.Log.Infof("Zone transfer of %s from %s returned %d records", domain, addr, records.Count())
	}
	return records
}

// DNSZoneTransferResult collects the outcome of trying every name server.
type DNSZoneTransferResult struct {
	Domain     string                 `json:"domain"`
	Servers    []string               `json:"servers"`
	Successful map[string]ZoneRecords `json:"successful"`
	Failed     []string               `json:"failed"`
}

// DNSZoneTransfer tries an AXFR of domain against each given name server,
// or against the domain's NS set when none are given.
func DNSZoneTransfer(domain string, nameservers []string, timeout time.Duration) *DNSZoneTransferResult {
	result := &DNSZoneTransferResult{
		Domain:     domain,
		Servers:    []string{},
		Successful: map[string]ZoneRecords{},
		Failed:     []string{},
	}
	if len(nameservers) == 0 {
		ns, err := net.LookupNS(domain)
		if err != nil {
			result.Failed = append(result.Failed, "NS lookup failed")
			return result
		}
		for _, n := range ns {
			nameservers = append(nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}

	z := NewZoneTransferer(timeout)
	for _, ns := range nameservers {
		result.Servers = append(result.Servers, ns)
		if records := z.Transfer(domain, ns); len(records) > 0 {
			result.Successful[ns] = records
		} else {
			result.Failed = append(result.Failed, ns)
		}
	}
	return result
}

func (r *DNSZoneTransferResult) String() string {
	msg := fmt.Sprintf("\n🛡️  DNS Zone Transfer Test for %s:\n", r.Domain)
	if len(r.Successful) > 0 {
		for ns, recs := range r.Successful {
			msg += fmt.Sprintf("  SUCCESS: %s (%d records)\n", ns, recs.Count())
			for _, row := range recs.Rows() {
				msg += fmt.Sprintf("    %s %s %s\n", row[0], row[1], row[2])
			}
		}
	} else {
		msg += "  No successful zone transfers.\n"
	}
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf("  Failed/Refused: %v\n", r.Failed)
	}
	return msg
}

type dnsZoneTransferPlugin struct{}

func (p *dnsZoneTransferPlugin) Name() string { return "DNSZoneTransfer" }
func (p *dnsZoneTransferPlugin) Description() string {
	return "Tests for DNS zone transfer (AXFR) on all NS servers"
}
func (p *dnsZoneTransferPlugin) Run(target string, options map[string]interface{}) (interface{}, error) {
	timeout, _ := time.ParseDuration(core.OptionString(options, "timeout", "5s"))
	var servers []string
	if ns := core.OptionString(options, "nameserver", ""); ns != "" {
		servers = strings.Split(ns, ",")
	}
	return DNSZoneTransfer(target, servers, timeout), nil
}
func (p *dnsZoneTransferPlugin) Category() string { return "recon" }
func (p *dnsZoneTransferPlugin) Options() []core.ModuleOption {
	return []core.ModuleOption{
		{Name: "timeout", Type: "string", Default: "5s", Description: "Timeout for DNS connections", Required: false},
		{Name: "nameserver", Type: "string", Default: "", Description: "Comma separated servers to ask (default: the domain's NS set)", Required: false},
	}
}

func (p *dnsZoneTransferPlugin) Help() string {
	return `
🗂️ DNS Zone Transfer - Complete DNS Zone Data Extraction

DESCRIPTION:
  Attempts a DNS zone transfer (AXFR) to retrieve complete DNS zone data,
  exposing all DNS records and potentially revealing internal infrastructure.

USAGE:
  dnszonetransfer <domain> [options]

OPTIONS:
  timeout    - DNS connection timeout (default: 5s)
  nameserver - Servers to ask, host or host:port (default: NS records of the domain)

EXAMPLES:
  dnszonetransfer example.com
  dnszonetransfer internal.company.com --timeout 10s
  dnszonetransfer example.com --nameserver 10.0.0.53:5353

ATTACK SCENARIOS:
  • Infrastructure Mapping: Discover all internal hosts and services
  • Subdomain Discovery: Find hidden subdomains not publicly listed
  • Service Enumeration: Identify mail servers, databases, admin panels

INFORMATION DISCLOSED:
  • A/AAAA Records: host addresses
  • MX Records: Mail server configuration
  • NS Records: Name server delegation
  • CNAME Records: Hostname aliases
  • TXT Records: Additional metadata
  • SRV Records: Service location information

PRO TIPS:
  💡 Test both primary and secondary name servers
  💡 Look for internal naming conventions in hostnames
  💡 Cross-reference discovered hosts with dnsdiscovery

RISK LEVEL: High (information disclosure, infrastructure exposure)
`
}

func init() {
	core.RegisterPlugin(&dnsZoneTransferPlugin{})
}
