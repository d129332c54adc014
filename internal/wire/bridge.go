// Package wire converts between the upstream client's message model
// (x/net dnsmessage) and the responder's model (miekg/dns), and builds
// spoofed answers directly in the responder's model.
package wire

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/dns/dnsmessage"
)

const (
	soaFields    = 7
	maxTXTString = 255
)

// FromUpstream packs an upstream reply to wire bytes and re-parses it into a
// responder message.
func FromUpstream(m *dnsmessage.Message) (*dns.Msg, error) {
	packed, err := m.Pack()
	if err != nil {
		return nil, fmt.Errorf("pack upstream reply: %w", err)
	}
	out := new(dns.Msg)
	if err := out.Unpack(packed); err != nil {
		return nil, fmt.Errorf("unpack upstream reply: %w", err)
	}
	return out, nil
}

// Relay turns an upstream reply into the answer for req: the question and
// transaction id are the client's, the rest is the upstream's.
func Relay(req *dns.Msg, m *dnsmessage.Message) (*dns.Msg, error) {
	out, err := FromUpstream(m)
	if err != nil {
		return nil, err
	}
	out.Id = req.Id
	out.Question = req.Question
	return out, nil
}

// errSkipRecord marks a value that is dropped without an error log.
type errSkipRecord struct{ reason string }

func (e errSkipRecord) Error() string { return e.reason }

// BuildRR creates one answer record owned by qname from a stored value.
func BuildRR(qname string, t spoof.RecordType, value string, ttl uint32) (dns.RR, error) {
	hdr := dns.RR_Header{
		Name:   dns.Fqdn(qname),
		Rrtype: t.Qtype(),
		Class:  dns.ClassINET,
		Ttl:    ttl,
	}
	switch t {
	case spoof.TypeA:
		ip := net.ParseIP(strings.TrimSpace(value)).To4()
		if ip == nil {
			return nil, fmt.Errorf("%w: %q is not an IPv4 address", core.ErrMalformedRecord, value)
		}
		return &dns.A{Hdr: hdr, A: ip}, nil
	case spoof.TypeAAAA:
		ip, err := netip.ParseAddr(strings.TrimSpace(value))
		if err != nil || !ip.Is6() || ip.Zone() != "" {
			return nil, fmt.Errorf("%w: %q is not an IPv6 address", core.ErrMalformedRecord, value)
		}
		b := ip.As16()
		return &dns.AAAA{Hdr: hdr, AAAA: net.IP(b[:])}, nil
	case spoof.TypeMX:
		prio, exchange, ok := strings.Cut(value, " ")
		if !ok {
			return nil, fmt.Errorf("%w: MX %q needs \"<priority> <exchange>\"", core.ErrMalformedRecord, value)
		}
		pref, err := strconv.ParseUint(prio, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: MX priority %q: %v", core.ErrMalformedRecord, prio, err)
		}
		return &dns.MX{Hdr: hdr, Preference: uint16(pref), Mx: dns.Fqdn(strings.TrimSpace(exchange))}, nil
	case spoof.TypeNS:
		return &dns.NS{Hdr: hdr, Ns: dns.Fqdn(value)}, nil
	case spoof.TypeTXT:
		return &dns.TXT{Hdr: hdr, Txt: splitTXT(value)}, nil
	case spoof.TypeSOA:
		return buildSOA(hdr, value)
	}
	return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedRecordType, t)
}

func buildSOA(hdr dns.RR_Header, value string) (dns.RR, error) {
	parts := strings.Split(value, " ")
	if len(parts) < soaFields {
		return nil, errSkipRecord{reason: fmt.Sprintf("SOA %q has fewer than %d fields", value, soaFields)}
	}
	if len(parts) > soaFields {
		return nil, fmt.Errorf("%w: SOA %q has more than %d fields", core.ErrMalformedRecord, value, soaFields)
	}
	var nums [5]uint32
	for i, p := range parts[2:] {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: SOA field %q: %v", core.ErrMalformedRecord, p, err)
		}
		nums[i] = uint32(n)
	}
	return &dns.SOA{
		Hdr:     hdr,
		Ns:      dns.Fqdn(parts[0]),
		Mbox:    dns.Fqdn(parts[1]),
		Serial:  nums[0],
		Refresh: nums[1],
		Retry:   nums[2],
		Expire:  nums[3],
		Minttl:  nums[4],
	}, nil
}

// splitTXT chunks a value into character-strings of at most 255 bytes.
func splitTXT(value string) []string {
	if len(value) <= maxTXTString {
		return []string{value}
	}
	var out []string
	for len(value) > maxTXTString {
		out = append(out, value[:maxTXTString])
		value = value[maxTXTString:]
	}
	return append(out, value)
}

// AppendSpoofed adds one answer per value to reply. A value that cannot be
// encoded is logged and skipped; it never aborts the rest of the reply.
// It returns the number of answers added.
func AppendSpoofed(reply *dns.Msg, qname string, t spoof.RecordType, values []string, ttl uint32, log logrus.FieldLogger) int {
	added := 0
	for _, v := range values {
		rr, err := BuildRR(qname, t, v, ttl)
		if err != nil {
			if _, silent := err.(errSkipRecord); silent {
				log.Debugf("Omitting %s record for %s: %v", t, qname, err)
			} else {
				log.Errorf("Failed to add %s record for %s: %v", t, qname, err)
			}
			continue
		}
		reply.Answer = append(reply.Answer, rr)
		added++
	}
	return added
}
