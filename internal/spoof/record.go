package spoof

import (
	"fmt"
	"strings"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/miekg/dns"
)

// RecordType is the closed set of record types the responder can spoof.
type RecordType uint8

const (
	TypeA RecordType = iota + 1
	TypeAAAA
	TypeMX
	TypeNS
	TypeTXT
	TypeSOA
)

var recordTypeNames = map[RecordType]string{
	TypeA:    "A",
	TypeAAAA: "AAAA",
	TypeMX:   "MX",
	TypeNS:   "NS",
	TypeTXT:  "TXT",
	TypeSOA:  "SOA",
}

// AllTypes lists every supported RecordType in declaration order.
var AllTypes = []RecordType{TypeA, TypeAAAA, TypeMX, TypeNS, TypeTXT, TypeSOA}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RecordType(%d)", uint8(t))
}

// Qtype returns the wire type code.
func (t RecordType) Qtype() uint16 {
	switch t {
	case TypeA:
		return dns.TypeA
	case TypeAAAA:
		return dns.TypeAAAA
	case TypeMX:
		return dns.TypeMX
	case TypeNS:
		return dns.TypeNS
	case TypeTXT:
		return dns.TypeTXT
	case TypeSOA:
		return dns.TypeSOA
	}
	return dns.TypeNone
}

func (t RecordType) MarshalText() ([]byte, error) {
	if _, ok := recordTypeNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", core.ErrUnsupportedRecordType, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *RecordType) UnmarshalText(b []byte) error {
	v, err := ParseRecordType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseRecordType parses a record type name case-insensitively.
func ParseRecordType(s string) (RecordType, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range recordTypeNames {
		if name == up {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnsupportedRecordType, s)
}

// FromQtype maps a wire type code onto a RecordType. ok is false for types
// the responder never spoofs.
func FromQtype(qtype uint16) (RecordType, bool) {
	for _, t := range AllTypes {
		if t.Qtype() == qtype {
			return t, true
		}
	}
	return 0, false
}

// SpoofRecord is one stored (domain, type, value) triple.
type SpoofRecord struct {
	Domain string     `json:"domain"`
	Type   RecordType `json:"type"`
	Value  string     `json:"value"`
}

func (r SpoofRecord) String() string {
	return fmt.Sprintf("%s,%s,%s", r.Domain, r.Type, r.Value)
}

// NormalizeName lower-cases a domain and strips one trailing dot.
func NormalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}
