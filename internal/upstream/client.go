// Package upstream is the resolver client used when a query is not spoofed.
// It speaks plain DNS over UDP using the x/net dnsmessage model.
package upstream

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"golang.org/x/net/dns/dnsmessage"
)

const maxUDPSize = 65535

// Client sends one question to the first configured nameserver. It holds no
// per-call state and may be used concurrently.
type Client struct {
	Nameservers []string
	Timeout     time.Duration
}

// NewClient creates a client for nameservers ("host" or "host:port").
func NewClient(nameservers []string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = core.DefaultUpstreamTimeout
	}
	addrs := make([]string, 0, len(nameservers))
	for _, ns := range nameservers {
		addrs = append(addrs, core.NameserverAddr(ns))
	}
	return &Client{Nameservers: addrs, Timeout: timeout}
}

// Exchange asks the first nameserver for (name, qtype) and returns its parsed
// reply. Datagrams that do not parse or whose id does not match the query are
// ignored until the timeout expires.
func (c *Client) Exchange(ctx context.Context, name string, qtype uint16) (*dnsmessage.Message, error) {
	if len(c.Nameservers) == 0 {
		return nil, fmt.Errorf("%w: no upstream nameserver configured", core.ErrInvalidConfig)
	}
	id, err := randomID()
	if err != nil {
		return nil, err
	}
	query, err := BuildQuery(id, name, qtype)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.Nameservers[0])
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", core.ErrNetworkError, c.Nameservers[0], err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(query); err != nil {
		return nil, wrapNetErr(err)
	}

	buf := make([]byte, maxUDPSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, wrapNetErr(err)
		}
		var msg dnsmessage.Message
		if err := msg.Unpack(buf[:n]); err != nil {
			continue
		}
		if !msg.Header.Response || msg.Header.ID != id {
			continue
		}
		return &msg, nil
	}
}

// BuildQuery packs a recursive query for (name, qtype).
func BuildQuery(id uint16, name string, qtype uint16) ([]byte, error) {
	if len(name) == 0 || name[len(name)-1] != '.' {
		name += "."
	}
	qname, err := dnsmessage.NewName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedRecord, err)
	}
	b := dnsmessage.NewBuilder(make([]byte, 0, 512), dnsmessage.Header{ID: id, RecursionDesired: true})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	if err := b.Question(dnsmessage.Question{
		Name:  qname,
		Type:  dnsmessage.Type(qtype),
		Class: dnsmessage.ClassINET,
	}); err != nil {
		return nil, err
	}
	return b.Finish()
}

func randomID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func wrapNetErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", core.ErrNetworkTimeout, err)
	}
	return fmt.Errorf("%w: %v", core.ErrNetworkError, err)
}
