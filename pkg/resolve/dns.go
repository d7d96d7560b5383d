package resolve

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
)

// DNSResolver sends PTR queries straight to one DNS server, bypassing the
// system resolver configuration.
type DNSResolver struct {
	server string
	udp    *dns.Client
	tcp    *dns.Client
}

// NewDNSResolver returns a resolver querying server ("host" or "host:port").
func NewDNSResolver(server string) (*DNSResolver, error) {
	if server == "" {
		return nil, fmt.Errorf("empty resolver address")
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{
		server: server,
		udp:    &dns.Client{Net: "udp"},
		tcp:    &dns.Client{Net: "tcp"},
	}, nil
}

// Server returns the host:port queried.
func (r *DNSResolver) Server() string {
	return r.server
}

// Resolve queries the PTR record of addr.
func (r *DNSResolver) Resolve(ctx context.Context, addr netrange.Address, timeout time.Duration) Outcome {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	name, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return failed(InvalidAddress)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)

	resp, _, err := r.udp.ExchangeContext(ctx, msg, r.server)
	if err == nil && resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(ctx, msg, r.server)
	}
	if err != nil {
		kind := classify(err, ctx.Err())
		gologger.Debug().Msgf("ptr query for %s to %s failed (%s): %s", addr, r.server, kind, err)
		return failed(kind)
	}
	if resp.Rcode != dns.RcodeSuccess {
		gologger.Debug().Msgf("ptr query for %s returned %s", addr, dns.RcodeToString[resp.Rcode])
		return failed(NoRecord)
	}

	var names []string
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	return fromNames(addr, names)
}
