// Package resolve performs reverse DNS lookups for IPv4 addresses and
// normalizes every failure into one of three kinds.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/projectdiscovery/ipsweep/pkg/netrange"
)

// errUnrecognizedAddress is the net package's message for unparsable lookup input
const errUnrecognizedAddress = "unrecognized address"

// Kind is the failure kind of a reverse lookup.
type Kind int

const (
	None Kind = iota
	NoRecord
	InvalidAddress
	Timeout
)

func (k Kind) String() string {
	switch k {
	case None:
		return ""
	case NoRecord:
		return "no-record"
	case InvalidAddress:
		return "invalid-address"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is the human readable text used in reports.
func (k Kind) Message() string {
	switch k {
	case NoRecord:
		return "No PTR record found"
	case InvalidAddress:
		return "Invalid IP address"
	case Timeout:
		return "Lookup timed out"
	default:
		return ""
	}
}

// Outcome is the result of a reverse lookup. Exactly one of Hostname and Err
// is set. Aliases and Addresses are never nil.
type Outcome struct {
	Hostname  string
	Aliases   []string
	Addresses []string
	Err       Kind
}

// Resolver looks up the PTR record of a single address.
type Resolver interface {
	Resolve(ctx context.Context, addr netrange.Address, timeout time.Duration) Outcome
}

func failed(kind Kind) Outcome {
	return Outcome{Aliases: []string{}, Addresses: []string{}, Err: kind}
}

// fromNames builds a successful outcome from the PTR names of addr
func fromNames(addr netrange.Address, names []string) Outcome {
	var cleaned []string
	for _, name := range names {
		if name = strings.TrimSuffix(strings.TrimSpace(name), "."); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	if len(cleaned) == 0 {
		return failed(NoRecord)
	}
	aliases := make([]string, 0, len(cleaned)-1)
	aliases = append(aliases, cleaned[1:]...)
	return Outcome{
		Hostname:  cleaned[0],
		Aliases:   aliases,
		Addresses: []string{addr.String()},
	}
}

// classify maps a lookup error onto a Kind. Anything that is neither a
// timeout nor a malformed address counts as a missing record.
func classify(err error, ctxErr error) Kind {
	if ctxErr != nil || errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsTimeout:
			return Timeout
		case dnsErr.Err == errUnrecognizedAddress:
			return InvalidAddress
		default:
			return NoRecord
		}
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return InvalidAddress
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return NoRecord
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
