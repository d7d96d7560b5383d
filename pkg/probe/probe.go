package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
)

// Kind classifies why a probe did not report the host as reachable.
type Kind int

const (
	None Kind = iota
	Timeout
	Unreachable
	TransportError
)

func (k Kind) String() string {
	switch k {
	case None:
		return ""
	case Timeout:
		return "timeout"
	case Unreachable:
		return "unreachable"
	case TransportError:
		return "transport error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a single echo request.
type Outcome struct {
	Reachable bool
	Err       Kind
	RTT       time.Duration
}

// Prober sends one echo request per call and never blocks past timeout.
type Prober interface {
	Probe(ctx context.Context, addr netrange.Address, timeout time.Duration) Outcome
	Close() error
}

// Mode selects the probe implementation.
type Mode string

const (
	// ModeAuto uses ICMP sockets and falls back to the system ping binary
	ModeAuto Mode = "auto"
	// ModeICMP requires an ICMP socket
	ModeICMP Mode = "icmp"
	// ModeExec runs the system ping binary
	ModeExec Mode = "exec"
)

// ErrUnknownMode is returned by New for unsupported modes.
var ErrUnknownMode = errors.New("unknown ping mode")

// New returns a Prober for mode. The caller must Close it.
func New(mode Mode) (Prober, error) {
	switch mode {
	case ModeICMP:
		return NewICMPProber()
	case ModeExec:
		return NewExecProber("")
	case ModeAuto, "":
		p, err := NewICMPProber()
		if err == nil {
			return p, nil
		}
		gologger.Verbose().Msgf("icmp socket unavailable (%s), falling back to system ping", err)
		return NewExecProber("")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
