package resolve

import (
	"context"
	"net"
	"time"

	"github.com/projectdiscovery/gcache"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
)

// Lookuper is the part of net.Resolver used by SystemResolver.
type Lookuper interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// SystemResolver resolves through the operating system's resolver configuration.
type SystemResolver struct {
	lookup  Lookuper
	forward gcache.Cache[string, []string]
}

// Option configures a SystemResolver.
type Option func(*SystemResolver)

// WithLookuper replaces net.DefaultResolver.
func WithLookuper(l Lookuper) Option {
	return func(r *SystemResolver) {
		r.lookup = l
	}
}

// WithForwardLookup fills Addresses with the A records of the resolved
// hostname. Results are cached per hostname for ttl.
func WithForwardLookup(size int, ttl time.Duration) Option {
	return func(r *SystemResolver) {
		r.forward = gcache.New[string, []string](size).
			LRU().
			Expiration(ttl).
			Build()
	}
}

// NewSystemResolver returns a resolver backed by net.DefaultResolver.
func NewSystemResolver(opts ...Option) *SystemResolver {
	r := &SystemResolver{lookup: net.DefaultResolver}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up the PTR names of addr.
func (r *SystemResolver) Resolve(ctx context.Context, addr netrange.Address, timeout time.Duration) Outcome {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	names, err := r.lookup.LookupAddr(ctx, addr.String())
	if err != nil {
		kind := classify(err, ctx.Err())
		gologger.Debug().Msgf("reverse lookup of %s failed (%s): %s", addr, kind, err)
		return failed(kind)
	}

	out := fromNames(addr, names)
	if out.Err != None || r.forward == nil {
		return out
	}
	if addrs := r.forwardLookup(ctx, out.Hostname); len(addrs) > 0 {
		out.Addresses = addrs
	}
	return out
}

// forwardLookup returns the IPv4 addresses of host, served from cache when possible
func (r *SystemResolver) forwardLookup(ctx context.Context, host string) []string {
	if cached, err := r.forward.Get(host); err == nil {
		return cached
	}

	resolved, err := r.lookup.LookupHost(ctx, host)
	if err != nil {
		gologger.Debug().Msgf("forward lookup of %s failed: %s", host, err)
		return nil
	}

	addrs := make([]string, 0, len(resolved))
	for _, a := range resolved {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			addrs = append(addrs, a)
		}
	}
	_ = r.forward.Set(host, addrs)
	return addrs
}
