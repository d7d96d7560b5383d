package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
	"github.com/projectdiscovery/ipsweep/pkg/probe"
	"github.com/projectdiscovery/ipsweep/pkg/resolve"
	"github.com/rs/xid"

	syncutil "github.com/projectdiscovery/utils/sync"
)

const (
	DefaultConcurrency    = 64
	DefaultProbeTimeout   = time.Second
	DefaultResolveTimeout = 2 * time.Second
	DefaultMaxAddresses   = 65536
	DefaultGracePeriod    time.Duration = 0
)

// ErrCapacityExceeded is returned when more addresses are submitted than
// Options.MaxAddresses allows. No work is started in that case.
var ErrCapacityExceeded = netrange.ErrCapacityExceeded

// Prober checks the reachability of one address.
type Prober interface {
	Probe(ctx context.Context, addr netrange.Address, timeout time.Duration) probe.Outcome
}

// Resolver looks up the reverse DNS of one address.
type Resolver interface {
	Resolve(ctx context.Context, addr netrange.Address, timeout time.Duration) resolve.Outcome
}

// Options of the engine
type Options struct {
	// Concurrency is the maximum number of addresses in flight
	Concurrency int
	// ProbeTimeout bounds each reachability check
	ProbeTimeout time.Duration
	// ResolveTimeout bounds each reverse lookup
	ResolveTimeout time.Duration
	// MaxAddresses is the largest accepted input
	MaxAddresses int
	// GracePeriod is how long in-flight work may finish after cancellation.
	// Zero abandons it immediately.
	GracePeriod time.Duration
	// Prioritize admits likely-live addresses (gateways, DHCP ranges) first
	Prioritize bool
	// OnRecord is called once per completed record, from a single goroutine,
	// in completion order.
	OnRecord func(Record)
	// OnStage is called from worker goroutines on each stage transition.
	OnStage func(netrange.Address, Stage)
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Concurrency:    DefaultConcurrency,
		ProbeTimeout:   DefaultProbeTimeout,
		ResolveTimeout: DefaultResolveTimeout,
		MaxAddresses:   DefaultMaxAddresses,
		GracePeriod:    DefaultGracePeriod,
	}
}

// Engine probes and resolves a list of addresses with bounded concurrency.
type Engine struct {
	prober   Prober
	resolver Resolver
	options  Options
}

// New returns an engine. Zero or negative option fields take their defaults.
func New(prober Prober, resolver Resolver, options Options) (*Engine, error) {
	if prober == nil {
		return nil, errors.New("sweep: nil prober")
	}
	if resolver == nil {
		return nil, errors.New("sweep: nil resolver")
	}
	defaults := DefaultOptions()
	if options.Concurrency <= 0 {
		options.Concurrency = defaults.Concurrency
	}
	if options.ProbeTimeout <= 0 {
		options.ProbeTimeout = defaults.ProbeTimeout
	}
	if options.ResolveTimeout <= 0 {
		options.ResolveTimeout = defaults.ResolveTimeout
	}
	if options.MaxAddresses <= 0 {
		options.MaxAddresses = defaults.MaxAddresses
	}
	if options.GracePeriod < 0 {
		options.GracePeriod = 0
	}
	return &Engine{prober: prober, resolver: resolver, options: options}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.options
}

type completion struct {
	index  int
	record Record
}

// Scan runs every address through probe then resolve and returns the records
// in input order.
//
// When ctx is cancelled no further address is admitted. In-flight addresses
// get GracePeriod to finish; work still running after that is abandoned and
// its address is omitted from the result, which is then marked Incomplete.
// Cancellation is not an error: the partial result is returned with a nil
// error.
func (e *Engine) Scan(ctx context.Context, addrs []netrange.Address) (*Result, error) {
	if len(addrs) > e.options.MaxAddresses {
		return nil, fmt.Errorf("%w: %d addresses, limit %d", ErrCapacityExceeded, len(addrs), e.options.MaxAddresses)
	}

	result := &Result{
		ID:        xid.New().String(),
		StartedAt: time.Now(),
	}
	result.Summary.Total = len(addrs)

	concurrency := e.options.Concurrency
	if concurrency > len(addrs) {
		concurrency = len(addrs)
	}
	if concurrency == 0 {
		result.Records = []Record{}
		result.FinishedAt = time.Now()
		return result, nil
	}

	// work outlives ctx by the grace period
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	stopGrace := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(e.options.GracePeriod)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancelWork()
		case <-workCtx.Done():
		}
	})
	defer stopGrace()

	awg, err := syncutil.New(syncutil.WithSize(concurrency))
	if err != nil {
		return nil, err
	}

	buffer := make([]Record, len(addrs))
	filled := make([]bool, len(addrs))
	completions := make(chan completion, concurrency)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for c := range completions {
			buffer[c.index] = c.record
			filled[c.index] = true
			if c.record.Active() {
				result.Summary.Active++
			} else {
				result.Summary.Inactive++
			}
			if e.options.OnRecord != nil {
				e.options.OnRecord(c.record)
			}
		}
	}()

	for _, index := range Schedule(addrs, e.options.Prioritize) {
		if err := awg.AddWithContext(ctx); err != nil {
			break
		}
		// a slot may be granted in the same instant ctx is cancelled
		if ctx.Err() != nil {
			awg.Done()
			break
		}
		go func(index int) {
			defer awg.Done()
			record, ok := e.scanOne(workCtx, addrs[index])
			if !ok {
				return
			}
			completions <- completion{index: index, record: record}
		}(index)
	}

	awg.Wait()
	close(completions)
	<-collectorDone

	result.Records = make([]Record, 0, result.Summary.Completed())
	for i, ok := range filled {
		if ok {
			result.Records = append(result.Records, buffer[i])
		}
	}
	result.Incomplete = len(result.Records) < len(addrs)
	result.FinishedAt = time.Now()

	if result.Incomplete {
		gologger.Verbose().Msgf("scan %s interrupted: %d/%d addresses completed", result.ID, len(result.Records), len(addrs))
	}
	return result, nil
}

// scanOne probes then resolves addr. ok is false when the work was abandoned.
func (e *Engine) scanOne(ctx context.Context, addr netrange.Address) (Record, bool) {
	record := Record{Address: addr}

	e.stage(addr, StageProbing)
	record.Probe = e.prober.Probe(ctx, addr, e.options.ProbeTimeout)
	if ctx.Err() != nil {
		return record, false
	}

	e.stage(addr, StageResolving)
	record.DNS = e.resolver.Resolve(ctx, addr, e.options.ResolveTimeout)
	if ctx.Err() != nil {
		return record, false
	}

	e.stage(addr, StageComplete)
	return record, true
}

func (e *Engine) stage(addr netrange.Address, s Stage) {
	if e.options.OnStage != nil {
		e.options.OnStage(addr, s)
	}
}
