package sweep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/projectdiscovery/ipsweep/pkg/netrange"
	"github.com/projectdiscovery/ipsweep/pkg/probe"
	"github.com/projectdiscovery/ipsweep/pkg/resolve"
)

// fakeProber reports odd last octets as reachable
type fakeProber struct {
	delay    func(netrange.Address) time.Duration
	block    func(netrange.Address) bool
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32

	mu    sync.Mutex
	order []netrange.Address
}

func (p *fakeProber) Probe(ctx context.Context, addr netrange.Address, timeout time.Duration) probe.Outcome {
	p.calls.Add(1)
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		old := p.maxSeen.Load()
		if n <= old || p.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	p.mu.Lock()
	p.order = append(p.order, addr)
	p.mu.Unlock()

	if p.block != nil && p.block(addr) {
		<-ctx.Done()
		return probe.Outcome{Err: probe.Timeout}
	}
	if p.delay != nil {
		select {
		case <-time.After(p.delay(addr)):
		case <-ctx.Done():
			return probe.Outcome{Err: probe.Timeout}
		}
	}
	if addr.Octet(3)%2 == 1 {
		return probe.Outcome{Reachable: true}
	}
	return probe.Outcome{Err: probe.Unreachable}
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, addr netrange.Address, timeout time.Duration) resolve.Outcome {
	if addr.Octet(3)%3 == 0 {
		return resolve.Outcome{Aliases: []string{}, Addresses: []string{}, Err: resolve.NoRecord}
	}
	return resolve.Outcome{
		Hostname:  "host-" + addr.String(),
		Aliases:   []string{},
		Addresses: []string{addr.String()},
	}
}

func mustExpand(t *testing.T, cidr string) []netrange.Address {
	t.Helper()
	addrs, err := netrange.Expand(cidr)
	if err != nil {
		t.Fatal(err)
	}
	return addrs
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, fakeResolver{}, Options{}); err == nil {
		t.Error("New() with nil prober should fail")
	}
	if _, err := New(&fakeProber{}, nil, Options{}); err == nil {
		t.Error("New() with nil resolver should fail")
	}
	e, err := New(&fakeProber{}, fakeResolver{}, Options{Concurrency: -1})
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Options(); got.Concurrency != DefaultConcurrency || got.MaxAddresses != DefaultMaxAddresses {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestScanOrderAndSummary(t *testing.T) {
	addrs := mustExpand(t, "192.0.2.0/26")
	p := &fakeProber{delay: func(a netrange.Address) time.Duration {
		// later addresses finish first
		return time.Duration(64-int(a.Octet(3))) * 200 * time.Microsecond
	}}

	var emitted atomic.Int32
	e, err := New(p, fakeResolver{}, Options{
		Concurrency: 16,
		OnRecord:    func(Record) { emitted.Add(1) },
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.Scan(context.Background(), addrs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Incomplete {
		t.Error("Incomplete = true for an uninterrupted scan")
	}
	if len(res.Records) != len(addrs) {
		t.Fatalf("got %d records, want %d", len(res.Records), len(addrs))
	}
	for i, r := range res.Records {
		if r.Address != addrs[i] {
			t.Fatalf("record %d is %s, want %s", i, r.Address, addrs[i])
		}
		if r.Active() != (r.Address.Octet(3)%2 == 1) {
			t.Errorf("%s: Active() = %v", r.Address, r.Active())
		}
	}
	if res.Summary.Active != 32 || res.Summary.Inactive != 32 || res.Summary.Total != 64 {
		t.Errorf("Summary = %+v", res.Summary)
	}
	if int(emitted.Load()) != len(addrs) {
		t.Errorf("OnRecord called %d times, want %d", emitted.Load(), len(addrs))
	}
	if res.ID == "" || res.FinishedAt.Before(res.StartedAt) {
		t.Errorf("bad result metadata: id=%q started=%s finished=%s", res.ID, res.StartedAt, res.FinishedAt)
	}
}

func TestScanConcurrencyBound(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		cidr        string
	}{
		{name: "one", concurrency: 1, cidr: "192.0.2.0/28"},
		{name: "four", concurrency: 4, cidr: "192.0.2.0/26"},
		{name: "more than input", concurrency: 100, cidr: "192.0.2.0/29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProber{delay: func(netrange.Address) time.Duration { return 2 * time.Millisecond }}
			e, err := New(p, fakeResolver{}, Options{Concurrency: tt.concurrency})
			if err != nil {
				t.Fatal(err)
			}
			addrs := mustExpand(t, tt.cidr)
			if _, err := e.Scan(context.Background(), addrs); err != nil {
				t.Fatal(err)
			}
			limit := tt.concurrency
			if limit > len(addrs) {
				limit = len(addrs)
			}
			if got := int(p.maxSeen.Load()); got > limit {
				t.Errorf("max in flight = %d, limit %d", got, limit)
			}
			if got := int(p.calls.Load()); got != len(addrs) {
				t.Errorf("probe calls = %d, want %d", got, len(addrs))
			}
		})
	}
}

func TestScanFailuresDoNotAbort(t *testing.T) {
	addrs := mustExpand(t, "192.0.2.0/30")
	p := &fakeProber{}
	e, err := New(p, fakeResolver{}, Options{Concurrency: 2})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Scan(context.Background(), addrs)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 4 {
		t.Fatalf("got %d records", len(res.Records))
	}
	// .0 fails both probe and lookup
	first := res.Records[0]
	if first.Active() || first.Probe.Err != probe.Unreachable || first.DNS.Err != resolve.NoRecord {
		t.Errorf("record .0 = %+v", first)
	}
	if first.Status() != StatusInactive || res.Records[1].Status() != StatusActive {
		t.Errorf("unexpected statuses %q %q", first.Status(), res.Records[1].Status())
	}
}

func TestScanCapacityExceeded(t *testing.T) {
	p := &fakeProber{}
	e, err := New(p, fakeResolver{}, Options{MaxAddresses: 10})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Scan(context.Background(), mustExpand(t, "192.0.2.0/28"))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if res != nil {
		t.Error("result should be nil on capacity error")
	}
	if p.calls.Load() != 0 {
		t.Errorf("probe calls = %d, want 0", p.calls.Load())
	}
}

func TestScanEmpty(t *testing.T) {
	e, err := New(&fakeProber{}, fakeResolver{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Scan(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Records == nil || len(res.Records) != 0 || res.Incomplete {
		t.Errorf("Scan(nil) = %+v", res)
	}
}

func TestScanCancelStopsAdmission(t *testing.T) {
	addrs := mustExpand(t, "192.0.2.0/25")
	p := &fakeProber{delay: func(netrange.Address) time.Duration { return 5 * time.Millisecond }}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Int32
	e, err := New(p, fakeResolver{}, Options{
		Concurrency: 4,
		GracePeriod: 5 * time.Second,
		OnRecord: func(Record) {
			if seen.Add(1) == 10 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.Scan(ctx, addrs)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Incomplete {
		t.Error("Incomplete = false after cancellation")
	}
	calls := int(p.calls.Load())
	if calls >= len(addrs) {
		t.Errorf("all %d addresses admitted despite cancellation", calls)
	}
	// grace period is long enough for every admitted address to finish
	if len(res.Records) != calls {
		t.Errorf("records = %d, admitted = %d", len(res.Records), calls)
	}
	for i := 1; i < len(res.Records); i++ {
		if res.Records[i].Address <= res.Records[i-1].Address {
			t.Fatalf("records out of input order at %d", i)
		}
	}
	if res.Summary.Completed() != len(res.Records) || res.Summary.Total != len(addrs) {
		t.Errorf("Summary = %+v", res.Summary)
	}

	time.Sleep(20 * time.Millisecond)
	if after := int(p.calls.Load()); after != calls {
		t.Errorf("probes started after Scan returned: %d -> %d", calls, after)
	}
}

func TestScanCancelDiscardsAbandonedWork(t *testing.T) {
	addrs := mustExpand(t, "192.0.2.0/29")
	// even addresses hang until their work is abandoned
	p := &fakeProber{block: func(a netrange.Address) bool { return a.Octet(3)%2 == 0 }}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Int32
	e, err := New(p, fakeResolver{}, Options{
		Concurrency: len(addrs),
		GracePeriod: 20 * time.Millisecond,
		OnRecord: func(Record) {
			if seen.Add(1) == 4 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	res, err := e.Scan(ctx, addrs)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Scan() took %s after cancellation", elapsed)
	}
	if !res.Incomplete || len(res.Records) != 4 {
		t.Fatalf("Incomplete=%v records=%d, want true/4", res.Incomplete, len(res.Records))
	}
	for i, r := range res.Records {
		if want := addrs[2*i+1]; r.Address != want {
			t.Errorf("record %d = %s, want %s", i, r.Address, want)
		}
	}
	if res.Summary.Active != 4 || res.Summary.Inactive != 0 {
		t.Errorf("Summary = %+v", res.Summary)
	}
}

func TestScanCancelledBeforeStart(t *testing.T) {
	p := &fakeProber{}
	e, err := New(p, fakeResolver{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Scan(ctx, mustExpand(t, "192.0.2.0/28"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Incomplete || len(res.Records) != 0 || p.calls.Load() != 0 {
		t.Errorf("Incomplete=%v records=%d calls=%d", res.Incomplete, len(res.Records), p.calls.Load())
	}
}

func TestScanStages(t *testing.T) {
	var mu sync.Mutex
	stages := map[netrange.Address][]Stage{}
	e, err := New(&fakeProber{}, fakeResolver{}, Options{
		Concurrency: 3,
		OnStage: func(a netrange.Address, s Stage) {
			mu.Lock()
			stages[a] = append(stages[a], s)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	addrs := mustExpand(t, "192.0.2.0/29")
	if _, err := e.Scan(context.Background(), addrs); err != nil {
		t.Fatal(err)
	}
	for _, a := range addrs {
		got := stages[a]
		if len(got) != 3 || got[0] != StageProbing || got[1] != StageResolving || got[2] != StageComplete {
			t.Errorf("%s stages = %v", a, got)
		}
	}
}

func TestScanPrioritized(t *testing.T) {
	p := &fakeProber{}
	e, err := New(p, fakeResolver{}, Options{Concurrency: 1, Prioritize: true})
	if err != nil {
		t.Fatal(err)
	}
	addrs := mustExpand(t, "192.0.2.0/24")
	res, err := e.Scan(context.Background(), addrs)
	if err != nil {
		t.Fatal(err)
	}
	if p.order[0].String() != "192.0.2.1" || p.order[1].String() != "192.0.2.254" {
		t.Errorf("first admitted = %s, %s", p.order[0], p.order[1])
	}
	if last := p.order[len(p.order)-1].String(); last != "192.0.2.255" {
		t.Errorf("last admitted = %s", last)
	}
	// output order is still input order
	for i, r := range res.Records {
		if r.Address != addrs[i] {
			t.Fatalf("record %d = %s", i, r.Address)
		}
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{"10.0.0.1", PriorityTier1},
		{"10.0.0.254", PriorityTier1},
		{"10.0.0.3", PriorityTier2},
		{"10.0.0.8", PriorityTier3},
		{"10.0.0.100", PriorityTier4},
		{"10.0.0.120", PriorityTier5},
		{"10.0.0.30", PriorityTier6},
		{"10.0.0.0", PriorityTier7},
		{"10.0.0.255", PriorityTier7},
	}
	for _, tt := range tests {
		a, err := netrange.ParseAddress(tt.addr)
		if err != nil {
			t.Fatal(err)
		}
		if got := Priority(a); got != tt.want {
			t.Errorf("Priority(%s) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}

func TestScheduleUnprioritized(t *testing.T) {
	addrs := mustExpand(t, "192.0.2.0/30")
	order := Schedule(addrs, false)
	for i, idx := range order {
		if idx != i {
			t.Fatalf("Schedule(false) = %v", order)
		}
	}
}

func TestStageString(t *testing.T) {
	if StageResolving.String() != "resolving" || Stage(9).String() != "stage(9)" {
		t.Errorf("unexpected stage strings %q %q", StageResolving, Stage(9))
	}
}
