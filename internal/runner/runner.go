package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
	"github.com/projectdiscovery/ipsweep/pkg/probe"
	"github.com/projectdiscovery/ipsweep/pkg/report"
	"github.com/projectdiscovery/ipsweep/pkg/resolve"
	"github.com/projectdiscovery/ipsweep/pkg/sweep"
	"github.com/projectdiscovery/utils/errkit"
	sliceutil "github.com/projectdiscovery/utils/slice"
)

// ErrScanInterrupted is returned by Run when the sweep was cancelled. The
// partial report has been exported by then.
var ErrScanInterrupted = errors.New("scan interrupted")

const (
	promptText = "Enter CIDR notation (e.g., 192.168.1.0/24): "

	forwardCacheSize = 1024
	forwardCacheTTL  = 10 * time.Minute
)

// Runner contains the internal logic of the program
type Runner struct {
	options  *Options
	prober   probe.Prober
	resolver sweep.Resolver
	engine   *sweep.Engine

	stdin  io.Reader
	stdout io.Writer
}

// NewRunner instance
func NewRunner(options *Options) (*Runner, error) {
	prober, err := probe.New(probe.Mode(options.PingMode))
	if err != nil {
		return nil, errkit.Wrap(err, "could not create prober")
	}

	var resolver sweep.Resolver
	if options.Resolver != "" {
		dnsResolver, err := resolve.NewDNSResolver(options.Resolver)
		if err != nil {
			_ = prober.Close()
			return nil, errkit.Wrapf(err, "invalid resolver %s", options.Resolver)
		}
		gologger.Verbose().Msgf("Using resolver %s", dnsResolver.Server())
		resolver = dnsResolver
	} else {
		var opts []resolve.Option
		if options.ForwardLookup {
			opts = append(opts, resolve.WithForwardLookup(forwardCacheSize, forwardCacheTTL))
		}
		resolver = resolve.NewSystemResolver(opts...)
	}

	r := &Runner{
		options:  options,
		prober:   prober,
		resolver: resolver,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
	}
	if err := r.buildEngine(); err != nil {
		_ = prober.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) buildEngine() error {
	engine, err := sweep.New(r.prober, r.resolver, sweep.Options{
		Concurrency:    clampConcurrency(r.options.Concurrency),
		ProbeTimeout:   r.options.ProbeTimeout,
		ResolveTimeout: r.options.ResolveTimeout,
		MaxAddresses:   r.options.MaxHosts,
		GracePeriod:    r.options.GracePeriod,
		Prioritize:     r.options.Prioritize,
		OnRecord:       r.printRecord,
		OnStage:        logStage,
	})
	if err != nil {
		return errkit.Wrap(err, "could not create engine")
	}
	r.engine = engine
	return nil
}

// Run the instance
func (r *Runner) Run(ctx context.Context) error {
	targets, err := r.targets()
	if err != nil {
		return err
	}

	addrs, err := expandTargets(targets, r.options.MaxHosts)
	if err != nil {
		return err
	}
	gologger.Info().Msgf("Sweeping %s addresses from %s", humanize.Comma(int64(len(addrs))), strings.Join(targets, ", "))

	result, err := r.engine.Scan(ctx, addrs)
	if err != nil {
		return errkit.Wrap(err, "could not run sweep")
	}
	gologger.Verbose().Msgf("Sweep %s finished in %s", result.ID, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(r.stdout, "\n%s\n", formatSummary(result.Summary))

	if r.options.Export {
		path, err := report.Export(r.options.Output, r.format(), result.Records)
		if err != nil {
			return errkit.Wrap(err, "could not export results")
		}
		gologger.Info().Msgf("Results exported to: %s", path)
	}

	if result.Incomplete {
		gologger.Warning().Msgf("Sweep interrupted: %d of %d addresses completed", result.Summary.Completed(), result.Summary.Total)
		return ErrScanInterrupted
	}
	return nil
}

// Close releases the prober.
func (r *Runner) Close() {
	if r.prober != nil {
		_ = r.prober.Close()
	}
}

func (r *Runner) format() report.Format {
	if r.options.JSON {
		return report.FormatJSON
	}
	return report.FormatCSV
}

// targets returns the deduplicated networks to sweep, prompting for one when
// none was given.
func (r *Runner) targets() ([]string, error) {
	if r.options.Local {
		blocks, err := netrange.LocalNetworks()
		if err != nil {
			return nil, errkit.Wrap(err, "could not list local networks")
		}
		if len(blocks) == 0 {
			return nil, errors.New("no local ipv4 network found")
		}
		targets := make([]string, 0, len(blocks))
		for _, b := range blocks {
			targets = append(targets, b.String())
		}
		return targets, nil
	}

	targets := make([]string, 0, len(r.options.Targets))
	for _, t := range r.options.Targets {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		target, err := promptTarget(r.stdin, r.stdout)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return sliceutil.Dedupe(targets), nil
}

func promptTarget(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, promptText)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errkit.Wrap(err, "could not read target")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no target specified")
	}
	return line, nil
}

// expandTargets expands every network into one ordered list. Addresses shared
// by overlapping networks are kept once, at their first position.
func expandTargets(targets []string, maxHosts int) ([]netrange.Address, error) {
	blocks := make([]netrange.Block, 0, len(targets))
	var total uint64
	for _, t := range targets {
		b, err := netrange.ParseCIDR(t)
		if err != nil {
			return nil, errkit.Wrapf(err, "invalid target %s", t)
		}
		blocks = append(blocks, b)
		total += b.Size()
	}
	if total > uint64(maxHosts) {
		return nil, errkit.Wrapf(netrange.ErrCapacityExceeded, "%s addresses requested, limit is %s (raise it with -max-hosts)", humanize.Comma(int64(total)), humanize.Comma(int64(maxHosts)))
	}

	addrs := make([]netrange.Address, 0, total)
	seen := make(map[netrange.Address]struct{}, total)
	for _, b := range blocks {
		for _, a := range b.Expand() {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			addrs = append(addrs, a)
		}
	}
	return addrs, nil
}

func logStage(addr netrange.Address, stage sweep.Stage) {
	if stage == sweep.StageProbing {
		gologger.Debug().Msgf("Pinging %s...", addr)
	}
}
