package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
)

// execSlack is added to the process deadline so ping can report its own timeout first
const execSlack = 500 * time.Millisecond

// ExecProber runs the system ping binary once per probe. The target is
// passed as its own argument; no shell is involved.
type ExecProber struct {
	path string
	goos string
}

// NewExecProber locates ping in PATH unless path is given.
func NewExecProber(path string) (*ExecProber, error) {
	if path == "" {
		found, err := exec.LookPath("ping")
		if err != nil {
			return nil, fmt.Errorf("failed to locate ping binary: %w", err)
		}
		path = found
	}
	return &ExecProber{path: path, goos: runtime.GOOS}, nil
}

// Probe runs a single-packet ping against addr.
func (p *ExecProber) Probe(ctx context.Context, addr netrange.Address, timeout time.Duration) Outcome {
	deadline := timeout
	if deadline > 0 {
		deadline += execSlack
	}
	ctx, cancel := withTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.path, pingArgs(p.goos, addr.String(), timeout)...)
	err := cmd.Run()
	return classifyExit(err, ctx.Err(), time.Since(start))
}

// Close is a no-op.
func (p *ExecProber) Close() error {
	return nil
}

// classifyExit maps the ping process result onto an Outcome
func classifyExit(runErr, ctxErr error, elapsed time.Duration) Outcome {
	if runErr == nil {
		return Outcome{Reachable: true, RTT: elapsed}
	}
	if ctxErr != nil {
		return Outcome{Err: Timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		// 1: no reply, 2+: ping itself failed
		if exitErr.ExitCode() == 1 {
			return Outcome{Err: Unreachable}
		}
		gologger.Debug().Msgf("ping exited with status %d", exitErr.ExitCode())
		return Outcome{Err: TransportError}
	}

	gologger.Debug().Msgf("could not run ping: %s", runErr)
	return Outcome{Err: TransportError}
}

// pingArgs builds the argument vector for a single echo request
func pingArgs(goos, target string, timeout time.Duration) []string {
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(millis(timeout), 10), target}
	case "darwin", "freebsd", "netbsd", "openbsd":
		return []string{"-n", "-c", "1", "-W", strconv.FormatInt(millis(timeout), 10), target}
	default:
		return []string{"-n", "-c", "1", "-W", strconv.FormatInt(seconds(timeout), 10), target}
	}
}

func millis(d time.Duration) int64 {
	if ms := d.Milliseconds(); ms > 0 {
		return ms
	}
	return 1000
}

func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
