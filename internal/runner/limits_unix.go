//go:build linux || darwin

package runner

import (
	"github.com/projectdiscovery/gologger"
	"golang.org/x/sys/unix"
)

// clampConcurrency lowers n to what the open file soft limit allows
func clampConcurrency(n int) int {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		gologger.Debug().Msgf("could not read open file limit: %s", err)
		return n
	}
	clamped := clampToLimit(n, limit.Cur)
	if clamped < n {
		gologger.Warning().Msgf("Concurrency lowered from %d to %d (open file limit %d)", n, clamped, limit.Cur)
	}
	return clamped
}
