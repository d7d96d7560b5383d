package runner

import (
	"fmt"
	"strings"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/sweep"
)

// printRecord writes the live status of one host to stdout
func (r *Runner) printRecord(record sweep.Record) {
	gologger.Silent().Msgf("%s", formatRecord(record))
}

func formatRecord(record sweep.Record) string {
	var builder strings.Builder
	if record.Active() {
		builder.WriteString(fmt.Sprintf("%s is %s.", record.Address, au.Green("reachable")))
		if record.DNS.Hostname != "" {
			builder.WriteString(fmt.Sprintf("\n  Hostname: %s", au.Cyan(record.DNS.Hostname)))
		}
	} else {
		builder.WriteString(fmt.Sprintf("%s is %s.", record.Address, au.Red("not reachable")))
	}
	return builder.String()
}

func formatSummary(summary sweep.Summary) string {
	return fmt.Sprintf("Summary: %d active, %d inactive.", summary.Active, summary.Inactive)
}
