package sweep

import (
	"fmt"
	"time"

	"github.com/projectdiscovery/ipsweep/pkg/netrange"
	"github.com/projectdiscovery/ipsweep/pkg/probe"
	"github.com/projectdiscovery/ipsweep/pkg/resolve"
)

// Status values of a record
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Stage is the progress of one address through the engine.
type Stage int

const (
	StagePending Stage = iota
	StageProbing
	StageResolving
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageProbing:
		return "probing"
	case StageResolving:
		return "resolving"
	case StageComplete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Record is the outcome for one scanned address. Records are never modified
// after the engine emits them.
type Record struct {
	Address netrange.Address
	Probe   probe.Outcome
	DNS     resolve.Outcome
}

// Active reports whether the host answered the probe.
func (r Record) Active() bool {
	return r.Probe.Reachable
}

// Status returns "active" or "inactive".
func (r Record) Status() string {
	if r.Probe.Reachable {
		return StatusActive
	}
	return StatusInactive
}

// Summary holds aggregate counts. Active+Inactive is the number of completed
// records; Total is the number of addresses submitted.
type Summary struct {
	Active   int
	Inactive int
	Total    int
}

// Completed returns the number of records produced.
func (s Summary) Completed() int {
	return s.Active + s.Inactive
}

// Result is the output of one scan.
type Result struct {
	ID         string
	Records    []Record
	Summary    Summary
	Incomplete bool
	StartedAt  time.Time
	FinishedAt time.Time
}
