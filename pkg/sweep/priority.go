package sweep

import (
	"sort"

	"github.com/projectdiscovery/ipsweep/pkg/netrange"
)

// Priority tiers based on real-world network patterns
const (
	PriorityTier1 = 100 // .1, .254 (routers/gateways)
	PriorityTier2 = 90  // .2-.5, .250-.253 (reserved)
	PriorityTier3 = 80  // .6-.10 (early DHCP)
	PriorityTier4 = 70  // .50, .100, .150 (DHCP peaks)
	PriorityTier5 = 50  // .51-.99, .101-.149, .151-.200 (DHCP pool)
	PriorityTier6 = 20  // .11-.49, .201-.249 (long-tail)
	PriorityTier7 = 0   // .0, .255 (network/broadcast in a /24)
)

// distributionPattern maps a last-octet range to a priority tier
type distributionPattern struct {
	rangeStart int
	rangeEnd   int
	priority   int
}

var distributionPatterns = []distributionPattern{
	{rangeStart: 1, rangeEnd: 1, priority: PriorityTier1},
	{rangeStart: 254, rangeEnd: 254, priority: PriorityTier1},
	{rangeStart: 2, rangeEnd: 5, priority: PriorityTier2},
	{rangeStart: 250, rangeEnd: 253, priority: PriorityTier2},
	{rangeStart: 6, rangeEnd: 10, priority: PriorityTier3},
	{rangeStart: 50, rangeEnd: 50, priority: PriorityTier4},
	{rangeStart: 100, rangeEnd: 100, priority: PriorityTier4},
	{rangeStart: 150, rangeEnd: 150, priority: PriorityTier4},
	{rangeStart: 51, rangeEnd: 99, priority: PriorityTier5},
	{rangeStart: 101, rangeEnd: 149, priority: PriorityTier5},
	{rangeStart: 151, rangeEnd: 200, priority: PriorityTier5},
	{rangeStart: 11, rangeEnd: 49, priority: PriorityTier6},
	{rangeStart: 201, rangeEnd: 249, priority: PriorityTier6},
	{rangeStart: 0, rangeEnd: 0, priority: PriorityTier7},
	{rangeStart: 255, rangeEnd: 255, priority: PriorityTier7},
}

// Priority scores how likely addr is to be online (0-100), from its last octet.
func Priority(addr netrange.Address) int {
	last := int(addr.Octet(3))
	for _, p := range distributionPatterns {
		if last >= p.rangeStart && last <= p.rangeEnd {
			return p.priority
		}
	}
	return PriorityTier6
}

// Schedule returns the order in which the indices of addrs are admitted.
// Without prioritize it is the input order; with it, higher priority first
// and input order within a tier. Output order of a scan is unaffected.
func Schedule(addrs []netrange.Address, prioritize bool) []int {
	order := make([]int, len(addrs))
	for i := range order {
		order[i] = i
	}
	if !prioritize {
		return order
	}

	priorities := make([]int, len(addrs))
	for i, a := range addrs {
		priorities[i] = Priority(a)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return priorities[order[i]] > priorities[order[j]]
	})
	return order
}
