// Package netrange expands IPv4 CIDR blocks into ordered address lists.
//
// Addresses are plain 32-bit integers. A block expands to the closed interval
// [network, broadcast], so the network and broadcast addresses are part of the
// output:
//
//	addrs, err := netrange.Expand("10.0.0.0/30")
//	// 10.0.0.0 10.0.0.1 10.0.0.2 10.0.0.3
//
// Large prefixes expand to very large lists. Use ExpandLimit, or check
// Block.Size before calling Block.Expand, when the input is not trusted:
//
//	addrs, err := netrange.ExpandLimit("0.0.0.0/8", 65536)
//	// errors.Is(err, netrange.ErrCapacityExceeded) == true
//
// Only IPv4 is supported.
package netrange
