// Package probe checks whether a single IPv4 host answers an ICMP echo request.
//
// Two implementations are provided:
//   - ICMPProber: one shared ICMP socket for every probe. A receiver goroutine
//     matches echo replies to pending requests by sequence number and peer.
//   - ExecProber: runs the system ping binary with an argument vector.
//
// Each Probe call sends exactly one request and returns within its timeout:
//
//	p, err := probe.New(probe.ModeAuto)
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//	out := p.Probe(ctx, addr, time.Second)
//
// Privilege Requirements:
//   - Raw ICMP sockets require root or CAP_NET_RAW
//   - Without them, ICMPProber uses unprivileged datagram ICMP sockets
//     (Linux net.ipv4.ping_group_range, macOS)
//   - ModeAuto falls back to ExecProber when neither socket can be opened
package probe
