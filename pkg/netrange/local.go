package netrange

import (
	"net"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// LocalNetworks returns the /24 block of every private IPv4 address assigned
// to an up, non-loopback interface. Duplicates are dropped; order follows
// the interface listing.
func LocalNetworks() ([]Block, error) {
	interfaces, err := psnet.Interfaces()
	if err != nil {
		return nil, err
	}
	return localBlocks(interfaces), nil
}

func localBlocks(interfaces psnet.InterfaceStatList) []Block {
	var blocks []Block
	seen := make(map[Block]struct{})

	for _, iface := range interfaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}

		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip == nil || !ip.IsPrivate() {
				continue
			}

			v4, ok := AddressFromIP(ip)
			if !ok {
				continue
			}

			block := Block{IP: v4, Prefix: 24}
			block.IP = block.Network()
			if _, exists := seen[block]; exists {
				continue
			}
			seen[block] = struct{}{}
			blocks = append(blocks, block)
		}
	}

	return blocks
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
