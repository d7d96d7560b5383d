package netrange

import (
	"fmt"
	"strconv"
	"strings"
)

// Block is an IPv4 CIDR block. IP keeps the host bits as written by the
// user; Network and Broadcast derive the bounds.
type Block struct {
	IP     Address
	Prefix int
}

// ParseCIDR parses <dotted-ip>/<0-32>.
func ParseCIDR(cidr string) (Block, error) {
	ipPart, prefixPart, found := strings.Cut(cidr, "/")
	if !found {
		return Block{}, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}

	ip, err := ParseAddress(ipPart)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}

	if prefixPart == "" || len(prefixPart) > 2 || (len(prefixPart) > 1 && prefixPart[0] == '0') {
		return Block{}, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}
	prefix, err := strconv.Atoi(prefixPart)
	if err != nil || prefix < 0 || prefix > 32 || prefixPart[0] == '+' || prefixPart[0] == '-' {
		return Block{}, fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}

	return Block{IP: ip, Prefix: prefix}, nil
}

// Mask returns the netmask with the top Prefix bits set.
func (b Block) Mask() Address {
	if b.Prefix <= 0 {
		return 0
	}
	return Address(uint32(0xFFFFFFFF) << uint(32-b.Prefix))
}

// Network returns the first address of the block.
func (b Block) Network() Address {
	return b.IP & b.Mask()
}

// Broadcast returns the last address of the block.
func (b Block) Broadcast() Address {
	return b.Network() | ^b.Mask()
}

// Size returns the number of addresses in the block, network and broadcast included.
func (b Block) Size() uint64 {
	return uint64(b.Broadcast()) - uint64(b.Network()) + 1
}

// Contains reports whether addr lies inside the block.
func (b Block) Contains(addr Address) bool {
	return addr&b.Mask() == b.Network()
}

// String returns the canonical network/prefix form.
func (b Block) String() string {
	return b.Network().String() + "/" + strconv.Itoa(b.Prefix)
}

// Expand returns every address of the block in ascending order.
func (b Block) Expand() []Address {
	network, broadcast := uint64(b.Network()), uint64(b.Broadcast())
	addrs := make([]Address, 0, b.Size())
	for a := network; a <= broadcast; a++ {
		addrs = append(addrs, Address(a))
	}
	return addrs
}

// Expand parses cidr and returns all of its addresses in ascending order.
func Expand(cidr string) ([]Address, error) {
	block, err := ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	return block.Expand(), nil
}

// ExpandLimit is Expand with a ceiling: blocks larger than max fail with
// ErrCapacityExceeded before anything is allocated. max <= 0 disables the check.
func ExpandLimit(cidr string, max int) ([]Address, error) {
	block, err := ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if max > 0 && block.Size() > uint64(max) {
		return nil, fmt.Errorf("%w: %s holds %d addresses, limit is %d", ErrCapacityExceeded, block, block.Size(), max)
	}
	return block.Expand(), nil
}

// Strings renders a list of addresses in dotted-decimal form.
func Strings(addrs []Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
