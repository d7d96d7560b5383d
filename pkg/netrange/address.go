package netrange

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress is returned when a string is not a canonical dotted-decimal IPv4 address
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	// ErrInvalidCIDR is returned when a string is not <dotted-ip>/<0-32>
	ErrInvalidCIDR = errors.New("invalid CIDR format")
	// ErrCapacityExceeded is returned when a block holds more addresses than allowed
	ErrCapacityExceeded = errors.New("address count exceeds capacity")
)

// Address is an IPv4 host address packed big-endian into 32 bits.
type Address uint32

// ParseAddress parses a canonical dotted-decimal IPv4 address.
// Leading zeros, signs and surrounding spaces are rejected so that
// ParseAddress(s).String() == s holds for every accepted s.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var addr uint32
	for _, part := range parts {
		octet, err := parseOctet(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		addr = addr<<8 | uint32(octet)
	}
	return Address(addr), nil
}

func parseOctet(s string) (uint8, error) {
	if s == "" || len(s) > 3 {
		return 0, strconv.ErrSyntax
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

// AddressFromIP converts a net.IP to an Address. ok is false for non-IPv4 input.
func AddressFromIP(ip net.IP) (Address, bool) {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, false
	}
	return Address(uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])), true
}

// String returns the dotted-decimal form.
func (a Address) String() string {
	var b [15]byte
	buf := b[:0]
	for shift := 24; shift >= 0; shift -= 8 {
		buf = strconv.AppendUint(buf, uint64(a>>uint(shift)&0xFF), 10)
		if shift > 0 {
			buf = append(buf, '.')
		}
	}
	return string(buf)
}

// IP returns the address as a 4-byte net.IP.
func (a Address) IP() net.IP {
	return net.IPv4(byte(a>>24), byte(a>>16), byte(a>>8), byte(a)).To4()
}

// Octet returns the i-th octet, 0 being the most significant.
func (a Address) Octet(i int) uint8 {
	return uint8(a >> uint(24-8*i))
}
