package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ipsweep/pkg/netrange"
	mapsutil "github.com/projectdiscovery/utils/maps"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const protocolICMP = 1

var echoPayload = []byte("ipsweep-echo")

// ICMPProber multiplexes echo requests over a single ICMP socket.
type ICMPProber struct {
	conn       net.PacketConn
	privileged bool
	id         int
	seq        atomic.Uint32
	pending    *mapsutil.SyncLockMap[int, *pendingEcho]
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// pendingEcho tracks a sent echo request waiting for its reply
type pendingEcho struct {
	ip    net.IP
	start time.Time
	reply chan echoReply
}

type echoReply struct {
	kind Kind
	at   time.Time
}

// NewICMPProber opens a raw ICMP socket, or an unprivileged datagram ICMP
// socket when raw sockets are not permitted.
func NewICMPProber() (*ICMPProber, error) {
	privileged := true
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		rawErr := err
		privileged = false
		conn, err = icmp.ListenPacket("udp4", "0.0.0.0")
		if err != nil {
			return nil, fmt.Errorf("failed to open icmp socket: %w (raw: %v)", err, rawErr)
		}
	}

	p := newICMPProber(conn, privileged)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.receive()
	}()
	return p, nil
}

func newICMPProber(conn net.PacketConn, privileged bool) *ICMPProber {
	return &ICMPProber{
		conn:       conn,
		privileged: privileged,
		id:         os.Getpid() & 0xffff,
		pending:    mapsutil.NewSyncLockMap[int, *pendingEcho](),
		done:       make(chan struct{}),
	}
}

// Privileged reports whether the prober uses a raw socket.
func (p *ICMPProber) Privileged() bool {
	return p.privileged
}

// Probe sends one echo request to addr and waits for the reply.
func (p *ICMPProber) Probe(ctx context.Context, addr netrange.Address, timeout time.Duration) Outcome {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	ip := addr.IP()
	seq := int(p.seq.Add(1) & 0xffff)
	pending := &pendingEcho{
		ip:    ip,
		start: time.Now(),
		reply: make(chan echoReply, 1),
	}
	_ = p.pending.Set(seq, pending)
	defer p.pending.Delete(seq)

	if err := p.send(ip, seq); err != nil {
		gologger.Debug().Msgf("icmp send to %s failed: %s", addr, err)
		if isUnreachable(err) {
			return Outcome{Err: Unreachable}
		}
		return Outcome{Err: TransportError}
	}

	select {
	case r := <-pending.reply:
		if r.kind != None {
			return Outcome{Err: r.kind}
		}
		return Outcome{Reachable: true, RTT: r.at.Sub(pending.start)}
	case <-ctx.Done():
		return Outcome{Err: Timeout}
	case <-p.done:
		return Outcome{Err: TransportError}
	}
}

// Close stops the receiver and releases the socket.
func (p *ICMPProber) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
		p.wg.Wait()
	})
	return err
}

func (p *ICMPProber) send(ip net.IP, seq int) error {
	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: echoPayload,
		},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("failed to marshal ICMP message: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !p.privileged {
		dst = &net.UDPAddr{IP: ip}
	}
	_, err = p.conn.WriteTo(b, dst)
	return err
}

// receive reads replies until the socket is closed
func (p *ICMPProber) receive() {
	buf := make([]byte, 1500)
	for {
		n, peer, err := p.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-p.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		p.dispatch(buf[:n], peer, time.Now())
	}
}

// dispatch matches one received ICMP message to its pending request
func (p *ICMPProber) dispatch(data []byte, peer net.Addr, at time.Time) {
	msg, err := icmp.ParseMessage(protocolICMP, data)
	if err != nil {
		return
	}

	switch msg.Type {
	case ipv4.ICMPTypeEchoReply:
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok {
			return
		}
		// the kernel rewrites the id on unprivileged sockets
		if p.privileged && echo.ID != p.id {
			return
		}
		pending, exists := p.pending.Get(echo.Seq)
		if !exists || !pending.ip.Equal(peerIP(peer)) {
			return
		}
		deliver(pending, echoReply{kind: None, at: at})

	case ipv4.ICMPTypeDestinationUnreachable:
		body, ok := msg.Body.(*icmp.DstUnreach)
		if !ok {
			return
		}
		dst, id, seq, ok := quotedEcho(body.Data)
		if !ok || (p.privileged && id != p.id) {
			return
		}
		pending, exists := p.pending.Get(seq)
		if !exists || !pending.ip.Equal(dst) {
			return
		}
		deliver(pending, echoReply{kind: Unreachable, at: at})
	}
}

// quotedEcho extracts the destination, id and sequence of the echo request
// quoted inside an ICMP error message
func quotedEcho(data []byte) (net.IP, int, int, bool) {
	h, err := ipv4.ParseHeader(data)
	if err != nil || h.Protocol != protocolICMP || len(data) < h.Len+8 {
		return nil, 0, 0, false
	}
	inner := data[h.Len:]
	if inner[0] != byte(ipv4.ICMPTypeEcho) {
		return nil, 0, 0, false
	}
	id := int(inner[4])<<8 | int(inner[5])
	seq := int(inner[6])<<8 | int(inner[7])
	return h.Dst, id, seq, true
}

func deliver(pending *pendingEcho, r echoReply) {
	select {
	case pending.reply <- r:
	default:
	}
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}

func isUnreachable(err error) bool {
	return errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH)
}
