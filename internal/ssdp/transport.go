package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tr1v3r/pkg/log"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"

	"github.com/tr1v3r/rctl/internal/netutil"
)

const ssdpAddr = "239.255.255.250:1900"

var groupAddr = &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: 1900}

// Transport sends and receives raw SSDP datagrams over UDP multicast.
type Transport struct {
	Interface        string // empty means every multicast interface
	UserAgent        string
	FriendlyName     string
	ControlPointUUID string
}

// Listen joins the SSDP multicast group and delivers every NOTIFY received
// until ctx is done.
func (t *Transport) Listen(ctx context.Context) (<-chan string, error) {
	ifaces, err := netutil.MulticastInterfaces(t.Interface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenMulticastUDP("udp4", &ifaces[0], groupAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s on %s: %w", ssdpAddr, ifaces[0].Name, err)
	}
	_ = conn.SetReadBuffer(65536)

	p := ipv4.NewPacketConn(conn)
	for _, iface := range ifaces[1:] {
		if err := p.JoinGroup(&iface, &net.UDPAddr{IP: groupAddr.IP}); err != nil {
			log.CtxDebug(ctx, "ssdp join group on %s fail: %v", iface.Name, err)
		}
	}

	out := make(chan string, 64)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		buf := make([]byte, 8192)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				log.CtxDebug(ctx, "ssdp read error: %v", err)
				continue
			}
			text := string(buf[:n])
			if isSearchRequest(text) {
				continue
			}
			log.CtxDebug(ctx, "ssdp datagram from %s: %q", src, text)
			select {
			case out <- text:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Search multicasts one M-SEARCH for target on every interface and delivers
// the responses received within window. The channel is closed when the
// window ends.
func (t *Transport) Search(ctx context.Context, target string, window time.Duration) (<-chan string, error) {
	ifaces, err := netutil.MulticastInterfaces(t.Interface)
	if err != nil {
		return nil, err
	}

	mx := max(1, min(int(window/time.Second), 5))
	msg := t.SearchMessage(target, mx)

	ctx, cancel := context.WithTimeout(ctx, window)
	out := make(chan string, 64)

	var g errgroup.Group
	for _, iface := range ifaces {
		g.Go(func() error { return t.searchOn(ctx, iface, msg, out) })
	}
	go func() {
		defer cancel()
		if err := g.Wait(); err != nil {
			log.CtxDebug(ctx, "ssdp search error: %v", err)
		}
		close(out)
	}()
	return out, nil
}

func (t *Transport) searchOn(ctx context.Context, iface net.Interface, msg string, out chan<- string) error {
	ip, err := netutil.FirstIPv4(iface)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip})
	if err != nil {
		return fmt.Errorf("listen on %s: %w", iface.Name, err)
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	_ = p.SetMulticastInterface(&iface)
	_ = p.SetMulticastTTL(2)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	if _, err := conn.WriteTo([]byte(msg), groupAddr); err != nil {
		return fmt.Errorf("write M-SEARCH on %s: %w", iface.Name, err)
	}

	buf := make([]byte, 8192)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return fmt.Errorf("read on %s: %w", iface.Name, err)
		}
		select {
		case out <- string(buf[:n]):
		case <-ctx.Done():
			return nil
		}
	}
}

// SearchMessage renders an M-SEARCH request.
func (t *Transport) SearchMessage(target string, mx int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "M-SEARCH * HTTP/1.1\r\nHOST: %s\r\nMAN: \"ssdp:discover\"\r\nMX: %d\r\nST: %s\r\n", ssdpAddr, mx, target)
	if t.UserAgent != "" {
		fmt.Fprintf(&b, "USER-AGENT: %s\r\n", t.UserAgent)
	}
	if t.FriendlyName != "" {
		fmt.Fprintf(&b, "CPFN.UPNP.ORG: %s\r\n", t.FriendlyName)
	}
	if t.ControlPointUUID != "" {
		fmt.Fprintf(&b, "CPUUID.UPNP.ORG: uuid:%s\r\n", t.ControlPointUUID)
	}
	b.WriteString("\r\n")
	return b.String()
}

// isSearchRequest reports M-SEARCH datagrams from other control points.
func isSearchRequest(text string) bool {
	return strings.HasPrefix(strings.ToUpper(text), "M-SEARCH")
}
