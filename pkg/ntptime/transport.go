package ntptime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/AndrewLester/ntptime/internal/ntp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// Transport carries request and response datagrams for a Requester.
type Transport interface {
	// Send drops any open handle, opens a fresh one and transmits packet.
	Send(packet []byte) error
	// Receive polls the open handle without blocking. It returns 0 and a
	// nil error when nothing has arrived yet.
	Receive(packet []byte) (int, error)
	Close() error
}

const defaultResolveTimeout = 5 * time.Second

// UDPTransport sends to one server over IPv4, resolving the server name on
// every send.
type UDPTransport struct {
	host     string
	port     string
	resolver Resolver
	tos      int

	conn   *net.UDPConn
	server *net.UDPAddr
}

type UDPTransportOption func(*UDPTransport)

// WithResolver replaces the system resolver.
func WithResolver(resolver Resolver) UDPTransportOption {
	return func(t *UDPTransport) {
		t.resolver = resolver
	}
}

// WithTOS sets the IPv4 type-of-service byte on outgoing requests.
func WithTOS(tos int) UDPTransportOption {
	return func(t *UDPTransport) {
		t.tos = tos
	}
}

func NewUDPTransport(host, port string, options ...UDPTransportOption) *UDPTransport {
	if port == "" {
		port = ntp.Port
	}
	transport := &UDPTransport{
		host: host,
		port: port,
	}
	for _, option := range options {
		option(transport)
	}
	if transport.resolver == nil {
		transport.resolver = NewSystemResolver()
	}
	return transport
}

func (t *UDPTransport) Send(packet []byte) error {
	if err := t.Close(); err != nil {
		debug("closing previous socket:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultResolveTimeout)
	defer cancel()
	ip, err := t.resolver.LookupIPv4(ctx, t.host)
	if err != nil {
		info("resolution failure:", err)
		return err
	}
	port, err := strconv.Atoi(t.port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", t.port, err)
	}
	server := &net.UDPAddr{IP: ip, Port: port}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		info("packet send failure:", err)
		return err
	}

	packetConn := ipv4.NewPacketConn(conn)
	if t.tos != 0 {
		if err := packetConn.SetTOS(t.tos); err != nil {
			debug("set TOS:", err)
		}
	}

	if _, err := packetConn.WriteTo(packet, nil, server); err != nil {
		conn.Close()
		info("packet send failure:", err)
		return err
	}

	t.conn = conn
	t.server = server
	info("sent packet to", t.host, "("+server.String()+")")
	return nil
}

func (t *UDPTransport) Receive(packet []byte) (int, error) {
	if t.conn == nil {
		return 0, net.ErrClosed
	}

	rawConn, err := t.conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var recvErr error
	err = rawConn.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), packet, unix.MSG_DONTWAIT)
		// Never park on the poller, this is a poll.
		return true
	})
	if err != nil {
		return 0, err
	}
	if recvErr != nil {
		if errors.Is(recvErr, syscall.EAGAIN) || errors.Is(recvErr, syscall.EWOULDBLOCK) {
			return 0, nil
		}
		return 0, recvErr
	}
	return n, nil
}

func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Server is the address the last successful send went to.
func (t *UDPTransport) Server() *net.UDPAddr {
	return t.server
}
