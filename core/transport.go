package core

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	icmpPrivilegedNetwork   = "ip4:icmp"
	icmpUnprivilegedNetwork = "udp4"
	listenAddress           = "0.0.0.0"
	readBufferSize          = 1 << 16
)

// Transport moves raw ICMP packets between the session and the target host.
type Transport interface {
	// Send writes an encoded ICMP packet to the target.
	Send(packet []byte) error

	// Receive waits at most timeout for a packet. It returns the packet, where it came from and how much
	// of timeout is left. An empty packet with a nil error means timeout expired without any packet.
	Receive(timeout time.Duration) (packet []byte, src net.Addr, left time.Duration, err error)

	// Close releases the underlying socket.
	Close() error
}

// networkTransport is a Transport backed by an ICMP socket.
type networkTransport struct {
	conn   net.PacketConn
	target net.Addr
	logger *log.Entry

	// datagram sockets get their echo identifier rewritten by the kernel, the one we sent is
	// restored on incoming packets
	datagram bool
	sentID   uint16
	hasSent  bool

	buffer []byte
}

// dialNetwork opens and configures an ICMP socket towards target.
func dialNetwork(target *net.IPAddr, settings *Settings, logger *log.Entry) (Transport, error) {
	network := getNetwork(settings.IsPrivileged)
	logger.Infof("Starting to listen to packets in network %s", network)

	var conn net.PacketConn
	var dst net.Addr
	var err error
	if settings.IsPrivileged {
		conn, err = listenPrivileged(settings)
		dst = target
	} else {
		conn, err = listenUnprivileged(settings)
		// The provided dst must be net.UDPAddr when conn is a non-privileged
		// datagram-oriented ICMP endpoint.
		dst = &net.UDPAddr{IP: target.IP, Zone: target.Zone}
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Connection to listen to packets successfully created and configured")

	return &networkTransport{
		conn:     conn,
		target:   dst,
		logger:   logger,
		datagram: !settings.IsPrivileged,
		buffer:   make([]byte, readBufferSize),
	}, nil
}

func listenPrivileged(settings *Settings) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			if !settings.DontFragment {
				return nil
			}
			return setDontFragment(c)
		},
	}

	conn, err := lc.ListenPacket(context.Background(), icmpPrivilegedNetwork, listenAddress)
	if err != nil {
		return nil, fmt.Errorf("could not listen to ICMP packets: %w", err)
	}

	if err := ipv4.NewPacketConn(conn).SetTTL(settings.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not set TTL in connection: %w", err)
	}

	return conn, nil
}

func listenUnprivileged(settings *Settings) (net.PacketConn, error) {
	conn, err := icmp.ListenPacket(icmpUnprivilegedNetwork, listenAddress)
	if err != nil {
		return nil, fmt.Errorf("could not listen to ICMP packets: %w", err)
	}

	if err := conn.IPv4PacketConn().SetTTL(settings.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not set TTL in connection: %w", err)
	}

	return conn, nil
}

func (t *networkTransport) Send(packet []byte) error {
	t.logger.Tracef("Writing ICMP message %x to address %s", packet, t.target)

	if len(packet) >= headerSize {
		t.sentID = binary.BigEndian.Uint16(packet[4:6])
		t.hasSent = true
	}

	if _, err := t.conn.WriteTo(packet, t.target); err != nil {
		return fmt.Errorf("error while sending echo request: %w", err)
	}
	return nil
}

func (t *networkTransport) Receive(timeout time.Duration) ([]byte, net.Addr, time.Duration, error) {
	if timeout <= 0 {
		return nil, nil, 0, nil
	}

	start := time.Now()
	if err := t.conn.SetReadDeadline(start.Add(timeout)); err != nil {
		return nil, nil, 0, fmt.Errorf("error while setting read deadline: %w", err)
	}

	n, peer, err := t.conn.ReadFrom(t.buffer)
	left := timeout - time.Since(start)
	if left < 0 {
		left = 0
	}

	if err != nil {
		var neterr net.Error
		if errors.As(err, &neterr) && neterr.Timeout() {
			t.logger.Trace("Read deadline has expired")
			return nil, nil, 0, nil
		}
		return nil, nil, left, fmt.Errorf("error while reading from connection: %w", err)
	}

	packet := make([]byte, n)
	copy(packet, t.buffer[:n])

	if t.datagram && t.hasSent {
		if local, ok := t.conn.LocalAddr().(*net.UDPAddr); ok {
			restoreIdentifier(packet, uint16(local.Port), t.sentID)
		}
	}

	t.logger.Tracef("Raw packet received: %x", packet)
	return packet, peer, left, nil
}

func (t *networkTransport) Close() error {
	return t.conn.Close()
}

// restoreIdentifier replaces the identifier the kernel assigned to a datagram socket by the one
// that was sent, keeping the checksum valid when it was valid.
func restoreIdentifier(packet []byte, kernelID, sentID uint16) {
	if len(packet) < headerSize || kernelID == sentID {
		return
	}
	if binary.BigEndian.Uint16(packet[4:6]) != kernelID {
		return
	}

	valid := VerifyChecksum(packet)
	binary.BigEndian.PutUint16(packet[4:6], sentID)
	if valid {
		binary.BigEndian.PutUint16(packet[2:4], 0)
		binary.BigEndian.PutUint16(packet[2:4], Checksum(packet))
	}
}

// getNetwork returns the appropriate ICMP network value.
func getNetwork(privileged bool) string {
	if privileged {
		return icmpPrivilegedNetwork
	}
	return icmpUnprivilegedNetwork
}
