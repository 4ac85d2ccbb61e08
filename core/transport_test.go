package core

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNetwork(t *testing.T) {
	assert.Equal(t, "ip4:icmp", getNetwork(true))
	assert.Equal(t, "udp4", getNetwork(false))
}

func TestRestoreIdentifier(t *testing.T) {
	packet := (&Packet{Type: TypeEchoReply, ID: 5000, Seq: 3, Payload: []byte("abc")}).Marshal()

	restoreIdentifier(packet, 5000, 42)

	assert.Equal(t, uint16(42), binary.BigEndian.Uint16(packet[4:6]))
	assert.True(t, VerifyChecksum(packet))
}

func TestRestoreIdentifierKeepsInvalidChecksum(t *testing.T) {
	packet := (&Packet{Type: TypeEchoReply, ID: 5000, Seq: 3}).Marshal()
	packet[2] ^= 0xff

	restoreIdentifier(packet, 5000, 42)

	assert.Equal(t, uint16(42), binary.BigEndian.Uint16(packet[4:6]))
	assert.False(t, VerifyChecksum(packet))
}

func TestRestoreIdentifierIgnoresOthers(t *testing.T) {
	packet := (&Packet{Type: TypeEchoReply, ID: 7, Seq: 3}).Marshal()
	original := append([]byte(nil), packet...)

	restoreIdentifier(packet, 5000, 42)
	assert.Equal(t, original, packet)

	short := []byte{0, 0, 0}
	restoreIdentifier(short, 5000, 42)
	assert.Equal(t, []byte{0, 0, 0}, short)
}

// TestNetworkTransportLoopback exchanges an echo with the loopback interface, it is skipped when the
// system does not allow unprivileged ICMP sockets.
func TestNetworkTransportLoopback(t *testing.T) {
	settings := DefaultSettings()
	target := &net.IPAddr{IP: net.IPv4(127, 0, 0, 1)}

	transport, err := dialNetwork(target, settings, NewNopLogger().WithField("test", t.Name()))
	if err != nil {
		t.Skipf("unprivileged ICMP sockets unavailable: %s", err)
	}
	defer transport.Close()

	req := NewEchoRequest(4321, 1, []byte("loopback"))
	require.NoError(t, transport.Send(req.Marshal()))

	packet, src, left, err := transport.Receive(time.Second)
	require.NoError(t, err)
	if len(packet) == 0 {
		t.Skip("no echo reply from loopback")
	}

	reply, err := ParsePacket(packet)
	require.NoError(t, err)
	assert.True(t, reply.IsEchoReply())
	assert.Equal(t, req.ID, reply.ID)
	assert.Equal(t, req.Seq, reply.Seq)
	assert.Equal(t, req.Payload, reply.Payload)
	assert.NotNil(t, src)
	assert.Greater(t, left, time.Duration(0))
}

func TestNetworkTransportReceiveTimeout(t *testing.T) {
	target := &net.IPAddr{IP: net.IPv4(127, 0, 0, 1)}

	transport, err := dialNetwork(target, DefaultSettings(), NewNopLogger().WithField("test", t.Name()))
	if err != nil {
		t.Skipf("unprivileged ICMP sockets unavailable: %s", err)
	}
	defer transport.Close()

	packet, _, left, err := transport.Receive(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, packet)
	assert.Zero(t, left)

	packet, _, _, err = transport.Receive(0)
	require.NoError(t, err)
	assert.Empty(t, packet)
}
