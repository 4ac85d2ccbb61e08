package core

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseTimedOut(t *testing.T) {
	r := buildTimedOutResponse(3, 2*time.Second)

	assert.False(t, r.Success())
	assert.Equal(t, "No response", r.ErrorMessage())
	assert.Equal(t, 2000.0, r.ElapsedMs())
	assert.Equal(t, uint16(3), r.Seq)
	assert.Equal(t, "Request timed out", r.String())
}

func TestResponseReply(t *testing.T) {
	r := &Response{
		Message: &Message{
			Packet: &Packet{Type: TypeEchoReply, Payload: []byte("abcd")},
			Source: &net.IPAddr{IP: net.IPv4(10, 0, 0, 1)},
		},
		Elapsed: 1234567 * time.Nanosecond,
	}

	assert.True(t, r.Success())
	assert.Empty(t, r.ErrorMessage())
	assert.Equal(t, 1.23, r.ElapsedMs())
	assert.Equal(t, "Reply from 10.0.0.1, 12 bytes in 1.23ms", r.String())
}

func TestResponseUnreachableCodes(t *testing.T) {
	cases := map[uint8]string{
		0:  "Network Unreachable",
		1:  "Host Unreachable",
		3:  "Port Unreachable",
		4:  "Fragmentation Required",
		13: "Communication Administratively Prohibited",
		15: "Precedence Cutoff in Effect",
		16: "Unreachable",
		99: "Unreachable",
	}

	for code, want := range cases {
		r := &Response{Message: &Message{Packet: &Packet{Type: TypeDestinationUnreachable, Code: code}}}
		assert.False(t, r.Success())
		assert.Equal(t, want, r.ErrorMessage(), "code %d", code)
	}
}

func TestResponseNetworkError(t *testing.T) {
	r := &Response{
		Message: &Message{
			Packet: &Packet{Type: TypeTimeExceeded},
			Source: &net.IPAddr{IP: net.IPv4(192, 168, 1, 1)},
		},
		Elapsed: 5 * time.Millisecond,
	}

	assert.False(t, r.Success())
	assert.Equal(t, "Network Error", r.ErrorMessage())
	assert.Equal(t, "Network Error from 192.168.1.1 in 5ms", r.String())
}

func TestResponseReplyWithNonZeroCode(t *testing.T) {
	r := &Response{Message: &Message{Packet: &Packet{Type: TypeEchoReply, Code: 3}}}

	assert.False(t, r.Success())
	assert.Equal(t, "Network Error", r.ErrorMessage())
}
