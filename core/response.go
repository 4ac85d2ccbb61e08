package core

import (
	"fmt"
	"net"
	"time"
)

// unreachableMessages maps Destination Unreachable codes to their meaning.
var unreachableMessages = [...]string{
	"Network Unreachable",
	"Host Unreachable",
	"Protocol Unreachable",
	"Port Unreachable",
	"Fragmentation Required",
	"Source Route Failed",
	"Network Unknown",
	"Host Unknown",
	"Source Host Isolated",
	"Communication with Destination Network is Administratively Prohibited",
	"Communication with Destination Host is Administratively Prohibited",
	"Network Unreachable for ToS",
	"Host Unreachable for ToS",
	"Communication Administratively Prohibited",
	"Host Precedence Violation",
	"Precedence Cutoff in Effect",
}

// Message is a packet together with where it was sent to and received from.
type Message struct {
	Target net.Addr
	Packet *Packet
	Source net.Addr
}

// Response is the result of a single echo request. A nil Message means the request timed out.
type Response struct {
	// Message is the matching packet received, nil when no reply arrived in time.
	Message *Message

	// Elapsed is the round-trip time, or the per-packet timeout when no reply arrived.
	Elapsed time.Duration

	// Seq is the sequence number of the request this response belongs to.
	Seq uint16
}

// Success returns whether the request was answered with an echo reply.
func (r *Response) Success() bool {
	return r.Message != nil && r.Message.Packet.IsEchoReply()
}

// ErrorMessage describes why the request failed, it is empty on success.
func (r *Response) ErrorMessage() string {
	if r.Message == nil {
		return "No response"
	}

	pkt := r.Message.Packet
	if pkt.IsEchoReply() {
		return ""
	}

	if pkt.Type == TypeDestinationUnreachable {
		if int(pkt.Code) < len(unreachableMessages) {
			return unreachableMessages[pkt.Code]
		}
		return "Unreachable"
	}

	return "Network Error"
}

// ElapsedMs is the elapsed time in milliseconds with two decimals.
func (r *Response) ElapsedMs() float64 {
	return durationMs(r.Elapsed)
}

func (r *Response) String() string {
	if r.Message == nil {
		return "Request timed out"
	}

	if r.Success() {
		return fmt.Sprintf("Reply from %s, %d bytes in %vms", r.source(), r.Message.Packet.Len(), r.ElapsedMs())
	}

	return fmt.Sprintf("%s from %s in %vms", r.ErrorMessage(), r.source(), r.ElapsedMs())
}

func (r *Response) source() string {
	if r.Message.Source == nil {
		return ""
	}
	return r.Message.Source.String()
}

// buildTimedOutResponse builds the response of a request that got no reply.
func buildTimedOutResponse(seq uint16, timeout time.Duration) *Response {
	return &Response{
		Message: nil,
		Elapsed: timeout,
		Seq:     seq,
	}
}
