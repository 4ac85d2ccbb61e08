package core

import (
	"fmt"
	"io"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	minIntervalUnprivileged = 0.2
	minIntervalPrivileged   = 0.01
	maxInterval             = time.Hour * 24 * 365
	maxPayloadSize          = math.MaxUint16 - headerSize - 20
)

// Settings contains all configurable properties of a ping session.
type Settings struct {
	// TTL is the set IP Time to Live
	TTL int `yaml:"ttl"`

	// Count is the amount of ECHO_REQUEST packets sent before exiting, -1 means no limit.
	// It is ignored when a size sweep is configured.
	Count int `yaml:"count"`

	// Interval is the interval in seconds between a reply (or timeout) and the next send of an ECHO_REQUEST.
	Interval float64 `yaml:"interval"`

	// Timeout is the time in seconds to wait for the reply of each request.
	Timeout float64 `yaml:"timeout"`

	// Deadline is the time in seconds before ping exits regardless of how many packets have been sent or
	// received, -1 means no deadline.
	Deadline float64 `yaml:"deadline"`

	// Size is the amount of payload bytes of each request.
	Size int `yaml:"size"`

	// Payload is the content of each request, random text is used when empty.
	Payload []byte `yaml:"-"`

	// SweepStart and SweepEnd, when both set, send one request for each payload size in the range.
	SweepStart int `yaml:"sweep_start"`
	SweepEnd   int `yaml:"sweep_end"`

	// DontFragment sets the Don't Fragment flag on outgoing packets, requires privileged mode.
	DontFragment bool `yaml:"dont_fragment"`

	// Verbose defines if a line is written to Output for every response.
	Verbose bool `yaml:"verbose"`

	// Output receives the verbose lines, defaults to stdout.
	Output io.Writer `yaml:"-"`

	// MatchPayloads requires replies to carry exactly the payload that was sent.
	MatchPayloads bool `yaml:"match_payloads"`

	// VerifyChecksum discards replies whose checksum does not match their content.
	VerifyChecksum bool `yaml:"verify_checksum"`

	// SeedID is the ICMP identifier to use, 0 picks a unique one from the registry.
	SeedID int `yaml:"seed_id"`

	// IsPrivileged defines if privileged (raw ICMP sockets) or unprivileged (datagram-oriented) mode is used.
	IsPrivileged bool `yaml:"privileged"`

	// LoggingLevel is the logrus level of the session logger.
	LoggingLevel uint32 `yaml:"logging_level"`
}

// DefaultSettings returns the default settings for a ping session, change as you wish.
func DefaultSettings() *Settings {
	return &Settings{
		TTL:           64,
		Count:         4,
		Interval:      1,
		Timeout:       2,
		Deadline:      -1,
		Size:          1,
		Payload:       nil,
		SweepStart:    0,
		SweepEnd:      0,
		DontFragment:  false,
		Verbose:       false,
		MatchPayloads: false,
		SeedID:        0,
		IsPrivileged:  false,
		LoggingLevel:  uint32(log.WarnLevel),
	}
}

func (s *Settings) validate() error {
	if s.TTL <= 0 || s.TTL > math.MaxUint8 {
		return fmt.Errorf("ttl %d out of range [1, %d]", s.TTL, math.MaxUint8)
	}

	if s.Count != -1 && s.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", s.Count)
	}

	if s.Deadline != -1 && s.Deadline <= 0 {
		return fmt.Errorf("deadline must be positive, got %v", s.Deadline)
	}

	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}

	minInterval := minIntervalUnprivileged
	if s.IsPrivileged {
		minInterval = minIntervalPrivileged
	}
	if s.Interval < minInterval {
		return fmt.Errorf("interval must be at least %v seconds, got %v", minInterval, s.Interval)
	}
	if secondsToDuration(s.Interval) > maxInterval {
		return fmt.Errorf("interval %v is too large", s.Interval)
	}

	if s.Size < 0 || s.Size > maxPayloadSize {
		return fmt.Errorf("size %d out of range [0, %d]", s.Size, maxPayloadSize)
	}

	if s.SweepStart != 0 || s.SweepEnd != 0 {
		if s.SweepStart <= 0 || s.SweepEnd < s.SweepStart || s.SweepEnd > maxPayloadSize {
			return fmt.Errorf("invalid sweep range [%d, %d]", s.SweepStart, s.SweepEnd)
		}
	}

	if s.SeedID < 0 || s.SeedID > math.MaxUint16 {
		return fmt.Errorf("seed id %d out of range [0, %d]", s.SeedID, math.MaxUint16)
	}

	if s.DontFragment && !s.IsPrivileged {
		return fmt.Errorf("the don't fragment flag can only be set in privileged mode")
	}

	return nil
}

// isSweep returns whether a payload size sweep is configured.
func (s *Settings) isSweep() bool {
	return s.SweepStart > 0 && s.SweepEnd >= s.SweepStart
}

// payloadSource builds the payloads of a session: a size sweep when configured, otherwise Count
// copies of a fixed payload, otherwise nothing.
func (s *Settings) payloadSource() (PayloadSource, error) {
	if s.isSweep() {
		pattern := s.Payload
		if len(pattern) == 0 {
			pattern = RandomText(s.SweepStart)
		}
		return NewSweep(pattern, s.SweepStart, s.SweepEnd)
	}

	if s.Size > 0 || len(s.Payload) > 0 {
		payload := s.Payload
		if len(payload) == 0 {
			payload = RandomText(s.Size)
		}
		return NewRepeat(payload, s.Count), nil
	}

	return NewRepeat(nil, 0), nil
}
