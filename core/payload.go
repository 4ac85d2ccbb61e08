package core

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// PayloadSource produces, lazily and in order, the payloads of the echo requests of a session.
type PayloadSource interface {
	// Next returns the next payload, false once the source is exhausted.
	Next() ([]byte, bool)

	// Finite returns whether the source ever runs out of payloads.
	Finite() bool
}

// repeat yields the same pattern a fixed amount of times, or forever.
type repeat struct {
	pattern []byte
	count   int
	emitted int
}

// NewRepeat returns a source yielding pattern count times. A negative count never ends.
func NewRepeat(pattern []byte, count int) PayloadSource {
	return &repeat{pattern: pattern, count: count}
}

func (r *repeat) Next() ([]byte, bool) {
	if r.count >= 0 && r.emitted >= r.count {
		return nil, false
	}
	r.emitted++
	return r.pattern, true
}

func (r *repeat) Finite() bool {
	return r.count >= 0
}

// sweep yields prefixes of an extended pattern with increasing sizes.
type sweep struct {
	pattern []byte
	next    int
	end     int
}

// NewSweep returns a source yielding payloads of sizes start to end (inclusive), built by repeating pattern.
func NewSweep(pattern []byte, start, end int) (PayloadSource, error) {
	if len(pattern) == 0 {
		return nil, fmt.Errorf("sweep pattern must not be empty")
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid sweep range [%d, %d]", start, end)
	}

	extended := bytes.Repeat(pattern, end/len(pattern)+1)[:end]
	return &sweep{pattern: extended, next: start, end: end}, nil
}

func (s *sweep) Next() ([]byte, bool) {
	if s.next > s.end {
		return nil, false
	}
	payload := s.pattern[:s.next]
	s.next++
	return payload, true
}

func (s *sweep) Finite() bool {
	return true
}

// RandomText returns size random ASCII letters.
func RandomText(size int) []byte {
	r := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))

	b := make([]byte, size)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return b
}
