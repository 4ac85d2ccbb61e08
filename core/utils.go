package core

import (
	"math"
	"time"
)

// nextSequence increments an ICMP sequence number, wrapping from 65535 to 1.
func nextSequence(seq uint16) uint16 {
	if seq == math.MaxUint16 {
		return 1
	}
	return seq + 1
}

// durationMs converts a duration into milliseconds rounded to two decimals.
func durationMs(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}

// secondsToDuration converts a float amount of seconds into a duration.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
