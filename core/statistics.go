package core

import (
	"math"
	"sync"
	"time"
)

// SuccessOn is the threshold used to decide whether a series of responses is successful.
type SuccessOn int

const (
	// One requires at least one successful response
	One SuccessOn = iota + 1
	// Most requires more than half of the responses to be successful
	Most
	// All requires every response to be successful
	All
)

// Statistics provides several functions to update and retrieve stats about a session
type Statistics interface {
	SessionStarted(t time.Time)
	SessionEnded(t time.Time)
	Append(r *Response)

	GetStartTime() (time.Time, bool)
	GetEndTime() (time.Time, bool)
	Runtime() time.Duration

	Len() int
	Responses() []*Response
	Success(option SuccessOn) bool

	GetTotalSent() int
	GetTotalRecv() int
	GetPktLoss() float64

	GetRTTMax() time.Duration
	GetRTTMin() time.Duration
	GetRTTAvg() time.Duration
	GetRTTMDev() time.Duration

	RTTMaxMs() float64
	RTTMinMs() float64
	RTTAvgMs() float64
}

// statistics aggregate stats about a session
type statistics struct {
	// rttsMutex controls the append of a response and the running values
	rttsMutex sync.RWMutex

	// responses contains every response of the session, in order
	responses []*Response

	// failures is the amount of responses that were not echo replies
	failures int

	// rttsMin contains the smallest encountered elapsed time
	rttsMin time.Duration

	// rttsMax contains the largest encountered elapsed time
	rttsMax time.Duration

	// rttsAvg is the running mean of elapsed times, in nanoseconds
	rttsAvg float64

	// rttsSqAvg is the running mean of squared elapsed times, in nanoseconds squared
	rttsSqAvg float64

	// timeMutex controls updates to the times
	timeMutex sync.RWMutex

	stTime  time.Time
	started bool
	endTime time.Time
	ended   bool
}

// NewStatistics creates a Statistics struct and appends every initial response to it, in order.
func NewStatistics(initial []*Response) Statistics {
	s := &statistics{
		responses: make([]*Response, 0, len(initial)),
	}

	for _, r := range initial {
		s.Append(r)
	}

	return s
}

func (s *statistics) SessionStarted(t time.Time) {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.stTime = t
	s.started = true
}

func (s *statistics) SessionEnded(t time.Time) {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.endTime = t
	s.ended = true
}

func (s *statistics) Append(r *Response) {
	s.rttsMutex.Lock()
	defer s.rttsMutex.Unlock()

	s.responses = append(s.responses, r)
	count := float64(len(s.responses))
	elapsed := float64(r.Elapsed)

	if len(s.responses) == 1 {
		s.rttsMin = r.Elapsed
		s.rttsMax = r.Elapsed
	} else {
		if r.Elapsed > s.rttsMax {
			s.rttsMax = r.Elapsed
		}
		if r.Elapsed < s.rttsMin {
			s.rttsMin = r.Elapsed
		}
	}

	s.rttsAvg += (elapsed - s.rttsAvg) / count
	s.rttsSqAvg += (elapsed*elapsed - s.rttsSqAvg) / count

	if !r.Success() {
		s.failures++
	}
}

func (s *statistics) GetStartTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.stTime, s.started
}

func (s *statistics) GetEndTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.endTime, s.ended
}

func (s *statistics) Runtime() time.Duration {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	if !s.started || !s.ended {
		return 0
	}
	return s.endTime.Sub(s.stTime)
}

func (s *statistics) Len() int {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return len(s.responses)
}

func (s *statistics) Responses() []*Response {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	out := make([]*Response, len(s.responses))
	copy(out, s.responses)
	return out
}

// Success checks the series against the threshold. An empty series is never successful.
func (s *statistics) Success(option SuccessOn) bool {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	count := len(s.responses)
	if count == 0 {
		return false
	}

	successes := count - s.failures
	switch option {
	case One:
		return successes > 0
	case Most:
		return float64(successes)/float64(count) > 0.5
	case All:
		return s.failures == 0
	default:
		return false
	}
}

func (s *statistics) GetTotalSent() int {
	return s.Len()
}

func (s *statistics) GetTotalRecv() int {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return len(s.responses) - s.failures
}

func (s *statistics) GetPktLoss() float64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if len(s.responses) == 0 {
		return 0
	}

	return float64(s.failures) / float64(len(s.responses))
}

func (s *statistics) GetRTTMax() time.Duration {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return s.rttsMax
}

func (s *statistics) GetRTTMin() time.Duration {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return s.rttsMin
}

func (s *statistics) GetRTTAvg() time.Duration {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return time.Duration(math.Round(s.rttsAvg))
}

func (s *statistics) GetRTTMDev() time.Duration {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	variance := s.rttsSqAvg - s.rttsAvg*s.rttsAvg
	if variance <= 0 {
		return 0
	}
	return time.Duration(math.Sqrt(variance))
}

func (s *statistics) RTTMaxMs() float64 {
	return durationMs(s.GetRTTMax())
}

func (s *statistics) RTTMinMs() float64 {
	return durationMs(s.GetRTTMin())
}

func (s *statistics) RTTAvgMs() float64 {
	return durationMs(s.GetRTTAvg())
}
