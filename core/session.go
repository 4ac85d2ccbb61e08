package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrSessionStarted is returned by Run on a session that is already running.
	ErrSessionStarted = errors.New("this session has already started")

	// ErrSessionFinished is returned by Run on a session that has already finished.
	ErrSessionFinished = errors.New("this session has already finished")
)

// clock is the source of time of a session.
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// dialFunc opens the transport of a session.
type dialFunc func(target *net.IPAddr, settings *Settings, logger *log.Entry) (Transport, error)

// Session sends echo requests to a single host, one at a time, and records their outcome.
type Session struct {
	// Stats contain the responses and overall statistics of the session
	Stats Statistics

	settings *Settings

	// host is the address as given by the caller
	host string

	// addr is the resolved address of the target host
	addr *net.IPAddr

	// id is the ICMP identifier of every request of the session, valid while running.
	id uint16

	// lastSequence is the sequence number of the last sent echo request.
	lastSequence uint16

	registry  *Registry
	metrics   *Metrics
	transport Transport
	dial      dialFunc
	clock     clock

	// logger is an instance of logrus used to log activities related to this session
	logger *log.Logger

	// stopReqs is closed to request the end of the session run.
	stopReqs chan struct{}
	stopOnce sync.Once

	isStarted  atomic.Bool
	isFinished atomic.Bool

	// startHandlers are called when the session starts.
	startHandlers []func(*Session)

	// sendHandlers are called after each echo request is written.
	sendHandlers []func(*Session, *Packet)

	// responseHandlers are called after an echo request is replied or expires.
	responseHandlers []func(*Session, *Response)

	// endHandlers are called when the session ends.
	endHandlers []func(*Session)
}

// NewSession creates a new Session towards address
func NewSession(address string, settings *Settings) (*Session, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	cfg := *settings

	logger := NewLogger(cfg.LoggingLevel)

	logger.Debug("Validating settings")
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger.Infof("Resolving address %s", address)
	ipaddr, err := net.ResolveIPAddr("ip4", address)
	if err != nil {
		return nil, fmt.Errorf("error while resolving address %s: %w", address, err)
	}
	logger.Infof("Address %s resolved to IP Address %s", address, ipaddr.String())

	if cfg.Verbose && cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	s := newSession(address, ipaddr, &cfg, logger)
	if cfg.Verbose {
		s.AddResponseHandler(verboseHandler(cfg.Output))
	}

	return s, nil
}

func newSession(host string, addr *net.IPAddr, settings *Settings, logger *log.Logger) *Session {
	return &Session{
		Stats:    NewStatistics(nil),
		settings: settings,
		host:     host,
		addr:     addr,
		registry: DefaultRegistry,
		dial:     dialNetwork,
		clock:    realClock{},
		logger:   logger,
		stopReqs: make(chan struct{}),
	}
}

// SetTransport makes the session use t instead of opening its own ICMP socket. The caller keeps
// ownership of t and must close it.
func (s *Session) SetTransport(t Transport) {
	s.transport = t
}

// SetRegistry changes the registry identifiers are allocated from.
func (s *Session) SetRegistry(r *Registry) {
	s.registry = r
}

// SetMetrics makes the session record its activity in m.
func (s *Session) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Run executes the sequence of pings, returning once the payloads are exhausted, the deadline is
// reached or a stop is requested. Only transport failures are returned as errors.
func (s *Session) Run() error {
	if s.isFinished.Load() {
		return ErrSessionFinished
	}

	payloads, err := s.settings.payloadSource()
	if err != nil {
		return fmt.Errorf("could not build payloads: %w", err)
	}

	if !s.isStarted.CompareAndSwap(false, true) {
		return ErrSessionStarted
	}

	id, release, err := s.acquireID()
	if err != nil {
		return err
	}
	defer release()
	s.id = id

	logger := s.logger.WithFields(log.Fields{"target": s.addr.String(), "id": id})
	logger.Info("Session started")

	start := s.clock.Now()
	s.Stats.SessionStarted(start)
	defer s.finish(logger)

	transport := s.transport
	if transport == nil {
		transport, err = s.dial(s.addr, s.settings, logger)
		if err != nil {
			return err
		}
		defer transport.Close()
	}

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
		defer s.metrics.SessionsActive.Dec()
	}

	for _, f := range s.startHandlers {
		f(s)
	}

	if !payloads.Finite() && !s.isDeadlineActive() {
		logger.Warn("No count nor deadline configured, the session runs until it is stopped")
	}

	seq := uint16(1)
	payload, ok := payloads.Next()
	for ok {
		if s.stopRequested() {
			logger.Info("Stop requested")
			return nil
		}

		s.lastSequence = seq
		rsp, err := s.attempt(transport, logger, seq, payload)
		if err != nil {
			return err
		}
		s.processResponse(rsp)

		if s.reachedDeadline(start) {
			logger.Info("Not firing more requests as the deadline would be exceeded")
			return nil
		}

		payload, ok = payloads.Next()
		if !ok {
			break
		}

		logger.Debugf("Waiting %s before the next request", s.getIntervalDuration())
		if !s.waitInterval() {
			logger.Info("Stop requested")
			return nil
		}

		seq = nextSequence(seq)
	}

	logger.Info("Not firing more requests as there are no payloads left")
	return nil
}

// RequestStop requests the stop of the session. It is honored between two requests.
func (s *Session) RequestStop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Requesting to end session")
		close(s.stopReqs)
	})
}

// IsStarted returns whether this session is started
func (s *Session) IsStarted() bool {
	return s.isStarted.Load()
}

// IsFinished returns whether this session is finished
func (s *Session) IsFinished() bool {
	return s.isFinished.Load()
}

// Address is the resolved address of the target host in this session
func (s *Session) Address() net.Addr {
	return s.addr
}

// Host is the target host as given when the session was created
func (s *Session) Host() string {
	return s.host
}

// ID is the ICMP identifier of the session, only meaningful once it has started
func (s *Session) ID() uint16 {
	return s.id
}

// Settings returns a copy of the settings of the session
func (s *Session) Settings() Settings {
	return *s.settings
}

// AddStartHandler adds a handler function that will be called when the session starts
func (s *Session) AddStartHandler(handler func(*Session)) {
	s.startHandlers = append(s.startHandlers, handler)
}

// AddSendHandler adds a handler function that will be called after an echo request is sent
func (s *Session) AddSendHandler(handler func(*Session, *Packet)) {
	s.sendHandlers = append(s.sendHandlers, handler)
}

// AddResponseHandler adds a handler function that will be called after an echo request is replied or expires
func (s *Session) AddResponseHandler(handler func(*Session, *Response)) {
	s.responseHandlers = append(s.responseHandlers, handler)
}

// AddEndHandler adds a handler function that will be called when the session ends
func (s *Session) AddEndHandler(handler func(*Session)) {
	s.endHandlers = append(s.endHandlers, handler)
}

// acquireID returns the seed identifier if configured, otherwise one reserved from the registry.
func (s *Session) acquireID() (uint16, func(), error) {
	if s.settings.SeedID != 0 {
		return uint16(s.settings.SeedID), func() {}, nil
	}

	id, release, err := s.registry.Acquire()
	if err != nil {
		return 0, nil, fmt.Errorf("could not allocate an ICMP identifier: %w", err)
	}
	return id, release, nil
}

// attempt sends one echo request and waits for its reply.
func (s *Session) attempt(t Transport, logger *log.Entry, seq uint16, payload []byte) (*Response, error) {
	req := NewEchoRequest(s.id, seq, payload)
	msg := req.Marshal()

	logger.Debugf("Sending echo request seq %d with %d bytes of payload", seq, len(payload))
	if err := t.Send(msg); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EchoRequests.Inc()
	}
	for _, f := range s.sendHandlers {
		f(s, req)
	}

	return s.listenFor(t, logger, req)
}

// listenFor receives packets until one matches req or the timeout budget is spent. Packets that do
// not match consume the budget too.
func (s *Session) listenFor(t Transport, logger *log.Entry, req *Packet) (*Response, error) {
	timeout := s.getTimeoutDuration()
	remaining := timeout

	for remaining > 0 {
		raw, src, left, err := t.Receive(remaining)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			break
		}
		remaining = min(remaining, left)

		if s.settings.VerifyChecksum && !VerifyChecksum(raw) {
			logger.Debugf("Discarding packet from %s with an invalid checksum", src)
			continue
		}

		reply, err := ParsePacket(raw)
		if err != nil {
			logger.Debugf("Discarding packet from %s: %s", src, err)
			continue
		}

		if !s.matches(req, reply) {
			logger.Tracef("Received packet type %d id %d seq %d was not a match", reply.Type, reply.ID, reply.Seq)
			continue
		}

		return &Response{
			Message: &Message{Target: s.addr, Packet: reply, Source: src},
			Elapsed: timeout - remaining,
			Seq:     req.Seq,
		}, nil
	}

	logger.Debugf("Echo request seq %d timed out", req.Seq)
	return buildTimedOutResponse(req.Seq, timeout), nil
}

// matches returns whether reply answers req.
func (s *Session) matches(req, reply *Packet) bool {
	if reply.ID != req.ID {
		return false
	}

	// some systems deliver our own outgoing requests to the listening socket
	if reply.Type == TypeEchoRequest {
		return false
	}

	if s.settings.MatchPayloads && !bytes.Equal(reply.Payload, req.Payload) {
		return false
	}

	return true
}

// processResponse stores a response and calls all handlers for it.
func (s *Session) processResponse(r *Response) {
	s.Stats.Append(r)

	if s.metrics != nil {
		s.metrics.observe(r)
	}

	for _, f := range s.responseHandlers {
		f(s, r)
	}
}

// finish marks the session as finished and calls all end handlers.
func (s *Session) finish(logger *log.Entry) {
	s.Stats.SessionEnded(s.clock.Now())
	s.isFinished.Store(true)

	logger.Info("Calling ending callbacks")
	for _, f := range s.endHandlers {
		f(s)
	}
	logger.Info("Session ended")
}

// reachedDeadline returns whether waiting for the next request would exceed the deadline.
func (s *Session) reachedDeadline(start time.Time) bool {
	if !s.isDeadlineActive() {
		return false
	}
	elapsed := s.clock.Now().Sub(start)
	return elapsed+s.getIntervalDuration() >= s.getDeadlineDuration()
}

// waitInterval blocks for the configured interval, returning false if a stop is requested meanwhile.
func (s *Session) waitInterval() bool {
	if s.stopRequested() {
		return false
	}

	select {
	case <-s.stopReqs:
		return false
	case <-s.clock.After(s.getIntervalDuration()):
		return true
	}
}

func (s *Session) stopRequested() bool {
	select {
	case <-s.stopReqs:
		return true
	default:
		return false
	}
}

// Returns the deadline setting parsed as a duration.
func (s *Session) getDeadlineDuration() time.Duration {
	return secondsToDuration(s.settings.Deadline)
}

// Returns the interval setting parsed as a duration.
func (s *Session) getIntervalDuration() time.Duration {
	return secondsToDuration(s.settings.Interval)
}

// Returns the per request timeout parsed as a duration.
func (s *Session) getTimeoutDuration() time.Duration {
	return secondsToDuration(s.settings.Timeout)
}

// Returns whether the deadline setting is active.
func (s *Session) isDeadlineActive() bool {
	return s.settings.Deadline > 0
}

// verboseHandler writes one line per response to w.
func verboseHandler(w io.Writer) func(*Session, *Response) {
	return func(_ *Session, r *Response) {
		fmt.Fprintln(w, r)
	}
}
