package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Bundle is an aggregation of sessions that run concurrently, one per target host. Each session owns
// its transport, sequence and identifier, the identifier registry is the only state they share.
type Bundle struct {
	sessions []*Session
}

// NewBundle creates one session per address, all with the same settings.
func NewBundle(addrs []string, settings *Settings) (*Bundle, error) {
	b := &Bundle{}
	for _, addr := range addrs {
		s, err := NewSession(addr, settings)
		if err != nil {
			return nil, err
		}
		b.Add(s)
	}
	return b, nil
}

// Add appends a session to the bundle, it must not have been run yet.
func (b *Bundle) Add(s *Session) {
	b.sessions = append(b.sessions, s)
}

// Sessions returns the sessions of the bundle in the order they were added.
func (b *Bundle) Sessions() []*Session {
	return b.sessions
}

// SetMetrics makes every session record its activity in m.
func (b *Bundle) SetMetrics(m *Metrics) {
	for _, s := range b.sessions {
		s.SetMetrics(m)
	}
}

// Run runs every session at the same time and waits for all of them. Cancelling ctx, or the failure
// of any session, requests the stop of the others. The first failure is returned.
func (b *Bundle) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range b.sessions {
		s := s
		g.Go(func() error {
			done := make(chan struct{})
			defer close(done)

			go func() {
				select {
				case <-ctx.Done():
					s.RequestStop()
				case <-done:
				}
			}()

			if err := s.Run(); err != nil {
				return fmt.Errorf("ping %s: %w", s.Host(), err)
			}
			return nil
		})
	}

	return g.Wait()
}

// RequestStop requests the stop of every session.
func (b *Bundle) RequestStop() {
	for _, s := range b.sessions {
		s.RequestStop()
	}
}

// Success returns whether every session is successful under option.
func (b *Bundle) Success(option SuccessOn) bool {
	if len(b.sessions) == 0 {
		return false
	}
	for _, s := range b.sessions {
		if !s.Stats.Success(option) {
			return false
		}
	}
	return true
}
