package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikaelmello/echoping/core"
)

// Runner is the struct that is responsible for running the program
type Runner struct {
	bundle *core.Bundle
	sigch  chan os.Signal
	endch  chan error
}

// newRunner creates a runner with one session per address and the printers registered
func newRunner(addrs []string, settings *core.Settings, p *printer, progress bool) (*Runner, error) {
	bundle, err := core.NewBundle(addrs, settings)
	if err != nil {
		return nil, err
	}

	for _, s := range bundle.Sessions() {
		if progress {
			p.registerProgress(s)
		} else {
			p.register(s)
		}
	}

	return &Runner{
		bundle: bundle,
		sigch:  make(chan os.Signal, 1),
		endch:  make(chan error, 1),
	}, nil
}

// Start starts the runner
func (r *Runner) Start() {
	r.handleSignals()

	go func() {
		r.endch <- r.bundle.Run(context.Background())
	}()
}

// RequestStop requests the stop of every session
func (r *Runner) RequestStop() {
	r.bundle.RequestStop()
}

// Wait blocks the caller until the runner finishes
func (r *Runner) Wait() error {
	err := <-r.endch
	signal.Stop(r.sigch)
	return err
}

// handleSignals requests the stop of the sessions on interrupt or termination
func (r *Runner) handleSignals() {
	signal.Notify(r.sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-r.sigch; ok {
			r.RequestStop()
		}
	}()
}
