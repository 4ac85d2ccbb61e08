package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mikaelmello/echoping/core"
)

// printer writes the progress of one or more sessions to w, lines of different sessions never interleave.
type printer struct {
	w  io.Writer
	mu sync.Mutex

	// quiet omits the line of each response
	quiet bool

	// prefix starts each response line with the host it belongs to
	prefix bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

// register registers the standard callbacks to be called by the session
func (p *printer) register(s *core.Session) {
	s.AddStartHandler(p.printOnStart)
	if !p.quiet {
		s.AddResponseHandler(p.printOnResponse)
	}
	s.AddEndHandler(p.printOnEnd)
}

// registerProgress registers callbacks that print a dot per request and erase it once replied
func (p *printer) registerProgress(s *core.Session) {
	s.AddStartHandler(p.printOnStart)
	s.AddSendHandler(p.printOnSendProgress)
	s.AddResponseHandler(p.printOnResponseProgress)
	s.AddEndHandler(func(s *core.Session) {
		p.mu.Lock()
		fmt.Fprintln(p.w)
		p.mu.Unlock()

		p.printOnEnd(s)
	})
}

func (p *printer) printOnStart(s *core.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "PING %s (%s) %s of data\n", s.Host(), s.Address(), payloadDescription(s.Settings()))
}

func (p *printer) printOnResponse(s *core.Session, r *core.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prefix {
		fmt.Fprintf(p.w, "%s: ", s.Host())
	}
	fmt.Fprintf(p.w, "%s, icmp_seq=%d\n", r, r.Seq)
}

func (p *printer) printOnSendProgress(*core.Session, *core.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.w, ".")
}

func (p *printer) printOnResponseProgress(_ *core.Session, r *core.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Success() {
		fmt.Fprint(p.w, "\b \b")
	}
}

func (p *printer) printOnEnd(s *core.Session) {
	stats := s.Stats

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\n--- %s ping statistics ---\n", s.Host())
	fmt.Fprintf(p.w, "%d packets transmitted, %d received, %.0f%% packet loss, time %s\n",
		stats.GetTotalSent(), stats.GetTotalRecv(), stats.GetPktLoss()*100, stats.Runtime().Truncate(time.Millisecond))
	if stats.GetTotalRecv() > 0 {
		fmt.Fprintf(p.w, "rtt min/avg/max/mdev = %.2f/%.2f/%.2f/%.3f ms\n",
			stats.RTTMinMs(), stats.RTTAvgMs(), stats.RTTMaxMs(), durationMs(stats.GetRTTMDev()))
	}
}

// payloadDescription returns a human readable size of the payload of each request.
func payloadDescription(s core.Settings) string {
	if s.SweepStart > 0 && s.SweepEnd >= s.SweepStart {
		return fmt.Sprintf("%s to %s", humanize.IBytes(uint64(s.SweepStart)), humanize.IBytes(uint64(s.SweepEnd)))
	}

	size := s.Size
	if len(s.Payload) > 0 {
		size = len(s.Payload)
	}
	return humanize.IBytes(uint64(size))
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
