package cmd

import (
	"bytes"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/mikaelmello/echoping/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoTransport answers every echo request with an echo reply
type echoTransport struct {
	mu      sync.Mutex
	pending [][]byte
}

func (t *echoTransport) Send(packet []byte) error {
	req, err := core.ParsePacket(packet)
	if err != nil {
		return err
	}

	reply := &core.Packet{Type: core.TypeEchoReply, ID: req.ID, Seq: req.Seq, Payload: req.Payload}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, reply.Marshal())
	return nil
}

func (t *echoTransport) Receive(timeout time.Duration) ([]byte, net.Addr, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return nil, nil, 0, nil
	}
	packet := t.pending[0]
	t.pending = t.pending[1:]
	return packet, &net.IPAddr{IP: net.IPv4(127, 0, 0, 1)}, timeout - time.Millisecond, nil
}

func (t *echoTransport) Close() error {
	return nil
}

func testSettings(count int) *core.Settings {
	settings := core.DefaultSettings()
	settings.Count = count
	settings.Interval = 0.2
	settings.Timeout = 0.5
	return settings
}

func newTestRunner(t *testing.T, addrs []string, settings *core.Settings, progress bool) (*Runner, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	r, err := newRunner(addrs, settings, newPrinter(out), progress)
	require.NoError(t, err)

	for _, s := range r.bundle.Sessions() {
		s.SetTransport(&echoTransport{})
	}
	return r, out
}

// TestNewRunner tests if a runner is properly initialized
func TestNewRunner(t *testing.T) {
	r, _ := newTestRunner(t, []string{"localhost", "127.0.0.1"}, testSettings(1), false)

	assert.Len(t, r.bundle.Sessions(), 2)
	assert.Empty(t, r.endch)
	assert.Empty(t, r.sigch)
}

func TestNewRunnerInvalidSettings(t *testing.T) {
	settings := testSettings(1)
	settings.TTL = 0

	_, err := newRunner([]string{"localhost"}, settings, newPrinter(&bytes.Buffer{}), false)
	assert.Error(t, err)
}

func TestRunnerPrintsSummary(t *testing.T) {
	r, out := newTestRunner(t, []string{"127.0.0.1"}, testSettings(2), false)

	r.Start()
	require.NoError(t, r.Wait())

	assert.True(t, r.bundle.Success(core.All))
	assert.Contains(t, out.String(), "PING 127.0.0.1 (127.0.0.1) 1 B of data")
	assert.Contains(t, out.String(), "icmp_seq=1")
	assert.Contains(t, out.String(), "icmp_seq=2")
	assert.Contains(t, out.String(), "2 packets transmitted, 2 received, 0% packet loss")
	assert.Contains(t, out.String(), "rtt min/avg/max/mdev")
}

func TestRunnerProgress(t *testing.T) {
	r, out := newTestRunner(t, []string{"127.0.0.1"}, testSettings(2), true)

	r.Start()
	require.NoError(t, r.Wait())

	assert.Contains(t, out.String(), ".\b \b.\b \b")
	assert.NotContains(t, out.String(), "icmp_seq")
}

// TestRequestStopWaitStops tests if when a runner is stopped, the session has really finished
func TestRequestStopWaitStops(t *testing.T) {
	r, _ := newTestRunner(t, []string{"localhost"}, testSettings(-1), false)

	r.Start()
	r.RequestStop()

	ch := make(chan error, 1)
	go func() {
		ch <- r.Wait()
	}()

	select {
	case err := <-ch:
		assert.NoError(t, err)
		for _, s := range r.bundle.Sessions() {
			assert.True(t, s.IsFinished())
		}
	case <-time.After(time.Second):
		assert.Fail(t, "Requesting stop of session did not stop session")
	}
}

// TestSigTermHandling tests if the sigterm signal really stops the run
func TestSigTermHandling(t *testing.T) {
	r, _ := newTestRunner(t, []string{"localhost"}, testSettings(-1), false)

	r.Start()

	ch := make(chan error)
	go func() {
		ch <- r.Wait()
	}()

	assert.Empty(t, ch)
	r.sigch <- syscall.SIGTERM

	select {
	case err := <-ch:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "Sigterm did not end run on time")
	}
}
