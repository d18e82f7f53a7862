package udprelay

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xtrack"
)

// State of the reconnect supervisor.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// conn is the part of *net.UDPConn the supervisor uses.
type conn interface {
	Write(b []byte) (int, error)
	Close() error
}

type dialFunc func(addr string) (conn, error)

// supervisor owns the socket and the dispatcher's consumer slot. It loops for the
// lifetime of its context: connect, drain until the socket breaks, reconnect.
type supervisor struct {
	addr   string
	delay  time.Duration
	dial   dialFunc
	queue  *xtrack.Dispatcher
	logger *xlog.Logger
	clock  xclock.Clock
	state  atomic.Int32
}

func (s *supervisor) State() State { return State(s.state.Load()) }

func (s *supervisor) run(ctx context.Context) {
	for {
		s.state.Store(int32(Connecting))
		c, err := s.dial(s.addr)
		s.queue.ReportConnect(err)
		if err != nil {
			s.state.Store(int32(Disconnected))
			s.logger.Warn().
				Str("addr", s.addr).
				Dur("retry_in", s.delay).
				Err(err).
				Msg("xtrack: couldn't connect UDP relay")
			if !sleep(ctx, s.delay) {
				return
			}
			continue
		}

		s.state.Store(int32(Connected))
		s.logger.Debug().Str("addr", s.addr).Msg("xtrack: UDP relay connected")
		err = s.drain(ctx, c)
		_ = c.Close()
		s.state.Store(int32(Disconnected))
		if ctx.Err() != nil {
			return
		}
		s.queue.ReportConnect(err)
		s.logger.Warn().
			Str("addr", s.addr).
			Err(err).
			Msg("xtrack: UDP relay connection lost, reconnecting")
	}
}

// drain sends queued messages until ctx ends or the socket itself fails. Messages
// still queued at that point stay queued for the next connection.
func (s *supervisor) drain(ctx context.Context, c conn) error {
	for {
		msg, ok := s.queue.Next(ctx)
		if !ok {
			return ctx.Err()
		}
		start := s.clock.Now()
		_, err := c.Write(msg.Payload)
		s.queue.ReportSend(msg.Metadata, s.clock.Since(start), err)
		if err == nil {
			continue
		}
		if isConnError(err) {
			return err
		}
		s.logger.Error().
			Str("event", msg.Metadata.Event).
			Err(err).
			Msg("xtrack: couldn't send data to UDP relay")
	}
}

// isConnError reports errors that invalidate the socket, as opposed to a single
// datagram being refused or too large.
func isConnError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EBADF || errno == syscall.ENOTCONN
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// dialUDP resolves addr, binds an ephemeral local port of the same address family
// and associates the socket with the remote address.
func dialUDP(addr string) (conn, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	network, local := localAddr(remote)
	c, err := net.DialUDP(network, local, remote)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func localAddr(remote *net.UDPAddr) (string, *net.UDPAddr) {
	if remote.IP == nil || remote.IP.To4() != nil {
		return "udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0}
	}
	return "udp6", &net.UDPAddr{IP: net.IPv6unspecified, Port: 0}
}
