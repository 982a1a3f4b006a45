// Package agent implements the per-query upstream socket wrapper: a
// send/receive/close surface reworked from the teacher's blocking-I/O
// upstream client (internal/resolvers/forwarding_resolver.go's
// queryOne/queryOneAttempt/queryUpstreamTCP) into the event-driven shape
// an internal/reactor registration requires.
package agent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jroosing/goresolv/internal/reactor"
	"github.com/jroosing/goresolv/internal/timerwheel"
	"github.com/jroosing/goresolv/internal/wire"
)

// Transport selects which socket type an Agent speaks.
type Transport int

const (
	TransportUDP Transport = iota
	TransportTCP
)

func (t Transport) String() string {
	if t == TransportTCP {
		return "tcp"
	}
	return "udp"
}

// Params describes one upstream server a Query Engine may contact, with
// its own timeout, priority, and a name for logging.
type Params struct {
	Addr     string // host:port
	Timeout  time.Duration
	Priority int
	Name     string
}

// Callbacks are invoked as events arrive. They run on whatever goroutine
// the reactor's worker pool chose, never on the reactor's own dispatcher
// goroutine, so they may do real work (decode, touch the cache) but must
// not call back into the reactor synchronously from within themselves.
type Callbacks struct {
	// OnMessage fires once per complete frame: once per UDP datagram, or
	// once per reassembled TCP length-prefixed frame.
	OnMessage func(raw []byte)
	// OnTimeout fires if no message arrives before Params.Timeout elapses.
	OnTimeout func()
	// OnError fires on an unrecoverable socket error; the agent is
	// considered closed once this runs.
	OnError func(error)
}

// tcpReassembly is a two-state machine: WANT_LEN while waiting for the
// 2-byte length prefix, WANT_BODY(n) while waiting for the remaining n
// bytes of the frame.
type tcpReassembly struct {
	buf     []byte
	wantLen bool
	need    int
}

// Agent owns one socket for the lifetime of a single query attempt: a
// freshly dialed UDP socket (connected to the upstream, so the kernel
// itself filters out datagrams from any other source) or a TCP
// connection. One Agent per query attempt means dispatch is inherently by
// which Agent received a read event; the 16-bit wire message ID is not
// load-bearing for dispatch.
type Agent struct {
	r         *reactor.Reactor
	wheel     *timerwheel.Wheel
	params    Params
	transport Transport
	callbacks Callbacks

	conn     net.Conn
	socketID reactor.SocketID

	mu       sync.Mutex
	closed   bool
	timerTok timerwheel.Token
	reasm    tcpReassembly
}

// Dial opens a fresh socket to params.Addr over transport and registers it
// with r so reads arrive as Callbacks.OnMessage/OnError events. wheel may
// be nil, in which case SendQuery arms no timeout (useful in tests).
func Dial(r *reactor.Reactor, wheel *timerwheel.Wheel, params Params, transport Transport, cb Callbacks) (*Agent, error) {
	network := "udp"
	if transport == TransportTCP {
		network = "tcp"
	}
	conn, err := net.Dial(network, params.Addr)
	if err != nil {
		return nil, fmt.Errorf("agent: dial %s %s: %w", network, params.Addr, err)
	}

	a := &Agent{r: r, wheel: wheel, params: params, transport: transport, callbacks: cb, conn: conn}
	a.reasm.wantLen = true

	switch transport {
	case TransportUDP:
		udpConn, ok := conn.(*net.UDPConn)
		if !ok {
			_ = conn.Close()
			return nil, fmt.Errorf("agent: dial %s did not yield a UDP socket", params.Addr)
		}
		a.socketID = r.RegisterUDP(udpConn, a.onReadable)
	case TransportTCP:
		a.socketID = r.RegisterTCP(conn, a.onReadable)
	}
	return a, nil
}

// Params returns the upstream this agent is attached to.
func (a *Agent) Params() Params { return a.params }

// Transport returns which transport this agent speaks.
func (a *Agent) Transport() Transport { return a.transport }

// SendQuery encodes msg and writes it to the upstream: one atomic write
// for UDP, a 2-byte big-endian length prefix followed by the frame for
// TCP. net.Conn.Write already loops internally until the full buffer is
// written or an error occurs, so no residual-buffer bookkeeping or
// write-interest registration is needed here. Arms the per-agent timeout.
func (a *Agent) SendQuery(msg wire.Message) error {
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}

	out := encoded
	if a.transport == TransportTCP {
		var prefix [2]byte
		binary.BigEndian.PutUint16(prefix[:], uint16(len(encoded)))
		out = append(prefix[:], encoded...)
	}

	if _, err := a.conn.Write(out); err != nil {
		return fmt.Errorf("agent: write to %s: %w", a.params.Name, classifyNetworkError(err))
	}

	a.armTimeout()
	return nil
}

func (a *Agent) armTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wheel == nil || a.closed {
		return
	}
	a.timerTok = a.wheel.Arm(a.params.Timeout, func() {
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed && a.callbacks.OnTimeout != nil {
			a.callbacks.OnTimeout()
		}
	})
}

func (a *Agent) disarmTimeout() {
	a.mu.Lock()
	tok := a.timerTok
	a.timerTok = timerwheel.Token{}
	a.mu.Unlock()
	if a.wheel != nil {
		a.wheel.Cancel(tok)
	}
}

// onReadable is the reactor Handler registered for this agent's socket.
func (a *Agent) onReadable(data []byte, peer net.Addr, err error) {
	if err != nil {
		a.fail(err)
		return
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}

	if a.transport == TransportUDP {
		a.disarmTimeout()
		if a.callbacks.OnMessage != nil {
			a.callbacks.OnMessage(data)
		}
		return
	}

	for _, frame := range a.feedReassembly(data) {
		a.disarmTimeout()
		if a.callbacks.OnMessage != nil {
			a.callbacks.OnMessage(frame)
		}
	}
}

// feedReassembly appends data to the TCP reassembly buffer and extracts
// every complete frame it can via the WANT_LEN/WANT_BODY(n) state machine.
func (a *Agent) feedReassembly(data []byte) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reasm.buf = append(a.reasm.buf, data...)

	var frames [][]byte
	for {
		if a.reasm.wantLen {
			if len(a.reasm.buf) < 2 {
				break
			}
			a.reasm.need = int(binary.BigEndian.Uint16(a.reasm.buf[:2]))
			a.reasm.buf = a.reasm.buf[2:]
			a.reasm.wantLen = false
		}
		if len(a.reasm.buf) < a.reasm.need {
			break
		}
		frame := make([]byte, a.reasm.need)
		copy(frame, a.reasm.buf[:a.reasm.need])
		a.reasm.buf = a.reasm.buf[a.reasm.need:]
		a.reasm.wantLen = true
		frames = append(frames, frame)
	}
	return frames
}

func (a *Agent) fail(err error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.disarmTimeout()
	if errors.Is(err, io.EOF) {
		// Clean close from the peer; nothing to classify.
		if a.callbacks.OnError != nil {
			a.callbacks.OnError(fmt.Errorf("%w: connection closed", ErrNetwork))
		}
		return
	}
	if a.callbacks.OnError != nil {
		a.callbacks.OnError(classifyNetworkError(err))
	}
}

// Close disarms the timeout, deregisters from the reactor, and closes the
// socket. Idempotent.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.disarmTimeout()
	a.r.Deregister(a.socketID)
}

// classifyNetworkError maps a raw I/O error to ErrNetwork. It recognises
// refused/unreachable/reset/timed-out errnos via golang.org/x/sys/unix,
// but every error, recognised or not, is wrapped the same way, so callers
// see only ErrNetwork plus the original error's text.
func classifyNetworkError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var errno syscall.Errno
		if errors.As(opErr.Err, &errno) {
			switch errno {
			case unix.ECONNREFUSED, unix.EHOSTUNREACH, unix.ENETUNREACH, unix.ECONNRESET, unix.ETIMEDOUT:
				return fmt.Errorf("%w: %v", ErrNetwork, err)
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
