// Package reactor is the resolver's single-thread I/O dispatcher: one
// goroutine owns every registered socket's lifecycle and fans in their
// readable events, exactly as a single-threaded NIO selector would,
// except that each registered socket gets its own blocking-read goroutine
// feeding a shared channel rather than the process blocking in one
// multiplexed syscall. Go's `select` over that fan-in channel plus a
// command queue *is* the idiomatic rendition of the selector loop.
package reactor

import (
	"log/slog"
	"net"
	"sync"

	"github.com/jroosing/goresolv/internal/pool"
)

// SocketID names a socket registered with a Reactor, for later
// deregistration.
type SocketID uint64

// Handler processes one inbound read for a socket. It never runs on the
// dispatcher goroutine: the Reactor submits it to the worker pool, so the
// dispatcher itself never decodes a message or blocks on anything but its
// own select. When the socket's read side closes or fails, the handler
// receives nil data and the non-nil read error (io.EOF for an orderly
// close); peer is nil for TCP connections.
type Handler func(data []byte, peer net.Addr, err error)

// readBufSize is sized for the largest message this resolver ever reads
// in one shot (TCP length-prefixed frames are reassembled above this
// layer, by internal/agent, which may issue further reads).
const readBufSize = 65535

var bufferPool = pool.New(func() *[]byte {
	buf := make([]byte, readBufSize)
	return &buf
})

type registration struct {
	id      SocketID
	handler Handler
	close   func() error
}

type event struct {
	id   SocketID
	data []byte
	peer net.Addr
	err  error
}

// Reactor is the single-thread selector: Run must be invoked from exactly
// one goroutine and owns the registration map for its entire lifetime.
// Every other goroutine interacts with it only through RegisterUDP,
// RegisterTCP, Deregister, and Shutdown, which post closures onto an
// internal command channel rather than touching reactor state directly.
type Reactor struct {
	submit func(func())
	logger *slog.Logger

	events   chan event
	commands chan func()
	done     chan struct{}
	doneOnce sync.Once

	conns  map[SocketID]*registration
	nextID SocketID
}

// New builds a Reactor. submit hands a fired handler off to a worker pool;
// logger records read errors and lifecycle events.
func New(submit func(func()), logger *slog.Logger) *Reactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactor{
		submit:   submit,
		logger:   logger,
		events:   make(chan event, 256),
		commands: make(chan func()),
		done:     make(chan struct{}),
		conns:    map[SocketID]*registration{},
	}
}

// Run drives the dispatcher loop until Shutdown is called. It is the
// Reactor's only suspension point.
func (r *Reactor) Run() {
	for {
		select {
		case ev := <-r.events:
			r.dispatch(ev)
		case cmd := <-r.commands:
			cmd()
		case <-r.done:
			r.closeAllLocked()
			return
		}
	}
}

// Shutdown breaks the dispatcher out of its select, closes every
// registered socket, and stops accepting new events. Idempotent.
func (r *Reactor) Shutdown() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *Reactor) dispatch(ev event) {
	reg, ok := r.conns[ev.id]
	if !ok {
		// Deregistered between the read completing and the dispatcher
		// draining it; drop silently.
		return
	}
	handler := reg.handler
	r.submit(func() { handler(ev.data, ev.peer, ev.err) })
}

func (r *Reactor) closeAllLocked() {
	for id, reg := range r.conns {
		_ = reg.close()
		delete(r.conns, id)
	}
}

// RegisterUDP adds a UDP socket to the reactor and starts its read loop.
// handler is invoked (off the dispatcher goroutine) once per received
// datagram, with peer set to the sender's address.
func (r *Reactor) RegisterUDP(conn *net.UDPConn, handler Handler) SocketID {
	resp := make(chan SocketID, 1)
	cmd := func() {
		r.nextID++
		id := r.nextID
		r.conns[id] = &registration{id: id, handler: handler, close: conn.Close}
		go r.udpReadLoop(id, conn)
		resp <- id
	}
	select {
	case r.commands <- cmd:
	case <-r.done:
		return 0
	}
	select {
	case id := <-resp:
		return id
	case <-r.done:
		return 0
	}
}

// RegisterTCP adds a TCP connection to the reactor and starts its read
// loop. handler is invoked once per read, with whatever bytes the kernel
// had ready (not framed) — internal/agent's reassembly state machine
// turns these chunks into complete messages.
func (r *Reactor) RegisterTCP(conn net.Conn, handler Handler) SocketID {
	resp := make(chan SocketID, 1)
	cmd := func() {
		r.nextID++
		id := r.nextID
		r.conns[id] = &registration{id: id, handler: handler, close: conn.Close}
		go r.tcpReadLoop(id, conn)
		resp <- id
	}
	select {
	case r.commands <- cmd:
	case <-r.done:
		return 0
	}
	select {
	case id := <-resp:
		return id
	case <-r.done:
		return 0
	}
}

// Deregister disarms and closes a previously registered socket.
// Idempotent; deregistering an unknown or already-removed id is a no-op.
func (r *Reactor) Deregister(id SocketID) {
	ack := make(chan struct{})
	cmd := func() {
		if reg, ok := r.conns[id]; ok {
			_ = reg.close()
			delete(r.conns, id)
		}
		close(ack)
	}
	select {
	case r.commands <- cmd:
	case <-r.done:
		return
	}
	select {
	case <-ack:
	case <-r.done:
	}
}

func (r *Reactor) udpReadLoop(id SocketID, conn *net.UDPConn) {
	for {
		bufPtr := bufferPool.Get()
		n, peer, err := conn.ReadFromUDP(*bufPtr)
		if err != nil {
			bufferPool.Put(bufPtr)
			r.sendEvent(event{id: id, err: err})
			return
		}
		data := make([]byte, n)
		copy(data, (*bufPtr)[:n])
		bufferPool.Put(bufPtr)
		r.sendEvent(event{id: id, data: data, peer: peer})
	}
}

func (r *Reactor) tcpReadLoop(id SocketID, conn net.Conn) {
	for {
		bufPtr := bufferPool.Get()
		n, err := conn.Read(*bufPtr)
		if n > 0 {
			data := make([]byte, n)
			copy(data, (*bufPtr)[:n])
			bufferPool.Put(bufPtr)
			r.sendEvent(event{id: id, data: data})
		} else {
			bufferPool.Put(bufPtr)
		}
		if err != nil {
			r.sendEvent(event{id: id, err: err})
			return
		}
	}
}

// sendEvent delivers an event to the dispatcher, tolerating the reactor
// having already shut down (events channel send would otherwise block
// forever against a dispatcher that stopped reading).
func (r *Reactor) sendEvent(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}
