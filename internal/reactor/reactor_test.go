package reactor

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inlineSubmit(f func()) { f() }

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r := New(inlineSubmit, nil)
	go r.Run()
	t.Cleanup(r.Shutdown)
	return r
}

func TestRegisterUDPDeliversDatagram(t *testing.T) {
	r := newTestReactor(t)

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	received := make(chan string, 1)
	r.RegisterUDP(serverConn, func(data []byte, peer net.Addr, err error) {
		if err != nil {
			return
		}
		received <- string(data)
	})

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	_, err = clientConn.Write([]byte("hello reactor"))
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "hello reactor", got)
	case <-time.After(2 * time.Second):
		t.Fatal("datagram never delivered")
	}
}

func TestRegisterTCPDeliversBytes(t *testing.T) {
	r := newTestReactor(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer clientConn.Close()

	serverSide := <-accepted

	received := make(chan []byte, 1)
	r.RegisterTCP(serverSide, func(data []byte, peer net.Addr, err error) {
		if err != nil {
			return
		}
		cp := append([]byte(nil), data...)
		received <- cp
	})

	_, err = clientConn.Write([]byte("frame"))
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "frame", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("tcp bytes never delivered")
	}
}

func TestDeregisterStopsDelivery(t *testing.T) {
	r := newTestReactor(t)

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	id := r.RegisterUDP(serverConn, func(data []byte, peer net.Addr, err error) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	_, err = clientConn.Write([]byte("first"))
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	r.Deregister(id)

	_, err = clientConn.Write([]byte("second"))
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no events should be delivered after Deregister")
}

func TestShutdownClosesRegisteredSockets(t *testing.T) {
	r := New(inlineSubmit, nil)
	go r.Run()

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	closed := make(chan struct{})
	r.RegisterUDP(serverConn, func(data []byte, peer net.Addr, err error) {
		if err != nil {
			close(closed)
		}
	})

	r.Shutdown()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown never closed the registered socket")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	r := New(inlineSubmit, nil)
	go r.Run()
	assert.NotPanics(t, func() {
		r.Shutdown()
		r.Shutdown()
	})
}
