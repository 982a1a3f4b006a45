package agent

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/goresolv/internal/reactor"
	"github.com/jroosing/goresolv/internal/timerwheel"
	"github.com/jroosing/goresolv/internal/wire"
)

func inlineSubmit(f func()) { f() }

func newTestReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r := reactor.New(inlineSubmit, nil)
	go r.Run()
	t.Cleanup(r.Shutdown)
	return r
}

func newTestWheel(t *testing.T) *timerwheel.Wheel {
	t.Helper()
	w := timerwheel.New(2*time.Millisecond, 64, inlineSubmit)
	go w.Run()
	t.Cleanup(w.Stop)
	return w
}

func sampleQuery() wire.Message {
	name, _ := wire.NewName("example.com.")
	return wire.Message{
		Header: wire.Header{ID: 0x1234, Flags: wire.FlagRD, QDCount: 1},
		Questions: []wire.Question{
			{Name: name, Type: wire.TypeA, Class: wire.ClassIN},
		},
	}
}

func TestUDPSendAndReceive(t *testing.T) {
	r := newTestReactor(t)

	upstream, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer upstream.Close()

	echoDone := make(chan struct{})
	go func() {
		buf := make([]byte, 2048)
		n, peer, err := upstream.ReadFromUDP(buf)
		if err != nil {
			return
		}
		_, _ = upstream.WriteToUDP(buf[:n], peer)
		close(echoDone)
	}()

	received := make(chan []byte, 1)
	a, err := Dial(r, nil, Params{Addr: upstream.LocalAddr().String(), Timeout: time.Second, Name: "test-upstream"}, TransportUDP, Callbacks{
		OnMessage: func(raw []byte) { received <- raw },
	})
	require.NoError(t, err)
	defer a.Close()

	msg := sampleQuery()
	require.NoError(t, a.SendQuery(msg))

	select {
	case got := <-received:
		decoded, err := wire.Decode(got)
		require.NoError(t, err)
		assert.Equal(t, msg.Header.ID, decoded.Header.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received over UDP")
	}

	<-echoDone
}

func TestUDPTimeoutFires(t *testing.T) {
	r := newTestReactor(t)
	w := newTestWheel(t)

	upstream, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer upstream.Close()
	// Never reply, so the agent's deadline fires.

	timedOut := make(chan struct{})
	a, err := Dial(r, w, Params{Addr: upstream.LocalAddr().String(), Timeout: 10 * time.Millisecond, Name: "silent-upstream"}, TransportUDP, Callbacks{
		OnTimeout: func() { close(timedOut) },
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.SendQuery(sampleQuery()))

	select {
	case <-timedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never fired")
	}
}

func TestUDPMessageDisarmsTimeout(t *testing.T) {
	r := newTestReactor(t)
	w := newTestWheel(t)

	upstream, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer upstream.Close()

	go func() {
		buf := make([]byte, 2048)
		n, peer, err := upstream.ReadFromUDP(buf)
		if err != nil {
			return
		}
		_, _ = upstream.WriteToUDP(buf[:n], peer)
	}()

	received := make(chan struct{}, 1)
	timedOut := make(chan struct{}, 1)
	a, err := Dial(r, w, Params{Addr: upstream.LocalAddr().String(), Timeout: 50 * time.Millisecond, Name: "fast-upstream"}, TransportUDP, Callbacks{
		OnMessage: func(raw []byte) { received <- struct{}{} },
		OnTimeout: func() { timedOut <- struct{}{} },
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.SendQuery(sampleQuery()))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}

	select {
	case <-timedOut:
		t.Fatal("timeout fired even though a message already arrived")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTCPFramedRoundTrip(t *testing.T) {
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

	received := make(chan []byte, 1)
	a, err := Dial(r, nil, Params{Addr: ln.Addr().String(), Timeout: time.Second, Name: "tcp-upstream"}, TransportTCP, Callbacks{
		OnMessage: func(raw []byte) { received <- raw },
	})
	require.NoError(t, err)
	defer a.Close()

	serverSide := <-accepted
	defer serverSide.Close()

	msg := sampleQuery()
	require.NoError(t, a.SendQuery(msg))

	// Read the framed request off the server side and echo it back split
	// across two separate writes, to exercise partial-frame reassembly.
	lenBuf := make([]byte, 2)
	_, err = readFull(serverSide, lenBuf)
	require.NoError(t, err)
	frameLen := binary.BigEndian.Uint16(lenBuf)
	body := make([]byte, frameLen)
	_, err = readFull(serverSide, body)
	require.NoError(t, err)

	full := append(append([]byte(nil), lenBuf...), body...)
	mid := len(full) / 2
	_, err = serverSide.Write(full[:mid])
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = serverSide.Write(full[mid:])
	require.NoError(t, err)

	select {
	case got := <-received:
		decoded, err := wire.Decode(got)
		require.NoError(t, err)
		assert.Equal(t, msg.Header.ID, decoded.Header.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("reassembled tcp frame never delivered")
	}
}

func TestTCPReassemblyMultipleFramesInOneRead(t *testing.T) {
	a := &Agent{transport: TransportTCP}
	a.reasm.wantLen = true

	one := []byte{0x00, 0x03, 'a', 'b', 'c'}
	two := []byte{0x00, 0x02, 'x', 'y'}
	combined := append(append([]byte(nil), one...), two...)

	frames := a.feedReassembly(combined)
	require.Len(t, frames, 2)
	assert.Equal(t, "abc", string(frames[0]))
	assert.Equal(t, "xy", string(frames[1]))
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestReactor(t)

	upstream, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer upstream.Close()

	a, err := Dial(r, nil, Params{Addr: upstream.LocalAddr().String(), Timeout: time.Second}, TransportUDP, Callbacks{})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		a.Close()
		a.Close()
	})
}

func TestCloseSuppressesLateMessages(t *testing.T) {
	r := newTestReactor(t)

	upstream, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer upstream.Close()

	received := make(chan struct{}, 1)
	a, err := Dial(r, nil, Params{Addr: upstream.LocalAddr().String(), Timeout: time.Second}, TransportUDP, Callbacks{
		OnMessage: func(raw []byte) { received <- struct{}{} },
	})
	require.NoError(t, err)

	require.NoError(t, a.SendQuery(sampleQuery()))
	a.Close()

	select {
	case <-received:
		t.Fatal("OnMessage fired after Close")
	case <-time.After(100 * time.Millisecond):
	}
}

// readFull is a small test helper mirroring io.ReadFull without importing
// io solely for this.
func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
