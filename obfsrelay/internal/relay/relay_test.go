package relay_test

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obfs2relay/obfs2relay/obfsrelay/internal/relay"
)

type testLogger struct{}

func (testLogger) Printf(string, ...interface{}) {}

// pipeWriter adapts one end of a connection to relay.Writer by implementing
// WriteEOF as CloseWrite.
type pipeWriter struct {
	net.Conn
}

func (p pipeWriter) WriteEOF() error {
	return closeWrite(p.Conn)
}

// closeWrite half-closes conn if it supports CloseWrite, falling back to a
// full Close otherwise.
func closeWrite(conn net.Conn) error {
	type closeWriter interface{ CloseWrite() error }
	if cw, ok := conn.(closeWriter); ok {
		return cw.CloseWrite()
	}

	return conn.Close()
}

// tcpPipe returns a connected pair of loopback TCP connections. Unlike
// net.Pipe, these genuinely support CloseWrite (a TCP half-close), so
// closing one direction doesn't tear down the other: exactly the transport
// relay.Run's callers actually use in production.
func tcpPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan net.Conn, 1)

	go func() {
		conn, _ := ln.Accept()
		acceptedCh <- conn
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	accepted := <-acceptedCh
	require.NotNil(t, accepted)

	return dialed, accepted
}

func TestRunCopiesBothDirectionsAndPropagatesEOF(t *testing.T) {
	clientA, clientB := tcpPipe(t)
	upstreamA, upstreamB := tcpPipe(t)

	defer clientB.Close()
	defer upstreamB.Close()

	var toUpstream, toClient int64

	done := make(chan struct{})

	go func() {
		relay.Run(
			testLogger{},
			clientA, upstreamA,
			clientA, pipeWriter{clientA},
			upstreamA, pipeWriter{upstreamA},
			4096,
			relay.Hooks{
				OnBytes: func(up bool, n int) {
					if up {
						atomic.AddInt64(&toUpstream, int64(n))
					} else {
						atomic.AddInt64(&toClient, int64(n))
					}
				},
			},
		)
		close(done)
	}()

	go func() {
		clientB.Write([]byte("hello upstream"))
		closeWrite(clientB)
	}()

	buf, err := io.ReadAll(upstreamB)
	require.NoError(t, err)
	require.Equal(t, "hello upstream", string(buf))

	upstreamB.Write([]byte("hello client"))
	closeWrite(upstreamB)

	clientBuf, err := io.ReadAll(clientB)
	require.NoError(t, err)
	require.Equal(t, "hello client", string(clientBuf))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay.Run did not return after both legs closed")
	}

	require.EqualValues(t, len("hello upstream"), atomic.LoadInt64(&toUpstream))
	require.EqualValues(t, len("hello client"), atomic.LoadInt64(&toClient))
}

func TestRunClosesOppositeLegOnWriteError(t *testing.T) {
	clientA, clientB := tcpPipe(t)
	upstreamA, upstreamB := tcpPipe(t)

	defer clientB.Close()

	// Closing upstreamB immediately makes writes to upstreamA fail once the
	// peer has answered the first one with a reset, which must not hang the
	// client->upstream pump nor the reverse one.
	upstreamB.Close()

	done := make(chan struct{})

	go func() {
		relay.Run(
			testLogger{},
			clientA, upstreamA,
			clientA, pipeWriter{clientA},
			upstreamA, pipeWriter{upstreamA},
			4096,
			relay.Hooks{},
		)
		close(done)
	}()

	// Keep the client sending until its own connection goes away, so the
	// client->upstream pump keeps writing into the dead upstream leg.
	go func() {
		for {
			if _, err := clientB.Write([]byte("x")); err != nil {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay.Run did not return after upstream went away")
	}
}
