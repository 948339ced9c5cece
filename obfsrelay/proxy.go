// Package obfsrelay implements the obfuscated2 Telegram relay: it accepts
// obfuscated2 client connections, authenticates them against a table of
// shared secrets, dials the datacenter the client asked for, and splices the
// two connections together.
package obfsrelay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obfs2relay/obfs2relay/obfsrelay/internal/datacenter"
	"github.com/obfs2relay/obfs2relay/obfsrelay/internal/obfuscated2"
	"github.com/obfs2relay/obfs2relay/obfsrelay/internal/relay"
)

// Proxy is the C6 connection supervisor: it owns the user table, the
// per-user stats, the datacenter dialer, and drives every accepted
// connection through the client handshake, the upstream handshake, and the
// splice.
type Proxy struct {
	users       UserTable
	userSecrets []obfuscated2.UserSecret
	stats       *StatsRegistry
	dc          datacenter.Table
	dialer      datacenter.Dialer
	config      ProxyConfig
	logger      Logger
	eventStream EventStream

	streamSeq atomic.Uint64

	wg sync.WaitGroup
}

// NewProxy builds a Proxy for the given user table. Returns an error if the
// table fails UserTable.Validate.
func NewProxy(users UserTable, opts ...ProxyOpt) (*Proxy, error) {
	if err := users.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user table: %w", err)
	}

	p := &Proxy{
		users:       users,
		stats:       NewStatsRegistry(users),
		config:      DefaultProxyConfig(),
		logger:      NoopLogger{},
		eventStream: NoopEventStream{},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.userSecrets = make([]obfuscated2.UserSecret, len(users))
	for i, u := range users {
		secret := u.Secret
		p.userSecrets[i] = obfuscated2.UserSecret{Name: u.Name, Secret: secret[:]}
	}

	p.dc = datacenter.New(p.dialer, p.config.PreferIPv6)

	return p, nil
}

// Stats returns the registry tracking every configured user's counters.
func (p *Proxy) Stats() *StatsRegistry { return p.stats }

// nextStreamID hands out a process-unique, monotonically increasing id to
// tag every event a single connection emits.
func (p *Proxy) nextStreamID() string {
	return strconv.FormatUint(p.streamSeq.Add(1), 36)
}

// Serve accepts connections from listener until it errors or ctx is
// cancelled, spawning one goroutine per connection. It never bounds
// concurrency: each connection is cheap (two pumps, no buffering beyond
// ReadBufSize), so a worker pool would only add latency spent queueing.
func (p *Proxy) Serve(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("accept failed: %w", err)
		}

		p.wg.Add(1)

		go func() {
			defer p.wg.Done()
			p.ServeConn(ctx, conn)
		}()
	}
}

// Shutdown stops accepting new work: callers are expected to have already
// closed the listener passed to Serve. It blocks until every in-flight
// connection's pumps have returned, then shuts the event stream down.
func (p *Proxy) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.eventStream.Shutdown()

	return nil
}

// ServeConn drives a single accepted client connection through the full
// C3 -> C4 -> (fast-mode elision) -> C5 flow. It never returns an error:
// every failure is logged and the connection is closed.
func (p *Proxy) ServeConn(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()

	streamID := p.nextStreamID()
	remoteIP := remoteIPOf(clientConn)

	p.eventStream.Send(NewEventStart(streamID, remoteIP))

	if p.config.HandshakeTimeout > 0 {
		_ = clientConn.SetDeadline(time.Now().Add(p.config.HandshakeTimeout))
	}

	clientResult, err := obfuscated2.AcceptClientHandshake(clientConn, p.userSecrets)
	if err != nil {
		p.logger.BindStr("remote_ip", remoteIP.String()).InfoError("client handshake rejected", err)
		p.eventStream.Send(NewEventHandshakeRejected(streamID, remoteIP))

		return
	}

	logger := p.logger.BindStr("user", clientResult.User).BindInt("dc", clientResult.DC)
	stats := p.stats.For(clientResult.User)
	stats.addConnect()

	dialCtx := ctx
	if p.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.config.HandshakeTimeout)
		defer cancel()
	}

	upstreamConn, err := p.dc.Dial(dialCtx, clientResult.DC)
	if err != nil {
		logger.WarningError("cannot dial datacenter", err)

		return
	}
	defer upstreamConn.Close()

	var reuse *[48]byte
	if p.config.FastMode {
		reuse = &clientResult.ReuseKeys
	}

	upstreamResult, err := obfuscated2.DialUpstreamHandshake(upstreamConn, reuse)
	if err != nil {
		logger.WarningError("upstream handshake failed", err)

		return
	}

	if p.config.FastMode {
		// The datacenter's decryption keystream is now bit-identical to the
		// keystream clientResult.Writer uses to encrypt toward the client, so
		// bytes can be forwarded untouched on this leg instead of decrypted
		// and re-encrypted.
		upstreamResult.Reader.SetCipher(obfuscated2.Identity())
		clientResult.Writer.SetCipher(obfuscated2.Identity())
	}

	if err := clientConn.SetDeadline(time.Time{}); err != nil {
		logger.WarningError("cannot clear handshake deadline", err)
	}

	p.eventStream.Send(NewEventConnectedToDC(streamID, clientResult.User, remoteIP, clientResult.DC))

	bufSize := p.config.ReadBufSize
	if bufSize <= 0 {
		bufSize = 4096
	}

	hooks := relay.Hooks{
		OnPumpStart: stats.addPumpStart,
		OnPumpEnd:   stats.addPumpEnd,
		OnBytes: func(toUpstream bool, n int) {
			stats.addOctets(int64(n))
			p.eventStream.Send(NewEventTraffic(streamID, clientResult.User, uint(n), !toUpstream))
		},
	}

	relay.Run(
		relayLoggerAdapter{logger},
		clientConn, upstreamConn,
		clientResult.Reader, clientResult.Writer,
		upstreamResult.Reader, upstreamResult.Writer,
		bufSize,
		hooks,
	)

	p.eventStream.Send(NewEventFinish(streamID, clientResult.User))
}

// relayLoggerAdapter lets relay.Run's narrow Printf contract drive the
// richer Logger without the relay package knowing about it.
type relayLoggerAdapter struct {
	l Logger
}

func (a relayLoggerAdapter) Printf(msg string, args ...interface{}) {
	a.l.Debug(fmt.Sprintf(msg, args...))
}

func remoteIPOf(conn net.Conn) net.IP {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}

	return nil
}
