package obfsrelay

import "github.com/obfs2relay/obfs2relay/obfsrelay/internal/datacenter"

// ProxyOpt configures a Proxy at construction time.
type ProxyOpt func(*Proxy)

// WithLogger attaches a Logger. Defaults to NoopLogger.
func WithLogger(logger Logger) ProxyOpt {
	return func(p *Proxy) { p.logger = logger }
}

// WithEventStream attaches an EventStream. Defaults to NoopEventStream.
func WithEventStream(stream EventStream) ProxyOpt {
	return func(p *Proxy) { p.eventStream = stream }
}

// WithDialer overrides the datacenter dialer (tests substitute a fake).
func WithDialer(dialer datacenter.Dialer) ProxyOpt {
	return func(p *Proxy) { p.dialer = dialer }
}

// WithConfig overrides the default ProxyConfig.
func WithConfig(cfg ProxyConfig) ProxyOpt {
	return func(p *Proxy) { p.config = cfg }
}
