package obfsrelay

import "time"

// ProxyConfig holds the behavioral knobs spec.md's external configuration
// loader is expected to supply.
type ProxyConfig struct {
	// FastMode enables the upstream key-reuse and identity-swap elision of
	// spec.md §4.5: skips re-encrypting the telegram->client leg.
	FastMode bool

	// PreferIPv6 selects the IPv6 datacenter table over the IPv4 one.
	PreferIPv6 bool

	// ReadBufSize is the maximum chunk size per pump read.
	ReadBufSize int

	// HandshakeTimeout bounds how long a client has to complete both the
	// client and upstream handshakes before the connection is dropped.
	HandshakeTimeout time.Duration
}

// DefaultProxyConfig returns the defaults spec.md §6 names.
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		FastMode:         true,
		PreferIPv6:       false,
		ReadBufSize:      4096,
		HandshakeTimeout: 10 * time.Second,
	}
}
