// Package datacenter holds the fixed Telegram datacenter endpoint tables
// and dials into them by index.
package datacenter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Port is the TCP port every Telegram datacenter listens on.
const Port = 443

// addressesV4 and addressesV6 are the two parallel, ordered endpoint
// tables indexed 0..4 by datacenter. They are immutable for the process
// lifetime.
var (
	addressesV4 = []string{
		"149.154.175.50", "149.154.167.51", "149.154.175.100",
		"149.154.167.91", "149.154.171.5",
	}

	addressesV6 = []string{
		"2001:b28:f23d:f001::a", "2001:67c:04e8:f002::a", "2001:b28:f23d:f003::a",
		"2001:67c:04e8:f004::a", "2001:b28:f23f:f005::a",
	}
)

// ErrUnknownDC is returned when a datacenter index is out of the configured
// table's bounds.
var ErrUnknownDC = errors.New("datacenter: index out of range")

// ErrNoUpstream is returned when a datacenter's address can't be reached:
// the UpstreamUnreachable case of spec's error taxonomy (connection
// refused or any other OS-level dial failure). The client is simply
// closed; this sentinel exists so callers can distinguish it from a
// handshake rejection without parsing error text.
var ErrNoUpstream = errors.New("datacenter: upstream unreachable")

// Dialer opens TCP connections; net.Dialer satisfies it. Tests substitute a
// fake.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Table resolves a datacenter index to an address, preferring IPv6 if
// configured, and dials it.
type Table struct {
	dialer     Dialer
	preferIPv6 bool
}

// New builds a Table. A nil dialer defaults to &net.Dialer{}.
func New(dialer Dialer, preferIPv6 bool) Table {
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	return Table{dialer: dialer, preferIPv6: preferIPv6}
}

func (t Table) addresses() []string {
	if t.preferIPv6 {
		return addressesV6
	}

	return addressesV4
}

// Dial opens a TCP connection to the given datacenter index (0-based, as
// decoded from a handshake preamble).
func (t Table) Dial(ctx context.Context, dc int) (net.Conn, error) {
	addrs := t.addresses()

	if dc < 0 || dc >= len(addrs) {
		return nil, fmt.Errorf("%w: %d (have %d datacenters)", ErrUnknownDC, dc, len(addrs))
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addrs[dc], fmt.Sprintf("%d", Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot dial datacenter %d: %w", ErrNoUpstream, dc, err)
	}

	return conn, nil
}
