// Package testlib holds small test doubles shared across package tests.
package testlib

import (
	"context"
	"net"

	"github.com/stretchr/testify/mock"
)

// DialerMock is a testify mock satisfying datacenter.Dialer, letting tests
// assert which address a Table.Dial call actually targeted.
type DialerMock struct {
	mock.Mock
}

func (m *DialerMock) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	args := m.Called(ctx, network, address)

	conn, _ := args.Get(0).(net.Conn)

	return conn, args.Error(1)
}
