package datacenter_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obfs2relay/obfs2relay/internal/testlib"
	"github.com/obfs2relay/obfs2relay/obfsrelay/internal/datacenter"
)

func TestDialSelectsConfiguredAddress(t *testing.T) {
	dialer := &testlib.DialerMock{}
	dialer.On("DialContext", context.Background(), "tcp", "149.154.175.100:443").
		Return(&net.TCPConn{}, nil)

	table := datacenter.New(dialer, false)

	_, err := table.Dial(context.Background(), 2)
	require.NoError(t, err)

	dialer.AssertExpectations(t)
}

func TestDialPrefersIPv6Table(t *testing.T) {
	dialer := &testlib.DialerMock{}
	dialer.On("DialContext", context.Background(), "tcp", "[2001:b28:f23d:f001::a]:443").
		Return(&net.TCPConn{}, nil)

	table := datacenter.New(dialer, true)

	_, err := table.Dial(context.Background(), 0)
	require.NoError(t, err)

	dialer.AssertExpectations(t)
}

func TestDialRejectsOutOfRangeIndex(t *testing.T) {
	table := datacenter.New(&testlib.DialerMock{}, false)

	_, err := table.Dial(context.Background(), 5)
	require.Error(t, err)
	require.True(t, errors.Is(err, datacenter.ErrUnknownDC))

	_, err = table.Dial(context.Background(), -1)
	require.Error(t, err)
}

func TestDialWrapsDialerError(t *testing.T) {
	dialer := &testlib.DialerMock{}
	dialErr := errors.New("connection refused")
	dialer.On("DialContext", context.Background(), "tcp", "149.154.175.50:443").
		Return((*net.TCPConn)(nil), dialErr)

	table := datacenter.New(dialer, false)

	_, err := table.Dial(context.Background(), 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, dialErr))
	require.True(t, errors.Is(err, datacenter.ErrNoUpstream))
}
