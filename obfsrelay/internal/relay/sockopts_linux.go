//go:build linux

package relay

import (
	"net"

	"golang.org/x/sys/unix"
)

// setTCPNoDelay disables Nagle's algorithm: obfuscated2 frames and MTProto
// messages are small and latency-sensitive.
func setTCPNoDelay(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}

// setTCPQuickACK asks the kernel to ACK immediately instead of delaying,
// shaving a few milliseconds off every small relayed message. Linux-only:
// TCP_QUICKACK does not exist on other platforms.
func setTCPQuickACK(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return
	}

	rawConn.Control(func(fd uintptr) { //nolint: errcheck
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
}
