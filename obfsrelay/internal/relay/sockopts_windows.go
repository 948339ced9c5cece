//go:build windows

package relay

import "net"

func setTCPNoDelay(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}

func setTCPQuickACK(net.Conn) {}
