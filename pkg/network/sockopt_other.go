//go:build !unix

package network

import (
	"net"
	"syscall"
)

func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}

func enableBroadcast(_ *net.UDPConn) error {
	return nil
}
