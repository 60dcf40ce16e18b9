//go:build unix

package network

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func setFlag(rc syscall.RawConn, opt int) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// reuseAddr lets several portables on one host share the page port
func reuseAddr(_, _ string, c syscall.RawConn) error {
	return setFlag(c, unix.SO_REUSEADDR)
}

func enableBroadcast(conn *net.UDPConn) error {
	rc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	return setFlag(rc, unix.SO_BROADCAST)
}
