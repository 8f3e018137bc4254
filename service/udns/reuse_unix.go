//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package udns

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl allows other mDNS responders on the host to bind the
// mDNS port too.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr == nil {
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
