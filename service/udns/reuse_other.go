//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package udns

import "syscall"

func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
