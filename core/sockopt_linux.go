//go:build linux

package core

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setDontFragment makes the kernel set the DF bit and never fragment outgoing packets.
func setDontFragment(c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MTU_DISCOVER, unix.IP_PMTUDISC_DO)
	})
	if err != nil {
		return err
	}
	return serr
}
