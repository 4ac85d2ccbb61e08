//go:build !linux

package core

import (
	"errors"
	"syscall"
)

func setDontFragment(c syscall.RawConn) error {
	return errors.New("the don't fragment flag is only supported on linux")
}
