// Package ports opens listening sockets with friendlier errors.
package ports

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Listen opens a TCP listener on addr. An address already in use is
// reported with a hint instead of the raw syscall error.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if IsAddrInUse(err) {
			return nil, fmt.Errorf("address %s is already in use, try --listen :0 to pick a free port", addr)
		}
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return ln, nil
}

// IsAddrInUse reports whether err is an "address already in use" error.
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
