//go:build windows

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// setSocketOptions configures platform-specific socket options for Windows.
// Sets SO_REUSEADDR only: Windows does not have SO_REUSEPORT, and its
// SO_REUSEADDR already allows multiple processes to bind the same port
// (closer to BSD SO_REUSEPORT semantics than to POSIX SO_REUSEADDR).
func setSocketOptions(fd uintptr) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}

	return nil
}

// platformControl is the net.ListenConfig Control function for Windows.
func platformControl(_, _ string, c syscall.RawConn) error {
	var sockoptErr error
	err := c.Control(func(fd uintptr) {
		sockoptErr = setSocketOptions(fd)
	})
	if err != nil {
		return fmt.Errorf("raw conn control failed: %w", err)
	}
	return sockoptErr
}

// PlatformControl is the platform-specific control function for
// net.ListenConfig.
func PlatformControl(network, address string, c syscall.RawConn) error {
	return platformControl(network, address, c)
}
