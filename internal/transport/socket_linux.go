//go:build linux

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSocketOptions configures platform-specific socket options for Linux.
// Sets SO_REUSEADDR and SO_REUSEPORT (if kernel >= 3.9) so the bridge
// can share port 5353 with Avahi and systemd-resolved.
func setSocketOptions(fd uintptr) error {
	// SO_REUSEADDR: Allow binding to address already in use (POSIX standard)
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}

	// SO_REUSEPORT: Allow multiple sockets to bind to same port (Linux 3.9+)
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		// Fall back gracefully if kernel doesn't support SO_REUSEPORT
		// (old kernels <3.9 fail with ENOPROTOOPT)
		if err != unix.ENOPROTOOPT {
			return fmt.Errorf("failed to set SO_REUSEPORT: %w", err)
		}
	}

	return nil
}

// platformControl is the net.ListenConfig Control function for Linux.
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
