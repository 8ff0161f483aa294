//go:build windows

package server

import "syscall"

// reusePortControl is a no-op on Windows: no port-sharing option is set, so
// in multi-core mode every worker socket after the first fails to bind the
// shared port and Serve returns that error. Single-core mode is unaffected.
func reusePortControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
