//go:build unix

package daemon

import (
	"os"
	"syscall"
)

// RefreshSignal interrupts the daemon's idle wait and starts a scan pass
// immediately. Nil on platforms without user-defined signals.
var RefreshSignal os.Signal = syscall.SIGUSR1
