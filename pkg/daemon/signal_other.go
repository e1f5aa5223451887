//go:build !unix

package daemon

import "os"

// RefreshSignal is unavailable on this platform; senders report an error
// instead of signaling.
var RefreshSignal os.Signal
