//go:build !unix && !windows

package vmem

import "os"

// OS returns a simulated page interface on platforms without virtual memory
// control.
func OS() PageInterface {
	return NewSimulated(os.Getpagesize())
}
