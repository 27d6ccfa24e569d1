//go:build aix || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package settimeofday

import (
	"golang.org/x/sys/unix"
)

// Settimeofday steps the system clock to Sec seconds and Usec microseconds
// after the Unix epoch.
func Settimeofday(Sec int64, Usec int32) error {
	timeVal := unix.Timeval{
		Sec:  Sec,
		Usec: int64(Usec),
	}
	return unix.Settimeofday(&timeVal)
}
