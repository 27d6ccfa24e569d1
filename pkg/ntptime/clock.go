package ntptime

import (
	"golang.org/x/sys/unix"
)

// Clock is the tick source of a Requester: a monotonic millisecond counter
// that must not wrap during a request.
type Clock interface {
	Ticks() uint64
}

// MonotonicClock reads CLOCK_MONOTONIC.
type MonotonicClock struct{}

func (MonotonicClock) Ticks() uint64 {
	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		// CLOCK_MONOTONIC is always present on the platforms we build for
		panic(err)
	}
	return uint64(now.Nano()) / 1e6
}
