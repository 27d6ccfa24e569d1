package ntptime

import (
	"time"

	"github.com/AndrewLester/ntptime/internal/system/settimeofday"
)

// StepThreshold is the smallest difference worth stepping the clock for.
// Results only carry whole seconds, so anything under a second is noise.
const StepThreshold = time.Second

// SetSystemClock steps the system clock to unixSeconds. It needs
// CAP_SYS_TIME (or root).
func SetSystemClock(unixSeconds int64) error {
	info("CURRENT:", time.Now().UTC(), "STEPPING TO:", time.Unix(unixSeconds, 0).UTC())
	return settimeofday.Settimeofday(unixSeconds, 0)
}

// clockOffset is how far the local clock is behind the server's.
func clockOffset(unixSeconds int64, now time.Time) time.Duration {
	return time.Unix(unixSeconds, 0).Sub(now.Truncate(time.Second))
}
