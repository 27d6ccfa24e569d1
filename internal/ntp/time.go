package ntp

import (
	"math"
	"time"
)

const (
	EraLength     int64   = 4_294_967_296 // 2^32
	UnixEraOffset int64   = 2_208_988_800 // 1970 - 1900 in seconds
	ShortLength   float64 = 65536         // 2^16
)

// SecondsToUnix converts NTP seconds to Unix seconds.
//
// Values with the most significant bit set fall in era 0 (1968-2036). Values
// with it clear are taken to be in era 1 (2036-2104), so the subtraction can
// never go below the Unix epoch (RFC 4330 section 3).
func SecondsToUnix(seconds uint32) int64 {
	if seconds&0x80000000 == 0 {
		return int64(seconds) + EraLength - UnixEraOffset
	}
	return int64(seconds) - UnixEraOffset
}

// UnixToSeconds is the inverse of SecondsToUnix for times within the two
// supported eras.
func UnixToSeconds(unix int64) uint32 {
	return uint32((unix + UnixEraOffset) % EraLength)
}

func ShortToDuration(short ShortEncoded) time.Duration {
	return time.Duration(float64(short) / ShortLength * float64(time.Second))
}

func Log2ToDuration(a int8) time.Duration {
	return time.Duration(math.Ldexp(1, int(a)) * float64(time.Second))
}
