package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Period returns the interval between pulses of a source running at hz.
// hz==0 is coerced to 1 to avoid division by zero.
func Period(hz uint32) time.Duration {
	if hz == 0 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

// PeriodUs is Period in whole microseconds, the unit of the RP2040 timer.
func PeriodUs(hz uint32) uint32 {
	return uint32(Period(hz) / time.Microsecond)
}
