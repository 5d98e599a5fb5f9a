package driver

import "time"

// Clock supplies the millisecond timestamps fed to the logic package.
// Values wrap around after about 49.7 days.
type Clock interface {
	NowMs() uint32
}

// SystemClock counts milliseconds since it was created, using the
// monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMs returns the milliseconds since creation truncated to 32 bits.
func (c *SystemClock) NowMs() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
