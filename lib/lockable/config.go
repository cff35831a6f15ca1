package lockable

import "time"

const (
	DefaultExpirationInterval = 600 * time.Second
	DefaultWarningInterval    = 540 * time.Second
)

// IConfig provides the lock intervals. Implementations are asked on every operation,
// so a changed value takes effect without restarting.
type IConfig interface {
	// ExpirationInterval is the lifetime of a lock (time_until_expiration).
	ExpirationInterval() time.Duration
	// WarningInterval is the lock age after which the holder is warned (time_until_warning).
	WarningInterval() time.Duration
}

// StaticConfig is an IConfig with fixed values. Zero values fall back to the defaults.
type StaticConfig struct {
	Expiration time.Duration
	Warning    time.Duration
}

func (c StaticConfig) ExpirationInterval() time.Duration {
	if c.Expiration <= 0 {
		return DefaultExpirationInterval
	}
	return c.Expiration
}

func (c StaticConfig) WarningInterval() time.Duration {
	if c.Warning <= 0 {
		return DefaultWarningInterval
	}
	return c.Warning
}

// Clock is the source of the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
