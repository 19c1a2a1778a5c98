package timeutil

import "time"

// NowMS returns the current time in unix milliseconds. Cache expiry uses
// millisecond precision so a zero TTL expires immediately.
func NowMS() int64 {
	return time.Now().UnixMilli()
}
