package marketfeed

import "time"

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the exponential reconnect delay for a retry count.
func CalculateBackoff(retry int) time.Duration {
	if retry <= 0 {
		return baseDelay
	}
	delay := baseDelay << uint(retry)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
