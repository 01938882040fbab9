package run

import "time"

const (
	initialPollDelay = 30 * time.Second
	maxPollDelay     = 300 * time.Second
)

// NextDelay returns the next progressive polling delay for callers
// watching a run from outside the process: 30s, doubling to a 300s cap.
func NextDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return initialPollDelay
	}
	next := prev * 2
	if next > maxPollDelay {
		return maxPollDelay
	}
	return next
}
