package utils

// StableCounter reports when the same condition has held for N consecutive
// observations. Used to debounce flapping session status polls.
type StableCounter struct {
	threshold int
	streak    int
}

func NewStableCounter(threshold int) *StableCounter {
	if threshold < 1 {
		threshold = 1
	}
	return &StableCounter{threshold: threshold}
}

// Observe records one observation. It returns true once the condition has
// been true for the configured number of consecutive observations; a false
// observation resets the streak.
func (c *StableCounter) Observe(match bool) bool {
	if !match {
		c.streak = 0
		return false
	}
	c.streak++
	return c.streak >= c.threshold
}

// Streak returns the current run length of matching observations.
func (c *StableCounter) Streak() int {
	return c.streak
}

// Reset clears the streak.
func (c *StableCounter) Reset() {
	c.streak = 0
}
