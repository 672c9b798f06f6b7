package session

// DefaultErrorThreshold is the consecutive-failure count that triggers escalation.
const DefaultErrorThreshold = 3

// ErrorBudget counts consecutive recoverable failures.
type ErrorBudget struct {
	consecutiveFailures int
	threshold           int
}

// NewErrorBudget builds a budget; non-positive thresholds fall back to the default.
func NewErrorBudget(threshold int) ErrorBudget {
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	return ErrorBudget{threshold: threshold}
}

// Fail records one failure and reports whether the threshold was reached.
// Reaching the threshold resets the counter.
func (b *ErrorBudget) Fail() bool {
	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold {
		b.consecutiveFailures = 0
		return true
	}
	return false
}

// Reset clears the counter after a delivered turn.
func (b *ErrorBudget) Reset() {
	b.consecutiveFailures = 0
}

// ConsecutiveFailures returns the current count.
func (b ErrorBudget) ConsecutiveFailures() int {
	return b.consecutiveFailures
}

// Threshold returns the escalation threshold.
func (b ErrorBudget) Threshold() int {
	return b.threshold
}
