/*
Package resilience provides a circuit breaker for graceful degradation.

# Overview

The summarizer stage calls an external AI completion endpoint once per file;
when that endpoint degrades, the breaker fails fast so a pack run spends its
time on files instead of timeouts. The summarize stage recovers every breaker
error to "no summary", so an open circuit never aborts a run.

# Usage

	breaker := resilience.New("ai-summarize", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5 || counts.FailureRate() > 0.7
		},
	})

	err := breaker.Do(func() error {
		return client.Summarize(ctx, file)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                      [failure]
	                                           v
	                                         Open
*/
package resilience
