// Package retry provides exponential backoff for transient failures.
//
// # Functions
//
//   - Do: run a function until it succeeds, with backoff between attempts
//   - DoWithResult: same, returning a value
//   - Backoff: the pure delay schedule, InitialDelay * Multiplier^attempt capped at MaxDelay
//   - Sleep: context-aware wait
//
// # Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s
//   - Reconnect(): 1s-30s doubling schedule for the hub reconnect loop
//
// # Usage
//
//	rc := errs.DefaultRetryConfig()
//	err := retry.Do(ctx, rc.ToRetryConfig(), func() error {
//	    return q.Connect(ctx)
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately:
//
//	if errors.Is(err, errs.ErrUnsupportedBackend) {
//	    return retry.NonRetryable(err)
//	}
//
// Backoff never adds jitter, so a reconnect schedule can be asserted exactly
// in tests:
//
//	delay := retry.Backoff(retry.Reconnect(), attempt)
package retry
