package extraction

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy describes a fixed-delay retry loop: how many total attempts,
// and how long to wait between them. Sleep is injectable so tests run
// without real waits.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration)
}

// Wait pauses for the policy's delay.
func (p RetryPolicy) Wait() {
	if p.Sleep != nil {
		p.Sleep(p.Delay)
		return
	}
	time.Sleep(p.Delay)
}

// Run executes call until it succeeds or MaxAttempts is exhausted, pausing
// for the fixed delay between attempts. Every failed attempt is reported
// with its attempt number. Returns the last error on exhaustion.
func (p RetryPolicy) Run(op string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := call(); err != nil {
			lastErr = err
			slog.Error("attempt failed", "op", op, "attempt", attempt, "max_attempts", p.MaxAttempts, "error", err)
			if attempt < p.MaxAttempts {
				p.Wait()
			}
			continue
		}
		return nil
	}
	return lastErr
}

// ExtractWithRetry runs the full attempt loop for one document: up to
// MaxAttempts calls against the provider, fixed backoff between failures,
// degrading to the all-sentinel record when every attempt fails. Extraction
// never aborts the caller's batch.
func ExtractWithRetry(ctx context.Context, ex Extractor, policy RetryPolicy, name string, data []byte) *Record {
	var record *Record
	err := policy.Run("extract "+name, func() error {
		var attemptErr error
		record, attemptErr = ex.ExtractInvoice(ctx, name, data)
		return attemptErr
	})
	if err != nil {
		slog.Error("extraction exhausted all attempts, recording sentinel fields", "document", name, "error", err)
		return FallbackRecord(name)
	}
	record.SourceName = name
	return record
}
