// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/docrag/ai"
)

// RetryPolicy describes exponential backoff for failed provider calls.
// A policy with MaxRetries 3, BaseDelay 1s and Multiplier 2 makes up to four
// calls, sleeping 1s, 2s and 4s between them.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// DefaultRetryPolicy returns the 1s/2s/4s policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2}
}

// Validate checks the policy fields.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if p.BaseDelay < 0 || p.Multiplier < 1 {
		return ErrInvalidBackoff
	}
	return nil
}

// Delay returns the wait before retry number n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	delay := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		delay *= p.Multiplier
	}
	return time.Duration(delay)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper is the production Sleeper backed by a timer.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs operation until it succeeds or the policy is exhausted.
// It returns the number of calls made and the last error.
// A done context stops the loop and its error is returned instead.
// Errors ai.IsPermanent recognises are returned without retrying.
func (p RetryPolicy) Retry(ctx context.Context, sleep Sleeper, operation func() error) (int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		lastErr = operation()
		if lastErr == nil {
			if attempt > 0 {
				slog.Debug("operation succeeded after retry", "attempt", attempts)
			}
			return attempts, nil
		}
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		if ai.IsPermanent(lastErr) {
			slog.Debug("operation failed permanently", "attempt", attempts, "err", lastErr)
			return attempts, lastErr
		}

		// Don't sleep after the last attempt
		if attempt == p.MaxRetries {
			break
		}

		delay := p.Delay(attempt + 1)
		slog.Debug("operation failed, will retry", "attempt", attempts, "delay", delay, "err", lastErr)
		if err := sleep(ctx, delay); err != nil {
			return attempts, err
		}
	}
	return attempts, lastErr
}
