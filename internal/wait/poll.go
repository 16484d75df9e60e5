// SPDX-License-Identifier: Apache-2.0

// Package wait retries a condition until it holds or a deadline passes.
package wait

import (
	"context"
	"time"
)

// ConditionWithContextFunc returns true if the condition is satisfied, or an error
// if the loop should be aborted.
//
// The caller passes along a context that can be used by the condition function.
type ConditionWithContextFunc func(context.Context) (done bool, err error)

// PollUntilContextTimeout invokes condition every interval until it returns
// true, returns an error, or timeout elapses. If immediate is true condition
// is invoked once before the first wait, regardless of the context.
//
// The returned error is the condition's error, the context error if the
// deadline passed or ctx was cancelled, or nil.
func PollUntilContextTimeout(ctx context.Context, interval, timeout time.Duration, immediate bool, condition ConditionWithContextFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if immediate {
		if ok, err := condition(ctx); err != nil || ok {
			return err
		}
	}

	t := time.NewTimer(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		// A short interval may win the select above repeatedly even after the
		// context was cancelled, so check explicitly before every invocation.
		if err := ctx.Err(); err != nil {
			return err
		}

		if ok, err := condition(ctx); err != nil || ok {
			return err
		}
		t.Reset(interval)
	}
}
