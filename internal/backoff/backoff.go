// Copyright (c) 2017-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package backoff provides jittered sleep policies used when retrying network and installer operations
package backoff

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy is a backoff policy described as a list of sleep periods in milliseconds
type Policy struct {
	Millis []int
}

// FiveSecStartGrace is a 10 step policy from 0 to 5 seconds, the first try has no delay
var FiveSecStartGrace = Policy{
	Millis: []int{0, 500, 1000, 1500, 2000, 2500, 3000, 3500, 4000, 5000},
}

// FiveSec is a 10 step policy from 500ms to 5 seconds
var FiveSec = Policy{
	Millis: []int{500, 1000, 1500, 2000, 2500, 3000, 3500, 4000, 4500, 5000},
}

// TwentySec is a 20 step policy from 500ms to 20 seconds
var TwentySec = Policy{
	Millis: []int{500, 1500, 2500, 3500, 4500, 5500, 6500, 7500, 8500, 9500, 10500, 11500, 12500, 13500, 14500, 15500, 16500, 17500, 18500, 20000},
}

// Default is the policy used for repository and download retries
var Default = TwentySec

// ErrInterrupted is returned by InterruptableSleep when the context ends first
var ErrInterrupted = errors.New("sleep interrupted by context")

// Duration is the jittered sleep for try n, n larger than the policy uses the last value
func (p Policy) Duration(n int) time.Duration {
	if len(p.Millis) == 0 {
		return 0
	}

	if n >= len(p.Millis) {
		n = len(p.Millis) - 1
	}
	if n < 0 {
		n = 0
	}

	return time.Duration(jitter(p.Millis[n])) * time.Millisecond
}

// TrySleep sleeps for the duration of try n
func (p Policy) TrySleep(ctx context.Context, n int) error {
	return p.Sleep(ctx, p.Duration(n))
}

// Sleep sleeps for d or until ctx is done, returning the context error in that case
func (p Policy) Sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// For calls cb until it succeeds or ctx is done, tries start at 1
func (p Policy) For(ctx context.Context, cb func(try int) error) error {
	var try int

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		try++

		if cb(try) == nil {
			return nil
		}

		err := p.TrySleep(ctx, try-1)
		if err != nil {
			return err
		}
	}
}

// Retry calls cb up to tries times and returns the last error, a context error stops it early
func (p Policy) Retry(ctx context.Context, tries int, cb func(try int) error) error {
	var err error

	tries = max(tries, 1)

	for try := 1; try <= tries; try++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = cb(try)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if try == tries {
			break
		}

		serr := p.TrySleep(ctx, try-1)
		if serr != nil {
			return errors.Join(err, serr)
		}
	}

	return err
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as one that will not resolve on retry, Retry returns the wrapped error immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// AfterFunc calls f after the duration of try n in its own goroutine
func (p Policy) AfterFunc(n int, f func()) *time.Timer {
	return time.AfterFunc(p.Duration(n), f)
}

// InterruptableSleep sleeps for d unless ctx is done first
func InterruptableSleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ErrInterrupted
	}

	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	}
}

func jitter(millis int) int64 {
	if millis <= 0 {
		return 0
	}

	joff := int64(float64(millis) * 0.5)

	return joff + rand.Int64N(int64(millis)+1)
}
