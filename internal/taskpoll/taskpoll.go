// Package taskpoll is the reusable task-submit/task-poll engine: a single
// implementation serves both the paid SERP provider and
// the SERP-images-secondary provider, which otherwise differ only in their
// request/response envelopes.
package taskpoll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome classifies one poll response into the three status classes:
// still processing, done, or failed.
type Outcome int

const (
	OutcomeProcessing Outcome = iota
	OutcomeDone
	OutcomeFailed
)

// Backend submits a task and polls its status. Implementations translate a
// provider-specific wire format into Outcome; Run only drives the retry
// schedule.
type Backend interface {
	// Submit starts the task and returns an opaque token.
	Submit(ctx context.Context) (token string, err error)
	// Poll checks task status once. result is only meaningful when the
	// returned Outcome is OutcomeDone.
	Poll(ctx context.Context, token string) (outcome Outcome, result []byte, err error)
}

// Schedule bounds the poll loop. Defaults: start 0.5s,
// multiplier 1.5, cap 5s, max 10 attempts.
type Schedule struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultSchedule returns the schedule specified for the SERP-images
// secondary and paid text-SERP providers.
func DefaultSchedule() Schedule {
	return Schedule{
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      1.5,
		MaxInterval:     5 * time.Second,
		MaxAttempts:     10,
	}
}

// ErrTaskFailed is returned when the backend reports OutcomeFailed.
var ErrTaskFailed = errors.New("taskpoll: task reported failed status")

// ErrExhausted is returned when MaxAttempts is reached while the task is
// still processing.
var ErrExhausted = errors.New("taskpoll: exhausted poll attempts while still processing")

// Run submits the task and polls it to completion per sched, returning the
// backend's result payload on success.
func Run(ctx context.Context, b Backend, sched Schedule) ([]byte, error) {
	token, err := b.Submit(ctx)
	if err != nil {
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = sched.InitialInterval
	bo.Multiplier = sched.Multiplier
	bo.MaxInterval = sched.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxAttempts instead of wall time
	bo.Reset()

	attempts := sched.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}

	var result []byte
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := bo.NextBackOff()
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		outcome, body, err := b.Poll(ctx, token)
		if err != nil {
			lastErr = err
			continue
		}
		switch outcome {
		case OutcomeDone:
			result = body
			lastErr = nil
			return result, nil
		case OutcomeFailed:
			return nil, ErrTaskFailed
		case OutcomeProcessing:
			lastErr = ErrExhausted
			continue
		}
	}
	if lastErr == nil {
		lastErr = ErrExhausted
	}
	return nil, lastErr
}
