package taskpoll

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	doneAfter int
	polls     int
	fail      bool
	submitErr error
}

func (f *fakeBackend) Submit(ctx context.Context) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "task-1", nil
}

func (f *fakeBackend) Poll(ctx context.Context, token string) (Outcome, []byte, error) {
	f.polls++
	if f.fail {
		return OutcomeFailed, nil, nil
	}
	if f.polls >= f.doneAfter {
		return OutcomeDone, []byte("result"), nil
	}
	return OutcomeProcessing, nil, nil
}

func fastSchedule() Schedule {
	return Schedule{InitialInterval: time.Millisecond, Multiplier: 1.2, MaxInterval: 5 * time.Millisecond, MaxAttempts: 10}
}

func TestRunSucceedsAfterPolling(t *testing.T) {
	b := &fakeBackend{doneAfter: 3}
	out, err := Run(context.Background(), b, fastSchedule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "result" {
		t.Fatalf("got %q, want result", out)
	}
}

func TestRunPropagatesFailedOutcome(t *testing.T) {
	b := &fakeBackend{fail: true}
	_, err := Run(context.Background(), b, fastSchedule())
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("got %v, want ErrTaskFailed", err)
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	b := &fakeBackend{doneAfter: 1000}
	sched := fastSchedule()
	sched.MaxAttempts = 3
	_, err := Run(context.Background(), b, sched)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("got %v, want ErrExhausted", err)
	}
	if b.polls != 3 {
		t.Fatalf("polls = %d, want 3", b.polls)
	}
}

func TestRunSubmitError(t *testing.T) {
	wantErr := errors.New("boom")
	b := &fakeBackend{submitErr: wantErr}
	_, err := Run(context.Background(), b, fastSchedule())
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &fakeBackend{doneAfter: 5}
	sched := Schedule{InitialInterval: 50 * time.Millisecond, Multiplier: 1, MaxInterval: 50 * time.Millisecond, MaxAttempts: 10}
	cancel()
	_, err := Run(ctx, b, sched)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
