package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockRunner struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (m *mockRunner) Run(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

func (m *mockRunner) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsImmediately(t *testing.T) {
	runner := &mockRunner{}
	sched := New(runner, time.Hour, newLogger())

	sched.runOnce(context.Background())

	if diff := cmp.Diff(1, runner.getCalls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerSkipsWhenCancelled(t *testing.T) {
	runner := &mockRunner{}
	sched := New(runner, time.Hour, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched.runOnce(ctx)

	if diff := cmp.Diff(0, runner.getCalls()); diff != "" {
		t.Errorf("expected no runs when context cancelled (-want +got):\n%s", diff)
	}
}

func TestSchedulerContinuesAfterFailure(t *testing.T) {
	runner := &mockRunner{errs: []error{errors.New("feed unavailable")}}
	sched := New(runner, time.Hour, newLogger())
	sched.SetTickInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runner.getCalls() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 runs, got %d", runner.getCalls())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	sched := New(&mockRunner{}, 10*time.Millisecond, newLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
