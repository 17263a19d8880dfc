package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct{ calls atomic.Int32 }

func (p *countingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestRunSessionJanitorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &countingPurger{}
	done := make(chan error, 1)
	go func() { done <- RunSessionJanitor(ctx, p, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for p.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("janitor never purged")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
