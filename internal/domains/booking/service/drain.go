package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errDraining = errors.New("booking flows are draining for shutdown")

// flowTracker counts flows that may hold a capture. Once draining starts no
// new flow may begin charging.
type flowTracker struct {
	mu       sync.Mutex
	active   int
	draining bool
	idle     chan struct{}
}

func (t *flowTracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.draining {
		return false
	}

	t.active++

	return true
}

func (t *flowTracker) end() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	if t.active == 0 && t.idle != nil {
		close(t.idle)
		t.idle = nil
	}
}

// drain stops new flows and waits for the running ones to finish.
func (t *flowTracker) drain(ctx context.Context) (int, error) {
	t.mu.Lock()
	t.draining = true

	active := t.active
	if active == 0 {
		t.mu.Unlock()

		return 0, nil
	}

	if t.idle == nil {
		t.idle = make(chan struct{})
	}

	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return active, nil
	case <-ctx.Done():
		return active, fmt.Errorf("booking flows still running: %w", ctx.Err())
	}
}
