package task

import (
	"context"
	"sync"
)

// Handle tracks one submission to a Scheduler. It completes exactly once:
// with ErrSaturated or ErrSchedulerClosed when the task was never run, or
// with the task's own result.
type Handle struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	err       error
	callbacks []func(error)
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Done returns a channel closed when the submission completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the completion error. It is nil until Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the submission completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete registers fn to run with the completion error. If the handle
// has already completed, fn runs immediately on the calling goroutine;
// otherwise it runs on the goroutine that completes the handle.
func (h *Handle) OnComplete(fn func(error)) {
	h.mu.Lock()
	if h.completed {
		err := h.err
		h.mu.Unlock()
		fn(err)
		return
	}
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

func (h *Handle) complete(err error) {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return
	}
	h.completed = true
	h.err = err
	callbacks := h.callbacks
	h.callbacks = nil
	close(h.done)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}
