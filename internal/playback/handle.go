package playback

import (
	"context"
	"sync"
)

// Handle controls one playing clip.
type Handle struct {
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	stop    func()
	stopped bool
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Stop ends playback before its natural end. It is safe to call more than once
// and after the clip has finished.
func (h *Handle) Stop() {
	h.mu.Lock()

	select {
	case <-h.done:
		h.mu.Unlock()

		return
	default:
	}

	stop := h.stop
	h.stopped = true
	h.mu.Unlock()

	if stop != nil {
		stop()
	}

	h.finish()
}

// Done is closed when the clip ends or is stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the clip ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped reports whether the clip was cut short by Stop.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stopped
}

func (h *Handle) setStop(stop func()) {
	h.mu.Lock()
	h.stop = stop
	h.mu.Unlock()
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}
