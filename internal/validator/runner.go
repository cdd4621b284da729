package validator

import (
	"context"
	"sync"

	"xmrbet/internal/models"
)

// Runner serializes repeated validation passes, as fired from a refresh
// timer. Starting a new pass cancels the previous one and waits for its
// worker pool to drain, so concurrency never grows beyond one pool.
type Runner struct {
	Validator *PoolValidator

	mu     sync.Mutex
	cancel context.CancelFunc
	runMu  sync.Mutex
}

func (r *Runner) Filter(ctx context.Context, markets []models.Market) []models.Market {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	// The previous pass exits promptly once cancelled; this blocks until its
	// workers have finished.
	r.runMu.Lock()
	defer r.runMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	return r.Validator.Filter(runCtx, markets)
}
