package validator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/metrics"
	"xmrbet/internal/models"
)

const (
	DefaultWorkers      = 6
	DefaultProbeTimeout = 4 * time.Second
)

// Prober is the pool-existence probe, satisfied by *predictions.Client.
type Prober interface {
	GetPool(ctx context.Context, marketID string) (*predictions.Pool, error)
}

// PoolValidator filters a candidate market list down to those whose remote
// pool record actually exists. A market can be listed while its pool is
// missing or expired; such markets are excluded silently. Probe failures and
// timeouts are filtering decisions, not user-facing errors.
type PoolValidator struct {
	Prober       Prober
	Logger       *zap.Logger
	Workers      int
	ProbeTimeout time.Duration
}

// Filter probes every candidate exactly once using a fixed worker pool over a
// shared cursor and returns the surviving markets in input order. It returns
// only after all workers have finished.
func (v *PoolValidator) Filter(ctx context.Context, markets []models.Market) []models.Market {
	if len(markets) == 0 {
		return nil
	}
	workers := v.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(markets) {
		workers = len(markets)
	}
	timeout := v.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	keep := make([]bool, len(markets))
	cursor := int64(-1)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&cursor, 1)
				if i >= int64(len(markets)) {
					return
				}
				keep[i] = v.probe(ctx, markets[i].ID)
			}
		}()
	}
	wg.Wait()

	out := make([]models.Market, 0, len(markets))
	for i, m := range markets {
		if keep[i] {
			out = append(out, m)
		}
	}
	metrics.ValidatorRuns.Inc()
	return out
}

// probe runs one pool-existence check under its own timeout so a hung probe
// cannot stall the other in-flight probes.
func (v *PoolValidator) probe(ctx context.Context, marketID string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, v.timeoutOrDefault())
	defer cancel()

	pool, err := v.Prober.GetPool(probeCtx, marketID)
	if err != nil || pool == nil || !pool.Exists {
		metrics.PoolProbesDropped.Inc()
		return false
	}
	metrics.PoolProbesKept.Inc()
	return true
}

func (v *PoolValidator) timeoutOrDefault() time.Duration {
	if v.ProbeTimeout > 0 {
		return v.ProbeTimeout
	}
	return DefaultProbeTimeout
}
