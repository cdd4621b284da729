package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PoolProbesKept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xmrbet_pool_probes_kept_total",
		Help: "Markets whose pool probe confirmed an existing pool.",
	})
	PoolProbesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xmrbet_pool_probes_dropped_total",
		Help: "Markets dropped after a missing pool, probe error, or timeout.",
	})
	ValidatorRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xmrbet_validator_runs_total",
		Help: "Completed pool validation passes.",
	})
	StatusPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmrbet_status_polls_total",
		Help: "Remote status polls by entity kind and result.",
	}, []string{"kind", "result"})
	MarketRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xmrbet_market_refreshes_total",
		Help: "Market list refresh cycles.",
	})
)

// StartServer serves /metrics and /healthz on its own port, detached from the
// public facade.
func StartServer(addr string, healthFn func(ctx context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if healthFn != nil {
			if err := healthFn(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy: " + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
