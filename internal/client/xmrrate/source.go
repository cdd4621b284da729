package xmrrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source tracks the live USD/XMR exchange rate used for client-side deposit
// previews. The authoritative amount_xmr on a bet always comes from the server
// receipt; this rate is display-only.
type Source struct {
	HTTP   *http.Client
	Logger *zap.Logger

	Endpoint     string
	PollInterval time.Duration
	MaxStaleness time.Duration

	mu        sync.RWMutex
	usdPerXMR decimal.Decimal
	updatedAt time.Time
}

// tickerPayload matches simple ticker endpoints: {"symbol": "...", "price": "..."}.
type tickerPayload struct {
	Price decimal.Decimal `json:"price"`
}

// Run polls the REST ticker until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.HTTP == nil {
		s.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	s.pollOnce(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Source) pollOnce(ctx context.Context) {
	rate, err := s.fetch(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("rate poll failed", zap.Error(err))
		}
		return
	}
	s.Set(rate)
}

func (s *Source) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("ticker status %d", resp.StatusCode)
	}
	var p tickerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return decimal.Zero, fmt.Errorf("decode ticker: %w", err)
	}
	if p.Price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("non-positive rate %s", p.Price)
	}
	return p.Price, nil
}

// Set records a fresh rate. Exported so the websocket stream can feed the same
// cache the poller does.
func (s *Source) Set(usdPerXMR decimal.Decimal) {
	s.mu.Lock()
	s.usdPerXMR = usdPerXMR
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}

// Rate returns the cached rate. ok is false when no rate has been seen yet or
// the last one is older than MaxStaleness.
func (s *Source) Rate() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updatedAt.IsZero() {
		return decimal.Zero, false
	}
	staleness := s.MaxStaleness
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	if time.Since(s.updatedAt) > staleness {
		return decimal.Zero, false
	}
	return s.usdPerXMR, true
}

// PreviewXMR converts a USD stake at the cached rate, for display next to the
// stake field. Returns false when the rate is missing or stale.
func (s *Source) PreviewXMR(amountUSD decimal.Decimal) (decimal.Decimal, bool) {
	rate, ok := s.Rate()
	if !ok {
		return decimal.Zero, false
	}
	return amountUSD.Div(rate).Round(12), true
}
