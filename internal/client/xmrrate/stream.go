package xmrrate

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Stream feeds the rate cache from a ticker websocket instead of waiting for
// the next REST poll. Optional; the poller alone is enough for correctness.
type Stream struct {
	URL        string
	Source     *Source
	Logger     *zap.Logger
	BackoffMin time.Duration
	BackoffMax time.Duration
}

type streamTick struct {
	Price decimal.Decimal `json:"price"`
}

func (s *Stream) Run(ctx context.Context) error {
	if s == nil || s.URL == "" || s.Source == nil {
		return nil
	}
	backoffMin := s.BackoffMin
	if backoffMin <= 0 {
		backoffMin = time.Second
	}
	backoffMax := s.BackoffMax
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	backoff := backoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := websocket.Dial(ctx, s.URL, nil)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("rate stream connect failed", zap.Error(err))
			}
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, backoffMax)
			continue
		}
		if s.Logger != nil {
			s.Logger.Info("rate stream connected")
		}
		backoff = backoffMin

		err = s.consume(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, backoffMax)
	}
}

func (s *Stream) consume(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var tick streamTick
		if err := json.Unmarshal(data, &tick); err != nil {
			continue
		}
		if tick.Price.GreaterThan(decimal.Zero) {
			s.Source.Set(tick.Price)
		}
	}
}

func sleepWithJitter(ctx context.Context, d time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d + jitter):
		return nil
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
