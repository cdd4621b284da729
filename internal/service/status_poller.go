package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"xmrbet/internal/repository"
)

// StatusPoller walks every non-terminal bet and slip on a fixed cadence and
// lets the tracker/aggregator fold the remote status in. Deposit detection,
// confirmation, resolution, and refunds all surface through this loop.
type StatusPoller struct {
	Repo   repository.Repository
	Bets   *BetTracker
	Slips  *SlipAggregator
	Logger *zap.Logger
}

func (p *StatusPoller) RunBets(ctx context.Context, interval time.Duration) {
	p.loop(ctx, interval, p.pollBets)
}

func (p *StatusPoller) RunSlips(ctx context.Context, interval time.Duration) {
	p.loop(ctx, interval, p.pollSlips)
}

func (p *StatusPoller) loop(ctx context.Context, interval time.Duration, pass func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

func (p *StatusPoller) pollBets(ctx context.Context) {
	bets, err := p.Repo.ListOpenBets(ctx)
	if err != nil {
		p.Logger.Warn("listing open bets failed", zap.Error(err))
		return
	}
	for _, bet := range bets {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.Bets.CheckStatus(ctx, bet.BetID); err != nil {
			p.Logger.Warn("bet status poll failed",
				zap.String("bet_id", bet.BetID), zap.Error(err))
		}
	}
}

func (p *StatusPoller) pollSlips(ctx context.Context) {
	slips, err := p.Repo.ListOpenSlips(ctx)
	if err != nil {
		p.Logger.Warn("listing open slips failed", zap.Error(err))
		return
	}
	for _, slip := range slips {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.Slips.CheckStatus(ctx, slip.SlipID); err != nil {
			p.Logger.Warn("slip status poll failed",
				zap.String("slip_id", slip.SlipID), zap.Error(err))
		}
	}
}
