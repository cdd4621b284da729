package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/metrics"
	"xmrbet/internal/models"
	"xmrbet/internal/repository"
	"xmrbet/internal/validator"
)

// MarketAPI is the slice of the remote client the sync needs.
type MarketAPI interface {
	ListMarkets(ctx context.Context, includeResolved bool) ([]predictions.Market, error)
}

// MarketSyncService keeps the local market mirror fresh: it pulls the remote
// list, upserts it, then runs the pool validator and records which markets
// are actually backed by a live deposit pool.
type MarketSyncService struct {
	Repo            repository.Repository
	API             MarketAPI
	Validator       *validator.Runner
	Logger          *zap.Logger
	IncludeResolved bool

	refreshCh chan struct{}
}

func NewMarketSyncService(repo repository.Repository, api MarketAPI, v *validator.Runner, logger *zap.Logger, includeResolved bool) *MarketSyncService {
	return &MarketSyncService{
		Repo:            repo,
		API:             api,
		Validator:       v,
		Logger:          logger,
		IncludeResolved: includeResolved,
		refreshCh:       make(chan struct{}, 1),
	}
}

// RequestRefresh schedules an immediate sync on top of the regular cadence.
// Non-blocking; a refresh already pending absorbs the request.
func (s *MarketSyncService) RequestRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Run syncs once at startup and then on every tick or refresh request until
// ctx is cancelled.
func (s *MarketSyncService) Run(ctx context.Context, interval time.Duration) {
	if err := s.RunOnce(ctx); err != nil {
		s.Logger.Warn("initial market sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.refreshCh:
		}
		if err := s.RunOnce(ctx); err != nil {
			s.Logger.Warn("market sync failed", zap.Error(err))
		}
	}
}

// RunOnce performs a single sync pass. The pool-exists flag is rewritten
// wholesale from the validator's keep set, so a market whose pool vanished
// since the last pass drops out of the valid list.
func (s *MarketSyncService) RunOnce(ctx context.Context) error {
	wire, err := s.API.ListMarkets(ctx, s.IncludeResolved)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rows := make([]models.Market, 0, len(wire))
	for _, m := range wire {
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		rows = append(rows, m.ToModel(raw, now))
	}
	if err := s.Repo.UpsertMarkets(ctx, rows); err != nil {
		return err
	}

	kept := s.Validator.Filter(ctx, rows)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	ids := make([]string, 0, len(kept))
	for _, m := range kept {
		ids = append(ids, m.ID)
	}
	if err := s.Repo.SetPoolExists(ctx, ids); err != nil {
		return err
	}

	metrics.MarketRefreshes.Inc()
	s.Logger.Info("market list synced",
		zap.Int("listed", len(rows)),
		zap.Int("valid", len(kept)))
	return nil
}
