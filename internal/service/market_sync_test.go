package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/models"
	"xmrbet/internal/validator"
)

type fakeMarketAPI struct {
	markets []predictions.Market
	err     error
}

func (f *fakeMarketAPI) ListMarkets(_ context.Context, _ bool) ([]predictions.Market, error) {
	return f.markets, f.err
}

type fakePoolProber struct {
	exists map[string]bool
}

func (f *fakePoolProber) GetPool(_ context.Context, marketID string) (*predictions.Pool, error) {
	if !f.exists[marketID] {
		return &predictions.Pool{Exists: false}, nil
	}
	yes := decimal.NewFromInt(1)
	return &predictions.Pool{Exists: true, YesPoolXMR: &yes}, nil
}

func wireMarket(id string) predictions.Market {
	return predictions.Market{
		MarketID:       id,
		Title:          "Test market " + id,
		OracleType:     models.OracleTypeManual,
		ResolutionTime: time.Now().Add(24 * time.Hour).Unix(),
	}
}

func TestMarketSyncRunOnce(t *testing.T) {
	repo := newStubRepo()
	api := &fakeMarketAPI{markets: []predictions.Market{
		wireMarket("m1"), wireMarket("m2"), wireMarket("m3"),
	}}
	runner := &validator.Runner{Validator: &validator.PoolValidator{
		Prober:       &fakePoolProber{exists: map[string]bool{"m1": true, "m3": true}},
		Logger:       zap.NewNop(),
		ProbeTimeout: time.Second,
	}}
	sync := NewMarketSyncService(repo, api, runner, zap.NewNop(), false)

	if err := sync.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	all, _ := repo.ListMarkets(context.Background(), true)
	if len(all) != 3 {
		t.Fatalf("mirrored %d markets, want 3", len(all))
	}
	valid, _ := repo.ListValidMarkets(context.Background())
	if len(valid) != 2 {
		t.Fatalf("valid markets = %d, want 2", len(valid))
	}
	for _, m := range valid {
		if m.ID == "m2" {
			t.Fatal("m2 kept despite missing pool")
		}
		if len(m.RawJSON) == 0 {
			t.Fatalf("market %s has no raw payload", m.ID)
		}
	}
}

func TestMarketSyncDropsVanishedPool(t *testing.T) {
	repo := newStubRepo()
	prober := &fakePoolProber{exists: map[string]bool{"m1": true}}
	api := &fakeMarketAPI{markets: []predictions.Market{wireMarket("m1")}}
	runner := &validator.Runner{Validator: &validator.PoolValidator{
		Prober:       prober,
		Logger:       zap.NewNop(),
		ProbeTimeout: time.Second,
	}}
	sync := NewMarketSyncService(repo, api, runner, zap.NewNop(), false)
	ctx := context.Background()

	if err := sync.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	valid, _ := repo.ListValidMarkets(ctx)
	if len(valid) != 1 {
		t.Fatalf("valid markets = %d, want 1", len(valid))
	}

	// The pool disappears between passes; the market must drop out.
	prober.exists["m1"] = false
	if err := sync.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	valid, _ = repo.ListValidMarkets(ctx)
	if len(valid) != 0 {
		t.Fatalf("valid markets = %d after pool vanished, want 0", len(valid))
	}
}

func TestMarketSyncPropagatesListError(t *testing.T) {
	wantErr := errors.New("upstream down")
	sync := NewMarketSyncService(newStubRepo(), &fakeMarketAPI{err: wantErr}, &validator.Runner{
		Validator: &validator.PoolValidator{Logger: zap.NewNop()},
	}, zap.NewNop(), false)

	if err := sync.RunOnce(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("RunOnce err = %v, want %v", err, wantErr)
	}
}

func TestRequestRefreshDoesNotBlock(t *testing.T) {
	sync := NewMarketSyncService(newStubRepo(), &fakeMarketAPI{}, &validator.Runner{
		Validator: &validator.PoolValidator{Logger: zap.NewNop()},
	}, zap.NewNop(), false)

	// Repeated requests with no consumer must all return immediately.
	for i := 0; i < 5; i++ {
		sync.RequestRefresh()
	}
}
