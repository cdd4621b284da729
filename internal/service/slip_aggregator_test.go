package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/models"
)

type fakeSlipAPI struct {
	mu          sync.Mutex
	createCalls int
	createErr   error
	blockCreate chan struct{}
	receipt     predictions.SlipReceipt
	status      predictions.SlipStatus
}

func (f *fakeSlipAPI) CreateSlip(_ context.Context, req predictions.CreateSlipRequest) (*predictions.SlipReceipt, error) {
	f.mu.Lock()
	f.createCalls++
	block := f.blockCreate
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	r := f.receipt
	return &r, nil
}

func (f *fakeSlipAPI) GetSlipStatus(_ context.Context, _ string) (*predictions.SlipStatus, error) {
	s := f.status
	return &s, nil
}

func (f *fakeSlipAPI) UpdateSlipPayoutAddress(_ context.Context, _, _ string) error {
	return nil
}

func newTestAggregator(repo *stubRepo, api *fakeSlipAPI) *SlipAggregator {
	return &SlipAggregator{
		Repo:      repo,
		API:       api,
		Logger:    zap.NewNop(),
		MinBetUSD: decimal.NewFromInt(5),
	}
}

func seedMarkets(t *testing.T, repo *stubRepo, ids ...string) {
	t.Helper()
	var markets []models.Market
	for _, id := range ids {
		markets = append(markets, openMarket(id))
	}
	if err := repo.UpsertMarkets(context.Background(), markets); err != nil {
		t.Fatalf("seeding markets: %v", err)
	}
}

func usd(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestDraftTotalInvariant(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "m1", "m2", "m3")
	agg := newTestAggregator(repo, &fakeSlipAPI{})
	ctx := context.Background()

	view, err := agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10"))
	if err != nil {
		t.Fatalf("AddLeg: %v", err)
	}
	if view, err = agg.AddLeg(ctx, "k", "m2", models.SideNo, usd("20")); err != nil {
		t.Fatalf("AddLeg: %v", err)
	}
	if view, err = agg.AddLeg(ctx, "k", "m3", models.SideYes, usd("7.50")); err != nil {
		t.Fatalf("AddLeg: %v", err)
	}
	if !view.TotalAmountUSD.Equal(usd("37.50")) {
		t.Fatalf("total = %s, want 37.50", view.TotalAmountUSD)
	}

	if view, err = agg.UpdateLegAmount("k", view.Legs[1].LegID, usd("25")); err != nil {
		t.Fatalf("UpdateLegAmount: %v", err)
	}
	if !view.TotalAmountUSD.Equal(usd("42.50")) {
		t.Fatalf("total after update = %s, want 42.50", view.TotalAmountUSD)
	}

	if view, err = agg.RemoveLeg("k", view.Legs[0].LegID); err != nil {
		t.Fatalf("RemoveLeg: %v", err)
	}
	if !view.TotalAmountUSD.Equal(usd("32.50")) {
		t.Fatalf("total after remove = %s, want 32.50", view.TotalAmountUSD)
	}

	if view, err = agg.UndoRemove("k"); err != nil {
		t.Fatalf("UndoRemove: %v", err)
	}
	if !view.TotalAmountUSD.Equal(usd("42.50")) {
		t.Fatalf("total after undo = %s, want 42.50", view.TotalAmountUSD)
	}
	for i, leg := range view.Legs {
		if leg.Position != i {
			t.Fatalf("leg %d has position %d", i, leg.Position)
		}
	}
}

func TestUndoIsSingleLevel(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "m1", "m2")
	agg := newTestAggregator(repo, &fakeSlipAPI{})
	ctx := context.Background()

	v1, _ := agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10"))
	v2, _ := agg.AddLeg(ctx, "k", "m2", models.SideNo, usd("20"))
	first := v1.Legs[0].LegID
	second := v2.Legs[1].LegID

	if _, err := agg.UndoRemove("k"); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("undo with empty stash: %v", err)
	}

	// Removing the second leg discards the stash from removing the first.
	if _, err := agg.RemoveLeg("k", first); err != nil {
		t.Fatalf("RemoveLeg: %v", err)
	}
	if _, err := agg.RemoveLeg("k", second); err != nil {
		t.Fatalf("RemoveLeg: %v", err)
	}
	view, err := agg.UndoRemove("k")
	if err != nil {
		t.Fatalf("UndoRemove: %v", err)
	}
	if len(view.Legs) != 1 || view.Legs[0].LegID != second {
		t.Fatalf("undo restored wrong leg: %+v", view.Legs)
	}
	if _, err := agg.UndoRemove("k"); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("second undo: %v", err)
	}
}

func TestReorderLegs(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "m1", "m2", "m3")
	agg := newTestAggregator(repo, &fakeSlipAPI{})
	ctx := context.Background()

	_, _ = agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10"))
	_, _ = agg.AddLeg(ctx, "k", "m2", models.SideNo, usd("20"))
	view, _ := agg.AddLeg(ctx, "k", "m3", models.SideYes, usd("30"))

	ids := []string{view.Legs[2].LegID, view.Legs[0].LegID, view.Legs[1].LegID}
	view, err := agg.ReorderLegs("k", ids)
	if err != nil {
		t.Fatalf("ReorderLegs: %v", err)
	}
	for i, want := range []string{"m3", "m1", "m2"} {
		if view.Legs[i].MarketID != want || view.Legs[i].Position != i {
			t.Fatalf("leg %d = %s pos %d, want %s pos %d",
				i, view.Legs[i].MarketID, view.Legs[i].Position, want, i)
		}
	}
	if !view.TotalAmountUSD.Equal(usd("60")) {
		t.Fatalf("total changed by reorder: %s", view.TotalAmountUSD)
	}

	if _, err := agg.ReorderLegs("k", ids[:2]); !errors.Is(err, ErrLegNotFound) {
		t.Fatalf("partial permutation: %v", err)
	}
	if _, err := agg.ReorderLegs("k", []string{ids[0], ids[0], ids[1]}); !errors.Is(err, ErrLegNotFound) {
		t.Fatalf("duplicate id: %v", err)
	}
}

func TestAddLegRejectsClosedMarket(t *testing.T) {
	repo := newStubRepo()
	closed := openMarket("closed")
	past := time.Now().Add(-time.Minute).Unix()
	closed.BettingClosesAt = &past
	resolved := openMarket("resolved")
	resolved.Resolved = true
	_ = repo.UpsertMarkets(context.Background(), []models.Market{closed, resolved})
	agg := newTestAggregator(repo, &fakeSlipAPI{})
	ctx := context.Background()

	if _, err := agg.AddLeg(ctx, "k", "closed", models.SideYes, usd("10")); !errors.Is(err, models.ErrBettingClosed) {
		t.Fatalf("closed market: %v", err)
	}
	if _, err := agg.AddLeg(ctx, "k", "resolved", models.SideYes, usd("10")); !errors.Is(err, models.ErrAlreadyResolved) {
		t.Fatalf("resolved market: %v", err)
	}
	if _, err := agg.AddLeg(ctx, "k", "nope", models.SideYes, usd("10")); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("missing market: %v", err)
	}
}

func TestCheckoutIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "m1", "m2")
	api := &fakeSlipAPI{receipt: predictions.SlipReceipt{
		SlipID:         "slip-1",
		XMRAddress:     "8" + strings.Repeat("D", 94),
		TotalAmountXMR: usd("0.1875"),
		ViewKey:        "vk",
		ExpiresAt:      time.Now().Add(time.Hour).Unix(),
		Status:         models.StatusAwaitingDeposit,
	}}
	agg := newTestAggregator(repo, api)
	ctx := context.Background()

	_, _ = agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10"))
	_, _ = agg.AddLeg(ctx, "k", "m2", models.SideNo, usd("20"))

	slip, err := agg.Checkout(ctx, "k", testPayoutAddr)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if slip.SlipID != "slip-1" || len(slip.Legs) != 2 {
		t.Fatalf("slip = %+v", slip)
	}
	if !slip.TotalAmountUSD.Equal(usd("30")) {
		t.Fatalf("total = %s, want 30", slip.TotalAmountUSD)
	}
	for i, leg := range slip.Legs {
		if leg.SlipID != "slip-1" || leg.Position != i {
			t.Fatalf("leg %d = %+v", i, leg)
		}
	}

	again, err := agg.Checkout(ctx, "k", testPayoutAddr)
	if err != nil {
		t.Fatalf("second Checkout: %v", err)
	}
	if again.SlipID != "slip-1" {
		t.Fatalf("second checkout produced %s", again.SlipID)
	}
	if api.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", api.createCalls)
	}

	// The slip is frozen once checked out.
	if _, err := agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10")); !errors.Is(err, ErrSlipNotDraft) {
		t.Fatalf("AddLeg after checkout: %v", err)
	}
}

func TestConcurrentCheckoutSingleFlight(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "m1")
	block := make(chan struct{})
	api := &fakeSlipAPI{
		blockCreate: block,
		receipt: predictions.SlipReceipt{
			SlipID:     "slip-1",
			XMRAddress: "8" + strings.Repeat("D", 94),
			ExpiresAt:  time.Now().Add(time.Hour).Unix(),
		},
	}
	agg := newTestAggregator(repo, api)
	ctx := context.Background()
	_, _ = agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10"))

	firstDone := make(chan error, 1)
	go func() {
		_, err := agg.Checkout(ctx, "k", testPayoutAddr)
		firstDone <- err
	}()

	// Wait for the first checkout to reach the API call.
	for {
		api.mu.Lock()
		started := api.createCalls > 0
		api.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := agg.Checkout(ctx, "k", testPayoutAddr); !errors.Is(err, ErrCheckoutInFlight) {
		t.Fatalf("concurrent checkout: %v", err)
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if api.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", api.createCalls)
	}
}

func TestCheckoutValidation(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "m1")
	agg := newTestAggregator(repo, &fakeSlipAPI{})
	ctx := context.Background()

	if _, err := agg.Checkout(ctx, "k", testPayoutAddr); !errors.Is(err, ErrEmptySlip) {
		t.Fatalf("empty slip: %v", err)
	}
	_, _ = agg.AddLeg(ctx, "k", "m1", models.SideYes, usd("10"))
	if _, err := agg.Checkout(ctx, "k", "short"); !errors.Is(err, models.ErrInvalidAddress) {
		t.Fatalf("bad address: %v", err)
	}
}

func TestSlipCheckStatusFoldsLegOutcomes(t *testing.T) {
	repo := newStubRepo()
	ctx := context.Background()
	won := models.LegOutcomeWon
	_ = repo.SaveSlip(ctx, &models.Slip{
		SlipID: "slip-1",
		Status: models.StatusConfirmed,
		Legs: []models.SlipLeg{
			{LegID: "l1", SlipID: "slip-1", MarketID: "m1", Side: models.SideYes, AmountUSD: usd("10")},
			{LegID: "l2", SlipID: "slip-1", MarketID: "m2", Side: models.SideNo, AmountUSD: usd("20")},
		},
	})
	api := &fakeSlipAPI{status: predictions.SlipStatus{
		SlipID: "slip-1",
		Status: models.StatusResolved,
		Legs: []predictions.SlipLegStatus{
			{MarketID: "m1", Outcome: &won},
			{MarketID: "m2"},
		},
	}}
	agg := newTestAggregator(repo, api)

	got, err := agg.CheckStatus(ctx, "slip-1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if got != models.StatusResolved {
		t.Fatalf("status = %s, want resolved", got)
	}
	slip, _ := repo.GetSlip(ctx, "slip-1")
	if slip.Legs[0].Outcome == nil || *slip.Legs[0].Outcome != models.LegOutcomeWon {
		t.Fatalf("leg 1 outcome = %v", slip.Legs[0].Outcome)
	}
	if slip.Legs[1].Outcome != nil {
		t.Fatalf("leg 2 outcome set prematurely: %v", *slip.Legs[1].Outcome)
	}

	// A stale remote read never walks the status back.
	api.status.Status = models.StatusAwaitingDeposit
	got, err = agg.CheckStatus(ctx, "slip-1")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if got != models.StatusResolved {
		t.Fatalf("status regressed to %s", got)
	}
}

func TestSweepResolvedLegs(t *testing.T) {
	repo := newStubRepo()
	seedMarkets(t, repo, "live")
	dead := openMarket("dead")
	dead.Resolved = true
	_ = repo.UpsertMarkets(context.Background(), []models.Market{dead})
	agg := newTestAggregator(repo, &fakeSlipAPI{})
	ctx := context.Background()

	_, _ = agg.AddLeg(ctx, "k", "live", models.SideYes, usd("10"))
	// The dead market was open when the leg was added; resolve it afterwards.
	liveDead := openMarket("dead2")
	_ = repo.UpsertMarkets(ctx, []models.Market{liveDead})
	_, _ = agg.AddLeg(ctx, "k", "dead2", models.SideNo, usd("20"))
	liveDead.Resolved = true
	_ = repo.UpsertMarkets(ctx, []models.Market{liveDead})

	agg.SweepResolvedLegs(ctx)

	view := agg.Draft("k")
	if len(view.Legs) != 1 || view.Legs[0].MarketID != "live" {
		t.Fatalf("legs after sweep = %+v", view.Legs)
	}
	if view.Legs[0].Position != 0 {
		t.Fatalf("position after sweep = %d", view.Legs[0].Position)
	}
}
