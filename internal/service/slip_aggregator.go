package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/betwindow"
	"xmrbet/internal/client/predictions"
	"xmrbet/internal/metrics"
	"xmrbet/internal/models"
	"xmrbet/internal/repository"
)

// SlipAPI is the slice of the remote client the aggregator needs.
type SlipAPI interface {
	CreateSlip(ctx context.Context, req predictions.CreateSlipRequest) (*predictions.SlipReceipt, error)
	GetSlipStatus(ctx context.Context, slipID string) (*predictions.SlipStatus, error)
	UpdateSlipPayoutAddress(ctx context.Context, slipID, address string) error
}

// draft is the pre-checkout betslip for one identity. Legs are mutable only
// here; checkout freezes them into a persisted slip.
type draft struct {
	legs        []models.SlipLeg
	lastRemoved *models.SlipLeg
	inFlight    bool
	slipID      string // set once checkout succeeded; makes re-checkout idempotent
}

// SlipAggregator maintains one draft betslip per identity and converts it,
// atomically and exactly once, into a multi-leg slip funded by a single
// shared deposit address.
type SlipAggregator struct {
	Repo      repository.Repository
	API       SlipAPI
	Markets   Refresher
	Logger    *zap.Logger
	MinBetUSD decimal.Decimal

	mu     sync.Mutex
	drafts map[string]*draft
}

func (a *SlipAggregator) draftFor(keyID string) *draft {
	if a.drafts == nil {
		a.drafts = map[string]*draft{}
	}
	d, ok := a.drafts[keyID]
	if !ok {
		d = &draft{}
		a.drafts[keyID] = d
	}
	return d
}

// DraftView is a snapshot of the current draft for display.
type DraftView struct {
	Legs           []models.SlipLeg `json:"legs"`
	TotalAmountUSD decimal.Decimal  `json:"total_amount_usd"`
	CanUndo        bool             `json:"can_undo"`
	SlipID         string           `json:"slip_id,omitempty"`
}

func snapshot(d *draft) DraftView {
	legs := make([]models.SlipLeg, len(d.legs))
	copy(legs, d.legs)
	return DraftView{
		Legs:           legs,
		TotalAmountUSD: legTotal(d.legs),
		CanUndo:        d.lastRemoved != nil,
		SlipID:         d.slipID,
	}
}

func legTotal(legs []models.SlipLeg) decimal.Decimal {
	total := decimal.Zero
	for _, l := range legs {
		total = total.Add(l.AmountUSD)
	}
	return total
}

func (a *SlipAggregator) Draft(keyID string) DraftView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return snapshot(a.draftFor(keyID))
}

// AddLeg appends a leg to the draft. The market must exist locally and its
// betting window must still be open.
func (a *SlipAggregator) AddLeg(ctx context.Context, keyID, marketID string, side models.Side, amountUSD decimal.Decimal) (DraftView, error) {
	if !side.Valid() {
		return DraftView{}, models.ErrInvalidSide
	}
	if amountUSD.LessThan(a.MinBetUSD) {
		return DraftView{}, models.ErrBelowMinimum
	}
	market, err := a.Repo.GetMarket(ctx, marketID)
	if err != nil {
		return DraftView{}, err
	}
	if market == nil {
		return DraftView{}, ErrMarketNotFound
	}
	if st := betwindow.Compute(market, time.Now(), 0); !st.Open {
		if market.Resolved {
			return DraftView{}, models.ErrAlreadyResolved
		}
		return DraftView{}, models.ErrBettingClosed
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.draftFor(keyID)
	if d.slipID != "" {
		return snapshot(d), ErrSlipNotDraft
	}
	d.legs = append(d.legs, models.SlipLeg{
		LegID:     uuid.NewString(),
		MarketID:  marketID,
		Side:      side,
		AmountUSD: amountUSD,
		Position:  len(d.legs),
	})
	return snapshot(d), nil
}

// RemoveLeg drops a leg and stashes it for a single undo. Removing another
// leg discards the previous stash permanently.
func (a *SlipAggregator) RemoveLeg(keyID, legID string) (DraftView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.draftFor(keyID)
	if d.slipID != "" {
		return snapshot(d), ErrSlipNotDraft
	}
	for i, l := range d.legs {
		if l.LegID != legID {
			continue
		}
		removed := l
		d.legs = append(d.legs[:i], d.legs[i+1:]...)
		renumber(d.legs)
		d.lastRemoved = &removed
		return snapshot(d), nil
	}
	return snapshot(d), ErrLegNotFound
}

// UndoRemove restores the last removed leg, exactly once.
func (a *SlipAggregator) UndoRemove(keyID string) (DraftView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.draftFor(keyID)
	if d.slipID != "" {
		return snapshot(d), ErrSlipNotDraft
	}
	if d.lastRemoved == nil {
		return snapshot(d), ErrNothingToUndo
	}
	leg := *d.lastRemoved
	leg.Position = len(d.legs)
	d.legs = append(d.legs, leg)
	d.lastRemoved = nil
	return snapshot(d), nil
}

// ReorderLegs applies a full permutation of the current leg ids.
func (a *SlipAggregator) ReorderLegs(keyID string, orderedLegIDs []string) (DraftView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.draftFor(keyID)
	if d.slipID != "" {
		return snapshot(d), ErrSlipNotDraft
	}
	if len(orderedLegIDs) != len(d.legs) {
		return snapshot(d), ErrLegNotFound
	}
	byID := make(map[string]models.SlipLeg, len(d.legs))
	for _, l := range d.legs {
		byID[l.LegID] = l
	}
	reordered := make([]models.SlipLeg, 0, len(d.legs))
	for _, id := range orderedLegIDs {
		l, ok := byID[id]
		if !ok {
			return snapshot(d), ErrLegNotFound
		}
		delete(byID, id)
		reordered = append(reordered, l)
	}
	d.legs = reordered
	renumber(d.legs)
	return snapshot(d), nil
}

func (a *SlipAggregator) UpdateLegAmount(keyID, legID string, amountUSD decimal.Decimal) (DraftView, error) {
	if amountUSD.LessThan(a.MinBetUSD) {
		return DraftView{}, models.ErrBelowMinimum
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.draftFor(keyID)
	if d.slipID != "" {
		return snapshot(d), ErrSlipNotDraft
	}
	for i := range d.legs {
		if d.legs[i].LegID == legID {
			d.legs[i].AmountUSD = amountUSD
			return snapshot(d), nil
		}
	}
	return snapshot(d), ErrLegNotFound
}

// Clear resets the draft, dropping legs, undo buffer, and any checked-out
// slip reference so a fresh slip can be built.
func (a *SlipAggregator) Clear(keyID string) DraftView {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drafts == nil {
		a.drafts = map[string]*draft{}
	}
	a.drafts[keyID] = &draft{}
	return snapshot(a.drafts[keyID])
}

// Checkout converts the draft into one remote slip with a single shared
// deposit address. Calling it again for an already checked-out draft returns
// the existing slip; a second concurrent call fails with
// ErrCheckoutInFlight rather than creating a duplicate.
func (a *SlipAggregator) Checkout(ctx context.Context, keyID, payoutAddress string) (*models.Slip, error) {
	a.mu.Lock()
	d := a.draftFor(keyID)
	if d.slipID != "" {
		slipID := d.slipID
		a.mu.Unlock()
		return a.loadSlip(ctx, slipID)
	}
	if d.inFlight {
		a.mu.Unlock()
		return nil, ErrCheckoutInFlight
	}
	if len(d.legs) == 0 {
		a.mu.Unlock()
		return nil, ErrEmptySlip
	}
	if !models.ValidAddress(payoutAddress) {
		a.mu.Unlock()
		return nil, models.ErrInvalidAddress
	}
	legs := make([]models.SlipLeg, len(d.legs))
	copy(legs, d.legs)
	d.inFlight = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		d.inFlight = false
		a.mu.Unlock()
	}()

	req := predictions.CreateSlipRequest{PayoutAddress: payoutAddress}
	for _, l := range legs {
		req.Legs = append(req.Legs, predictions.SlipLegRequest{
			MarketID:  l.MarketID,
			Side:      l.Side,
			AmountUSD: l.AmountUSD,
		})
	}
	receipt, err := a.API.CreateSlip(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrBettingClosed) || errors.Is(err, models.ErrAlreadyResolved) {
			if a.Markets != nil {
				a.Markets.RequestRefresh()
			}
		}
		return nil, err
	}

	slip := models.Slip{
		SlipID:         receipt.SlipID,
		TotalAmountUSD: legTotal(legs),
		TotalAmountXMR: receipt.TotalAmountXMR,
		XMRAddress:     receipt.XMRAddress,
		ViewKey:        receipt.ViewKey,
		PayoutAddress:  payoutAddress,
		Status:         models.StatusAwaitingDeposit,
		ExpiresAt:      time.Unix(receipt.ExpiresAt, 0).UTC(),
		KeyID:          keyID,
	}
	for i := range legs {
		legs[i].SlipID = receipt.SlipID
		legs[i].Position = i
	}
	slip.Legs = legs
	if err := a.Repo.SaveSlip(ctx, &slip); err != nil {
		return nil, err
	}

	a.mu.Lock()
	d.slipID = receipt.SlipID
	a.mu.Unlock()

	if a.Logger != nil {
		a.Logger.Info("slip checked out",
			zap.String("slip_id", slip.SlipID),
			zap.Int("legs", len(slip.Legs)),
			zap.String("total_usd", slip.TotalAmountUSD.String()))
	}
	return &slip, nil
}

// CheckStatus polls the remote slip status and folds it into the local
// record, monotonically, along with any per-leg outcomes. A slip resolves
// only once every leg has a determined outcome.
func (a *SlipAggregator) CheckStatus(ctx context.Context, slipID string) (models.Status, error) {
	slip, err := a.loadSlip(ctx, slipID)
	if err != nil {
		return "", err
	}
	if slip.Status.Terminal() {
		return slip.Status, nil
	}

	remote, err := a.API.GetSlipStatus(ctx, slipID)
	if err != nil {
		metrics.StatusPolls.WithLabelValues("slip", "error").Inc()
		return slip.Status, err
	}
	metrics.StatusPolls.WithLabelValues("slip", "ok").Inc()

	legByMarket := map[string]*models.SlipLeg{}
	for i := range slip.Legs {
		legByMarket[slip.Legs[i].MarketID] = &slip.Legs[i]
	}
	for _, rl := range remote.Legs {
		if rl.Outcome == nil {
			continue
		}
		leg, ok := legByMarket[rl.MarketID]
		if !ok || leg.Outcome != nil {
			continue
		}
		if err := a.Repo.UpdateLegOutcome(ctx, leg.LegID, *rl.Outcome); err != nil {
			return slip.Status, err
		}
	}

	advanced := models.Advance(slip.Status, remote.Status)
	if advanced == slip.Status {
		return slip.Status, nil
	}
	if err := a.Repo.UpdateSlipStatus(ctx, slipID, advanced); err != nil {
		return slip.Status, err
	}
	return advanced, nil
}

// SubmitPayoutAddress mirrors the bet-level rule at slip granularity.
func (a *SlipAggregator) SubmitPayoutAddress(ctx context.Context, slipID, address string) error {
	if !models.ValidAddress(address) {
		return models.ErrInvalidAddress
	}
	slip, err := a.loadSlip(ctx, slipID)
	if err != nil {
		return err
	}
	if slip.PayoutAddress != "" && models.Advance(slip.Status, models.StatusAwaitingDeposit) != models.StatusAwaitingDeposit {
		return ErrPayoutLocked
	}
	if err := a.API.UpdateSlipPayoutAddress(ctx, slipID, address); err != nil {
		return err
	}
	return a.Repo.UpdateSlipPayoutAddress(ctx, slipID, address)
}

// SweepResolvedLegs drops draft legs whose market has since resolved or
// closed; such a leg can no longer be placed. Checked-out slips are not
// touched. Runs on a timer.
func (a *SlipAggregator) SweepResolvedLegs(ctx context.Context) {
	a.mu.Lock()
	keys := make([]string, 0, len(a.drafts))
	for k := range a.drafts {
		keys = append(keys, k)
	}
	a.mu.Unlock()

	now := time.Now()
	for _, keyID := range keys {
		a.mu.Lock()
		d := a.draftFor(keyID)
		if d.slipID != "" || len(d.legs) == 0 {
			a.mu.Unlock()
			continue
		}
		legs := make([]models.SlipLeg, len(d.legs))
		copy(legs, d.legs)
		a.mu.Unlock()

		dead := map[string]bool{}
		for _, l := range legs {
			market, err := a.Repo.GetMarket(ctx, l.MarketID)
			if err != nil {
				continue
			}
			if market == nil || !betwindow.Compute(market, now, 0).Open {
				dead[l.LegID] = true
			}
		}
		if len(dead) == 0 {
			continue
		}

		a.mu.Lock()
		kept := d.legs[:0]
		for _, l := range d.legs {
			if !dead[l.LegID] {
				kept = append(kept, l)
			}
		}
		d.legs = kept
		renumber(d.legs)
		a.mu.Unlock()

		if a.Logger != nil {
			a.Logger.Info("dropped dead draft legs",
				zap.String("key_id", keyID),
				zap.Int("dropped", len(dead)))
		}
	}
}

func (a *SlipAggregator) loadSlip(ctx context.Context, slipID string) (*models.Slip, error) {
	slip, err := a.Repo.GetSlip(ctx, slipID)
	if err != nil {
		return nil, err
	}
	if slip == nil {
		return nil, ErrSlipNotFound
	}
	return slip, nil
}

func renumber(legs []models.SlipLeg) {
	for i := range legs {
		legs[i].Position = i
	}
}
