package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/betwindow"
	"xmrbet/internal/client/predictions"
	"xmrbet/internal/metrics"
	"xmrbet/internal/models"
	"xmrbet/internal/repository"
)

// BetAPI is the slice of the remote client the tracker needs.
type BetAPI interface {
	CreateBet(ctx context.Context, req predictions.CreateBetRequest) (*predictions.BetReceipt, error)
	GetBetStatus(ctx context.Context, betID string) (*predictions.BetStatus, error)
	UpdateBetPayoutAddress(ctx context.Context, betID, address string) error
}

// Refresher lets the tracker request an immediate market-list refresh after a
// server-side window rejection.
type Refresher interface {
	RequestRefresh()
}

// BetTracker drives the single-bet lifecycle: validation, creation, local
// persistence, and monotonic status tracking against the remote API.
type BetTracker struct {
	Repo      repository.Repository
	API       BetAPI
	Markets   Refresher
	Logger    *zap.Logger
	MinBetUSD decimal.Decimal
}

// PlaceBetResult carries everything the deposit screen needs.
type PlaceBetResult struct {
	Bet        models.Bet
	DepositURI string
}

// PlaceBet validates locally before touching the network: amount floor,
// address shape, then the betting window against the local clock. A closed
// window fails fast with ErrBettingClosed and no request is sent.
func (t *BetTracker) PlaceBet(ctx context.Context, marketID string, side models.Side, amountUSD decimal.Decimal, payoutAddress, keyID string) (*PlaceBetResult, error) {
	if !side.Valid() {
		return nil, models.ErrInvalidSide
	}
	if amountUSD.LessThan(t.MinBetUSD) {
		return nil, models.ErrBelowMinimum
	}
	if !models.ValidAddress(payoutAddress) {
		return nil, models.ErrInvalidAddress
	}

	market, err := t.Repo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}
	if st := betwindow.Compute(market, time.Now(), 0); !st.Open {
		if market.Resolved {
			return nil, models.ErrAlreadyResolved
		}
		return nil, models.ErrBettingClosed
	}

	receipt, err := t.API.CreateBet(ctx, predictions.CreateBetRequest{
		MarketID:      marketID,
		Side:          side,
		AmountUSD:     amountUSD,
		PayoutAddress: payoutAddress,
	})
	if err != nil {
		// The local clock said open but the server disagreed; our market list
		// is stale, refresh it.
		if errors.Is(err, models.ErrBettingClosed) || errors.Is(err, models.ErrAlreadyResolved) {
			t.requestRefresh()
		}
		return nil, err
	}

	bet := models.Bet{
		BetID:          receipt.BetID,
		MarketID:       marketID,
		Side:           side,
		AmountUSD:      amountUSD,
		AmountXMR:      receipt.AmountXMR,
		DepositAddress: receipt.DepositAddress,
		AddressIndex:   receipt.AddressIndex,
		ViewKey:        receipt.ViewKey,
		PayoutAddress:  payoutAddress,
		Status:         models.StatusAwaitingDeposit,
		ExpiresAt:      time.Unix(receipt.ExpiresAt, 0).UTC(),
		KeyID:          keyID,
	}
	if err := t.Repo.InsertBet(ctx, &bet); err != nil {
		return nil, err
	}
	if t.Logger != nil {
		t.Logger.Info("bet placed",
			zap.String("bet_id", bet.BetID),
			zap.String("market_id", marketID),
			zap.String("side", string(side)),
			zap.String("amount_usd", amountUSD.String()))
	}

	return &PlaceBetResult{
		Bet:        bet,
		DepositURI: models.DepositURI(bet.DepositAddress, bet.AmountXMR),
	}, nil
}

// CheckStatus polls the remote status and folds it into the local record.
// Transitions are monotonic: a remote status behind the local one is a stale
// read and leaves the record untouched. Safe to call redundantly.
func (t *BetTracker) CheckStatus(ctx context.Context, betID string) (models.Status, error) {
	bet, err := t.Repo.GetBet(ctx, betID)
	if err != nil {
		return "", err
	}
	if bet == nil {
		return "", ErrBetNotFound
	}
	if bet.Status.Terminal() {
		return bet.Status, nil
	}

	remote, err := t.API.GetBetStatus(ctx, betID)
	if err != nil {
		metrics.StatusPolls.WithLabelValues("bet", "error").Inc()
		return bet.Status, err
	}
	metrics.StatusPolls.WithLabelValues("bet", "ok").Inc()

	advanced := models.Advance(bet.Status, remote.Status)
	if advanced == bet.Status {
		return bet.Status, nil
	}
	if err := t.Repo.UpdateBetStatus(ctx, betID, advanced); err != nil {
		return bet.Status, err
	}
	if t.Logger != nil {
		t.Logger.Info("bet status advanced",
			zap.String("bet_id", betID),
			zap.String("from", string(bet.Status)),
			zap.String("to", string(advanced)))
	}
	return advanced, nil
}

// SubmitPayoutAddress sets or replaces the payout address, which is only
// permitted before the deposit is confirmed or while no address is on record.
func (t *BetTracker) SubmitPayoutAddress(ctx context.Context, betID, address string) error {
	if !models.ValidAddress(address) {
		return models.ErrInvalidAddress
	}
	bet, err := t.Repo.GetBet(ctx, betID)
	if err != nil {
		return err
	}
	if bet == nil {
		return ErrBetNotFound
	}
	if bet.PayoutAddress != "" && models.Advance(bet.Status, models.StatusAwaitingDeposit) != models.StatusAwaitingDeposit {
		return ErrPayoutLocked
	}
	if err := t.API.UpdateBetPayoutAddress(ctx, betID, address); err != nil {
		return err
	}
	return t.Repo.UpdateBetPayoutAddress(ctx, betID, address)
}

func (t *BetTracker) requestRefresh() {
	if t.Markets != nil {
		t.Markets.RequestRefresh()
	}
}
