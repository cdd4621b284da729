package repository

import (
	"context"

	"xmrbet/internal/models"
)

// Repository is the local mirror of engine state. Bets and slips are owned by
// the tracker/aggregator that created them; markets are a cache of the remote
// list annotated with pool validity.
type Repository interface {
	// Markets.
	UpsertMarkets(ctx context.Context, items []models.Market) error
	SetPoolExists(ctx context.Context, marketIDs []string) error
	ListMarkets(ctx context.Context, includeResolved bool) ([]models.Market, error)
	ListValidMarkets(ctx context.Context) ([]models.Market, error)
	GetMarket(ctx context.Context, marketID string) (*models.Market, error)
	DeleteMarket(ctx context.Context, marketID string) error

	// Bets.
	InsertBet(ctx context.Context, item *models.Bet) error
	GetBet(ctx context.Context, betID string) (*models.Bet, error)
	ListBetsByKey(ctx context.Context, keyID string) ([]models.Bet, error)
	ListOpenBets(ctx context.Context) ([]models.Bet, error)
	UpdateBetStatus(ctx context.Context, betID string, status models.Status) error
	UpdateBetPayoutAddress(ctx context.Context, betID, address string) error

	// Slips.
	SaveSlip(ctx context.Context, item *models.Slip) error
	GetSlip(ctx context.Context, slipID string) (*models.Slip, error)
	ListSlipsByKey(ctx context.Context, keyID string) ([]models.Slip, error)
	ListOpenSlips(ctx context.Context) ([]models.Slip, error)
	UpdateSlipStatus(ctx context.Context, slipID string, status models.Status) error
	UpdateSlipPayoutAddress(ctx context.Context, slipID, address string) error
	UpdateLegOutcome(ctx context.Context, legID string, outcome string) error

	// Identities.
	InsertIdentity(ctx context.Context, item *models.Identity) error
	GetIdentityByKeyID(ctx context.Context, keyID string) (*models.Identity, error)
}
