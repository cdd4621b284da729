package gormrepository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"xmrbet/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Markets ----------------------------------------------------------------

func (s *Store) UpsertMarkets(ctx context.Context, items []models.Market) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"oracle_type",
			"resolution_time",
			"betting_closes_at",
			"betting_open",
			"commence_time",
			"yes_pool_xmr",
			"no_pool_xmr",
			"resolved",
			"outcome",
			"last_seen_at",
			"raw_json",
		}),
	}).Create(&items).Error
}

// SetPoolExists flips pool validity: the given markets are marked valid,
// everything else invalid. One validation pass owns the whole flag.
func (s *Store) SetPoolExists(ctx context.Context, marketIDs []string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Market{}).Where("pool_exists = ?", true).
			Update("pool_exists", false).Error; err != nil {
			return err
		}
		if len(marketIDs) == 0 {
			return nil
		}
		return tx.Model(&models.Market{}).Where("id IN ?", marketIDs).
			Update("pool_exists", true).Error
	})
}

func (s *Store) ListMarkets(ctx context.Context, includeResolved bool) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Market{})
	if !includeResolved {
		query = query.Where("resolved = ?", false)
	}
	var items []models.Market
	if err := query.Order("resolution_time asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListValidMarkets(ctx context.Context) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).
		Where("pool_exists = ? AND resolved = ?", true, false).
		Order("resolution_time asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).Where("id = ?", marketID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) DeleteMarket(ctx context.Context, marketID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", marketID).Delete(&models.Market{}).Error
}

// --- Bets -------------------------------------------------------------------

func (s *Store) InsertBet(ctx context.Context, item *models.Bet) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetBet(ctx context.Context, betID string) (*models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Bet
	err := s.db.WithContext(ctx).Where("bet_id = ?", betID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListBetsByKey(ctx context.Context, keyID string) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Bet
	if err := s.db.WithContext(ctx).
		Where("key_id = ?", keyID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenBets(ctx context.Context) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Bet
	if err := s.db.WithContext(ctx).
		Where("status NOT IN ?", []models.Status{models.StatusPaid, models.StatusRefunded}).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateBetStatus(ctx context.Context, betID string, status models.Status) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Bet{}).
		Where("bet_id = ?", betID).
		Update("status", status).Error
}

func (s *Store) UpdateBetPayoutAddress(ctx context.Context, betID, address string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Bet{}).
		Where("bet_id = ?", betID).
		Update("payout_address", address).Error
}

// --- Slips ------------------------------------------------------------------

func (s *Store) SaveSlip(ctx context.Context, item *models.Slip) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slip_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_amount_usd",
				"total_amount_xmr",
				"xmr_address",
				"view_key",
				"payout_address",
				"status",
				"expires_at",
			}),
		}).Omit("Legs").Create(item).Error; err != nil {
			return err
		}
		if err := tx.Where("slip_id = ?", item.SlipID).Delete(&models.SlipLeg{}).Error; err != nil {
			return err
		}
		if len(item.Legs) == 0 {
			return nil
		}
		return tx.Create(&item.Legs).Error
	})
}

func (s *Store) GetSlip(ctx context.Context, slipID string) (*models.Slip, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Slip
	err := s.db.WithContext(ctx).
		Preload("Legs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("slip_id = ?", slipID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSlipsByKey(ctx context.Context, keyID string) ([]models.Slip, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Slip
	if err := s.db.WithContext(ctx).
		Preload("Legs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("key_id = ?", keyID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenSlips(ctx context.Context) ([]models.Slip, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Slip
	if err := s.db.WithContext(ctx).
		Preload("Legs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("status NOT IN ?", []models.Status{models.StatusDraft, models.StatusPaid, models.StatusRefunded}).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateSlipStatus(ctx context.Context, slipID string, status models.Status) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Slip{}).
		Where("slip_id = ?", slipID).
		Update("status", status).Error
}

func (s *Store) UpdateSlipPayoutAddress(ctx context.Context, slipID, address string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Slip{}).
		Where("slip_id = ?", slipID).
		Update("payout_address", address).Error
}

func (s *Store) UpdateLegOutcome(ctx context.Context, legID string, outcome string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.SlipLeg{}).
		Where("leg_id = ?", legID).
		Update("outcome", outcome).Error
}

// --- Identities -------------------------------------------------------------

func (s *Store) InsertIdentity(ctx context.Context, item *models.Identity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetIdentityByKeyID(ctx context.Context, keyID string) (*models.Identity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Identity
	err := s.db.WithContext(ctx).Where("key_id = ?", keyID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
