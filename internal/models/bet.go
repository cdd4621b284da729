package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bet struct {
	BetID          string          `gorm:"primaryKey;type:text"`
	MarketID       string          `gorm:"type:text;not null;index"`
	Side           Side            `gorm:"type:varchar(3);not null"`
	AmountUSD      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	AmountXMR      decimal.Decimal `gorm:"type:numeric(30,12);not null"`
	DepositAddress string          `gorm:"type:text;not null;uniqueIndex"`
	AddressIndex   int64           `gorm:"not null;default:0"`
	ViewKey        string          `gorm:"type:text"`
	PayoutAddress  string          `gorm:"type:text"`
	Status         Status          `gorm:"type:varchar(20);not null;default:'created';index"`
	ExpiresAt      time.Time       `gorm:"type:timestamptz;not null"`
	KeyID          string          `gorm:"type:varchar(20);index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Bet) TableName() string {
	return "bets"
}
