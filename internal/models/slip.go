package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Slip struct {
	SlipID         string          `gorm:"primaryKey;type:text"`
	TotalAmountUSD decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalAmountXMR decimal.Decimal `gorm:"type:numeric(30,12);not null"`
	XMRAddress     string          `gorm:"type:text;uniqueIndex"`
	ViewKey        string          `gorm:"type:text"`
	PayoutAddress  string          `gorm:"type:text"`
	Status         Status          `gorm:"type:varchar(20);not null;default:'draft';index"`
	ExpiresAt      time.Time       `gorm:"type:timestamptz"`
	KeyID          string          `gorm:"type:varchar(20);index"`

	Legs []SlipLeg `gorm:"foreignKey:SlipID;references:SlipID"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Slip) TableName() string {
	return "slips"
}

type SlipLeg struct {
	LegID     string          `gorm:"primaryKey;type:text"`
	SlipID    string          `gorm:"type:text;not null;index"`
	MarketID  string          `gorm:"type:text;not null;index"`
	Side      Side            `gorm:"type:varchar(3);not null"`
	AmountUSD decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Outcome   *string         `gorm:"type:varchar(4)"`
	Position  int             `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SlipLeg) TableName() string {
	return "slip_legs"
}

const (
	LegOutcomeWon  = "WON"
	LegOutcomeLost = "LOST"
)
