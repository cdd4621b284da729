package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Market struct {
	ID              string           `gorm:"primaryKey;type:text"`
	Title           string           `gorm:"type:text;not null"`
	OracleType      string           `gorm:"type:varchar(20);not null;index"`
	ResolutionTime  int64            `gorm:"not null"`
	BettingClosesAt *int64           `gorm:"default:null"`
	BettingOpen     *bool            `gorm:"default:null"`
	CommenceTime    *int64           `gorm:"default:null"`
	YesPoolXMR      decimal.Decimal  `gorm:"type:numeric(30,12);not null;default:0"`
	NoPoolXMR       decimal.Decimal  `gorm:"type:numeric(30,12);not null;default:0"`
	Resolved        bool             `gorm:"not null;default:false;index"`
	Outcome         *string          `gorm:"type:varchar(3)"`
	PoolExists      bool             `gorm:"not null;default:false;index"`
	LastSeenAt      time.Time        `gorm:"type:timestamptz;not null"`
	RawJSON         datatypes.JSON   `gorm:"type:jsonb"`
	Volume          *decimal.Decimal `gorm:"type:numeric(30,12)"`
}

func (Market) TableName() string {
	return "markets"
}

const (
	OracleTypePrice   = "price"
	OracleTypeSports  = "sports"
	OracleTypeEsports = "esports"
	OracleTypeCricket = "cricket"
	OracleTypeManual  = "manual"
)
