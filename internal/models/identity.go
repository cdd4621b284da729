package models

import "time"

// Identity is a registered anonymous account. Only the public half is ever
// stored; the private key is the sole credential and never persisted.
type Identity struct {
	KeyID      string `gorm:"primaryKey;type:varchar(20)"`
	PublicKey  string `gorm:"type:text;not null;uniqueIndex"`
	Difficulty int    `gorm:"not null"`
	Nonce      uint64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Identity) TableName() string {
	return "identities"
}
