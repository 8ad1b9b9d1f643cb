package billing

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount holds the live balance per requester. Balance never goes
// below zero: debits run through a conditional UPDATE guard.
type CreditAccount struct {
	RequesterID uuid.UUID `gorm:"type:uuid;primaryKey" json:"requester_id"`
	Tier        string    `gorm:"not null" json:"tier"`
	Balance     int       `gorm:"not null" json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LedgerEntry is one append-only balance movement. Negative delta on
// consumption, positive on grants and releases.
type LedgerEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID uuid.UUID `gorm:"type:uuid;index;not null" json:"requester_id"`
	Tier        string    `json:"tier"`
	Delta       int       `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"not null" json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
