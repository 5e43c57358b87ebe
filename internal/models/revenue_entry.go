package models

import (
	"time"
)

// RevenueEntry is a revenue-recognition ledger row posted for a completed milestone
type RevenueEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ContractID  string    `gorm:"size:64;not null;index" json:"contractId"`
	MilestoneID string    `gorm:"size:64;not null;index" json:"milestoneId"`
	Amount      float64   `gorm:"type:decimal(18,2);not null" json:"amount"` // Negative for deferral reversals
	EntryType   string    `gorm:"size:32;not null;index" json:"entryType"`
	Period      string    `gorm:"size:7;not null;index" json:"period"` // YYYY-MM
	Description string    `json:"description"`
	PostedAt    time.Time `gorm:"not null" json:"postedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Entry type constants
const (
	RevenueEntryRecognized         = "recognized"
	RevenueEntryDeferredAdjustment = "deferred_adjustment"
)

// TableName specifies the table name for RevenueEntry
func (RevenueEntry) TableName() string {
	return "revenue_entries"
}

// RevenuePeriod formats the accounting period of t
func RevenuePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}
