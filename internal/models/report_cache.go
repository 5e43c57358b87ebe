package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReportCache stores a computed report payload until it expires
type ReportCache struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CacheKey  string         `gorm:"size:191;uniqueIndex;not null" json:"cacheKey"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for ReportCache
func (ReportCache) TableName() string {
	return "report_cache"
}

// IsExpired returns true once the payload is stale
func (r *ReportCache) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
