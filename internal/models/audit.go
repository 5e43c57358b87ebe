package models

import (
	"time"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"userId"`
	Action    string    `gorm:"size:50;not null" json:"action"`       // CREATE, UPDATE, DELETE, LOGIN, APPROVE, IMPLEMENT
	Entity    string    `gorm:"size:50;not null;index" json:"entity"` // Contract, Amendment, Milestone, BillingSchedule
	EntityKey string    `gorm:"size:80;index" json:"entityKey"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ipAddress"`
	UserAgent string    `gorm:"size:255" json:"userAgent"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AllModels lists every persisted model in migration order
func AllModels() []any {
	return []any{
		&User{},
		&AuditLog{},
		&Client{},
		&Contract{},
		&ContractAmendment{},
		&Milestone{},
		&BillingSchedule{},
		&Alert{},
		&RevenueEntry{},
		&IntegrationSync{},
		&ReportCache{},
	}
}
