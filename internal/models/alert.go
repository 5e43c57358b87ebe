package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alert is raised by the workflow layer for expirations, risks and escalations
type Alert struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Type        string         `gorm:"size:32;index;not null" json:"type"`
	Severity    string         `gorm:"size:16;not null" json:"severity"`
	ContractID  string         `gorm:"size:64;index;not null" json:"contractId"`
	MilestoneID *string        `gorm:"size:64;index" json:"milestoneId,omitempty"`
	ScheduleID  *string        `gorm:"size:80" json:"scheduleId,omitempty"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	Status      string         `gorm:"size:16;index;not null" json:"status"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	ResolvedBy  string         `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}

// Alert type constants
const (
	AlertTypeExpiration    = "expiration"
	AlertTypeMilestoneRisk = "milestone_risk"
	AlertTypeEscalation    = "escalation"
	AlertTypeBillingDue    = "billing_due"
)

// Alert status constants
const (
	AlertStatusOpen         = "open"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// IsOpen returns true while the alert still deduplicates new ones
func (a *Alert) IsOpen() bool {
	return a.Status != AlertStatusResolved
}
