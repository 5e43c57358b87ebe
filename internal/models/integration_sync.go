package models

import (
	"time"

	"gorm.io/datatypes"
)

// IntegrationSync records one outbound call to an external system
type IntegrationSync struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Target     string         `gorm:"size:32;not null;index" json:"target"`
	Operation  string         `gorm:"size:64;not null" json:"operation"`
	Direction  string         `gorm:"size:8;not null" json:"direction"`
	ContractID *string        `gorm:"size:64;index" json:"contractId,omitempty"`
	Status     string         `gorm:"size:16;not null;index" json:"status"`
	StatusCode int            `json:"statusCode,omitempty"`
	Request    datatypes.JSON `json:"request,omitempty"`
	Response   datatypes.JSON `json:"response,omitempty"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64          `json:"durationMs"`
	CreatedBy  string         `json:"createdBy"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TableName specifies the table name for IntegrationSync
func (IntegrationSync) TableName() string {
	return "integration_syncs"
}

// Integration targets
const (
	IntegrationTargetCRM        = "crm"
	IntegrationTargetPM         = "project_management"
	IntegrationTargetAccounting = "accounting"
)

// Sync direction constants
const (
	SyncDirectionOutbound = "outbound"
	SyncDirectionInbound  = "inbound"
)

// Sync status constants
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)
