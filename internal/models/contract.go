package models

import (
	"time"
)

// Contract is the aggregate root of the contract management engine
type Contract struct {
	ID                uint          `gorm:"primaryKey" json:"-"`
	ContractID        string        `gorm:"size:64;uniqueIndex;not null" json:"contractId"`
	ContractNumber    string        `gorm:"size:64;uniqueIndex;not null" json:"contractNumber"`
	Title             string        `gorm:"not null" json:"title"`
	ClientID          string        `gorm:"size:64;index" json:"clientId"`
	ClientName        string        `json:"clientName"`
	ContractType      string        `gorm:"size:32;index" json:"contractType"`
	Status            string        `gorm:"size:32;index;not null" json:"status"`
	StartDate         time.Time     `gorm:"not null" json:"startDate"`
	EndDate           time.Time     `gorm:"not null;index" json:"endDate"`
	TotalValue        float64       `gorm:"type:decimal(18,2);not null" json:"totalValue"`
	OriginalValue     float64       `gorm:"type:decimal(18,2);not null" json:"originalValue"`
	Currency          string        `gorm:"size:3;not null" json:"currency"`
	Terms             ContractTerms `gorm:"embedded;embeddedPrefix:terms_" json:"terms"`
	RiskLevel         string        `gorm:"size:16" json:"riskLevel"`
	Priority          string        `gorm:"size:16" json:"priority"`
	AssignedTo        string        `json:"assignedTo"`
	Department        string        `json:"department"`
	IsActive          bool          `gorm:"index;not null" json:"isActive"`
	AutoRenew         bool          `json:"autoRenew"`
	RenewalNoticeDays int           `json:"renewalNoticeDays"`
	ParentContractID  *string       `gorm:"size:64;index" json:"parentContractId,omitempty"`
	AuditTrail        []AuditEntry  `gorm:"serializer:json;type:text" json:"auditTrail"`
	Version           int           `gorm:"not null" json:"version"`
	CreatedBy         string        `json:"createdBy"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`

	// Computed, never persisted
	Duration           int                 `gorm:"-" json:"duration"`
	PerformanceMetrics *PerformanceMetrics `gorm:"-" json:"performanceMetrics,omitempty"`
}

// TableName specifies the table name for Contract
func (Contract) TableName() string {
	return "contracts"
}

// ContractTerms holds the free-form legal terms of a contract
type ContractTerms struct {
	Scope              string `gorm:"type:text" json:"scope"`
	Deliverables       string `gorm:"type:text" json:"deliverables"`
	AcceptanceCriteria string `gorm:"type:text" json:"acceptanceCriteria"`
	Warranty           string `gorm:"type:text" json:"warranty"`
	PaymentTerms       string `gorm:"type:text" json:"paymentTerms"`
}

// AuditEntry is one append-only record of the contract's audit trail
type AuditEntry struct {
	Action    string    `json:"action"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// PerformanceMetrics is derived from the contract's milestones
type PerformanceMetrics struct {
	CompletionPercentage float64 `json:"completionPercentage"`
	MilestoneProgress    string  `json:"milestoneProgress"`
	BudgetUtilization    float64 `json:"budgetUtilization"`
}

// Contract status constants
const (
	ContractStatusDraft      = "Draft"
	ContractStatusPending    = "Pending"
	ContractStatusActive     = "Active"
	ContractStatusCompleted  = "Completed"
	ContractStatusTerminated = "Terminated"
	ContractStatusRenewed    = "Renewed"
)

// Contract type constants
const (
	ContractTypeFixedPrice     = "Fixed Price"
	ContractTypeTimeMaterials  = "Time & Materials"
	ContractTypeRecurring      = "Recurring"
	ContractTypeRetainer       = "Retainer"
	ContractTypeMilestoneBased = "Milestone Based"
)

const (
	DefaultCurrency          = "USD"
	DefaultRenewalNoticeDays = 30
)

// Risk level constants, shared by contracts, milestones and alerts
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// ContractTypes lists every accepted contract type
var ContractTypes = []string{
	ContractTypeFixedPrice,
	ContractTypeTimeMaterials,
	ContractTypeRecurring,
	ContractTypeRetainer,
	ContractTypeMilestoneBased,
}

// DurationDays returns the inclusive number of days covered by the contract
func (c *Contract) DurationDays() int {
	return InclusiveDays(c.StartDate, c.EndDate)
}

// Contains reports whether t falls within the contract period (inclusive)
func (c *Contract) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(DateOnly(c.StartDate)) && !d.After(DateOnly(c.EndDate))
}

// AppendAudit adds an entry to the audit trail
func (c *Contract) AppendAudit(action, userID, details string) {
	c.AuditTrail = append(c.AuditTrail, AuditEntry{
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
}

// IsTerminal returns true when no further status change is allowed
func (c *Contract) IsTerminal() bool {
	return c.Status == ContractStatusTerminated || c.Status == ContractStatusRenewed
}

// MayActivate returns true if the contract can be activated by the workflow
func (c *Contract) MayActivate() bool {
	return c.Status == ContractStatusDraft || c.Status == ContractStatusPending
}

// MayRenew returns true if a successor contract can be created
func (c *Contract) MayRenew() bool {
	return c.Status == ContractStatusActive || c.Status == ContractStatusCompleted
}

// DateOnly truncates t to midnight UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InclusiveDays counts calendar days from start to end, both included
func InclusiveDays(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours()/24) + 1
}
