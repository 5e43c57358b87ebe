package models

import (
	"time"
)

// Milestone is a dated, weighted deliverable of a contract
type Milestone struct {
	ID                 uint       `gorm:"primaryKey" json:"-"`
	ContractID         string     `gorm:"size:64;index;not null" json:"contractId"`
	MilestoneID        string     `gorm:"size:64;uniqueIndex;not null" json:"milestoneId"`
	Title              string     `gorm:"not null" json:"title"`
	Description        string     `gorm:"type:text" json:"description"`
	TargetDate         time.Time  `gorm:"not null;index" json:"targetDate"`
	Value              float64    `gorm:"type:decimal(18,2)" json:"value"`
	Percentage         float64    `gorm:"type:decimal(5,2)" json:"percentage"`
	Status             string     `gorm:"size:32;index;not null" json:"status"`
	Deliverables       []string   `gorm:"serializer:json;type:text" json:"deliverables"`
	AcceptanceCriteria []string   `gorm:"serializer:json;type:text" json:"acceptanceCriteria"`
	Dependencies       []string   `gorm:"serializer:json;type:text" json:"dependencies"`
	IsBillable         bool       `json:"isBillable"`
	CompletionDate     *time.Time `json:"completionDate,omitempty"`
	ActualValue        *float64   `gorm:"type:decimal(18,2)" json:"actualValue,omitempty"`
	CompletionNotes    string     `gorm:"type:text" json:"completionNotes,omitempty"`
	CompletionWarnings []string   `gorm:"serializer:json;type:text" json:"completionWarnings,omitempty"`
	BillingScheduleID  *string    `gorm:"size:80" json:"billingScheduleId,omitempty"`
	AssignedTo         string     `json:"assignedTo"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`

	Progress *MilestoneProgress `gorm:"-" json:"progress,omitempty"`
	Risk     *MilestoneRisk     `gorm:"-" json:"risk,omitempty"`
}

// TableName specifies the table name for Milestone
func (Milestone) TableName() string {
	return "milestones"
}

// MilestoneProgress is computed from target date, today and status
type MilestoneProgress struct {
	PercentageComplete float64 `json:"percentageComplete"`
	DaysRemaining      int     `json:"daysRemaining"`
	IsOnTrack          bool    `json:"isOnTrack"`
}

// MilestoneRisk is computed from target date, today and status
type MilestoneRisk struct {
	RiskLevel       string   `json:"riskLevel"`
	RiskFactors     []string `json:"riskFactors"`
	MitigationPlans []string `json:"mitigationPlans"`
}

// Milestone status constants
const (
	MilestoneStatusNotStarted = "Not Started"
	MilestoneStatusInProgress = "In Progress"
	MilestoneStatusCompleted  = "Completed"
	MilestoneStatusDelayed    = "Delayed"
	MilestoneStatusCancelled  = "Cancelled"
)

// CountsTowardsBudget returns true when the percentage is part of the contract budget
func (m *Milestone) CountsTowardsBudget() bool {
	return m.Status != MilestoneStatusCancelled
}

// IsOpen returns true while the milestone still blocks a hard delete
func (m *Milestone) IsOpen() bool {
	return m.Status != MilestoneStatusCompleted && m.Status != MilestoneStatusCancelled
}

// IsCompleted returns true if the milestone was delivered
func (m *Milestone) IsCompleted() bool {
	return m.Status == MilestoneStatusCompleted
}

// MayTriggerBilling returns true if a billing schedule can be generated for it
func (m *Milestone) MayTriggerBilling() bool {
	return m.IsBillable && m.BillingScheduleID == nil
}

// EffectiveValue returns the actual value when recorded, else the planned one
func (m *Milestone) EffectiveValue() float64 {
	if m.ActualValue != nil {
		return *m.ActualValue
	}
	return m.Value
}
