package models

import (
	"time"
)

// ContractAmendment is a change request against a contract's scope, value or timeline
type ContractAmendment struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	ContractID       string         `gorm:"size:64;index;not null" json:"contractId"`
	AmendmentNumber  string         `gorm:"size:64;uniqueIndex;not null" json:"amendmentNumber"`
	AmendmentDate    time.Time      `gorm:"not null" json:"amendmentDate"`
	Type             string         `gorm:"size:32;not null" json:"type"`
	Description      string         `gorm:"type:text" json:"description"`
	Reason           string         `gorm:"type:text" json:"reason"`
	ImpactAnalysis   ImpactAnalysis `gorm:"embedded;embeddedPrefix:impact_" json:"impactAnalysis"`
	OriginalValue    float64        `gorm:"type:decimal(18,2)" json:"originalValue"`
	NewValue         float64        `gorm:"type:decimal(18,2)" json:"newValue"`
	ChangePercentage float64        `gorm:"type:decimal(12,6)" json:"changePercentage"`
	Status           string         `gorm:"size:32;index;not null" json:"status"`
	RequestedBy      string         `json:"requestedBy"`
	ApprovedBy       string         `json:"approvedBy,omitempty"`
	ApprovalDate     *time.Time     `json:"approvalDate,omitempty"`
	RejectionReason  string         `gorm:"type:text" json:"rejectionReason,omitempty"`
	ImplementedAt    *time.Time     `json:"implementedAt,omitempty"`
	StatusHistory    []StatusChange `gorm:"serializer:json;type:text" json:"statusHistory"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`

	Timeline *AmendmentTimeline `gorm:"-" json:"timeline,omitempty"`
}

// TableName specifies the table name for ContractAmendment
func (ContractAmendment) TableName() string {
	return "contract_amendments"
}

// ImpactAnalysis describes the effect of an amendment on the contract
type ImpactAnalysis struct {
	ValueChange    float64 `gorm:"type:decimal(18,2)" json:"valueChange"`
	TimelineChange int     `json:"timelineChange"`
	ResourceChange string  `json:"resourceChange"`
}

// StatusChange records one status transition of an amendment
type StatusChange struct {
	Status    string    `json:"status"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// AmendmentTimeline is derived from the status history
type AmendmentTimeline struct {
	Requested   *time.Time `json:"requested"`
	Approved    *time.Time `json:"approved"`
	Implemented *time.Time `json:"implemented"`
}

// Amendment status constants
const (
	AmendmentStatusPendingApproval = "Pending Approval"
	AmendmentStatusApproved        = "Approved"
	AmendmentStatusRejected        = "Rejected"
	AmendmentStatusImplemented     = "Implemented"

	// AmendmentStatusPendingAlias is accepted on input and stored as Pending Approval
	AmendmentStatusPendingAlias = "Pending"
)

// Amendment type constants
const (
	AmendmentTypeScopeChange    = "Scope Change"
	AmendmentTypePriceChange    = "Price Change"
	AmendmentTypeTimelineChange = "Timeline Change"
	AmendmentTypeValueChange    = "Value Change"
	AmendmentTypeOther          = "Other"
)

// AmendmentTypes lists every accepted amendment type
var AmendmentTypes = []string{
	AmendmentTypeScopeChange,
	AmendmentTypePriceChange,
	AmendmentTypeTimelineChange,
	AmendmentTypeValueChange,
	AmendmentTypeOther,
}

// CanonicalAmendmentStatus maps input synonyms onto the stored literal
func CanonicalAmendmentStatus(status string) string {
	if status == AmendmentStatusPendingAlias {
		return AmendmentStatusPendingApproval
	}
	return status
}

// IsPending returns true while the amendment awaits a decision
func (a *ContractAmendment) IsPending() bool {
	return a.Status == AmendmentStatusPendingApproval
}

// IsImplemented returns true once the amendment was applied to the contract
func (a *ContractAmendment) IsImplemented() bool {
	return a.Status == AmendmentStatusImplemented
}

// CountsTowardsValue returns true when the value change is committed
func (a *ContractAmendment) CountsTowardsValue() bool {
	return a.Status == AmendmentStatusApproved || a.Status == AmendmentStatusImplemented
}

// RecordStatus appends to the status history
func (a *ContractAmendment) RecordStatus(status, userID string, at time.Time) {
	a.StatusHistory = append(a.StatusHistory, StatusChange{Status: status, UserID: userID, Timestamp: at})
}

// BuildTimeline derives the requested/approved/implemented timestamps
func (a *ContractAmendment) BuildTimeline() AmendmentTimeline {
	var tl AmendmentTimeline
	for i := range a.StatusHistory {
		h := a.StatusHistory[i]
		ts := h.Timestamp
		switch h.Status {
		case AmendmentStatusPendingApproval:
			if tl.Requested == nil {
				tl.Requested = &ts
			}
		case AmendmentStatusApproved:
			tl.Approved = &ts
		case AmendmentStatusImplemented:
			tl.Implemented = &ts
		}
	}
	if tl.Requested == nil {
		created := a.CreatedAt
		tl.Requested = &created
	}
	return tl
}
