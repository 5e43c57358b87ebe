package models

import (
	"time"
)

// BillingSchedule is a one-time, recurring or milestone billing entry of a contract
type BillingSchedule struct {
	ID                uint                `gorm:"primaryKey" json:"-"`
	ContractID        string              `gorm:"size:64;index;not null" json:"contractId"`
	MilestoneID       *string             `gorm:"size:64;index" json:"milestoneId,omitempty"`
	ScheduleID        string              `gorm:"size:80;uniqueIndex;not null" json:"scheduleId"`
	BillingType       string              `gorm:"size:16;not null" json:"billingType"`
	BillingDate       time.Time           `gorm:"not null;index" json:"billingDate"`
	Frequency         string              `gorm:"size:16" json:"frequency,omitempty"`
	RecurringStart    *time.Time          `json:"recurringStartDate,omitempty"`
	RecurringEnd      *time.Time          `json:"recurringEndDate,omitempty"`
	RecurringSchedule []BillingOccurrence `gorm:"serializer:json;type:text" json:"recurringSchedule,omitempty"`
	Amount            float64             `gorm:"type:decimal(18,2);not null" json:"amount"`
	Currency          string              `gorm:"size:3;not null" json:"currency"`
	TaxApplicable     bool                `json:"taxApplicable"`
	TaxRate           float64             `gorm:"type:decimal(5,2)" json:"taxRate"`
	TaxAmount         float64             `gorm:"type:decimal(18,2)" json:"taxAmount"`
	TotalAmount       float64             `gorm:"type:decimal(18,2)" json:"totalAmount"`
	Status            string              `gorm:"size:16;index;not null" json:"status"`
	InvoiceNumber     string              `gorm:"size:64" json:"invoiceNumber,omitempty"`
	InvoiceDate       *time.Time          `json:"invoiceDate,omitempty"`
	DueDate           *time.Time          `gorm:"index" json:"dueDate,omitempty"`
	PaymentDate       *time.Time          `json:"paymentDate,omitempty"`
	PaymentAmount     *float64            `gorm:"type:decimal(18,2)" json:"paymentAmount,omitempty"`
	PaymentMethod     string              `json:"paymentMethod,omitempty"`
	PaymentReference  string              `json:"paymentReference,omitempty"`
	Description       string              `gorm:"type:text" json:"description"`
	ParentScheduleID  *string             `gorm:"size:80;index" json:"parentScheduleId,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`

	PaymentTracking *PaymentTracking `gorm:"-" json:"paymentTracking,omitempty"`
}

// TableName specifies the table name for BillingSchedule
func (BillingSchedule) TableName() string {
	return "billing_schedules"
}

// BillingOccurrence is one generated instance of a recurring schedule
type BillingOccurrence struct {
	Sequence    int       `json:"sequence"`
	BillingDate time.Time `json:"billingDate"`
	Amount      float64   `json:"amount"`
}

// PaymentTracking is derived from due date, today and status
type PaymentTracking struct {
	IsOverdue     bool   `json:"isOverdue"`
	DaysOverdue   int    `json:"daysOverdue"`
	PaymentStatus string `json:"paymentStatus"`
}

// Billing status constants
const (
	BillingStatusPending   = "Pending"
	BillingStatusScheduled = "Scheduled"
	BillingStatusInvoiced  = "Invoiced"
	BillingStatusOverdue   = "Overdue"
	BillingStatusPaid      = "Paid"
	BillingStatusCancelled = "Cancelled"
)

// Billing type constants
const (
	BillingTypeOneTime   = "One-time"
	BillingTypeRecurring = "Recurring"
	BillingTypeMilestone = "Milestone"
)

// Recurring frequency constants
const (
	FrequencyWeekly       = "Weekly"
	FrequencyMonthly      = "Monthly"
	FrequencyQuarterly    = "Quarterly"
	FrequencySemiAnnually = "Semi-Annually"
	FrequencyAnnually     = "Annually"
)

// DefaultPaymentDueDays is applied when an invoice has no explicit due date
const DefaultPaymentDueDays = 30

// IsPaid returns true once payment was recorded
func (b *BillingSchedule) IsPaid() bool {
	return b.Status == BillingStatusPaid
}

// IsRecurring returns true for schedules that generate occurrences
func (b *BillingSchedule) IsRecurring() bool {
	return b.BillingType == BillingTypeRecurring
}

// IsOutstanding returns true while money is still expected
func (b *BillingSchedule) IsOutstanding() bool {
	return b.Status == BillingStatusInvoiced || b.Status == BillingStatusOverdue
}

// MayMarkOverdue returns true if the invoice is past its due date
func (b *BillingSchedule) MayMarkOverdue(now time.Time) bool {
	return b.Status == BillingStatusInvoiced && b.DueDate != nil && DateOnly(now).After(DateOnly(*b.DueDate))
}

// Track computes payment tracking against now
func (b *BillingSchedule) Track(now time.Time) PaymentTracking {
	pt := PaymentTracking{PaymentStatus: b.Status}
	switch b.Status {
	case BillingStatusPaid:
		pt.PaymentStatus = "paid"
		return pt
	case BillingStatusCancelled:
		pt.PaymentStatus = "cancelled"
		return pt
	case BillingStatusPending, BillingStatusScheduled:
		pt.PaymentStatus = "not_invoiced"
		return pt
	}
	pt.PaymentStatus = "awaiting_payment"
	if b.DueDate != nil && DateOnly(now).After(DateOnly(*b.DueDate)) {
		pt.IsOverdue = true
		pt.DaysOverdue = InclusiveDays(*b.DueDate, now) - 1
		pt.PaymentStatus = "overdue"
	}
	return pt
}
