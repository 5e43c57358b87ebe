package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestContractDurationIsInclusive(t *testing.T) {
	c := Contract{StartDate: date("2025-03-01"), EndDate: date("2025-05-31")}
	assert.Equal(t, 92, c.DurationDays())

	c = Contract{StartDate: date("2025-01-01"), EndDate: date("2025-01-02")}
	assert.Equal(t, 2, c.DurationDays())
}

func TestContractContains(t *testing.T) {
	c := Contract{StartDate: date("2025-01-01"), EndDate: date("2025-12-31")}

	assert.True(t, c.Contains(date("2025-01-01")))
	assert.True(t, c.Contains(date("2025-12-31").Add(20*time.Hour)))
	assert.False(t, c.Contains(date("2024-12-31")))
	assert.False(t, c.Contains(date("2026-01-01")))
}

func TestCanonicalAmendmentStatus(t *testing.T) {
	assert.Equal(t, AmendmentStatusPendingApproval, CanonicalAmendmentStatus("Pending"))
	assert.Equal(t, AmendmentStatusApproved, CanonicalAmendmentStatus("Approved"))
}

func TestAmendmentTimeline(t *testing.T) {
	requested := date("2025-02-01")
	approved := date("2025-02-03")
	implemented := date("2025-02-05")

	a := ContractAmendment{}
	a.RecordStatus(AmendmentStatusPendingApproval, "u1", requested)
	a.RecordStatus(AmendmentStatusApproved, "u2", approved)
	a.RecordStatus(AmendmentStatusImplemented, "u2", implemented)

	tl := a.BuildTimeline()
	assert.Equal(t, requested, *tl.Requested)
	assert.Equal(t, approved, *tl.Approved)
	assert.Equal(t, implemented, *tl.Implemented)
}

func TestBillingScheduleTrack(t *testing.T) {
	now := date("2025-04-10")
	due := date("2025-04-01")

	invoiced := BillingSchedule{Status: BillingStatusInvoiced, DueDate: &due}
	pt := invoiced.Track(now)
	assert.True(t, pt.IsOverdue)
	assert.Equal(t, 9, pt.DaysOverdue)
	assert.Equal(t, "overdue", pt.PaymentStatus)
	assert.True(t, invoiced.MayMarkOverdue(now))

	paid := BillingSchedule{Status: BillingStatusPaid, DueDate: &due}
	pt = paid.Track(now)
	assert.False(t, pt.IsOverdue)
	assert.Equal(t, "paid", pt.PaymentStatus)

	pending := BillingSchedule{Status: BillingStatusPending}
	assert.Equal(t, "not_invoiced", pending.Track(now).PaymentStatus)
}

func TestMilestonePredicates(t *testing.T) {
	m := Milestone{Status: MilestoneStatusCancelled, IsBillable: true}
	assert.False(t, m.CountsTowardsBudget())
	assert.False(t, m.IsOpen())
	assert.True(t, m.MayTriggerBilling())

	id := "BS-1"
	m.BillingScheduleID = &id
	assert.False(t, m.MayTriggerBilling())

	actual := 1200.0
	m.Value = 1000
	assert.Equal(t, 1000.0, m.EffectiveValue())
	m.ActualValue = &actual
	assert.Equal(t, 1200.0, m.EffectiveValue())
}
