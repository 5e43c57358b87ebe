// Package validation holds the pure invariant checks run before any write.
// Every check returns nil or an *apperr.Error carrying the failing kind.
package validation

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// percentageEpsilon absorbs float noise when summing milestone shares
const percentageEpsilon = 1e-9

var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// ParseDate accepts YYYY-MM-DD or RFC3339 input and returns it in UTC
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.New(apperr.KindInvalidInput, "%s must be a date (YYYY-MM-DD or RFC3339)", field)
}

// DateRange requires start to be strictly before end
func DateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.New(apperr.KindInvalidDateRange, "start date and end date are required")
	}
	if !start.Before(end) {
		return apperr.New(apperr.KindInvalidDateRange, "start date %s must be before end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}

// Unique fails when a record with the same business key already exists
func Unique(exists bool, key, value string) error {
	if exists {
		return apperr.New(apperr.KindDuplicateKey, "%s %q already exists", key, value)
	}
	return nil
}

// Positive requires v > 0
func Positive(field string, v float64) error {
	if math.IsNaN(v) || v <= 0 {
		return apperr.New(apperr.KindInvalidValue, "%s must be greater than zero", field)
	}
	return nil
}

// NonNegative requires v >= 0
func NonNegative(field string, v float64) error {
	if math.IsNaN(v) || v < 0 {
		return apperr.New(apperr.KindInvalidValue, "%s must not be negative", field)
	}
	return nil
}

// ImmutableField rejects any change of a field fixed at creation
func ImmutableField(field, current, requested string) error {
	if requested != "" && requested != current {
		return apperr.New(apperr.KindImmutableFieldViolation, "%s cannot be changed after creation", field)
	}
	return nil
}

// OneOf requires value to be one of allowed
func OneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return apperr.New(apperr.KindInvalidInput, "%s must be one of: %s", field, strings.Join(allowed, ", "))
	}
	return nil
}

// WithinPeriod requires date to fall inside [start, end], compared by calendar day
func WithinPeriod(field string, date, start, end time.Time) error {
	d := models.DateOnly(date)
	if d.Before(models.DateOnly(start)) || d.After(models.DateOnly(end)) {
		return apperr.New(apperr.KindOutOfPeriod, "%s %s must be within the contract period %s to %s",
			field, d.Format("2006-01-02"), start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}

// Percentage requires 0 < p <= 100
func Percentage(p float64) error {
	if math.IsNaN(p) || p <= 0 || p > 100 {
		return apperr.New(apperr.KindInvalidValue, "percentage must be greater than 0 and at most 100")
	}
	return nil
}

// PercentageBudget requires the non-cancelled milestone shares of a contract,
// including the candidate, to sum to at most 100. The milestone identified by
// excludeID is ignored so updates replace their own previous share.
func PercentageBudget(existing []models.Milestone, candidate float64, excludeID string) error {
	total := candidate
	for i := range existing {
		m := &existing[i]
		if m.MilestoneID == excludeID || !m.CountsTowardsBudget() {
			continue
		}
		total += m.Percentage
	}
	if total > 100+percentageEpsilon {
		return apperr.New(apperr.KindPercentageBudgetExceeded,
			"milestone percentages would total %.2f%%, exceeding 100%%", total)
	}
	return nil
}
