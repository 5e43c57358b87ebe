package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	db *gorm.DB

	User            UserRepository
	Audit           AuditRepository
	Client          ClientRepository
	Contract        ContractRepository
	Amendment       AmendmentRepository
	Milestone       MilestoneRepository
	BillingSchedule BillingScheduleRepository
	Alert           AlertRepository
	Revenue         RevenueRepository
	IntegrationSync IntegrationSyncRepository
	ReportCache     ReportCacheRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:              db,
		User:            NewUserRepository(db),
		Audit:           NewAuditRepository(db),
		Client:          NewClientRepository(db),
		Contract:        NewContractRepository(db),
		Amendment:       NewAmendmentRepository(db),
		Milestone:       NewMilestoneRepository(db),
		BillingSchedule: NewBillingScheduleRepository(db),
		Alert:           NewAlertRepository(db),
		Revenue:         NewRevenueRepository(db),
		IntegrationSync: NewIntegrationSyncRepository(db),
		ReportCache:     NewReportCacheRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database
// transaction. Returning an error from fn rolls every write back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// ListQuery represents common list query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// MaxPerPage caps the page size of every listing
const MaxPerPage = 100

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// Normalize clamps paging values into their accepted range
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
}

// Offset returns the row offset of the current page
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// likePattern builds a lower-cased substring pattern usable on every dialect
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(s))) + "%"
}

// orderClause whitelists sortable columns
func orderClause(sortBy, sortDir string, allowed map[string]string, fallback string) string {
	col, ok := allowed[sortBy]
	if !ok {
		return fallback
	}
	if strings.EqualFold(sortDir, "desc") {
		return col + " DESC"
	}
	return col + " ASC"
}
