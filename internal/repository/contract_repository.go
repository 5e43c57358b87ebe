package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// ContractRepository defines the interface for contract data access
type ContractRepository interface {
	FindByContractID(ctx context.Context, contractID string) (*models.Contract, error)
	ExistsByContractID(ctx context.Context, contractID string) (bool, error)
	ExistsByContractNumber(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, contract *models.Contract) error
	Update(ctx context.Context, contract *models.Contract) error
	Delete(ctx context.Context, contractID string) error
	List(ctx context.Context, query *ContractQuery) ([]models.Contract, int64, error)
	Summary(ctx context.Context, query *ContractQuery, renewalWindow time.Duration) (*ContractSummary, error)
	FindAll(ctx context.Context, query *ContractQuery) ([]models.Contract, error)
	FindExpiring(ctx context.Context, from, to time.Time) ([]models.Contract, error)
	CountRenewals(ctx context.Context, parentContractID string) (int64, error)
}

// ContractQuery extends ListQuery with contract-specific filters
type ContractQuery struct {
	*ListQuery
	Status          string
	ClientID        string
	ContractType    string
	StartDate       *time.Time
	EndDate         *time.Time
	IncludeInactive bool
}

// ContractSummary aggregates a filtered set of contracts
type ContractSummary struct {
	TotalContracts   int64            `json:"totalContracts"`
	TotalValue       float64          `json:"totalValue"`
	ActiveContracts  int64            `json:"activeContracts"`
	StatusBreakdown  map[string]int64 `json:"statusBreakdown"`
	TypeBreakdown    map[string]int64 `json:"typeBreakdown"`
	UpcomingRenewals int64            `json:"upcomingRenewals"`
}

type contractRepository struct {
	db *gorm.DB
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) FindByContractID(ctx context.Context, contractID string) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) ExistsByContractID(ctx context.Context, contractID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("contract_id = ?", contractID).
		Count(&count).Error
	return count > 0, err
}

func (r *contractRepository) ExistsByContractNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("contract_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *contractRepository) Create(ctx context.Context, contract *models.Contract) error {
	if contract.Version == 0 {
		contract.Version = 1
	}
	return r.db.WithContext(ctx).Create(contract).Error
}

// Update writes every column guarded by the version the caller loaded.
// A concurrent writer that got there first leaves zero affected rows.
func (r *contractRepository) Update(ctx context.Context, contract *models.Contract) error {
	expected := contract.Version
	contract.Version = expected + 1

	result := r.db.WithContext(ctx).
		Model(contract).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(contract)
	if result.Error != nil {
		contract.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		contract.Version = expected
		return apperr.New(apperr.KindConcurrentModification,
			"contract %s was modified by another request", contract.ContractID)
	}
	return nil
}

func (r *contractRepository) Delete(ctx context.Context, contractID string) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.Contract{}).Error
}

var contractSortColumns = map[string]string{
	"startDate":      "start_date",
	"endDate":        "end_date",
	"totalValue":     "total_value",
	"title":          "title",
	"contractNumber": "contract_number",
	"createdAt":      "created_at",
}

func (r *contractRepository) scope(ctx context.Context, query *ContractQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Contract{})

	if !query.IncludeInactive {
		db = db.Where("is_active = ?", true)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.ClientID != "" {
		db = db.Where("client_id = ?", query.ClientID)
	}
	if query.ContractType != "" {
		db = db.Where("contract_type = ?", query.ContractType)
	}
	// Containment: the contract period lies inside the requested window
	if query.StartDate != nil {
		db = db.Where("start_date >= ?", *query.StartDate)
	}
	if query.EndDate != nil {
		db = db.Where("end_date <= ?", *query.EndDate)
	}
	if query.ListQuery != nil && query.Search != "" {
		search := likePattern(query.Search)
		db = db.Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(client_name) LIKE ? ESCAPE '\\'", search, search)
	}
	return db
}

func (r *contractRepository) List(ctx context.Context, query *ContractQuery) ([]models.Contract, int64, error) {
	var contracts []models.Contract
	var total int64

	if query.ListQuery == nil {
		query.ListQuery = NewListQuery()
	}
	query.Normalize()

	db := r.scope(ctx, query)

	// Count total using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Order(orderClause(query.SortBy, query.SortDir, contractSortColumns, "created_at DESC")).
		Order("id ASC").
		Offset(query.Offset()).
		Limit(query.PerPage).
		Find(&contracts).Error
	if err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

func (r *contractRepository) FindAll(ctx context.Context, query *ContractQuery) ([]models.Contract, error) {
	if query == nil {
		query = &ContractQuery{}
	}
	var contracts []models.Contract
	err := r.scope(ctx, query).Order("start_date ASC").Find(&contracts).Error
	return contracts, err
}

func (r *contractRepository) Summary(ctx context.Context, query *ContractQuery, renewalWindow time.Duration) (*ContractSummary, error) {
	summary := &ContractSummary{
		StatusBreakdown: make(map[string]int64),
		TypeBreakdown:   make(map[string]int64),
	}

	type groupRow struct {
		GroupKey string
		RowCount int64
		ValueSum float64
	}

	var byStatus []groupRow
	if err := r.scope(ctx, query).
		Select("status AS group_key, COUNT(*) AS row_count, COALESCE(SUM(total_value), 0) AS value_sum").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		summary.StatusBreakdown[row.GroupKey] = row.RowCount
		summary.TotalContracts += row.RowCount
		summary.TotalValue += row.ValueSum
		if row.GroupKey == models.ContractStatusActive {
			summary.ActiveContracts = row.RowCount
		}
	}

	var byType []groupRow
	if err := r.scope(ctx, query).
		Select("contract_type AS group_key, COUNT(*) AS row_count").
		Group("contract_type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		summary.TypeBreakdown[row.GroupKey] = row.RowCount
	}

	now := time.Now().UTC()
	if err := r.scope(ctx, query).
		Where("status = ? AND end_date BETWEEN ? AND ?", models.ContractStatusActive, now, now.Add(renewalWindow)).
		Count(&summary.UpcomingRenewals).Error; err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *contractRepository) FindExpiring(ctx context.Context, from, to time.Time) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND status = ?", true, models.ContractStatusActive).
		Where("end_date BETWEEN ? AND ?", from, to).
		Order("end_date ASC").
		Find(&contracts).Error
	return contracts, err
}

func (r *contractRepository) CountRenewals(ctx context.Context, parentContractID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Where("parent_contract_id = ?", parentContractID).
		Count(&count).Error
	return count, err
}
