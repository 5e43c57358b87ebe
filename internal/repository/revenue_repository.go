package repository

import (
	"context"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// RevenueRepository defines the interface for revenue ledger data access
type RevenueRepository interface {
	Create(ctx context.Context, entry *models.RevenueEntry) error
	FindByContract(ctx context.Context, contractID string) ([]models.RevenueEntry, error)
	PostedMilestoneIDs(ctx context.Context) (map[string]bool, error)
	SumByContract(ctx context.Context) (map[string]float64, error)
}

type revenueRepository struct {
	db *gorm.DB
}

// NewRevenueRepository creates a new revenue repository
func NewRevenueRepository(db *gorm.DB) RevenueRepository {
	return &revenueRepository{db: db}
}

func (r *revenueRepository) Create(ctx context.Context, entry *models.RevenueEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *revenueRepository) FindByContract(ctx context.Context, contractID string) ([]models.RevenueEntry, error) {
	var entries []models.RevenueEntry
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("posted_at ASC").
		Find(&entries).Error
	return entries, err
}

// PostedMilestoneIDs returns the milestones that already have a recognized entry
func (r *revenueRepository) PostedMilestoneIDs(ctx context.Context) (map[string]bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.RevenueEntry{}).
		Where("entry_type = ?", models.RevenueEntryRecognized).
		Distinct().
		Pluck("milestone_id", &ids).Error
	if err != nil {
		return nil, err
	}
	posted := make(map[string]bool, len(ids))
	for _, id := range ids {
		posted[id] = true
	}
	return posted, nil
}

func (r *revenueRepository) SumByContract(ctx context.Context) (map[string]float64, error) {
	type sumRow struct {
		ContractID string
		Total      float64
	}
	var rows []sumRow
	err := r.db.WithContext(ctx).Model(&models.RevenueEntry{}).
		Select("contract_id, COALESCE(SUM(amount), 0) AS total").
		Group("contract_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]float64, len(rows))
	for _, row := range rows {
		sums[row.ContractID] = row.Total
	}
	return sums, nil
}
