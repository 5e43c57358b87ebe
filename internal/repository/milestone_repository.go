package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// MilestoneRepository defines the interface for milestone data access
type MilestoneRepository interface {
	FindByMilestoneID(ctx context.Context, milestoneID string) (*models.Milestone, error)
	ExistsByMilestoneID(ctx context.Context, milestoneID string) (bool, error)
	FindByContract(ctx context.Context, contractID, status string) ([]models.Milestone, error)
	FindByContracts(ctx context.Context, contractIDs []string) ([]models.Milestone, error)
	FindAtRisk(ctx context.Context, dueBefore time.Time) ([]models.Milestone, error)
	FindCompleted(ctx context.Context, contractID string) ([]models.Milestone, error)
	CountOpenByContract(ctx context.Context, contractID string) (int64, error)
	Create(ctx context.Context, milestone *models.Milestone) error
	Update(ctx context.Context, milestone *models.Milestone) error
	DeleteByContract(ctx context.Context, contractID string) error
}

type milestoneRepository struct {
	db *gorm.DB
}

// NewMilestoneRepository creates a new milestone repository
func NewMilestoneRepository(db *gorm.DB) MilestoneRepository {
	return &milestoneRepository{db: db}
}

var openMilestoneStatuses = []string{
	models.MilestoneStatusNotStarted,
	models.MilestoneStatusInProgress,
	models.MilestoneStatusDelayed,
}

func (r *milestoneRepository) FindByMilestoneID(ctx context.Context, milestoneID string) (*models.Milestone, error) {
	var milestone models.Milestone
	err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		First(&milestone).Error
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *milestoneRepository) ExistsByMilestoneID(ctx context.Context, milestoneID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("milestone_id = ?", milestoneID).
		Count(&count).Error
	return count > 0, err
}

func (r *milestoneRepository) FindByContract(ctx context.Context, contractID, status string) ([]models.Milestone, error) {
	var milestones []models.Milestone
	db := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("target_date ASC, id ASC").Find(&milestones).Error
	return milestones, err
}

func (r *milestoneRepository) FindByContracts(ctx context.Context, contractIDs []string) ([]models.Milestone, error) {
	var milestones []models.Milestone
	if len(contractIDs) == 0 {
		return milestones, nil
	}
	err := r.db.WithContext(ctx).
		Where("contract_id IN ?", contractIDs).
		Order("target_date ASC").
		Find(&milestones).Error
	return milestones, err
}

// FindAtRisk returns open milestones whose target date is on or before dueBefore
func (r *milestoneRepository) FindAtRisk(ctx context.Context, dueBefore time.Time) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.db.WithContext(ctx).
		Where("status IN ? AND target_date <= ?", openMilestoneStatuses, dueBefore).
		Order("target_date ASC").
		Find(&milestones).Error
	return milestones, err
}

func (r *milestoneRepository) FindCompleted(ctx context.Context, contractID string) ([]models.Milestone, error) {
	var milestones []models.Milestone
	db := r.db.WithContext(ctx).Where("status = ?", models.MilestoneStatusCompleted)
	if contractID != "" {
		db = db.Where("contract_id = ?", contractID)
	}
	err := db.Order("completion_date ASC").Find(&milestones).Error
	return milestones, err
}

func (r *milestoneRepository) CountOpenByContract(ctx context.Context, contractID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("contract_id = ? AND status IN ?", contractID, openMilestoneStatuses).
		Count(&count).Error
	return count, err
}

func (r *milestoneRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Create(milestone).Error
}

func (r *milestoneRepository) Update(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Save(milestone).Error
}

func (r *milestoneRepository) DeleteByContract(ctx context.Context, contractID string) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.Milestone{}).Error
}
