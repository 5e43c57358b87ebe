package repository

import (
	"context"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// AmendmentRepository defines the interface for amendment data access
type AmendmentRepository interface {
	FindByNumber(ctx context.Context, contractID, amendmentNumber string) (*models.ContractAmendment, error)
	ExistsByNumber(ctx context.Context, amendmentNumber string) (bool, error)
	FindByContract(ctx context.Context, contractID, status string) ([]models.ContractAmendment, error)
	FindByContracts(ctx context.Context, contractIDs []string) ([]models.ContractAmendment, error)
	CountByContract(ctx context.Context, contractID string) (int64, error)
	Create(ctx context.Context, amendment *models.ContractAmendment) error
	Update(ctx context.Context, amendment *models.ContractAmendment) error
	DeleteByContract(ctx context.Context, contractID string) error
}

type amendmentRepository struct {
	db *gorm.DB
}

// NewAmendmentRepository creates a new amendment repository
func NewAmendmentRepository(db *gorm.DB) AmendmentRepository {
	return &amendmentRepository{db: db}
}

func (r *amendmentRepository) FindByNumber(ctx context.Context, contractID, amendmentNumber string) (*models.ContractAmendment, error) {
	var amendment models.ContractAmendment
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND amendment_number = ?", contractID, amendmentNumber).
		First(&amendment).Error
	if err != nil {
		return nil, err
	}
	return &amendment, nil
}

func (r *amendmentRepository) ExistsByNumber(ctx context.Context, amendmentNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ContractAmendment{}).
		Where("amendment_number = ?", amendmentNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *amendmentRepository) FindByContract(ctx context.Context, contractID, status string) ([]models.ContractAmendment, error) {
	var amendments []models.ContractAmendment
	db := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	if status != "" {
		db = db.Where("status = ?", models.CanonicalAmendmentStatus(status))
	}
	err := db.Order("amendment_date ASC, id ASC").Find(&amendments).Error
	return amendments, err
}

func (r *amendmentRepository) FindByContracts(ctx context.Context, contractIDs []string) ([]models.ContractAmendment, error) {
	var amendments []models.ContractAmendment
	if len(contractIDs) == 0 {
		return amendments, nil
	}
	err := r.db.WithContext(ctx).
		Where("contract_id IN ?", contractIDs).
		Order("amendment_date ASC").
		Find(&amendments).Error
	return amendments, err
}

func (r *amendmentRepository) CountByContract(ctx context.Context, contractID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ContractAmendment{}).
		Where("contract_id = ?", contractID).
		Count(&count).Error
	return count, err
}

func (r *amendmentRepository) Create(ctx context.Context, amendment *models.ContractAmendment) error {
	return r.db.WithContext(ctx).Create(amendment).Error
}

func (r *amendmentRepository) Update(ctx context.Context, amendment *models.ContractAmendment) error {
	return r.db.WithContext(ctx).Save(amendment).Error
}

func (r *amendmentRepository) DeleteByContract(ctx context.Context, contractID string) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.ContractAmendment{}).Error
}
