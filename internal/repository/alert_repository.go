package repository

import (
	"context"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// AlertRepository defines the interface for alert data access
type AlertRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Alert, error)
	FindOpen(ctx context.Context, alertType, contractID string, milestoneID *string) (*models.Alert, error)
	List(ctx context.Context, query *AlertQuery) ([]models.Alert, int64, error)
	Create(ctx context.Context, alert *models.Alert) error
	Update(ctx context.Context, alert *models.Alert) error
	DeleteByContract(ctx context.Context, contractID string) error
}

// AlertQuery extends ListQuery with alert-specific filters
type AlertQuery struct {
	*ListQuery
	Type       string
	Status     string
	ContractID string
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) FindByID(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindOpen returns the unresolved alert for (type, contract, milestone), if any
func (r *alertRepository) FindOpen(ctx context.Context, alertType, contractID string, milestoneID *string) (*models.Alert, error) {
	var alert models.Alert
	db := r.db.WithContext(ctx).
		Where("type = ? AND contract_id = ? AND status <> ?", alertType, contractID, models.AlertStatusResolved)
	if milestoneID != nil {
		db = db.Where("milestone_id = ?", *milestoneID)
	} else {
		db = db.Where("milestone_id IS NULL")
	}
	if err := db.First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) List(ctx context.Context, query *AlertQuery) ([]models.Alert, int64, error) {
	var alerts []models.Alert
	var total int64

	if query.ListQuery == nil {
		query.ListQuery = NewListQuery()
	}
	query.Normalize()

	db := r.db.WithContext(ctx).Model(&models.Alert{})
	if query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.ContractID != "" {
		db = db.Where("contract_id = ?", query.ContractID)
	}

	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC, id DESC").
		Offset(query.Offset()).
		Limit(query.PerPage).
		Find(&alerts).Error
	return alerts, total, err
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepository) Update(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *alertRepository) DeleteByContract(ctx context.Context, contractID string) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.Alert{}).Error
}
