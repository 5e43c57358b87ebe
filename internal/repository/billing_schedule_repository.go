package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// BillingScheduleRepository defines the interface for billing schedule data access
type BillingScheduleRepository interface {
	FindByScheduleID(ctx context.Context, scheduleID string) (*models.BillingSchedule, error)
	ExistsByScheduleID(ctx context.Context, scheduleID string) (bool, error)
	FindByContract(ctx context.Context, query *BillingQuery) ([]models.BillingSchedule, error)
	FindByContracts(ctx context.Context, contractIDs []string) ([]models.BillingSchedule, error)
	FindOverdueCandidates(ctx context.Context, now time.Time) ([]models.BillingSchedule, error)
	FindRecurring(ctx context.Context) ([]models.BillingSchedule, error)
	Create(ctx context.Context, schedule *models.BillingSchedule) error
	Update(ctx context.Context, schedule *models.BillingSchedule) error
	DeleteByContract(ctx context.Context, contractID string) error
}

// BillingQuery narrows a contract's billing schedules
type BillingQuery struct {
	ContractID string
	Status     string
	From       *time.Time
	To         *time.Time
}

type billingScheduleRepository struct {
	db *gorm.DB
}

// NewBillingScheduleRepository creates a new billing schedule repository
func NewBillingScheduleRepository(db *gorm.DB) BillingScheduleRepository {
	return &billingScheduleRepository{db: db}
}

func (r *billingScheduleRepository) FindByScheduleID(ctx context.Context, scheduleID string) (*models.BillingSchedule, error) {
	var schedule models.BillingSchedule
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *billingScheduleRepository) ExistsByScheduleID(ctx context.Context, scheduleID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BillingSchedule{}).
		Where("schedule_id = ?", scheduleID).
		Count(&count).Error
	return count > 0, err
}

func (r *billingScheduleRepository) FindByContract(ctx context.Context, query *BillingQuery) ([]models.BillingSchedule, error) {
	var schedules []models.BillingSchedule
	db := r.db.WithContext(ctx).Where("contract_id = ?", query.ContractID)
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.From != nil {
		db = db.Where("billing_date >= ?", *query.From)
	}
	if query.To != nil {
		db = db.Where("billing_date <= ?", *query.To)
	}
	err := db.Order("billing_date ASC, id ASC").Find(&schedules).Error
	return schedules, err
}

func (r *billingScheduleRepository) FindByContracts(ctx context.Context, contractIDs []string) ([]models.BillingSchedule, error) {
	var schedules []models.BillingSchedule
	if len(contractIDs) == 0 {
		return schedules, nil
	}
	err := r.db.WithContext(ctx).
		Where("contract_id IN ?", contractIDs).
		Order("billing_date ASC").
		Find(&schedules).Error
	return schedules, err
}

// FindOverdueCandidates returns invoiced schedules whose due date has passed
func (r *billingScheduleRepository) FindOverdueCandidates(ctx context.Context, now time.Time) ([]models.BillingSchedule, error) {
	var schedules []models.BillingSchedule
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", models.BillingStatusInvoiced, models.DateOnly(now)).
		Order("due_date ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *billingScheduleRepository) FindRecurring(ctx context.Context) ([]models.BillingSchedule, error) {
	var schedules []models.BillingSchedule
	err := r.db.WithContext(ctx).
		Where("billing_type = ? AND status <> ?", models.BillingTypeRecurring, models.BillingStatusCancelled).
		Order("billing_date ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *billingScheduleRepository) Create(ctx context.Context, schedule *models.BillingSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *billingScheduleRepository) Update(ctx context.Context, schedule *models.BillingSchedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}

func (r *billingScheduleRepository) DeleteByContract(ctx context.Context, contractID string) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.BillingSchedule{}).Error
}
