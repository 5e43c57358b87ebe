package repository

import (
	"context"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// AuditRepository defines the interface for system audit rows
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *auditRepository) List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query.Normalize()
	db := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if v := query.Filters["entity"]; v != "" {
		db = db.Where("entity = ?", v)
	}
	if v := query.Filters["entityKey"]; v != "" {
		db = db.Where("entity_key = ?", v)
	}
	if v := query.Filters["action"]; v != "" {
		db = db.Where("action = ?", v)
	}

	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC, id DESC").
		Offset(query.Offset()).
		Limit(query.PerPage).
		Find(&logs).Error
	return logs, total, err
}
