package repository

import (
	"context"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// IntegrationSyncRepository defines the interface for outbound sync records
type IntegrationSyncRepository interface {
	Create(ctx context.Context, sync *models.IntegrationSync) error
	List(ctx context.Context, target string, limit int) ([]models.IntegrationSync, error)
}

type integrationSyncRepository struct {
	db *gorm.DB
}

// NewIntegrationSyncRepository creates a new integration sync repository
func NewIntegrationSyncRepository(db *gorm.DB) IntegrationSyncRepository {
	return &integrationSyncRepository{db: db}
}

func (r *integrationSyncRepository) Create(ctx context.Context, sync *models.IntegrationSync) error {
	return r.db.WithContext(ctx).Create(sync).Error
}

func (r *integrationSyncRepository) List(ctx context.Context, target string, limit int) ([]models.IntegrationSync, error) {
	var syncs []models.IntegrationSync
	db := r.db.WithContext(ctx)
	if target != "" {
		db = db.Where("target = ?", target)
	}
	if limit <= 0 || limit > MaxPerPage {
		limit = MaxPerPage
	}
	err := db.Order("created_at DESC, id DESC").Limit(limit).Find(&syncs).Error
	return syncs, err
}
