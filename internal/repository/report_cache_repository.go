package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportCacheRepository defines the interface for cached report payloads
type ReportCacheRepository interface {
	Get(ctx context.Context, key string) (*models.ReportCache, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

type reportCacheRepository struct {
	db *gorm.DB
}

// NewReportCacheRepository creates a new report cache repository
func NewReportCacheRepository(db *gorm.DB) ReportCacheRepository {
	return &reportCacheRepository{db: db}
}

// Get returns the live entry for key, or nil when missing or expired
func (r *reportCacheRepository) Get(ctx context.Context, key string) (*models.ReportCache, error) {
	var entry models.ReportCache
	err := r.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, time.Now().UTC()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *reportCacheRepository) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := models.ReportCache{
		CacheKey:  key,
		Data:      datatypes.JSON(data),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

func (r *reportCacheRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now().UTC()).
		Delete(&models.ReportCache{})
	return res.RowsAffected, res.Error
}

func (r *reportCacheRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&models.ReportCache{}).Error
}
