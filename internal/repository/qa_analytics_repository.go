package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"askcampus/internal/model"
)

// QAAnalyticsRepository only appends and reads; analytics records are never
// updated or deleted.
type QAAnalyticsRepository struct {
	db *gorm.DB
}

func NewQAAnalyticsRepository(db *gorm.DB) *QAAnalyticsRepository {
	return &QAAnalyticsRepository{db: db}
}

func (r *QAAnalyticsRepository) Create(ctx context.Context, record *model.QAAnalytics) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create qa analytics record failed: %w", err)
	}
	return nil
}

func (r *QAAnalyticsRepository) ListByCollectionID(ctx context.Context, collectionID uint, limit int) ([]model.QAAnalytics, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []model.QAAnalytics
	err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list qa analytics failed: %w", err)
	}
	return records, nil
}
