package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"askcampus/internal/model"
)

type QACollectionRepository struct {
	db *gorm.DB
}

func NewQACollectionRepository(db *gorm.DB) *QACollectionRepository {
	return &QACollectionRepository{db: db}
}

func (r *QACollectionRepository) Create(ctx context.Context, collection *model.QACollection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return fmt.Errorf("create qa collection failed: %w", err)
	}
	return nil
}

func (r *QACollectionRepository) Update(ctx context.Context, collection *model.QACollection) error {
	if err := r.db.WithContext(ctx).Omit("Managers").Save(collection).Error; err != nil {
		return fmt.Errorf("update qa collection failed: %w", err)
	}
	return nil
}

func (r *QACollectionRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.QACollection{}, id).Error; err != nil {
		return fmt.Errorf("delete qa collection failed: %w", err)
	}
	return nil
}

func (r *QACollectionRepository) List(ctx context.Context) ([]model.QACollection, error) {
	var collections []model.QACollection
	if err := r.db.WithContext(ctx).Preload("Managers").Order("id").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("list qa collections failed: %w", err)
	}
	return collections, nil
}

func (r *QACollectionRepository) ListManagedBy(ctx context.Context, userID uint) ([]model.QACollection, error) {
	var collections []model.QACollection
	err := r.db.WithContext(ctx).Preload("Managers").
		Where("id IN (?)",
			r.db.Table("qa_collection_managers").Select("qa_collection_id").Where("user_id = ?", userID)).
		Order("id").
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("list managed qa collections failed: %w", err)
	}
	return collections, nil
}

func (r *QACollectionRepository) GetByID(ctx context.Context, id uint) (*model.QACollection, error) {
	var collection model.QACollection
	if err := r.db.WithContext(ctx).Preload("Managers").First(&collection, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query qa collection by id failed: %w", err)
	}
	return &collection, nil
}

func (r *QACollectionRepository) GetBySlug(ctx context.Context, slug string) (*model.QACollection, error) {
	var collection model.QACollection
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query qa collection by slug failed: %w", err)
	}
	return &collection, nil
}

func (r *QACollectionRepository) GetByName(ctx context.Context, name string) (*model.QACollection, error) {
	var collection model.QACollection
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query qa collection by name failed: %w", err)
	}
	return &collection, nil
}

func (r *QACollectionRepository) CountBySlug(ctx context.Context, slug string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.QACollection{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count qa collections by slug failed: %w", err)
	}
	return count, nil
}

func (r *QACollectionRepository) ReplaceManagers(ctx context.Context, collection *model.QACollection, managers []model.User) error {
	if err := r.db.WithContext(ctx).Model(collection).Association("Managers").Replace(managers); err != nil {
		return fmt.Errorf("replace qa collection managers failed: %w", err)
	}
	return nil
}
