package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"askcampus/internal/model"
)

type KnowledgeBaseRepository struct {
	db *gorm.DB
}

func NewKnowledgeBaseRepository(db *gorm.DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *model.KnowledgeBase) error {
	if err := r.db.WithContext(ctx).Create(kb).Error; err != nil {
		return fmt.Errorf("create knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) Update(ctx context.Context, kb *model.KnowledgeBase) error {
	if err := r.db.WithContext(ctx).Omit("Managers").Save(kb).Error; err != nil {
		return fmt.Errorf("update knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.KnowledgeBase{}, id).Error; err != nil {
		return fmt.Errorf("delete knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) List(ctx context.Context) ([]model.KnowledgeBase, error) {
	var kbs []model.KnowledgeBase
	if err := r.db.WithContext(ctx).Preload("Managers").Order("id").Find(&kbs).Error; err != nil {
		return nil, fmt.Errorf("list knowledge bases failed: %w", err)
	}
	return kbs, nil
}

// ListManagedBy returns knowledge bases the user owns or has a manager grant
// on.
func (r *KnowledgeBaseRepository) ListManagedBy(ctx context.Context, userID uint) ([]model.KnowledgeBase, error) {
	var kbs []model.KnowledgeBase
	err := r.db.WithContext(ctx).Preload("Managers").
		Where("owner_id = ? OR id IN (?)", userID,
			r.db.Table("knowledge_base_managers").Select("knowledge_base_id").Where("user_id = ?", userID)).
		Order("id").
		Find(&kbs).Error
	if err != nil {
		return nil, fmt.Errorf("list managed knowledge bases failed: %w", err)
	}
	return kbs, nil
}

func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id uint) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.WithContext(ctx).Preload("Managers").First(&kb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query knowledge base by id failed: %w", err)
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) GetBySlug(ctx context.Context, slug string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query knowledge base by slug failed: %w", err)
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) GetByName(ctx context.Context, name string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query knowledge base by name failed: %w", err)
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) CountBySlug(ctx context.Context, slug string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.KnowledgeBase{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count knowledge bases by slug failed: %w", err)
	}
	return count, nil
}

func (r *KnowledgeBaseRepository) ReplaceManagers(ctx context.Context, kb *model.KnowledgeBase, managers []model.User) error {
	if err := r.db.WithContext(ctx).Model(kb).Association("Managers").Replace(managers); err != nil {
		return fmt.Errorf("replace knowledge base managers failed: %w", err)
	}
	return nil
}
