package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"askcampus/internal/model"
)

type QARepository struct {
	db *gorm.DB
}

func NewQARepository(db *gorm.DB) *QARepository {
	return &QARepository{db: db}
}

func (r *QARepository) Create(ctx context.Context, qa *model.QA) error {
	if err := r.db.WithContext(ctx).Create(qa).Error; err != nil {
		return fmt.Errorf("create qa failed: %w", err)
	}
	return nil
}

func (r *QARepository) CreateBatch(ctx context.Context, qas []model.QA) error {
	if len(qas) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&qas).Error; err != nil {
		return fmt.Errorf("create qa batch failed: %w", err)
	}
	return nil
}

func (r *QARepository) GetByID(ctx context.Context, id uint) (*model.QA, error) {
	var qa model.QA
	if err := r.db.WithContext(ctx).First(&qa, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query qa by id failed: %w", err)
	}
	return &qa, nil
}

func (r *QARepository) ListByIDs(ctx context.Context, ids []uint) ([]model.QA, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var qas []model.QA
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&qas).Error; err != nil {
		return nil, fmt.Errorf("list qas by ids failed: %w", err)
	}
	return qas, nil
}

func (r *QARepository) ListByCollectionID(ctx context.Context, collectionID uint) ([]model.QA, error) {
	var qas []model.QA
	if err := r.db.WithContext(ctx).Where("collection_id = ?", collectionID).Order("id").Find(&qas).Error; err != nil {
		return nil, fmt.Errorf("list qas by collection failed: %w", err)
	}
	return qas, nil
}

// ClearVectorized resets vectorized/doc_id together in one transaction, so a
// row never ends up half-cleared.
func (r *QARepository) ClearVectorized(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.QA{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"vectorized": false, "doc_id": nil}).Error
	})
	if err != nil {
		return fmt.Errorf("clear vectorized failed: %w", err)
	}
	return nil
}

// UpdateEditableFields writes the bulk-editor fields row by row. No external
// system is involved, so the writes are not wrapped in one transaction.
func (r *QARepository) UpdateEditableFields(ctx context.Context, rows []model.QA) error {
	for _, row := range rows {
		err := r.db.WithContext(ctx).Model(&model.QA{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"question":     row.Question,
				"answer":       row.Answer,
				"alias":        row.Alias,
				"popular":      row.Popular,
				"popular_rank": row.PopularRank,
			}).Error
		if err != nil {
			return fmt.Errorf("update qa %d failed: %w", row.ID, err)
		}
	}
	return nil
}

func (r *QARepository) DeleteByIDs(ctx context.Context, collectionID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("collection_id = ? AND id IN ?", collectionID, ids).
		Delete(&model.QA{}).Error
	if err != nil {
		return fmt.Errorf("delete qas failed: %w", err)
	}
	return nil
}

func (r *QARepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.QA{}, id).Error; err != nil {
		return fmt.Errorf("delete qa failed: %w", err)
	}
	return nil
}

// AssignDocIDs records external embedding ids and flips vectorized in one
// transaction per batch.
func (r *QARepository) AssignDocIDs(ctx context.Context, docIDs map[uint]string) error {
	if len(docIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, docID := range docIDs {
			err := tx.Model(&model.QA{}).
				Where("id = ?", id).
				Updates(map[string]interface{}{"vectorized": true, "doc_id": docID}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("assign doc ids failed: %w", err)
	}
	return nil
}

func (r *QARepository) DeleteByCollectionID(ctx context.Context, collectionID uint) error {
	if err := r.db.WithContext(ctx).Where("collection_id = ?", collectionID).Delete(&model.QA{}).Error; err != nil {
		return fmt.Errorf("delete qas by collection failed: %w", err)
	}
	return nil
}
