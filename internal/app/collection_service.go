package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/pkg/slugutil"
)

type collectionStore interface {
	Create(ctx context.Context, collection *model.QACollection) error
	Update(ctx context.Context, collection *model.QACollection) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]model.QACollection, error)
	ListManagedBy(ctx context.Context, userID uint) ([]model.QACollection, error)
	GetByID(ctx context.Context, id uint) (*model.QACollection, error)
	GetBySlug(ctx context.Context, slug string) (*model.QACollection, error)
	GetByName(ctx context.Context, name string) (*model.QACollection, error)
	CountBySlug(ctx context.Context, slug string) (int64, error)
	ReplaceManagers(ctx context.Context, collection *model.QACollection, managers []model.User) error
}

type CollectionService struct {
	collections collectionStore
	users       userStore
	slugs       *slugutil.Assigner
	reconciler  *Reconciler
	logger      *zap.Logger
}

func NewCollectionService(collections collectionStore, users userStore, slugs *slugutil.Assigner, reconciler *Reconciler, logger *zap.Logger) *CollectionService {
	return &CollectionService{
		collections: collections,
		users:       users,
		slugs:       slugs,
		reconciler:  reconciler,
		logger:      logger,
	}
}

type CreateCollectionRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
}

// Create assigns a random slug: collection names mirror vector-store
// collection names and must not be derivable from the public identifier.
func (s *CollectionService) Create(ctx context.Context, actor *model.User, req CreateCollectionRequest) (*model.QACollection, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if existing, err := s.collections.GetByName(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateName
	}
	slug := s.slugs.Random()
	if count, err := s.collections.CountBySlug(ctx, slug); err != nil {
		return nil, err
	} else if count > 0 {
		return nil, ErrDuplicateSlug
	}
	collection := &model.QACollection{
		Name:        name,
		Slug:        slug,
		DisplayName: req.DisplayName,
	}
	if err := s.collections.Create(ctx, collection); err != nil {
		return nil, err
	}
	s.logger.Info("qa collection created",
		zap.Uint("collection_id", collection.ID),
		zap.String("name", collection.Name),
		zap.Uint("actor_id", actor.ID))
	return collection, nil
}

type UpdateCollectionRequest struct {
	DisplayName *string `json:"display_name"`
}

// Update only touches the display name. Name is pinned to the vector-store
// collection and slug is immutable, so neither is editable here.
func (s *CollectionService) Update(ctx context.Context, actor *model.User, id uint, req UpdateCollectionRequest) (*model.QACollection, error) {
	collection, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrNotFound
	}
	if !CanManage(actor, nil, managerIDs(collection.Managers)) {
		return nil, ErrForbidden
	}
	if req.DisplayName != nil {
		collection.DisplayName = *req.DisplayName
	}
	if err := s.collections.Update(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// Delete purges the vector-store collection and its QA rows before removing
// the collection record. A vector-store failure leaves everything in place.
func (s *CollectionService) Delete(ctx context.Context, actor *model.User, id uint) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrForbidden
	}
	collection, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if collection == nil {
		return ErrNotFound
	}
	if err := s.reconciler.PurgeCollection(ctx, collection); err != nil {
		return err
	}
	if err := s.collections.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("qa collection deleted",
		zap.Uint("collection_id", id),
		zap.Uint("actor_id", actor.ID))
	return nil
}

func (s *CollectionService) List(ctx context.Context, actor *model.User) ([]model.QACollection, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if actor.IsAdmin() {
		return s.collections.List(ctx)
	}
	return s.collections.ListManagedBy(ctx, actor.ID)
}

func (s *CollectionService) Get(ctx context.Context, actor *model.User, id uint) (*model.QACollection, error) {
	collection, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrNotFound
	}
	if !CanManage(actor, nil, managerIDs(collection.Managers)) {
		return nil, ErrForbidden
	}
	return collection, nil
}

func (s *CollectionService) ReplaceManagers(ctx context.Context, actor *model.User, id uint, userIDs []uint) (*model.QACollection, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	collection, err := s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrNotFound
	}
	managers := make([]model.User, 0, len(userIDs))
	for _, uid := range userIDs {
		user, err := s.users.GetByID(ctx, uid)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, uid)
		}
		managers = append(managers, *user)
	}
	if err := s.collections.ReplaceManagers(ctx, collection, managers); err != nil {
		return nil, err
	}
	collection.Managers = managers
	return collection, nil
}
