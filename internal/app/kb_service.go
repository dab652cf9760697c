package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/pkg/slugutil"
)

type kbStore interface {
	Create(ctx context.Context, kb *model.KnowledgeBase) error
	Update(ctx context.Context, kb *model.KnowledgeBase) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]model.KnowledgeBase, error)
	ListManagedBy(ctx context.Context, userID uint) ([]model.KnowledgeBase, error)
	GetByID(ctx context.Context, id uint) (*model.KnowledgeBase, error)
	GetBySlug(ctx context.Context, slug string) (*model.KnowledgeBase, error)
	GetByName(ctx context.Context, name string) (*model.KnowledgeBase, error)
	CountBySlug(ctx context.Context, slug string) (int64, error)
	ReplaceManagers(ctx context.Context, kb *model.KnowledgeBase, managers []model.User) error
}

// PublicKBConfig is the slice of a knowledge base the chat front end may see.
type PublicKBConfig struct {
	Slug           string `json:"slug"`
	DisplayName    string `json:"display_name"`
	WelcomeMessage string `json:"welcome_message"`
	Prompt         string `json:"prompt"`
	Policy         string `json:"policy"`
	Category       string `json:"category"`
}

// kbConfigCache fronts the public config lookup. A cache failure is never a
// request failure; implementations log and miss.
type kbConfigCache interface {
	Get(ctx context.Context, slug string) (*PublicKBConfig, error)
	Set(ctx context.Context, slug string, cfg *PublicKBConfig) error
	Invalidate(ctx context.Context, slug string) error
}

type KnowledgeBaseService struct {
	kbs    kbStore
	users  userStore
	slugs  *slugutil.Assigner
	cache  kbConfigCache
	logger *zap.Logger
}

func NewKnowledgeBaseService(kbs kbStore, users userStore, slugs *slugutil.Assigner, cache kbConfigCache, logger *zap.Logger) *KnowledgeBaseService {
	return &KnowledgeBaseService{kbs: kbs, users: users, slugs: slugs, cache: cache, logger: logger}
}

type CreateKBRequest struct {
	Name           string `json:"name" binding:"required"`
	DisplayName    string `json:"display_name"`
	WelcomeMessage string `json:"welcome_message"`
	Prompt         string `json:"prompt"`
	Policy         string `json:"policy"`
	Category       string `json:"category"`
	OwnerID        *uint  `json:"owner_id"`
}

func (s *KnowledgeBaseService) Create(ctx context.Context, actor *model.User, req CreateKBRequest) (*model.KnowledgeBase, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	category := req.Category
	if category == "" {
		category = model.CategoryKB
	}
	if category != model.CategoryKB && category != model.CategoryQA {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	if existing, err := s.kbs.GetByName(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateName
	}
	slug := s.slugs.Derive(name)
	if count, err := s.kbs.CountBySlug(ctx, slug); err != nil {
		return nil, err
	} else if count > 0 {
		return nil, ErrDuplicateSlug
	}
	kb := &model.KnowledgeBase{
		Name:           name,
		Slug:           slug,
		OwnerID:        req.OwnerID,
		DisplayName:    req.DisplayName,
		WelcomeMessage: req.WelcomeMessage,
		Prompt:         req.Prompt,
		Policy:         req.Policy,
		Category:       category,
	}
	if err := s.kbs.Create(ctx, kb); err != nil {
		return nil, err
	}
	s.logger.Info("knowledge base created",
		zap.Uint("kb_id", kb.ID),
		zap.String("slug", kb.Slug),
		zap.Uint("actor_id", actor.ID))
	return kb, nil
}

type UpdateKBRequest struct {
	Name           *string `json:"name"`
	Slug           *string `json:"slug"`
	Category       *string `json:"category"`
	OwnerID        *uint   `json:"owner_id"`
	DisplayName    *string `json:"display_name"`
	WelcomeMessage *string `json:"welcome_message"`
	Prompt         *string `json:"prompt"`
	Policy         *string `json:"policy"`
}

// restrictedFields names the admin-only fields a request touches.
func restrictedFields(req UpdateKBRequest) []string {
	var fields []string
	if req.Name != nil {
		fields = append(fields, "name")
	}
	if req.Slug != nil {
		fields = append(fields, "slug")
	}
	if req.Category != nil {
		fields = append(fields, "category")
	}
	if req.OwnerID != nil {
		fields = append(fields, "owner_id")
	}
	return fields
}

// Update mutates a knowledge base. The restricted-field check runs before any
// write: a non-admin request touching a restricted field changes nothing.
func (s *KnowledgeBaseService) Update(ctx context.Context, actor *model.User, id uint, req UpdateKBRequest) (*model.KnowledgeBase, error) {
	kb, err := s.kbs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrNotFound
	}
	if !CanManage(actor, kb.OwnerID, managerIDs(kb.Managers)) {
		return nil, ErrForbidden
	}
	if !actor.IsAdmin() {
		if fields := restrictedFields(req); len(fields) > 0 {
			return nil, &ForbiddenFieldsError{Fields: fields}
		}
	}
	oldSlug := kb.Slug
	if req.Name != nil && *req.Name != kb.Name {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		if existing, err := s.kbs.GetByName(ctx, name); err != nil {
			return nil, err
		} else if existing != nil && existing.ID != kb.ID {
			return nil, ErrDuplicateName
		}
		kb.Name = name
	}
	if req.Slug != nil && *req.Slug != kb.Slug {
		if *req.Slug == "" {
			return nil, fmt.Errorf("%w: slug must not be empty", ErrInvalidInput)
		}
		if existing, err := s.kbs.GetBySlug(ctx, *req.Slug); err != nil {
			return nil, err
		} else if existing != nil && existing.ID != kb.ID {
			return nil, ErrDuplicateSlug
		}
		kb.Slug = *req.Slug
	}
	if req.Category != nil {
		if *req.Category != model.CategoryKB && *req.Category != model.CategoryQA {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, *req.Category)
		}
		kb.Category = *req.Category
	}
	if req.OwnerID != nil {
		kb.OwnerID = req.OwnerID
	}
	if req.DisplayName != nil {
		kb.DisplayName = *req.DisplayName
	}
	if req.WelcomeMessage != nil {
		kb.WelcomeMessage = *req.WelcomeMessage
	}
	if req.Prompt != nil {
		kb.Prompt = *req.Prompt
	}
	if req.Policy != nil {
		kb.Policy = *req.Policy
	}
	if err := s.kbs.Update(ctx, kb); err != nil {
		return nil, err
	}
	s.invalidate(ctx, oldSlug)
	if kb.Slug != oldSlug {
		s.invalidate(ctx, kb.Slug)
	}
	return kb, nil
}

// ResetSlug re-derives the default slug from the current name. Slugs never
// change implicitly; this is the one explicit path.
func (s *KnowledgeBaseService) ResetSlug(ctx context.Context, actor *model.User, id uint) (*model.KnowledgeBase, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	kb, err := s.kbs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrNotFound
	}
	slug := s.slugs.Derive(kb.Name)
	if slug == kb.Slug {
		return kb, nil
	}
	if existing, err := s.kbs.GetBySlug(ctx, slug); err != nil {
		return nil, err
	} else if existing != nil && existing.ID != kb.ID {
		return nil, ErrDuplicateSlug
	}
	oldSlug := kb.Slug
	kb.Slug = slug
	if err := s.kbs.Update(ctx, kb); err != nil {
		return nil, err
	}
	s.invalidate(ctx, oldSlug)
	return kb, nil
}

func (s *KnowledgeBaseService) Delete(ctx context.Context, actor *model.User, id uint) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrForbidden
	}
	kb, err := s.kbs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if kb == nil {
		return ErrNotFound
	}
	if err := s.kbs.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, kb.Slug)
	return nil
}

func (s *KnowledgeBaseService) List(ctx context.Context, actor *model.User) ([]model.KnowledgeBase, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if actor.IsAdmin() {
		return s.kbs.List(ctx)
	}
	return s.kbs.ListManagedBy(ctx, actor.ID)
}

func (s *KnowledgeBaseService) Get(ctx context.Context, actor *model.User, id uint) (*model.KnowledgeBase, error) {
	kb, err := s.kbs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrNotFound
	}
	if !CanManage(actor, kb.OwnerID, managerIDs(kb.Managers)) {
		return nil, ErrForbidden
	}
	return kb, nil
}

// Sync creates knowledge bases for externally known names not yet present.
// Existing names are left untouched; the returned slice holds only the
// records created by this call.
func (s *KnowledgeBaseService) Sync(ctx context.Context, actor *model.User, names []string) ([]model.KnowledgeBase, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var created []model.KnowledgeBase
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		existing, err := s.kbs.GetByName(ctx, name)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		kb, err := s.Create(ctx, actor, CreateKBRequest{Name: name, DisplayName: name})
		if err != nil {
			return created, fmt.Errorf("sync %q failed: %w", name, err)
		}
		created = append(created, *kb)
	}
	s.logger.Info("knowledge base sync finished",
		zap.Int("requested", len(names)),
		zap.Int("created", len(created)))
	return created, nil
}

func (s *KnowledgeBaseService) ReplaceManagers(ctx context.Context, actor *model.User, id uint, userIDs []uint) (*model.KnowledgeBase, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	kb, err := s.kbs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if kb == nil {
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
	if err := s.kbs.ReplaceManagers(ctx, kb, managers); err != nil {
		return nil, err
	}
	kb.Managers = managers
	return kb, nil
}

// PublicConfig is the unauthenticated lookup the chat front end boots from.
func (s *KnowledgeBaseService) PublicConfig(ctx context.Context, slug string) (*PublicKBConfig, error) {
	if cfg, err := s.cache.Get(ctx, slug); err != nil {
		s.logger.Warn("kb config cache read failed", zap.String("slug", slug), zap.Error(err))
	} else if cfg != nil {
		return cfg, nil
	}
	kb, err := s.kbs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrNotFound
	}
	cfg := &PublicKBConfig{
		Slug:           kb.Slug,
		DisplayName:    kb.DisplayName,
		WelcomeMessage: kb.WelcomeMessage,
		Prompt:         kb.Prompt,
		Policy:         kb.Policy,
		Category:       kb.Category,
	}
	if err := s.cache.Set(ctx, slug, cfg); err != nil {
		s.logger.Warn("kb config cache write failed", zap.String("slug", slug), zap.Error(err))
	}
	return cfg, nil
}

func (s *KnowledgeBaseService) invalidate(ctx context.Context, slug string) {
	if err := s.cache.Invalidate(ctx, slug); err != nil {
		s.logger.Warn("kb config cache invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
}
