package app

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/pkg/slugutil"
	"askcampus/internal/vectorstore"
)

type fakeCollectionRepo struct {
	collections map[uint]*model.QACollection
	nextID      uint
}

func newFakeCollectionRepo(collections ...model.QACollection) *fakeCollectionRepo {
	repo := &fakeCollectionRepo{collections: make(map[uint]*model.QACollection), nextID: 1}
	for i := range collections {
		c := collections[i]
		repo.collections[c.ID] = &c
		if c.ID >= repo.nextID {
			repo.nextID = c.ID + 1
		}
	}
	return repo
}

func (r *fakeCollectionRepo) Create(_ context.Context, collection *model.QACollection) error {
	collection.ID = r.nextID
	r.nextID++
	stored := *collection
	r.collections[collection.ID] = &stored
	return nil
}

func (r *fakeCollectionRepo) Update(_ context.Context, collection *model.QACollection) error {
	stored := *collection
	r.collections[collection.ID] = &stored
	return nil
}

func (r *fakeCollectionRepo) Delete(_ context.Context, id uint) error {
	delete(r.collections, id)
	return nil
}

func (r *fakeCollectionRepo) List(_ context.Context) ([]model.QACollection, error) {
	var out []model.QACollection
	for _, c := range r.collections {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCollectionRepo) ListManagedBy(_ context.Context, userID uint) ([]model.QACollection, error) {
	var out []model.QACollection
	for _, c := range r.collections {
		if CanManage(&model.User{ID: userID, Role: model.RoleUser}, nil, managerIDs(c.Managers)) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCollectionRepo) GetByID(_ context.Context, id uint) (*model.QACollection, error) {
	c, ok := r.collections[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCollectionRepo) GetBySlug(_ context.Context, slug string) (*model.QACollection, error) {
	for _, c := range r.collections {
		if c.Slug == slug {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeCollectionRepo) GetByName(_ context.Context, name string) (*model.QACollection, error) {
	for _, c := range r.collections {
		if c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeCollectionRepo) CountBySlug(_ context.Context, slug string) (int64, error) {
	var count int64
	for _, c := range r.collections {
		if c.Slug == slug {
			count++
		}
	}
	return count, nil
}

func (r *fakeCollectionRepo) ReplaceManagers(_ context.Context, collection *model.QACollection, managers []model.User) error {
	stored, ok := r.collections[collection.ID]
	if !ok {
		return errors.New("collection not found")
	}
	stored.Managers = managers
	return nil
}

func newCollectionService(repo *fakeCollectionRepo, qas *fakeQAStore, vectors *fakeVectorStore) *CollectionService {
	logger := zap.NewNop()
	users := &fakeUserRepo{users: make(map[uint]*model.User)}
	reconciler := NewReconciler(qas, vectors, logger)
	return NewCollectionService(repo, users, slugutil.New("test-salt"), reconciler, logger)
}

func TestCreateCollectionAssignsRandomSlug(t *testing.T) {
	repo := newFakeCollectionRepo()
	svc := newCollectionService(repo, newFakeQAStore(), newFakeVectorStore())

	first, err := svc.Create(context.Background(), adminUser(), CreateCollectionRequest{Name: "canteen"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(context.Background(), adminUser(), CreateCollectionRequest{Name: "library"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.Slug == "" || first.Slug == second.Slug {
		t.Fatalf("slugs not unique: %q vs %q", first.Slug, second.Slug)
	}

	if _, err := svc.Create(context.Background(), adminUser(), CreateCollectionRequest{Name: "canteen"}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate name err = %v, want ErrDuplicateName", err)
	}
}

func TestDeleteCollectionPurgesRowsAndVectors(t *testing.T) {
	collection := model.QACollection{ID: 10, Name: "canteen-faq", Slug: "s"}
	repo := newFakeCollectionRepo(collection)
	qas := newFakeQAStore(
		model.QA{ID: 1, CollectionID: 10, Vectorized: true, DocID: docID("doc-1")},
		model.QA{ID: 2, CollectionID: 10},
	)
	vectors := newFakeVectorStore()
	vectors.collection("canteen-faq")["doc-1"] = vectorstore.Document{Content: "q"}
	svc := newCollectionService(repo, qas, vectors)

	if err := svc.Delete(context.Background(), adminUser(), 10); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(qas.rows) != 0 {
		t.Fatalf("qa rows survived collection delete")
	}
	if _, ok := repo.collections[10]; ok {
		t.Fatalf("collection record survived delete")
	}
}

func TestDeleteCollectionAbortsOnVectorFailure(t *testing.T) {
	collection := model.QACollection{ID: 10, Name: "canteen-faq", Slug: "s"}
	repo := newFakeCollectionRepo(collection)
	qas := newFakeQAStore(model.QA{ID: 1, CollectionID: 10})
	vectors := newFakeVectorStore()
	vectors.dropErr = errors.New("milvus down")
	svc := newCollectionService(repo, qas, vectors)

	if err := svc.Delete(context.Background(), adminUser(), 10); err == nil {
		t.Fatalf("expected delete to fail")
	}
	if len(qas.rows) != 1 {
		t.Fatalf("relational rows deleted despite vector failure")
	}
	if _, ok := repo.collections[10]; !ok {
		t.Fatalf("collection record deleted despite vector failure")
	}
}

func TestCollectionListScopedToGrants(t *testing.T) {
	manager := model.User{ID: 5, Role: model.RoleUser}
	repo := newFakeCollectionRepo(
		model.QACollection{ID: 1, Name: "mine", Slug: "a", Managers: []model.User{manager}},
		model.QACollection{ID: 2, Name: "other", Slug: "b"},
	)
	svc := newCollectionService(repo, newFakeQAStore(), newFakeVectorStore())

	mine, err := svc.List(context.Background(), &manager)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != 1 {
		t.Fatalf("manager sees %+v, want only collection 1", mine)
	}

	all, err := svc.List(context.Background(), adminUser())
	if err != nil {
		t.Fatalf("admin list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d collections, want 2", len(all))
	}
}

func TestReplaceCollectionManagersAdminOnly(t *testing.T) {
	repo := newFakeCollectionRepo(model.QACollection{ID: 1, Name: "c", Slug: "s"})
	svc := newCollectionService(repo, newFakeQAStore(), newFakeVectorStore())

	regular := &model.User{ID: 5, Role: model.RoleUser}
	if _, err := svc.ReplaceManagers(context.Background(), regular, 1, []uint{5}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
