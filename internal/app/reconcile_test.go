package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/vectorstore"
)

type fakeQAStore struct {
	rows map[uint]*model.QA
}

func newFakeQAStore(rows ...model.QA) *fakeQAStore {
	s := &fakeQAStore{rows: make(map[uint]*model.QA)}
	for i := range rows {
		row := rows[i]
		s.rows[row.ID] = &row
	}
	return s
}

func (s *fakeQAStore) ListByCollectionID(_ context.Context, collectionID uint) ([]model.QA, error) {
	var out []model.QA
	for _, row := range s.rows {
		if row.CollectionID == collectionID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeQAStore) ClearVectorized(_ context.Context, ids []uint) error {
	for _, id := range ids {
		if row, ok := s.rows[id]; ok {
			row.Vectorized = false
			row.DocID = nil
		}
	}
	return nil
}

func (s *fakeQAStore) UpdateEditableFields(_ context.Context, rows []model.QA) error {
	for _, in := range rows {
		if row, ok := s.rows[in.ID]; ok {
			row.Question = in.Question
			row.Answer = in.Answer
			row.Alias = in.Alias
			row.Popular = in.Popular
			row.PopularRank = in.PopularRank
		}
	}
	return nil
}

func (s *fakeQAStore) DeleteByIDs(_ context.Context, collectionID uint, ids []uint) error {
	for _, id := range ids {
		if row, ok := s.rows[id]; ok && row.CollectionID == collectionID {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *fakeQAStore) AssignDocIDs(_ context.Context, docIDs map[uint]string) error {
	for id, docID := range docIDs {
		if row, ok := s.rows[id]; ok {
			d := docID
			row.Vectorized = true
			row.DocID = &d
		}
	}
	return nil
}

func (s *fakeQAStore) DeleteByCollectionID(_ context.Context, collectionID uint) error {
	for id, row := range s.rows {
		if row.CollectionID == collectionID {
			delete(s.rows, id)
		}
	}
	return nil
}

type fakeVectorStore struct {
	docs      map[string]map[string]vectorstore.Document // collection -> doc id -> doc
	nextID    int
	deleteErr error
	dropErr   error
	failQAIDs map[uint]bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{docs: make(map[string]map[string]vectorstore.Document)}
}

func (f *fakeVectorStore) collection(name string) map[string]vectorstore.Document {
	if f.docs[name] == nil {
		f.docs[name] = make(map[string]vectorstore.Document)
	}
	return f.docs[name]
}

func (f *fakeVectorStore) AddDocuments(_ context.Context, collection string, docs []vectorstore.Document) ([]vectorstore.AddedDocument, error) {
	var added []vectorstore.AddedDocument
	var failed bool
	for _, doc := range docs {
		if f.failQAIDs[doc.Metadata.QAID] {
			failed = true
			continue
		}
		var id string
		for {
			f.nextID++
			id = fmt.Sprintf("doc-%d", f.nextID)
			if _, exists := f.collection(collection)[id]; !exists {
				break
			}
		}
		f.collection(collection)[id] = doc
		added = append(added, vectorstore.AddedDocument{ExternalID: id, Metadata: doc.Metadata})
	}
	if failed {
		return added, fmt.Errorf("embed batch: %w", vectorstore.ErrUnavailable)
	}
	return added, nil
}

func (f *fakeVectorStore) DeleteDocuments(_ context.Context, collection string, externalIDs []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, id := range externalIDs {
		delete(f.collection(collection), id)
	}
	return nil
}

func (f *fakeVectorStore) Search(context.Context, string, string, int, float32) ([]vectorstore.Hit, error) {
	return nil, nil
}

func (f *fakeVectorStore) ClearCollection(_ context.Context, collection string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.docs[collection] = make(map[string]vectorstore.Document)
	return nil
}

func (f *fakeVectorStore) DropCollection(_ context.Context, collection string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	delete(f.docs, collection)
	return nil
}

func docID(s string) *string { return &s }

// checkVectorizedInvariant asserts vectorized == (doc_id present) for every
// row, and that a vectorized row's document actually exists in the store.
func checkVectorizedInvariant(t *testing.T, qas *fakeQAStore, vectors *fakeVectorStore, collectionName string) {
	t.Helper()
	for id, row := range qas.rows {
		hasDoc := row.DocID != nil && *row.DocID != ""
		if row.Vectorized != hasDoc {
			t.Fatalf("row %d: vectorized=%v but doc_id present=%v", id, row.Vectorized, hasDoc)
		}
		if hasDoc {
			if _, ok := vectors.collection(collectionName)[*row.DocID]; !ok {
				t.Fatalf("row %d: doc %q missing from vector store", id, *row.DocID)
			}
		}
	}
}

func testCollection() *model.QACollection {
	return &model.QACollection{ID: 10, Name: "canteen-faq", Slug: "abc123"}
}

func TestReconcileAddsNewEmbeddings(t *testing.T) {
	qas := newFakeQAStore(
		model.QA{ID: 1, CollectionID: 10, Question: "食堂几点开", Answer: "早7点到晚8点"},
		model.QA{ID: 2, CollectionID: 10, Question: "图书馆在哪", Answer: "中心楼旁"},
	)
	vectors := newFakeVectorStore()
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{
		{ID: 1, Question: "食堂几点开", Answer: "早7点到晚8点"},
		{ID: 2, Question: "图书馆在哪", Answer: "中心楼旁"},
	}
	edited := make([]RowSnapshot, len(original))
	copy(edited, original)
	edited[0].Vectorized = true
	edited[1].Vectorized = true

	result, err := rec.Reconcile(context.Background(), testCollection(), original, edited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 2 {
		t.Fatalf("expected 2 added, got %d", result.Added)
	}
	checkVectorizedInvariant(t, qas, vectors, "canteen-faq")
}

func TestReconcileAliasFallsBackToQuestion(t *testing.T) {
	qas := newFakeQAStore(model.QA{ID: 1, CollectionID: 10, Question: "食堂几点开", Answer: "早7点到晚8点"})
	vectors := newFakeVectorStore()
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{{ID: 1, Question: "食堂几点开", Answer: "早7点到晚8点", Alias: ""}}
	edited := []RowSnapshot{{ID: 1, Question: "食堂几点开", Answer: "早7点到晚8点", Alias: "", Vectorized: true}}

	if _, err := rec.Reconcile(context.Background(), testCollection(), original, edited); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := vectors.collection("canteen-faq")
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Content != "食堂几点开" {
			t.Fatalf("expected question embedded, got %q", doc.Content)
		}
		if doc.Metadata.QAID != 1 || doc.Metadata.Answer != "早7点到晚8点" {
			t.Fatalf("metadata not round-tripped: %+v", doc.Metadata)
		}
	}
}

func TestReconcileContentChangeReplacesEmbedding(t *testing.T) {
	qas := newFakeQAStore(model.QA{
		ID: 1, CollectionID: 10, Question: "q", Answer: "a", Alias: "old alias",
		Vectorized: true, DocID: docID("doc-old"),
	})
	vectors := newFakeVectorStore()
	vectors.collection("canteen-faq")["doc-old"] = vectorstore.Document{Content: "old alias"}
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{{ID: 1, Question: "q", Answer: "a", Alias: "old alias", Vectorized: true}}
	edited := []RowSnapshot{{ID: 1, Question: "q", Answer: "a", Alias: "new alias", Vectorized: true}}

	result, err := rec.Reconcile(context.Background(), testCollection(), original, edited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Removed != 1 || result.Added != 1 {
		t.Fatalf("expected 1 removed and 1 added, got %+v", result)
	}
	docs := vectors.collection("canteen-faq")
	if _, ok := docs["doc-old"]; ok {
		t.Fatal("stale embedding must be removed")
	}
	if len(docs) != 1 {
		t.Fatalf("expected exactly 1 document after replace, got %d", len(docs))
	}
	checkVectorizedInvariant(t, qas, vectors, "canteen-faq")
}

func TestClassifyDeleteFlaggedVectorizedRow(t *testing.T) {
	old := RowSnapshot{ID: 1, Question: "q", Answer: "a", Vectorized: true}
	edited := old
	edited.Delete = true

	plan := classifyChanges([]RowChange{{Old: &old, New: edited}})
	if len(plan.toRemove) != 1 {
		t.Fatalf("delete-flagged vectorized row must be in toRemove, got %d", len(plan.toRemove))
	}
	if len(plan.toDelete) != 1 {
		t.Fatalf("delete-flagged row must be in toDelete, got %d", len(plan.toDelete))
	}
	if len(plan.toAdd) != 0 {
		t.Fatal("delete-flagged row must never be re-added")
	}
}

func TestReconcileDeleteFlaggedVectorizedRow(t *testing.T) {
	qas := newFakeQAStore(model.QA{
		ID: 1, CollectionID: 10, Question: "q", Answer: "a",
		Vectorized: true, DocID: docID("doc-1"),
	})
	vectors := newFakeVectorStore()
	vectors.collection("canteen-faq")["doc-1"] = vectorstore.Document{Content: "q"}
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{{ID: 1, Question: "q", Answer: "a", Vectorized: true}}
	edited := []RowSnapshot{{ID: 1, Question: "q", Answer: "a", Vectorized: true, Delete: true}}

	result, err := rec.Reconcile(context.Background(), testCollection(), original, edited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Removed != 1 || result.Deleted != 1 {
		t.Fatalf("expected removed=1 deleted=1, got %+v", result)
	}
	if len(vectors.collection("canteen-faq")) != 0 {
		t.Fatal("embedding must be gone from the vector store")
	}
	if _, ok := qas.rows[1]; ok {
		t.Fatal("row must be gone from the relational store")
	}
}

func TestReconcilePartialAddFailure(t *testing.T) {
	qas := newFakeQAStore(
		model.QA{ID: 1, CollectionID: 10, Question: "q1", Answer: "a1"},
		model.QA{ID: 2, CollectionID: 10, Question: "q2", Answer: "a2"},
		model.QA{ID: 3, CollectionID: 10, Question: "q3", Answer: "a3"},
	)
	vectors := newFakeVectorStore()
	vectors.failQAIDs = map[uint]bool{2: true}
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{
		{ID: 1, Question: "q1", Answer: "a1"},
		{ID: 2, Question: "q2", Answer: "a2"},
		{ID: 3, Question: "q3", Answer: "a3"},
	}
	edited := make([]RowSnapshot, len(original))
	copy(edited, original)
	for i := range edited {
		edited[i].Vectorized = true
	}

	result, err := rec.Reconcile(context.Background(), testCollection(), original, edited)
	var partial *PartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	if len(partial.RowIDs) != 1 || partial.RowIDs[0] != 2 {
		t.Fatalf("expected row 2 unresolved, got %v", partial.RowIDs)
	}
	if result.Added != 2 {
		t.Fatalf("expected 2 rows recorded despite failure, got %d", result.Added)
	}
	if row := qas.rows[2]; row.Vectorized || row.DocID != nil {
		t.Fatal("failing row must stay vectorized=false with no doc_id")
	}
	checkVectorizedInvariant(t, qas, vectors, "canteen-faq")
}

func TestReconcileRemoveFailureKeepsFlags(t *testing.T) {
	qas := newFakeQAStore(model.QA{
		ID: 1, CollectionID: 10, Question: "q", Answer: "a",
		Vectorized: true, DocID: docID("doc-1"),
	})
	vectors := newFakeVectorStore()
	vectors.collection("canteen-faq")["doc-1"] = vectorstore.Document{Content: "q"}
	vectors.deleteErr = vectorstore.ErrUnavailable
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{{ID: 1, Question: "q", Answer: "a", Vectorized: true}}
	edited := []RowSnapshot{{ID: 1, Question: "q", Answer: "a", Vectorized: false}}

	_, err := rec.Reconcile(context.Background(), testCollection(), original, edited)
	var partial *PartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	row := qas.rows[1]
	if !row.Vectorized || row.DocID == nil {
		t.Fatal("flags must stay intact when the vector delete fails")
	}
	if _, ok := vectors.collection("canteen-faq")["doc-1"]; !ok {
		t.Fatal("embedding must still be present")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	qas := newFakeQAStore(
		model.QA{ID: 1, CollectionID: 10, Question: "q1", Answer: "a1", Vectorized: true, DocID: docID("doc-1")},
		model.QA{ID: 2, CollectionID: 10, Question: "q2", Answer: "a2"},
	)
	vectors := newFakeVectorStore()
	vectors.collection("canteen-faq")["doc-1"] = vectorstore.Document{Content: "q1"}
	rec := NewReconciler(qas, vectors, zap.NewNop())

	original := []RowSnapshot{
		{ID: 1, Question: "q1", Answer: "a1", Vectorized: true},
		{ID: 2, Question: "q2", Answer: "a2"},
	}
	edited := []RowSnapshot{
		{ID: 1, Question: "q1", Answer: "a1-new", Vectorized: true},
		{ID: 2, Question: "q2", Answer: "a2", Vectorized: true},
	}

	for run := 0; run < 2; run++ {
		if _, err := rec.Reconcile(context.Background(), testCollection(), original, edited); err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}
	}

	if got := len(vectors.collection("canteen-faq")); got != 2 {
		t.Fatalf("expected exactly 2 documents after repeated runs, got %d", got)
	}
	if qas.rows[1].Answer != "a1-new" {
		t.Fatalf("expected updated answer, got %q", qas.rows[1].Answer)
	}
	checkVectorizedInvariant(t, qas, vectors, "canteen-faq")
}

func TestPurgeCollectionAbortsWhenVectorClearFails(t *testing.T) {
	qas := newFakeQAStore(model.QA{ID: 1, CollectionID: 10, Question: "q", Answer: "a"})
	vectors := newFakeVectorStore()
	vectors.dropErr = vectorstore.ErrUnavailable
	rec := NewReconciler(qas, vectors, zap.NewNop())

	if err := rec.PurgeCollection(context.Background(), testCollection()); err == nil {
		t.Fatal("expected error when vector clear fails")
	}
	if _, ok := qas.rows[1]; !ok {
		t.Fatal("relational rows must survive a failed vector clear")
	}
}

func TestPurgeCollectionRemovesEverything(t *testing.T) {
	qas := newFakeQAStore(
		model.QA{ID: 1, CollectionID: 10, Question: "q", Answer: "a", Vectorized: true, DocID: docID("doc-1")},
		model.QA{ID: 2, CollectionID: 10, Question: "q2", Answer: "a2"},
	)
	vectors := newFakeVectorStore()
	vectors.collection("canteen-faq")["doc-1"] = vectorstore.Document{Content: "q"}
	rec := NewReconciler(qas, vectors, zap.NewNop())

	if err := rec.PurgeCollection(context.Background(), testCollection()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qas.rows) != 0 {
		t.Fatalf("expected no rows left, got %d", len(qas.rows))
	}
	if _, ok := vectors.docs["canteen-faq"]; ok {
		t.Fatal("vector collection must be dropped")
	}
}
