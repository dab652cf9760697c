package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/vectorstore"
)

type qaStore interface {
	qaReconcileStore
	Create(ctx context.Context, qa *model.QA) error
	CreateBatch(ctx context.Context, qas []model.QA) error
	GetByID(ctx context.Context, id uint) (*model.QA, error)
	Delete(ctx context.Context, id uint) error
}

type analyticsStore interface {
	ListByCollectionID(ctx context.Context, collectionID uint, limit int) ([]model.QAAnalytics, error)
}

type QAService struct {
	qas         qaStore
	collections collectionStore
	analytics   analyticsStore
	vectors     vectorstore.Store
	reconciler  *Reconciler
	logger      *zap.Logger
}

func NewQAService(qas qaStore, collections collectionStore, analytics analyticsStore, vectors vectorstore.Store, reconciler *Reconciler, logger *zap.Logger) *QAService {
	return &QAService{
		qas:         qas,
		collections: collections,
		analytics:   analytics,
		vectors:     vectors,
		reconciler:  reconciler,
		logger:      logger,
	}
}

func (s *QAService) requireManagedCollection(ctx context.Context, actor *model.User, collectionID uint) (*model.QACollection, error) {
	collection, err := s.collections.GetByID(ctx, collectionID)
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

// NewQA is one row submitted through single create or bulk import.
type NewQA struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Alias    string `json:"alias"`
	Source   string `json:"source"`
}

// Create inserts one QA row and embeds it immediately. On a vector-store
// failure the row survives with vectorized=false; a later reconcile run picks
// it up.
func (s *QAService) Create(ctx context.Context, actor *model.User, collectionID uint, req NewQA) (*model.QA, error) {
	collection, err := s.requireManagedCollection(ctx, actor, collectionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return nil, fmt.Errorf("%w: question and answer are required", ErrInvalidInput)
	}
	qa := &model.QA{
		CollectionID: collectionID,
		Source:       req.Source,
		Question:     req.Question,
		Answer:       req.Answer,
		Alias:        req.Alias,
	}
	if err := s.qas.Create(ctx, qa); err != nil {
		return nil, err
	}
	if err := s.vectorize(ctx, collection, []model.QA{*qa}); err != nil {
		return qa, err
	}
	qa, err = s.qas.GetByID(ctx, qa.ID)
	if err != nil {
		return nil, err
	}
	return qa, nil
}

// Import inserts the parsed rows in one batch and embeds them together. Rows
// that fail to embed stay vectorized=false and are reported via
// PartialFailureError; the relational rows always survive.
func (s *QAService) Import(ctx context.Context, actor *model.User, collectionID uint, entries []NewQA) (int, error) {
	collection, err := s.requireManagedCollection(ctx, actor, collectionID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: no rows to import", ErrInvalidInput)
	}
	rows := make([]model.QA, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			return 0, fmt.Errorf("%w: every row needs a question and an answer", ErrInvalidInput)
		}
		rows = append(rows, model.QA{
			CollectionID: collectionID,
			Source:       e.Source,
			Question:     e.Question,
			Answer:       e.Answer,
			Alias:        e.Alias,
		})
	}
	if err := s.qas.CreateBatch(ctx, rows); err != nil {
		return 0, err
	}
	s.logger.Info("qa import stored",
		zap.Uint("collection_id", collectionID),
		zap.Int("rows", len(rows)))
	if err := s.vectorize(ctx, collection, rows); err != nil {
		return len(rows), err
	}
	return len(rows), nil
}

// vectorize embeds the given rows and records the returned doc ids. Partial
// batch success is surfaced as PartialFailureError naming the rows left
// unembedded.
func (s *QAService) vectorize(ctx context.Context, collection *model.QACollection, rows []model.QA) error {
	docs := make([]vectorstore.Document, 0, len(rows))
	for i := range rows {
		docs = append(docs, vectorstore.Document{
			Content: rows[i].EmbedText(),
			Metadata: vectorstore.Metadata{
				QAID:         rows[i].ID,
				CollectionID: collection.ID,
				Question:     rows[i].Question,
				Answer:       rows[i].Answer,
			},
		})
	}
	added, addErr := s.vectors.AddDocuments(ctx, collection.Name, docs)
	assign := make(map[uint]string, len(added))
	for _, doc := range added {
		assign[doc.Metadata.QAID] = doc.ExternalID
	}
	if len(assign) > 0 {
		if err := s.qas.AssignDocIDs(ctx, assign); err != nil {
			return fmt.Errorf("assign doc ids failed: %w", err)
		}
	}
	if addErr != nil {
		var failed []uint
		for i := range rows {
			if _, ok := assign[rows[i].ID]; !ok {
				failed = append(failed, rows[i].ID)
			}
		}
		s.logger.Warn("qa vectorize incomplete",
			zap.Uint("collection_id", collection.ID),
			zap.Int("embedded", len(assign)),
			zap.Int("failed", len(failed)),
			zap.Error(addErr))
		return &PartialFailureError{Phase: "add", RowIDs: failed, Err: addErr}
	}
	return nil
}

func (s *QAService) List(ctx context.Context, actor *model.User, collectionID uint) ([]model.QA, error) {
	if _, err := s.requireManagedCollection(ctx, actor, collectionID); err != nil {
		return nil, err
	}
	return s.qas.ListByCollectionID(ctx, collectionID)
}

// Delete removes one QA row. The embedding goes first; if the vector store
// refuses, the row keeps its flags and the caller can retry.
func (s *QAService) Delete(ctx context.Context, actor *model.User, qaID uint) error {
	qa, err := s.qas.GetByID(ctx, qaID)
	if err != nil {
		return err
	}
	if qa == nil {
		return ErrNotFound
	}
	collection, err := s.requireManagedCollection(ctx, actor, qa.CollectionID)
	if err != nil {
		return err
	}
	if qa.DocID != nil && *qa.DocID != "" {
		if err := s.vectors.DeleteDocuments(ctx, collection.Name, []string{*qa.DocID}); err != nil {
			return fmt.Errorf("delete embedding failed: %w", err)
		}
	}
	return s.qas.Delete(ctx, qaID)
}

// Reconcile applies a bulk-editor session. The access check runs before the
// diff is even computed, so an unauthorized caller learns nothing about the
// collection's contents.
func (s *QAService) Reconcile(ctx context.Context, actor *model.User, collectionID uint, original, edited []RowSnapshot) (*ReconcileResult, error) {
	collection, err := s.requireManagedCollection(ctx, actor, collectionID)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(ctx, collection, original, edited)
}

func (s *QAService) Analytics(ctx context.Context, actor *model.User, collectionID uint, limit int) ([]model.QAAnalytics, error) {
	if _, err := s.requireManagedCollection(ctx, actor, collectionID); err != nil {
		return nil, err
	}
	return s.analytics.ListByCollectionID(ctx, collectionID, limit)
}
