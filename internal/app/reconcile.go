package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/vectorstore"
)

// qaReconcileStore is the slice of the QA repository the reconciler needs.
type qaReconcileStore interface {
	ListByCollectionID(ctx context.Context, collectionID uint) ([]model.QA, error)
	ClearVectorized(ctx context.Context, ids []uint) error
	UpdateEditableFields(ctx context.Context, rows []model.QA) error
	DeleteByIDs(ctx context.Context, collectionID uint, ids []uint) error
	AssignDocIDs(ctx context.Context, docIDs map[uint]string) error
	DeleteByCollectionID(ctx context.Context, collectionID uint) error
}

type ReconcileResult struct {
	Changed int `json:"changed"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Added   int `json:"added"`
}

// Reconciler brings the relational QA store and the vector store back into
// agreement after a batch of bulk-editor changes. The four write sets are
// derived once from the diff, then applied in a fixed order: remove stale
// embeddings, update relational fields, delete flagged rows, embed new
// content. The external side effect always happens before the local flag
// flip, so a crash between the two leaves the retryable state (flag not yet
// flipped) rather than a dangling reference.
type Reconciler struct {
	qas     qaReconcileStore
	vectors vectorstore.Store
	logger  *zap.Logger
}

func NewReconciler(qas qaReconcileStore, vectors vectorstore.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{qas: qas, vectors: vectors, logger: logger}
}

type reconcilePlan struct {
	toRemove []RowChange
	toUpdate []RowChange
	toDelete []RowChange
	toAdd    []RowChange
}

// classifyChanges computes all four write sets up front; later phases never
// re-derive them from partially-mutated state.
func classifyChanges(changes []RowChange) reconcilePlan {
	var plan reconcilePlan
	for _, ch := range changes {
		prev := ch.Old
		contentChanged := prev == nil || prev.EmbedText() != ch.New.EmbedText()

		if prev != nil && prev.Vectorized && (contentChanged || ch.New.Delete || !ch.New.Vectorized) {
			plan.toRemove = append(plan.toRemove, ch)
		}
		if prev == nil || relationalFieldsChanged(*prev, ch.New) {
			plan.toUpdate = append(plan.toUpdate, ch)
		}
		if ch.New.Delete {
			plan.toDelete = append(plan.toDelete, ch)
		}
		if ch.New.Vectorized && !ch.New.Delete && (prev == nil || !prev.Vectorized || contentChanged) {
			plan.toAdd = append(plan.toAdd, ch)
		}
	}
	return plan
}

func relationalFieldsChanged(prev, next RowSnapshot) bool {
	return prev.Question != next.Question ||
		prev.Answer != next.Answer ||
		prev.Alias != next.Alias ||
		prev.Popular != next.Popular ||
		prev.PopularRank != next.PopularRank
}

// Reconcile applies the delta between the two snapshots to collection. On a
// vector-store failure it returns a PartialFailureError listing the row ids
// still unresolved; phases already committed stand, and re-running with the
// same snapshots converges on the same target state.
func (r *Reconciler) Reconcile(ctx context.Context, collection *model.QACollection, original, edited []RowSnapshot) (*ReconcileResult, error) {
	changes := DiffRows(original, edited)
	result := &ReconcileResult{Changed: len(changes)}
	if len(changes) == 0 {
		return result, nil
	}
	plan := classifyChanges(changes)

	current, err := r.qas.ListByCollectionID(ctx, collection.ID)
	if err != nil {
		return result, err
	}
	byID := make(map[uint]model.QA, len(current))
	for _, qa := range current {
		byID[qa.ID] = qa
	}

	// Phase 1: drop stale embeddings, then clear vectorized/doc_id together.
	// Rows whose doc_id is already empty are skipped, which is what makes a
	// re-run after a partial failure converge instead of failing again.
	var removeDocIDs []string
	var removeRowIDs []uint
	cleared := make(map[uint]bool)
	for _, ch := range plan.toRemove {
		qa, ok := byID[ch.New.ID]
		if !ok || qa.DocID == nil || *qa.DocID == "" {
			continue
		}
		removeDocIDs = append(removeDocIDs, *qa.DocID)
		removeRowIDs = append(removeRowIDs, qa.ID)
	}
	if len(removeDocIDs) > 0 {
		if err := r.vectors.DeleteDocuments(ctx, collection.Name, removeDocIDs); err != nil {
			// Residual embeddings with vectorized=true are discoverable and
			// retryable; a cleared flag with a dangling embedding is not, so
			// the relational clear must not run. Later phases are skipped as
			// well: adding before the stale copy is gone would double-embed.
			r.logger.Warn("reconcile remove phase failed",
				zap.Uint("collection_id", collection.ID),
				zap.Int("rows", len(removeRowIDs)),
				zap.Error(err))
			return result, &PartialFailureError{Phase: "remove", RowIDs: changedRowIDs(changes), Err: err}
		}
		if err := r.qas.ClearVectorized(ctx, removeRowIDs); err != nil {
			return result, fmt.Errorf("clear vectorized flags failed: %w", err)
		}
		for _, id := range removeRowIDs {
			cleared[id] = true
		}
		result.Removed = len(removeRowIDs)
	}

	// Phase 2: relational field updates only; no external system involved.
	if len(plan.toUpdate) > 0 {
		rows := make([]model.QA, 0, len(plan.toUpdate))
		for _, ch := range plan.toUpdate {
			rows = append(rows, model.QA{
				ID:          ch.New.ID,
				Question:    ch.New.Question,
				Answer:      ch.New.Answer,
				Alias:       ch.New.Alias,
				Popular:     ch.New.Popular,
				PopularRank: ch.New.PopularRank,
			})
		}
		if err := r.qas.UpdateEditableFields(ctx, rows); err != nil {
			return result, fmt.Errorf("update qa fields failed: %w", err)
		}
		result.Updated = len(rows)
	}

	// Phase 3: delete flagged rows. Their embeddings are already gone:
	// delete-flagged rows that were vectorized always land in toRemove.
	if len(plan.toDelete) > 0 {
		ids := make([]uint, 0, len(plan.toDelete))
		for _, ch := range plan.toDelete {
			ids = append(ids, ch.New.ID)
		}
		if err := r.qas.DeleteByIDs(ctx, collection.ID, ids); err != nil {
			return result, fmt.Errorf("delete qa rows failed: %w", err)
		}
		result.Deleted = len(ids)
	}

	// Phase 4: embed new/changed content and record the returned doc ids.
	// The batch may succeed partially; rows that made it get their doc_id
	// recorded, the rest stay vectorized=false and are reported back.
	if len(plan.toAdd) > 0 {
		var pending []RowChange
		for _, ch := range plan.toAdd {
			// A row that still holds a live doc_id was embedded by an earlier
			// run of the same snapshots; re-adding it would double-embed.
			if qa, ok := byID[ch.New.ID]; ok && !cleared[ch.New.ID] && qa.DocID != nil && *qa.DocID != "" {
				continue
			}
			pending = append(pending, ch)
		}
		docs := make([]vectorstore.Document, 0, len(pending))
		for _, ch := range pending {
			docs = append(docs, vectorstore.Document{
				Content: ch.New.EmbedText(),
				Metadata: vectorstore.Metadata{
					QAID:         ch.New.ID,
					CollectionID: collection.ID,
					Question:     ch.New.Question,
					Answer:       ch.New.Answer,
				},
			})
		}
		var addErr error
		assign := make(map[uint]string)
		if len(docs) > 0 {
			var added []vectorstore.AddedDocument
			added, addErr = r.vectors.AddDocuments(ctx, collection.Name, docs)
			for _, doc := range added {
				assign[doc.Metadata.QAID] = doc.ExternalID
			}
		}
		if len(assign) > 0 {
			if err := r.qas.AssignDocIDs(ctx, assign); err != nil {
				return result, fmt.Errorf("assign doc ids failed: %w", err)
			}
			result.Added = len(assign)
		}
		if addErr != nil {
			var failed []uint
			for _, ch := range pending {
				if _, ok := assign[ch.New.ID]; !ok {
					failed = append(failed, ch.New.ID)
				}
			}
			r.logger.Warn("reconcile add phase incomplete",
				zap.Uint("collection_id", collection.ID),
				zap.Int("added", len(assign)),
				zap.Int("failed", len(failed)),
				zap.Error(addErr))
			return result, &PartialFailureError{Phase: "add", RowIDs: failed, Err: addErr}
		}
	}

	return result, nil
}

// PurgeCollection clears the vector-store collection, then cascade-deletes
// all QA rows. If the vector clear fails the relational delete does not run.
func (r *Reconciler) PurgeCollection(ctx context.Context, collection *model.QACollection) error {
	if err := r.vectors.DropCollection(ctx, collection.Name); err != nil {
		return fmt.Errorf("drop vector collection %q failed: %w", collection.Name, err)
	}
	if err := r.qas.DeleteByCollectionID(ctx, collection.ID); err != nil {
		return fmt.Errorf("cascade delete qa rows failed: %w", err)
	}
	return nil
}

func changedRowIDs(changes []RowChange) []uint {
	ids := make([]uint, 0, len(changes))
	for _, ch := range changes {
		ids = append(ids, ch.New.ID)
	}
	return ids
}
