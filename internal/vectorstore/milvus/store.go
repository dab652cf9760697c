// Package milvus implements the vector store boundary on top of a Milvus
// deployment. One QA collection maps to one Milvus collection; metadata
// columns carry enough of the QA row to correlate search hits back.
package milvus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"askcampus/internal/vectorstore"
)

// embedBatchSize keeps one embedding call small enough that a mid-batch
// failure loses little work; the store reports what made it.
const embedBatchSize = 10

type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Store struct {
	client   client.Client
	embedder embedder
	dim      int
	logger   *zap.Logger
}

func NewStore(ctx context.Context, endpoint string, embedder embedder, dim int, logger *zap.Logger) (*Store, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to milvus at %s: %v", vectorstore.ErrUnavailable, endpoint, err)
	}
	logger.Info("milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.Int("dim", dim))
	return &Store{client: c, embedder: embedder, dim: dim, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return fmt.Errorf("%w: list collections: %v", vectorstore.ErrUnavailable, err)
	}
	return nil
}

var validCollectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,254}$`)

// milvusName maps an application collection name onto a valid Milvus
// identifier. Names that already qualify are prefixed as-is; anything else
// (Chinese names are the common case) is hashed.
func milvusName(name string) string {
	if validCollectionName.MatchString("qa_" + name) {
		return "qa_" + name
	}
	sum := sha256.Sum256([]byte(name))
	return "qa_" + hex.EncodeToString(sum[:16])
}

func (s *Store) ensureCollection(ctx context.Context, name string) error {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", vectorstore.ErrUnavailable, err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "qa embeddings",
		Fields: []*entity.Field{
			{
				Name:       "doc_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.dim)},
			},
			{
				Name:     "qa_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "collection_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       "question",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "4096"},
			},
			{
				Name:       "answer",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16384"},
			},
		},
	}
	if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("%w: create collection: %v", vectorstore.ErrUnavailable, err)
	}
	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("%w: create index: %v", vectorstore.ErrUnavailable, err)
	}
	if err := s.client.CreateIndex(ctx, name, "embedding", idx, false); err != nil {
		return fmt.Errorf("%w: create index: %v", vectorstore.ErrUnavailable, err)
	}
	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("%w: load collection: %v", vectorstore.ErrUnavailable, err)
	}
	s.logger.Info("milvus collection created", zap.String("collection", name))
	return nil
}

// AddDocuments embeds and stores docs in sub-batches. When a batch fails the
// remaining batches still run; the successfully stored documents are
// returned alongside the combined error.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []vectorstore.Document) ([]vectorstore.AddedDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	name := milvusName(collection)
	if err := s.ensureCollection(ctx, name); err != nil {
		return nil, err
	}

	var added []vectorstore.AddedDocument
	var errs []error
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		stored, err := s.addBatch(ctx, name, batch)
		added = append(added, stored...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return added, errors.Join(errs...)
	}
	return added, nil
}

func (s *Store) addBatch(ctx context.Context, name string, batch []vectorstore.Document) ([]vectorstore.AddedDocument, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch failed: %w", err)
	}

	docIDs := make([]string, len(batch))
	qaIDs := make([]int64, len(batch))
	collectionIDs := make([]int64, len(batch))
	questions := make([]string, len(batch))
	answers := make([]string, len(batch))
	for i := range batch {
		docIDs[i] = uuid.NewString()
		qaIDs[i] = int64(batch[i].Metadata.QAID)
		collectionIDs[i] = int64(batch[i].Metadata.CollectionID)
		questions[i] = batch[i].Metadata.Question
		answers[i] = batch[i].Metadata.Answer
	}

	_, err = s.client.Insert(
		ctx,
		name,
		"",
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnFloatVector("embedding", s.dim, vectors),
		entity.NewColumnInt64("qa_id", qaIDs),
		entity.NewColumnInt64("collection_id", collectionIDs),
		entity.NewColumnVarChar("question", questions),
		entity.NewColumnVarChar("answer", answers),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert documents: %v", vectorstore.ErrUnavailable, err)
	}
	if err := s.client.Flush(ctx, name, false); err != nil {
		return nil, fmt.Errorf("%w: flush: %v", vectorstore.ErrUnavailable, err)
	}

	added := make([]vectorstore.AddedDocument, len(batch))
	for i := range batch {
		added[i] = vectorstore.AddedDocument{ExternalID: docIDs[i], Metadata: batch[i].Metadata}
	}
	return added, nil
}

func (s *Store) DeleteDocuments(ctx context.Context, collection string, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	name := milvusName(collection)
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", vectorstore.ErrUnavailable, err)
	}
	if !has {
		return nil
	}
	pks := entity.NewColumnVarChar("doc_id", externalIDs)
	if err := s.client.DeleteByPks(ctx, name, "", pks); err != nil {
		return fmt.Errorf("%w: delete documents: %v", vectorstore.ErrUnavailable, err)
	}
	if err := s.client.Flush(ctx, name, false); err != nil {
		return fmt.Errorf("%w: flush: %v", vectorstore.ErrUnavailable, err)
	}
	return nil
}

// Search embeds the query and runs an L2 nearest-neighbour search. Scores
// are distances, lower is closer; scoreThreshold > 0 drops hits farther
// away than the threshold.
func (s *Store) Search(ctx context.Context, collection, query string, topK int, scoreThreshold float32) ([]vectorstore.Hit, error) {
	name := milvusName(collection)
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: check collection: %v", vectorstore.ErrUnavailable, err)
	}
	if !has {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)
	searchResult, err := s.client.Search(
		ctx,
		name,
		[]string{},
		"",
		[]string{"doc_id", "qa_id", "collection_id", "question", "answer"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", vectorstore.ErrUnavailable, err)
	}

	var hits []vectorstore.Hit
	for _, sr := range searchResult {
		docIDCol := sr.Fields.GetColumn("doc_id")
		qaIDCol := sr.Fields.GetColumn("qa_id")
		collectionIDCol := sr.Fields.GetColumn("collection_id")
		questionCol := sr.Fields.GetColumn("question")
		answerCol := sr.Fields.GetColumn("answer")
		for i := 0; i < sr.ResultCount; i++ {
			if scoreThreshold > 0 && sr.Scores[i] > scoreThreshold {
				continue
			}
			docID, _ := docIDCol.Get(i)
			qaID, _ := qaIDCol.Get(i)
			collectionID, _ := collectionIDCol.Get(i)
			question, _ := questionCol.Get(i)
			answer, _ := answerCol.Get(i)
			hits = append(hits, vectorstore.Hit{
				ExternalID: docID.(string),
				Content:    question.(string),
				Metadata: vectorstore.Metadata{
					QAID:         uint(qaID.(int64)),
					CollectionID: uint(collectionID.(int64)),
					Question:     question.(string),
					Answer:       answer.(string),
				},
				Score: sr.Scores[i],
			})
		}
	}
	return hits, nil
}

func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	name := milvusName(collection)
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", vectorstore.ErrUnavailable, err)
	}
	if !has {
		return nil
	}
	if err := s.client.Delete(ctx, name, "", "qa_id >= 0"); err != nil {
		return fmt.Errorf("%w: clear collection: %v", vectorstore.ErrUnavailable, err)
	}
	if err := s.client.Flush(ctx, name, false); err != nil {
		return fmt.Errorf("%w: flush: %v", vectorstore.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) DropCollection(ctx context.Context, collection string) error {
	name := milvusName(collection)
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", vectorstore.ErrUnavailable, err)
	}
	if !has {
		return nil
	}
	if err := s.client.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("%w: drop collection: %v", vectorstore.ErrUnavailable, err)
	}
	s.logger.Info("milvus collection dropped", zap.String("collection", name))
	return nil
}
