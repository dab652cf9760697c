package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/vectorstore"
)

// analyticsPublisher carries the fire-and-forget analytics stream. Publish
// failures never fail a query.
type analyticsPublisher interface {
	Publish(ctx context.Context, record model.QAAnalytics) error
}

type queryQAStore interface {
	ListByIDs(ctx context.Context, ids []uint) ([]model.QA, error)
}

type QueryService struct {
	collections    collectionStore
	qas            queryQAStore
	vectors        vectorstore.Store
	publisher      analyticsPublisher
	topK           int
	scoreThreshold float32
	logger         *zap.Logger
}

func NewQueryService(collections collectionStore, qas queryQAStore, vectors vectorstore.Store, publisher analyticsPublisher, topK int, scoreThreshold float32, logger *zap.Logger) *QueryService {
	return &QueryService{
		collections:    collections,
		qas:            qas,
		vectors:        vectors,
		publisher:      publisher,
		topK:           topK,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

type QueryResult struct {
	QAID     uint    `json:"qa_id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float32 `json:"score"`
	Popular  bool    `json:"popular"`
}

// Query searches a collection by its public slug. Results come back in
// similarity order except that popular rows float to the top, ordered by
// their popular rank. Every served result is recorded as one analytics
// event sharing a per-query group id.
func (s *QueryService) Query(ctx context.Context, slug, query string, topK int) ([]QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}
	collection, err := s.collections.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrNotFound
	}
	if topK <= 0 {
		topK = s.topK
	}
	hits, err := s.vectors.Search(ctx, collection.Name, query, topK, s.scoreThreshold)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []QueryResult{}, nil
	}

	ids := make([]uint, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.Metadata.QAID)
	}
	rows, err := s.qas.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.QA, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	type scoredRow struct {
		qa    model.QA
		score float32
	}
	matched := make([]scoredRow, 0, len(hits))
	for _, hit := range hits {
		qa, ok := byID[hit.Metadata.QAID]
		if !ok {
			// An embedding whose row is gone is a leftover from an
			// incomplete removal; serving it would show stale content.
			s.logger.Warn("search hit without relational row",
				zap.Uint("qa_id", hit.Metadata.QAID),
				zap.String("doc_id", hit.ExternalID))
			continue
		}
		matched = append(matched, scoredRow{qa: qa, score: hit.Score})
	}

	// Stable, so non-popular rows keep their similarity order.
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].qa, matched[j].qa
		if a.Popular != b.Popular {
			return a.Popular
		}
		if a.Popular && b.Popular && a.PopularRank != b.PopularRank {
			return a.PopularRank < b.PopularRank
		}
		return false
	})

	groupID := uuid.NewString()
	now := time.Now()
	results := make([]QueryResult, 0, len(matched))
	for i, m := range matched {
		results = append(results, QueryResult{
			QAID:     m.qa.ID,
			Question: m.qa.Question,
			Answer:   m.qa.Answer,
			Score:    m.score,
			Popular:  m.qa.Popular,
		})
		record := model.QAAnalytics{
			QAID:         m.qa.ID,
			CollectionID: collection.ID,
			Query:        query,
			QueryGroupID: groupID,
			Rank:         i + 1,
			TopK:         topK,
			Score:        m.score,
			Timestamp:    now,
		}
		if err := s.publisher.Publish(ctx, record); err != nil {
			s.logger.Warn("analytics publish failed",
				zap.Uint("qa_id", m.qa.ID),
				zap.String("query_group_id", groupID),
				zap.Error(err))
		}
	}
	return results, nil
}
