package vectorstore

import (
	"context"
	"errors"
)

// ErrUnavailable wraps transport-level failures of the backing vector engine.
// Callers use it to distinguish "the store said no" from "the store is down".
var ErrUnavailable = errors.New("vector store unavailable")

// Metadata travels with every embedded document and must round-trip the QA
// row id, so search hits can be correlated back to relational rows.
type Metadata struct {
	QAID         uint   `json:"qa_id"`
	CollectionID uint   `json:"collection_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
}

type Document struct {
	Content  string
	Metadata Metadata
}

// AddedDocument reports one successfully stored document and the external id
// assigned to it.
type AddedDocument struct {
	ExternalID string
	Metadata   Metadata
}

type Hit struct {
	ExternalID string
	Content    string
	Metadata   Metadata
	Score      float32
}

// Store is the boundary to the external semantic index. AddDocuments may
// succeed partially: it returns the documents that were stored alongside a
// non-nil error when some of the batch failed.
type Store interface {
	AddDocuments(ctx context.Context, collection string, docs []Document) ([]AddedDocument, error)
	DeleteDocuments(ctx context.Context, collection string, externalIDs []string) error
	Search(ctx context.Context, collection, query string, topK int, scoreThreshold float32) ([]Hit, error)
	ClearCollection(ctx context.Context, collection string) error
	DropCollection(ctx context.Context, collection string) error
}
