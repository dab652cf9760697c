package model

import (
	"strings"
	"time"
)

// QA is a single question-answer pair. Vectorized is true iff DocID points at
// a live embedding in the vector store for the owning collection; the
// reconciler keeps that pairing intact across edits.
type QA struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CollectionID uint      `gorm:"not null;index" json:"collection_id"`
	Source       string    `gorm:"size:255" json:"source"`
	Question     string    `gorm:"type:text;not null" json:"question"`
	Answer       string    `gorm:"type:text;not null" json:"answer"`
	Alias        string    `gorm:"type:text" json:"alias"`
	Vectorized   bool      `gorm:"not null;default:false" json:"vectorized"`
	DocID        *string   `gorm:"size:255;uniqueIndex" json:"doc_id"`
	Popular      bool      `gorm:"not null;default:false" json:"popular"`
	PopularRank  int       `gorm:"not null;default:0" json:"popular_rank"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EmbedText returns the text submitted to the vector store for this row:
// the alias when present, otherwise the question itself.
func (q *QA) EmbedText() string {
	if alias := strings.TrimSpace(q.Alias); alias != "" {
		return alias
	}
	return q.Question
}
