package model

import "time"

// QAAnalytics is one append-only record of a QA row being served as a search
// result. Rows are only ever inserted; there is no update or delete path.
type QAAnalytics struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	QAID         uint      `gorm:"not null;index" json:"qa_id"`
	CollectionID uint      `gorm:"not null;index" json:"collection_id"`
	Query        string    `gorm:"type:text;not null" json:"query"`
	QueryGroupID string    `gorm:"size:36;not null;index" json:"query_group_id"`
	Rank         int       `gorm:"not null" json:"rank"`
	TopK         int       `gorm:"not null" json:"top_k"`
	Score        float32   `gorm:"not null" json:"score"`
	Timestamp    time.Time `gorm:"not null" json:"timestamp"`
}
