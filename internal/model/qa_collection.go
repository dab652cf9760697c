package model

import "time"

// QACollection owns a set of QA rows and mirrors one collection in the
// vector store. Name must stay in sync with the vector-store collection.
type QACollection struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	Managers    []User    `gorm:"many2many:qa_collection_managers" json:"managers,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
