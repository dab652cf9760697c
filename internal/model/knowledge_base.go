package model

import "time"

const (
	CategoryKB = "kb"
	CategoryQA = "qa"
)

// KnowledgeBase is the admin-facing record of one chatbot knowledge base.
// Slug is the external identifier used in chat links; it is assigned at
// creation time and never recomputed implicitly.
type KnowledgeBase struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Slug           string    `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	OwnerID        *uint     `gorm:"index" json:"owner_id"` // legacy single-owner field, read as a grant
	DisplayName    string    `gorm:"size:255" json:"display_name"`
	WelcomeMessage string    `gorm:"type:text" json:"welcome_message"`
	Prompt         string    `gorm:"type:text" json:"prompt"`
	Policy         string    `gorm:"type:text" json:"policy"`
	Category       string    `gorm:"size:16;not null;default:kb" json:"category"`
	Managers       []User    `gorm:"many2many:knowledge_base_managers" json:"managers,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
